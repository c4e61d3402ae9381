package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/gqlupload"
)

func TestNew_InitialState(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	v := c.View()

	if v.StepIndex != 0 || v.Step != StepPersonal {
		t.Errorf("initial step = %d/%s, want 0/personal", v.StepIndex, v.Step)
	}
	if len(v.Steps) != 6 {
		t.Errorf("got %d steps, want 6", len(v.Steps))
	}
	if got := len(v.Form.Referencias); got != MinReferences {
		t.Errorf("initial references = %d, want %d", got, MinReferences)
	}
	for _, dt := range core.DocumentTypes {
		f, ok := v.Form.Documentos[dt]
		if !ok || f != nil {
			t.Errorf("document slot %s = %v, %v; want present and absent", dt, f, ok)
		}
	}
}

func TestNext_EmptyStepStays(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})

	ok, err := c.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ok {
		t.Fatal("Next() advanced with an empty form")
	}

	v := c.View()
	if v.StepIndex != 0 {
		t.Errorf("step = %d, want 0", v.StepIndex)
	}
	for _, field := range []string{"nombres", "apellidos", "dpi", "fechaNacimiento", "telefono", "correo", "departamento", "municipio", "direccion"} {
		if got := v.Errors.First(field); got != "Este campo es obligatorio" {
			t.Errorf("Errors[%s] = %q, want required message", field, got)
		}
	}
}

func TestNext_ShortDPIBlocksPersonalStep(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})

	values := validPersonal()
	values["dpi"] = "12345"
	mustSet(t, c, values)

	ok, err := c.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ok {
		t.Fatal("Next() advanced with a 5 digit DPI")
	}

	v := c.View()
	if v.Step != StepPersonal {
		t.Errorf("step = %s, want personal", v.Step)
	}
	want := FieldErrors{"dpi": {"El DPI debe tener 13 dígitos"}}
	if diff := cmp.Diff(want, v.Errors); diff != "" {
		t.Errorf("field errors mismatch (-want +got):\n%s", diff)
	}
}

func TestNext_ErrorsScopedToCurrentStep(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	mustSet(t, c, validPersonal())
	mustNext(t, c)

	if ok, _ := c.Next(); ok {
		t.Fatal("Next() advanced with an empty business step")
	}
	for _, p := range c.View().Errors.Paths() {
		if _, ok := validNegocio()[p]; !ok {
			t.Errorf("unexpected error path %q on the business step", p)
		}
	}
}

func TestBack_KeepsValuesAndSkipsValidation(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	mustSet(t, c, validPersonal())
	mustNext(t, c)
	mustSet(t, c, map[string]string{"nombreComercial": "Tienda Sol"})

	if err := c.Back(); err != nil {
		t.Fatalf("Back() error = %v", err)
	}
	v := c.View()
	if v.Step != StepPersonal {
		t.Errorf("step = %s, want personal", v.Step)
	}
	if v.Form.Negocio.NombreComercial != "Tienda Sol" {
		t.Errorf("NombreComercial = %q, want it kept", v.Form.Negocio.NombreComercial)
	}
	if err := c.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Back() on first step error = %v, want ErrInvalidTransition", err)
	}
}

func TestGoTo_OnlyBackwards(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	advanceToReview(t, c)

	if err := c.GoTo(1); err != nil {
		t.Fatalf("GoTo(1) error = %v", err)
	}
	if got := c.View().Step; got != StepNegocio {
		t.Errorf("step = %s, want negocio", got)
	}
	if err := c.GoTo(4); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("GoTo forward error = %v, want ErrInvalidTransition", err)
	}
}

func TestReferences_StayWithinBounds(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})

	if err := c.RemoveReference(2); !errors.Is(err, ErrReferenceLimit) {
		t.Errorf("RemoveReference at 3 error = %v, want ErrReferenceLimit", err)
	}
	if got := len(c.View().Form.Referencias); got != 3 {
		t.Fatalf("references = %d after rejected removal, want 3", got)
	}

	for i := 0; i < 2; i++ {
		if err := c.AddReference(); err != nil {
			t.Fatalf("AddReference() #%d error = %v", i, err)
		}
	}
	if err := c.AddReference(); !errors.Is(err, ErrReferenceLimit) {
		t.Errorf("AddReference at 5 error = %v, want ErrReferenceLimit", err)
	}
	if got := len(c.View().Form.Referencias); got != 5 {
		t.Fatalf("references = %d after rejected add, want 5", got)
	}

	mustSet(t, c, map[string]string{"referencias.4.nombres": "Última"})
	if err := c.RemoveReference(0); err != nil {
		t.Fatalf("RemoveReference(0) error = %v", err)
	}
	form := c.View().Form
	if len(form.Referencias) != 4 || form.Referencias[3].Nombres != "Última" {
		t.Errorf("references after removal = %+v", form.Referencias)
	}
	if err := c.RemoveReference(9); !errors.Is(err, ErrUnknownField) {
		t.Errorf("RemoveReference(9) error = %v, want ErrUnknownField", err)
	}
}

func TestSetFields_DepartmentResetsMunicipality(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	mustSet(t, c, map[string]string{"departamento": "Guatemala", "municipio": "Mixco"})

	mustSet(t, c, map[string]string{"departamento": "Guatemala"})
	if got := c.View().Form.Personal.Municipio; got != "Mixco" {
		t.Errorf("unchanged department cleared municipio: %q", got)
	}

	mustSet(t, c, map[string]string{"departamento": "Sacatepéquez"})
	if got := c.View().Form.Personal.Municipio; got != "" {
		t.Errorf("municipio = %q after department change, want empty", got)
	}

	mustSet(t, c, map[string]string{"departamento": "Izabal", "municipio": "Livingston"})
	p := c.View().Form.Personal
	if p.Departamento != "Izabal" || p.Municipio != "Livingston" {
		t.Errorf("posting both fields = %q/%q, want Izabal/Livingston", p.Departamento, p.Municipio)
	}
}

func TestSetFields_UnknownFieldChangesNothing(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})

	err := c.SetFields(map[string]string{"nombres": "Ana", "apodo": "Anita"})
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("SetFields() error = %v, want ErrUnknownField", err)
	}
	if got := c.View().Form.Personal.Nombres; got != "" {
		t.Errorf("nombres = %q, want untouched", got)
	}

	for _, path := range []string{"referencias.3.nombres", "referencias.x.nombres", "referencias.0.apodo", "referencias.0"} {
		if err := c.SetField(path, "x"); !errors.Is(err, ErrUnknownField) {
			t.Errorf("SetField(%q) error = %v, want ErrUnknownField", path, err)
		}
	}
}

func TestNext_MunicipalityMustBelongToDepartment(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	values := validPersonal()
	values["municipio"] = "Antigua Guatemala"
	mustSet(t, c, values)

	if ok, _ := c.Next(); ok {
		t.Fatal("Next() advanced with a municipality of another department")
	}
	want := FieldErrors{"municipio": {"Seleccione un municipio del departamento elegido"}}
	if diff := cmp.Diff(want, c.View().Errors); diff != "" {
		t.Errorf("field errors mismatch (-want +got):\n%s", diff)
	}
}

func TestStageDocument_ReplacementReleasesPreviewOnce(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})

	mustStage(t, c, core.DocDPIFrontal, pngFile("primera.png"))
	first := c.View().Documents[0].Preview
	if first == "" || c.LivePreviews() != 1 {
		t.Fatalf("first image: preview %q, live %d", first, c.LivePreviews())
	}

	mustStage(t, c, core.DocDPIFrontal, pngFile("segunda.png"))
	second := c.View().Documents[0].Preview

	if second == "" || second == first {
		t.Fatalf("second preview = %q, want a new reference", second)
	}
	if got := c.LivePreviews(); got != 1 {
		t.Errorf("live previews = %d after replacement, want 1", got)
	}
	if got := c.previews.Released(); got != 1 {
		t.Errorf("released = %d, want exactly 1", got)
	}
	if _, ok := c.Preview(first.ID()); ok {
		t.Error("superseded preview is still served")
	}
	if c.previews.Release(first) {
		t.Error("superseded preview released twice")
	}
	if f, ok := c.Preview(second.ID()); !ok || f.Name != "segunda.png" {
		t.Errorf("Preview(second) = %v, %v", f, ok)
	}
	if got := c.View().Form.Documentos[core.DocDPIFrontal].Name; got != "segunda.png" {
		t.Errorf("staged file = %q, want total replacement", got)
	}

	// A PDF gets no preview of its own.
	mustStage(t, c, core.DocDPIFrontal, core.NewFileHandle("frente.jpg", "image/jpeg", []byte("jpeg")))
	mustStage(t, c, core.DocRTU, pdfFile("rtu.pdf"))
	if got := c.LivePreviews(); got != 1 {
		t.Errorf("live previews = %d, want 1", got)
	}

	if err := c.ClearDocument(core.DocDPIFrontal); err != nil {
		t.Fatalf("ClearDocument() error = %v", err)
	}
	if got := c.LivePreviews(); got != 0 {
		t.Errorf("live previews = %d after clear, want 0", got)
	}
	if got := c.previews.Released(); got != 3 {
		t.Errorf("released = %d, want 3", got)
	}
}

func TestStageDocument_RejectedFileLeavesSlot(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	mustStage(t, c, core.DocRTU, pdfFile("rtu.pdf"))

	res, err := c.StageDocument(core.DocRTU, core.NewFileHandle("rtu.docx", "application/msword", []byte("doc")))
	if err != nil {
		t.Fatalf("StageDocument() error = %v", err)
	}
	if res.Valid {
		t.Fatal("a Word document was accepted for RTU")
	}

	v := c.View()
	if got := v.Form.Documentos[core.DocRTU].Name; got != "rtu.pdf" {
		t.Errorf("slot = %q, want the previous file kept", got)
	}
	if !v.Errors.Has("documentos.rtu") {
		t.Errorf("missing documentos.rtu error: %v", v.Errors)
	}

	if _, err := c.StageDocument("pasaporte", pdfFile("p.pdf")); !errors.Is(err, core.ErrUnknownDocumentType) {
		t.Errorf("unknown type error = %v, want ErrUnknownDocumentType", err)
	}
}

func TestNext_DocumentsStepRequiresEveryDocument(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	mustSet(t, c, validPersonal())
	mustNext(t, c)
	mustSet(t, c, validNegocio())
	mustNext(t, c)
	mustSet(t, c, validBanco())
	mustNext(t, c)
	mustSet(t, c, validReferencias(3))
	mustNext(t, c)
	mustStage(t, c, core.DocRTU, pdfFile("rtu.pdf"))

	if ok, _ := c.Next(); ok {
		t.Fatal("Next() advanced with missing documents")
	}
	errs := c.View().Errors
	want := []string{
		"Falta el documento requerido: DPI (frente)",
		"Falta el documento requerido: DPI (reverso)",
		"Falta el documento requerido: Patente de comercio",
	}
	if diff := cmp.Diff(want, errs["documentos"]); diff != "" {
		t.Errorf("set-level errors mismatch (-want +got):\n%s", diff)
	}
	if errs.Has("documentos.rtu") {
		t.Errorf("staged RTU reported: %v", errs["documentos.rtu"])
	}
}

func TestFinalize_SubmitsOnceWithStagedFiles(t *testing.T) {
	transport := &fakeTransport{}
	c := New("s-1", testRules(t), transport)
	advanceToReview(t, c)

	outcome, err := c.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if outcome != OutcomeSucceeded {
		t.Fatalf("Finalize() outcome = %v, want succeeded", outcome)
	}

	calls := transport.Calls()
	if len(calls) != 1 {
		t.Fatalf("transport called %d times, want 1", len(calls))
	}
	p := calls[0]
	if len(p.Files) != 4 {
		t.Errorf("files = %d, want 4", len(p.Files))
	}

	wantMap := gqlupload.FileMap{
		"0": {"variables.documentos.dpi_frontal"},
		"1": {"variables.documentos.dpi_posterior"},
		"2": {"variables.documentos.rtu"},
		"3": {"variables.documentos.patente_comercio"},
	}
	if diff := cmp.Diff(wantMap, p.Map); diff != "" {
		t.Errorf("file map mismatch (-want +got):\n%s", diff)
	}

	var ops struct {
		Query     string `json:"query"`
		Variables struct {
			Data       map[string]any `json:"data"`
			Documentos map[string]any `json:"documentos"`
		} `json:"variables"`
	}
	if err := json.Unmarshal([]byte(p.Operations), &ops); err != nil {
		t.Fatalf("operations: %v", err)
	}
	if ops.Query != CreateMutation {
		t.Error("create wizard did not send the create mutation")
	}
	if ops.Variables.Data["dpi"] != "1234567890101" || ops.Variables.Data["municipio"] != "Mixco" {
		t.Errorf("data = %v", ops.Variables.Data)
	}
	if _, ok := ops.Variables.Data["id"]; ok {
		t.Error("create data carries an id")
	}
	if refs, _ := ops.Variables.Data["referencias"].([]any); len(refs) != 3 {
		t.Errorf("referencias = %v", ops.Variables.Data["referencias"])
	}
	for _, dt := range core.DocumentTypes {
		if v, ok := ops.Variables.Documentos[string(dt)]; !ok || v != nil {
			t.Errorf("documentos.%s = %v, want null", dt, v)
		}
	}

	v := c.View()
	if !v.Succeeded() || v.Form != nil {
		t.Errorf("after success: phase %s, form %v", v.Phase, v.Form)
	}
	if !strings.Contains(string(v.Result), "d-1") {
		t.Errorf("Result = %s", v.Result)
	}
	if got := c.LivePreviews(); got != 0 {
		t.Errorf("live previews = %d after success, want 0", got)
	}
	if err := c.SetField("nombres", "x"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetField after success error = %v, want ErrInvalidTransition", err)
	}
	if _, err := c.Finalize(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Finalize error = %v, want ErrInvalidTransition", err)
	}
	if len(transport.Calls()) != 1 {
		t.Error("transport called again after success")
	}
}

func TestFinalize_EditModeSendsOnlyReplacedDocuments(t *testing.T) {
	initial := NewFormState()
	transport := &fakeTransport{}
	c := New("s-2", testRules(t), transport, WithEdit("dist-77", initial))

	mustSet(t, c, validPersonal())
	mustNext(t, c)
	mustSet(t, c, validNegocio())
	mustNext(t, c)
	mustSet(t, c, validBanco())
	mustNext(t, c)
	mustSet(t, c, validReferencias(3))
	if err := c.AddReference(); err != nil {
		t.Fatalf("AddReference() error = %v", err)
	}
	if ok, _ := c.Next(); ok {
		t.Fatal("Next() advanced with an empty fourth reference")
	}
	if err := c.RemoveReference(3); err != nil {
		t.Fatalf("RemoveReference(3) error = %v", err)
	}
	mustNext(t, c)
	mustStage(t, c, core.DocRTU, pdfFile("rtu-2025.pdf"))
	mustNext(t, c)

	if outcome, err := c.Finalize(context.Background()); err != nil || outcome != OutcomeSucceeded {
		t.Fatalf("Finalize() = %v, %v", outcome, err)
	}

	p := transport.Calls()[0]
	if len(p.Files) != 1 {
		t.Errorf("files = %d, want 1 (only the replaced RTU)", len(p.Files))
	}
	if diff := cmp.Diff(gqlupload.FileMap{"0": {"variables.documentos.rtu"}}, p.Map); diff != "" {
		t.Errorf("file map mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(p.Operations, `{"query":"mutation ActualizarDistribuidor`) {
		t.Error("edit wizard did not send the update mutation")
	}
	if !strings.Contains(p.Operations, `"data":{"id":"dist-77","nombres":"Ana María"`) {
		t.Errorf("edit data does not start with the distributor id: %s", p.Operations)
	}
}

func TestFinalize_TransportFailureReturnsToReview(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "server message",
			err:  &gqlupload.TransportError{StatusCode: 200, Errors: []gqlupload.GraphQLError{{Message: "El NIT ya está registrado"}}},
			want: "El NIT ya está registrado",
		},
		{
			name: "network failure",
			err:  &gqlupload.TransportError{Err: errors.New("connection refused")},
			want: GenericSubmitError,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: GenericSubmitError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{err: tt.err}
			c := New("s-1", testRules(t), transport)
			advanceToReview(t, c)

			outcome, err := c.Finalize(context.Background())
			if err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			if outcome != OutcomeFailed {
				t.Fatalf("outcome = %v, want failed", outcome)
			}

			v := c.View()
			if v.Step != StepRevision || v.Phase != PhaseEditing.String() {
				t.Errorf("after failure: step %s phase %s", v.Step, v.Phase)
			}
			if v.SubmitError != tt.want {
				t.Errorf("SubmitError = %q, want %q", v.SubmitError, tt.want)
			}
			if v.Form == nil || v.Form.Personal.DPI != "1234567890101" || v.Form.StagedCount() != 4 {
				t.Error("entered data was discarded on failure")
			}

			// Retry succeeds and clears the banner.
			transport.setResult(nil, nil)
			if outcome, _ := c.Finalize(context.Background()); outcome != OutcomeSucceeded {
				t.Fatalf("retry outcome = %v", outcome)
			}
			if got := c.View().SubmitError; got != "" {
				t.Errorf("SubmitError after retry = %q", got)
			}
			if got := len(transport.Calls()); got != 2 {
				t.Errorf("transport calls = %d, want 2", got)
			}
		})
	}
}

func TestDismissError(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{err: errors.New("boom")})
	advanceToReview(t, c)
	_, _ = c.Finalize(context.Background())

	c.DismissError()
	if got := c.View().SubmitError; got != "" {
		t.Errorf("SubmitError = %q after dismiss", got)
	}
}

func TestFinalize_RevalidatesEarlierSteps(t *testing.T) {
	transport := &fakeTransport{}
	c := New("s-1", testRules(t), transport)
	advanceToReview(t, c)

	mustSet(t, c, map[string]string{"dpi": "123"})

	outcome, err := c.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if outcome != OutcomeIncomplete {
		t.Fatalf("outcome = %v, want incomplete", outcome)
	}
	v := c.View()
	if v.Step != StepPersonal {
		t.Errorf("step = %s, want personal", v.Step)
	}
	if !v.Errors.Has("dpi") {
		t.Errorf("missing dpi error: %v", v.Errors)
	}
	if len(transport.Calls()) != 0 {
		t.Error("transport called for an invalid form")
	}
}

func TestFinalize_OnlyFromReview(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	if _, err := c.Finalize(context.Background()); !errors.Is(err, ErrNotAtReview) {
		t.Errorf("Finalize() on step 0 error = %v, want ErrNotAtReview", err)
	}
}

func TestFinalize_RejectsReentrantSubmission(t *testing.T) {
	transport := &fakeTransport{
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := New("s-1", testRules(t), transport)
	advanceToReview(t, c)

	done := make(chan Outcome, 1)
	go func() {
		outcome, _ := c.Finalize(context.Background())
		done <- outcome
	}()

	select {
	case <-transport.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("transport was not called")
	}

	if got := c.View().Phase; got != PhaseSubmitting.String() {
		t.Errorf("phase = %s, want submitting", got)
	}
	if _, err := c.Finalize(context.Background()); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("second Finalize error = %v, want ErrSubmissionInFlight", err)
	}
	if err := c.SetField("nombres", "Otro"); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("SetField during submission error = %v, want ErrSubmissionInFlight", err)
	}
	if err := c.Back(); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("Back during submission error = %v, want ErrSubmissionInFlight", err)
	}

	close(transport.block)
	select {
	case outcome := <-done:
		if outcome != OutcomeSucceeded {
			t.Errorf("outcome = %v, want succeeded", outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Finalize did not return")
	}
	if got := len(transport.Calls()); got != 1 {
		t.Errorf("transport calls = %d, want 1", got)
	}
}

func TestClose_ReleasesPreviews(t *testing.T) {
	c := New("s-1", testRules(t), &fakeTransport{})
	mustStage(t, c, core.DocDPIFrontal, pngFile("frente.png"))
	mustStage(t, c, core.DocDPIPosterior, pngFile("reverso.png"))

	c.Close()
	c.Close()

	if got := c.LivePreviews(); got != 0 {
		t.Errorf("live previews = %d after Close, want 0", got)
	}
	if got := c.previews.Released(); got != 2 {
		t.Errorf("released = %d, want 2", got)
	}
	if err := c.SetField("nombres", "x"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SetField after Close error = %v, want ErrSessionClosed", err)
	}
}
