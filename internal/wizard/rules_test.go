package wizard

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/registro/internal/core"
)

func TestValidNIT(t *testing.T) {
	tests := []struct {
		nit  string
		want bool
	}{
		{"1234567-9", true},
		{"12345679", true},
		{" 1234567-9 ", true},
		{"1234567-8", false},
		{"6-K", true},
		{"6-k", true},
		{"6-0", false},
		{"", false},
		{"CF", false},
		{"12a4567-9", false},
		{"1234567890123-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.nit, func(t *testing.T) {
			if got := ValidNIT(tt.nit); got != tt.want {
				t.Errorf("ValidNIT(%q) = %v, want %v", tt.nit, got, tt.want)
			}
		})
	}
}

func TestFieldPath(t *testing.T) {
	tests := []struct {
		namespace string
		want      string
	}{
		{"PersonalInfo.dpi", "dpi"},
		{"referencesStep.referencias", "referencias"},
		{"referencesStep.referencias[1].telefono", "referencias.1.telefono"},
		{"dpi", "dpi"},
	}

	for _, tt := range tests {
		if got := fieldPath(tt.namespace); got != tt.want {
			t.Errorf("fieldPath(%q) = %q, want %q", tt.namespace, got, tt.want)
		}
	}
}

func TestRules_PersonalMessages(t *testing.T) {
	r := testRules(t)

	p := PersonalInfo{
		Nombres:         "Ana",
		Apellidos:       "López",
		DPI:             "1234 56789 0101",
		FechaNacimiento: "2010-01-01",
		Telefono:        "5551-234",
		Correo:          "ana@",
		Departamento:    "Narnia",
		Municipio:       "Mixco",
		Direccion:       "zona 1",
	}

	want := FieldErrors{
		"fechaNacimiento": {"Debe tener al menos 18 años"},
		"telefono":        {"El teléfono debe tener 8 dígitos"},
		"correo":          {"Ingrese un correo electrónico válido"},
		"departamento":    {"Seleccione un departamento válido"},
	}
	if diff := cmp.Diff(want, r.check(p)); diff != "" {
		t.Errorf("field errors mismatch (-want +got):\n%s", diff)
	}
}

func TestRules_BirthDateBoundary(t *testing.T) {
	r := testRules(t)
	p := PersonalInfo{}

	for date, wantErr := range map[string]bool{
		"2007-06-01": false, // turns 18 on testNow
		"2007-06-02": true,
		"01/06/1990": true,
	} {
		p.FechaNacimiento = date
		got := r.check(p).Has("fechaNacimiento")
		if got != wantErr {
			t.Errorf("fechaNacimiento %q: error = %v, want %v", date, got, wantErr)
		}
	}
}

func TestRules_BankMessages(t *testing.T) {
	r := testRules(t)

	got := r.check(BankInfo{
		Banco:                "Banco de Narnia",
		TipoCuenta:           "corriente",
		NumeroCuenta:         "12-34",
		NombreCuentahabiente: "Ana",
	})
	want := FieldErrors{
		"banco":        {"Seleccione un banco de la lista"},
		"tipoCuenta":   {"Seleccione una opción válida"},
		"numeroCuenta": {"Solo se permiten dígitos"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field errors mismatch (-want +got):\n%s", diff)
	}

	got = r.check(BankInfo{Banco: "Banrural", TipoCuenta: "ahorro", NumeroCuenta: "123", NombreCuentahabiente: "Ana"})
	if msg := got.First("numeroCuenta"); msg != "Debe tener al menos 6 caracteres" {
		t.Errorf("short account message = %q", msg)
	}
}

func TestChoices_AcceptedByRules(t *testing.T) {
	r := testRules(t)

	for _, c := range BusinessTypes {
		if got := r.check(BusinessInfo{TipoNegocio: c.Value}); got.First("tipoNegocio") != "" {
			t.Errorf("business type %q rejected: %v", c.Value, got["tipoNegocio"])
		}
		if c.Label == "" || c.Label == c.Value {
			t.Errorf("business type %q has no display label", c.Value)
		}
	}
	for _, c := range AccountTypes {
		if got := r.check(BankInfo{TipoCuenta: c.Value}); got.First("tipoCuenta") != "" {
			t.Errorf("account type %q rejected: %v", c.Value, got["tipoCuenta"])
		}
	}
}

func TestRules_ReferenceCountMessages(t *testing.T) {
	r := testRules(t)
	ref := ReferenceEntry{Nombres: "Luis", Telefono: "40000000", Relacion: "Cliente"}

	got := r.check(referencesStep{Referencias: []ReferenceEntry{ref, ref}})
	if msg := got.First("referencias"); msg != "Debe registrar al menos 3 referencias" {
		t.Errorf("too few message = %q", msg)
	}

	got = r.check(referencesStep{Referencias: []ReferenceEntry{ref, ref, ref, ref, ref, ref}})
	if msg := got.First("referencias"); msg != "No puede registrar más de 5 referencias" {
		t.Errorf("too many message = %q", msg)
	}

	bad := ref
	bad.Telefono = "123"
	got = r.check(referencesStep{Referencias: []ReferenceEntry{ref, bad, ref}})
	want := FieldErrors{"referencias.1.telefono": {"El teléfono debe tener 8 dígitos"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("field errors mismatch (-want +got):\n%s", diff)
	}
}

func TestSteps_EditModeDocumentsOptional(t *testing.T) {
	r := testRules(t)
	state := NewFormState()

	create := r.Steps(ModeCreate)
	edit := r.Steps(ModeEdit)
	if len(create) != len(edit) {
		t.Fatalf("create has %d steps, edit has %d", len(create), len(edit))
	}

	docs := len(create) - 2
	if create[docs].ID != StepDocumentos {
		t.Fatalf("step %d = %s, want documentos", docs, create[docs].ID)
	}
	if fe := create[docs].Validate(state); len(fe["documentos"]) != len(core.DocumentTypes) {
		t.Errorf("create mode documentos errors = %v", fe["documentos"])
	}
	if fe := edit[docs].Validate(state); len(fe) != 0 {
		t.Errorf("edit mode with no documents: %v", fe)
	}

	state.Documentos[core.DocRTU] = core.NewFileHandle("rtu.exe", "application/x-msdownload", []byte("MZ"))
	fe := edit[docs].Validate(state)
	if !fe.Has("documentos.rtu") {
		t.Errorf("edit mode accepted an invalid replacement: %v", fe)
	}
}

func TestSteps_ReviewIsVacuous(t *testing.T) {
	r := testRules(t)
	steps := r.Steps(ModeCreate)
	review := steps[len(steps)-1]

	if review.ID != StepRevision {
		t.Fatalf("last step = %s, want revision", review.ID)
	}
	if fe := review.Validate(NewFormState()); len(fe) != 0 {
		t.Errorf("review step reported %v", fe)
	}
}
