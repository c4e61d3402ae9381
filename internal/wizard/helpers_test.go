package wizard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/gqlupload"
	"github.com/JonMunkholm/registro/internal/locations"
)

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func testRules(t *testing.T) *Rules {
	t.Helper()

	reg, err := core.DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry() error = %v", err)
	}
	cat, err := locations.Default()
	if err != nil {
		t.Fatalf("locations.Default() error = %v", err)
	}
	r := NewRules(reg, cat)
	r.now = func() time.Time { return testNow }
	return r
}

// fakeTransport records submissions. When block is set, Submit signals
// entered and waits for block to be closed.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []*gqlupload.Payload
	resp    *gqlupload.Response
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeTransport) Submit(ctx context.Context, p *gqlupload.Payload) (*gqlupload.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	block, entered := f.block, f.entered
	resp, err := f.resp, f.err
	f.mu.Unlock()

	if block != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &gqlupload.Response{Data: []byte(`{"registrarDistribuidor":{"id":"d-1","estado":"PENDIENTE"}}`)}
	}
	return resp, nil
}

func (f *fakeTransport) Calls() []*gqlupload.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*gqlupload.Payload(nil), f.calls...)
}

func (f *fakeTransport) setResult(resp *gqlupload.Response, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resp, f.err = resp, err
}

func validPersonal() map[string]string {
	return map[string]string{
		"nombres":         "Ana María",
		"apellidos":       "López Pérez",
		"dpi":             "1234567890101",
		"fechaNacimiento": "1990-05-10",
		"telefono":        "55512345",
		"correo":          "ana@example.com",
		"departamento":    "Guatemala",
		"municipio":       "Mixco",
		"direccion":       "5a avenida 10-20 zona 1",
	}
}

func validNegocio() map[string]string {
	return map[string]string{
		"nombreComercial":  "Distribuidora La Esperanza",
		"nit":              "1234567-9",
		"tipoNegocio":      "individual",
		"direccionNegocio": "Calzada Roosevelt 22-43 zona 11",
		"telefonoNegocio":  "22334455",
	}
}

func validBanco() map[string]string {
	return map[string]string{
		"banco":                "Banco Industrial",
		"tipoCuenta":           "monetaria",
		"numeroCuenta":         "0123456789",
		"nombreCuentahabiente": "Ana María López Pérez",
	}
}

func validReferencias(n int) map[string]string {
	names := []string{"Luis Gómez", "Carla Ruiz", "Pedro Sic", "Marta Xol", "José Cux"}
	out := make(map[string]string)
	for i := 0; i < n; i++ {
		prefix := "referencias." + string(rune('0'+i)) + "."
		out[prefix+"nombres"] = names[i]
		out[prefix+"telefono"] = "4000000" + string(rune('0'+i))
		out[prefix+"relacion"] = "Cliente"
	}
	return out
}

func pngFile(name string) *core.FileHandle {
	return core.NewFileHandle(name, "image/png", []byte("\x89PNG\r\n\x1a\nfake"))
}

func pdfFile(name string) *core.FileHandle {
	return core.NewFileHandle(name, "application/pdf", []byte("%PDF-1.7 fake"))
}

func mustSet(t *testing.T, c *Controller, values map[string]string) {
	t.Helper()
	if err := c.SetFields(values); err != nil {
		t.Fatalf("SetFields() error = %v", err)
	}
}

func mustNext(t *testing.T, c *Controller) {
	t.Helper()
	ok, err := c.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !ok {
		t.Fatalf("Next() blocked on step %s: %v", c.View().Step, c.View().Errors)
	}
}

func mustStage(t *testing.T, c *Controller, dt core.DocumentTypeID, f *core.FileHandle) {
	t.Helper()
	res, err := c.StageDocument(dt, f)
	if err != nil {
		t.Fatalf("StageDocument(%s) error = %v", dt, err)
	}
	if !res.Valid {
		t.Fatalf("StageDocument(%s) rejected: %v", dt, res.Errors)
	}
}

// advanceToReview fills every step with valid data and stages all four
// documents, leaving c on the review step.
func advanceToReview(t *testing.T, c *Controller) {
	t.Helper()

	mustSet(t, c, validPersonal())
	mustNext(t, c)
	mustSet(t, c, validNegocio())
	mustNext(t, c)
	mustSet(t, c, validBanco())
	mustNext(t, c)
	mustSet(t, c, validReferencias(MinReferences))
	mustNext(t, c)
	mustStage(t, c, core.DocDPIFrontal, pngFile("dpi-frente.png"))
	mustStage(t, c, core.DocDPIPosterior, pngFile("dpi-reverso.png"))
	mustStage(t, c, core.DocRTU, pdfFile("rtu.pdf"))
	mustStage(t, c, core.DocPatenteComercio, pdfFile("patente.pdf"))
	mustNext(t, c)

	if v := c.View(); v.Step != StepRevision {
		t.Fatalf("expected review step, got %s", v.Step)
	}
}
