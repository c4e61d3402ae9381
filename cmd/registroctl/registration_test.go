package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const registrationYAML = `
datos:
  nombres: Ana María
  apellidos: López Pérez
  dpi: "1234567890101"
  fechaNacimiento: "1990-05-10"
  telefono: "55512345"
  correo: ana@example.com
  departamento: Guatemala
  municipio: Mixco
  direccion: 5a avenida 10-20 zona 1
  nombreComercial: Distribuidora La Esperanza
  nit: 1234567-9
  tipoNegocio: individual
  direccionNegocio: Calzada Roosevelt 22-43 zona 11
  telefonoNegocio: "22334455"
  banco: Banrural
  tipoCuenta: ahorro
  numeroCuenta: "0123456789"
  nombreCuentahabiente: Ana María López Pérez
referencias:
  - {nombres: Luis Gómez, telefono: "40000000", relacion: Cliente}
  - {nombres: Carla Ruiz, telefono: "40000001", relacion: Proveedor}
  - {nombres: Pedro Sic, telefono: "40000002", relacion: Vecino}
documentos:
  dpi_frontal: frente.png
  dpi_posterior: reverso.png
  rtu: docs/rtu.pdf
  patente_comercio: docs/patente.pdf
`

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF\n")
)

// writeRegistration lays out a registration file and its documents in a
// temporary directory and returns the file's path.
func writeRegistration(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string][]byte{
		"registro.yaml":    []byte(yaml),
		"frente.png":       pngBytes,
		"reverso.png":      pngBytes,
		"docs/rtu.pdf":     pdfBytes,
		"docs/patente.pdf": pdfBytes,
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "registro.yaml")
}

func TestRegistrationFields(t *testing.T) {
	reg := &registration{
		Datos: map[string]string{"nombres": "Ana"},
		Referencias: []map[string]string{
			{"nombres": "Luis"},
			{"telefono": "40000001"},
		},
	}

	want := map[string]string{
		"nombres":                "Ana",
		"referencias.0.nombres":  "Luis",
		"referencias.1.telefono": "40000001",
	}
	if diff := cmp.Diff(want, reg.fields()); diff != "" {
		t.Errorf("fields() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRegistration_ResolvesDocumentPaths(t *testing.T) {
	path := writeRegistration(t, registrationYAML)

	reg, err := loadRegistration(path)
	if err != nil {
		t.Fatalf("loadRegistration() error = %v", err)
	}
	if got, want := reg.documentPath("rtu"), filepath.Join(filepath.Dir(path), "docs", "rtu.pdf"); got != want {
		t.Errorf("documentPath(rtu) = %q, want %q", got, want)
	}
	if len(reg.Referencias) != 3 || reg.Datos["nit"] != "1234567-9" {
		t.Errorf("registration = %+v", reg)
	}
}

func TestEncode_PrintsMultipartParts(t *testing.T) {
	path := writeRegistration(t, registrationYAML)

	var out bytes.Buffer
	if err := runRegistration(context.Background(), &out, path, printTransport{w: &out}); err != nil {
		t.Fatalf("runRegistration() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		`operations: {"query":"mutation RegistrarDistribuidor`,
		`"nombres":"Ana María"`,
		`"documentos":{"dpi_frontal":null`,
		`map: {"0":["variables.documentos.dpi_frontal"],"1":["variables.documentos.dpi_posterior"]`,
		"0: frente.png (image/png)",
		"3: patente.pdf (application/pdf)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "result:") {
		t.Error("null result printed")
	}
}

func TestEncode_StopsAtFirstInvalidStep(t *testing.T) {
	path := writeRegistration(t, strings.Replace(registrationYAML, `dpi: "1234567890101"`, `dpi: "12345"`, 1))

	var out bytes.Buffer
	err := runRegistration(context.Background(), &out, path, printTransport{w: &out})

	var se *stepError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *stepError", err)
	}
	if se.Step != "personal" || se.Errors.First("dpi") != "El DPI debe tener 13 dígitos" {
		t.Errorf("stepError = %+v", se)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be encoded, got:\n%s", out.String())
	}
}

func TestEncode_RejectsWrongDocumentFormat(t *testing.T) {
	path := writeRegistration(t, strings.Replace(registrationYAML, "dpi_frontal: frente.png", "dpi_frontal: docs/rtu.pdf", 1))

	err := runRegistration(context.Background(), &bytes.Buffer{}, path, printTransport{w: &bytes.Buffer{}})

	var se *stepError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *stepError", err)
	}
	want := "Tipo de archivo no permitido. Formatos aceptados: jpg, PNG"
	if got := se.Errors.First("documentos.dpi_frontal"); got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
}

func TestEncode_EditModeSendsOnlyStagedDocuments(t *testing.T) {
	yaml := "id: dist-42\n" + strings.Replace(registrationYAML,
		"  dpi_frontal: frente.png\n  dpi_posterior: reverso.png\n  rtu: docs/rtu.pdf\n  patente_comercio: docs/patente.pdf\n",
		"  rtu: docs/rtu.pdf\n", 1)
	path := writeRegistration(t, yaml)

	var out bytes.Buffer
	if err := runRegistration(context.Background(), &out, path, printTransport{w: &out}); err != nil {
		t.Fatalf("runRegistration() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		`mutation ActualizarDistribuidor`,
		`"data":{"id":"dist-42"`,
		`map: {"0":["variables.documentos.rtu"]}`,
		"0: rtu.pdf (application/pdf)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestCheck(t *testing.T) {
	path := writeRegistration(t, registrationYAML)
	dir := filepath.Dir(path)

	tests := []struct {
		name     string
		args     []string
		complete bool
		wantErr  error
		wantOut  []string
	}{
		{
			name:    "accepted",
			args:    []string{"dpi_frontal=" + filepath.Join(dir, "frente.png")},
			wantOut: []string{"ok    " + filepath.Join(dir, "frente.png") + " (DPI (frente), image/png"},
		},
		{
			name:    "wrong format",
			args:    []string{"dpi_frontal=" + filepath.Join(dir, "docs", "rtu.pdf")},
			wantErr: errRejected,
			wantOut: []string{"FAIL", "Formatos aceptados: jpg, PNG"},
		},
		{
			name:     "incomplete set",
			args:     []string{"rtu=" + filepath.Join(dir, "docs", "rtu.pdf")},
			complete: true,
			wantErr:  errRejected,
			wantOut:  []string{"FAIL  document set", "Falta el documento requerido: DPI (frente)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkComplete = tt.complete
			t.Cleanup(func() { checkComplete = false })

			var out bytes.Buffer
			checkCmd.SetOut(&out)
			err := runCheck(checkCmd, tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("runCheck() error = %v, want %v", err, tt.wantErr)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}
