package core

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultRegistry_CoversEveryDocumentType(t *testing.T) {
	reg := testRegistry(t)

	if got, want := reg.Count(), len(DocumentTypes); got != want {
		t.Fatalf("Count() = %d, want %d", got, want)
	}

	entries := reg.All()
	for i, entry := range entries {
		if entry.Type != DocumentTypes[i] {
			t.Errorf("All()[%d].Type = %q, want canonical order %q", i, entry.Type, DocumentTypes[i])
		}
	}
}

func TestRegister_Rejects(t *testing.T) {
	valid := DocumentConfig{Label: "RTU", MaxSizeBytes: 1024, AcceptedMimeTypes: []string{"application/pdf"}}

	tests := []struct {
		name string
		typ  DocumentTypeID
		cfg  DocumentConfig
	}{
		{"non canonical type", "pasaporte", valid},
		{"missing label", DocRTU, DocumentConfig{MaxSizeBytes: 1, AcceptedMimeTypes: []string{"a/b"}}},
		{"zero size", DocRTU, DocumentConfig{Label: "RTU", AcceptedMimeTypes: []string{"a/b"}}},
		{"no mime types", DocRTU, DocumentConfig{Label: "RTU", MaxSizeBytes: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewRegistry().Register(tt.typ, tt.cfg); err == nil {
				t.Error("Register() error = nil, want error")
			}
		})
	}

	t.Run("duplicate", func(t *testing.T) {
		reg := NewRegistry()
		if err := reg.Register(DocRTU, valid); err != nil {
			t.Fatalf("first Register() error = %v", err)
		}
		if err := reg.Register(DocRTU, valid); err == nil {
			t.Error("second Register() error = nil, want duplicate error")
		}
	})
}

func TestLoadRegistry(t *testing.T) {
	t.Run("incomplete registry", func(t *testing.T) {
		yaml := `
documentos:
  rtu:
    label: RTU
    maxSizeBytes: 1024
    acceptedMimeTypes: [application/pdf]
    required: true
`
		_, err := LoadRegistry(strings.NewReader(yaml))
		if err == nil || !strings.Contains(err.Error(), "incomplete") {
			t.Errorf("LoadRegistry() error = %v, want incomplete registry", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		yaml := `
documentos:
  pasaporte:
    label: Pasaporte
    maxSizeBytes: 1024
    acceptedMimeTypes: [application/pdf]
`
		_, err := LoadRegistry(strings.NewReader(yaml))
		if !errors.Is(err, ErrUnknownDocumentType) {
			t.Errorf("LoadRegistry() error = %v, want ErrUnknownDocumentType", err)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadRegistry(strings.NewReader("documents: {}\n"))
		if err == nil {
			t.Error("LoadRegistry() error = nil, want unknown field error")
		}
	})
}

func TestLoadRegistryFile_EmptyPathUsesDefaults(t *testing.T) {
	reg, err := LoadRegistryFile("")
	if err != nil {
		t.Fatalf("LoadRegistryFile(\"\") error = %v", err)
	}
	cfg, err := reg.ConfigFor(DocDPIFrontal)
	if err != nil {
		t.Fatalf("ConfigFor() error = %v", err)
	}
	if cfg.Label != "DPI (frente)" || !cfg.Required {
		t.Errorf("dpi_frontal config = %+v", cfg)
	}
}

func TestOptional_DropsRequiredOnly(t *testing.T) {
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry() error = %v", err)
	}
	opt := reg.Optional()

	if res := opt.ValidateDocumentSet(nil); !res.Valid {
		t.Errorf("empty set against optional registry: %v", res.Errors)
	}
	if res := reg.ValidateDocumentSet(nil); res.Valid {
		t.Error("empty set against default registry should fail")
	}

	empty := NewFileHandle("rtu.pdf", "application/pdf", nil)
	res := opt.ValidateDocumentSet([]Document{{Type: DocRTU, File: empty}})
	if res.Valid || len(res.Errors) != 1 || res.Errors[0] != "RTU: El archivo está vacío" {
		t.Errorf("optional registry must still validate supplied files, got %v", res.Errors)
	}

	if cfg, _ := reg.ConfigFor(DocRTU); !cfg.Required {
		t.Error("Optional() modified the source registry")
	}
}
