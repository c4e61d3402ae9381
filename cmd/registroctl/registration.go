package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/wizard"
)

// registration is the YAML description of one registration:
//
//	id: dist-42                  # optional, edits an existing distributor
//	datos:
//	  nombres: Ana María
//	  dpi: "1234567890101"
//	referencias:
//	  - {nombres: Luis Gómez, telefono: "40000000", relacion: Cliente}
//	documentos:
//	  dpi_frontal: frente.jpg    # relative to the YAML file
type registration struct {
	ID          string                         `yaml:"id"`
	Datos       map[string]string              `yaml:"datos"`
	Referencias []map[string]string            `yaml:"referencias"`
	Documentos  map[core.DocumentTypeID]string `yaml:"documentos"`

	dir string
}

// loadRegistration reads a registration file. Document paths are resolved
// against the file's directory.
func loadRegistration(path string) (*registration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var reg registration
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	reg.dir = filepath.Dir(path)
	return &reg, nil
}

// fields flattens the file into wizard field paths.
func (r *registration) fields() map[string]string {
	out := make(map[string]string, len(r.Datos)+3*len(r.Referencias))
	for k, v := range r.Datos {
		out[k] = v
	}
	for i, ref := range r.Referencias {
		for k, v := range ref {
			out[fmt.Sprintf("referencias.%d.%s", i, k)] = v
		}
	}
	return out
}

func (r *registration) documentPath(t core.DocumentTypeID) string {
	p := r.Documentos[t]
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.dir, p)
}

// stepError reports the step the wizard stopped on and its messages.
type stepError struct {
	Step   string
	Errors wizard.FieldErrors
}

func (e *stepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "registration incomplete at %q:", e.Step)
	for _, path := range e.Errors.Paths() {
		for _, msg := range e.Errors[path] {
			fmt.Fprintf(&b, "\n  %s: %s", path, msg)
		}
	}
	return b.String()
}

// submit drives a controller through the whole wizard: documents are staged,
// every step is advanced and the registration is finalized with transport.
// The controller is closed before returning.
func (r *registration) submit(ctx context.Context, rules *wizard.Rules, transport wizard.Transport) (wizard.View, error) {
	initial, err := wizard.FormStateFromFields(r.fields())
	if err != nil {
		return wizard.View{}, err
	}
	opt := wizard.WithInitial(initial)
	if r.ID != "" {
		opt = wizard.WithEdit(r.ID, initial)
	}

	c := wizard.New(uuid.NewString(), rules, transport, opt)
	defer c.Close()

	for t := range r.Documentos {
		if !t.Valid() {
			return wizard.View{}, fmt.Errorf("%w: %s", core.ErrUnknownDocumentType, t)
		}
	}
	for _, t := range core.DocumentTypes {
		path := r.documentPath(t)
		if path == "" {
			continue
		}
		cfg, err := rules.Registry().ConfigFor(t)
		if err != nil {
			return wizard.View{}, err
		}
		file, err := core.ReadFileHandle(path, cfg.MaxSizeBytes)
		if err != nil {
			return wizard.View{}, err
		}
		res, err := c.StageDocument(t, file)
		if err != nil {
			return wizard.View{}, err
		}
		if !res.Valid {
			fe := wizard.FieldErrors{}
			for _, msg := range res.Errors {
				fe.Add("documentos."+string(t), msg)
			}
			return wizard.View{}, &stepError{Step: string(wizard.StepDocumentos), Errors: fe}
		}
	}

	for !c.View().IsLast() {
		advanced, err := c.Next()
		if err != nil {
			return wizard.View{}, err
		}
		if !advanced {
			v := c.View()
			return v, &stepError{Step: string(v.Step), Errors: v.Errors}
		}
	}

	outcome, err := c.Finalize(ctx)
	if err != nil {
		return wizard.View{}, err
	}
	v := c.View()
	switch outcome {
	case wizard.OutcomeIncomplete:
		return v, &stepError{Step: string(v.Step), Errors: v.Errors}
	case wizard.OutcomeFailed:
		return v, fmt.Errorf("submission failed: %s", v.SubmitError)
	}
	return v, nil
}
