package wizard

import (
	"github.com/JonMunkholm/registro/internal/core"
)

// Mode selects the schema set of a wizard.
type Mode int

const (
	// ModeCreate registers a new distributor; every required document must
	// be uploaded.
	ModeCreate Mode = iota
	// ModeEdit updates an existing distributor; documents on file may be
	// kept, so none is required.
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

// StepID names a wizard step.
type StepID string

const (
	StepPersonal    StepID = "personal"
	StepNegocio     StepID = "negocio"
	StepBanco       StepID = "banco"
	StepReferencias StepID = "referencias"
	StepDocumentos  StepID = "documentos"
	StepRevision    StepID = "revision"
)

// Step is one page of the wizard and the schema gating forward navigation
// from it.
type Step struct {
	ID    StepID
	Title string
	check func(*FormState) FieldErrors
}

// Validate checks s against the step's schema. A nil or empty result means
// the step is satisfied.
func (st Step) Validate(s *FormState) FieldErrors {
	if st.check == nil {
		return nil
	}
	return st.check(s)
}

type referencesStep struct {
	Referencias []ReferenceEntry `json:"referencias" validate:"min=3,max=5,dive"`
}

// Steps returns the schema set for mode. Both sets have the same pages;
// they differ in which documents are required.
func (r *Rules) Steps(mode Mode) []Step {
	docs := r.registry
	if mode == ModeEdit {
		docs = r.optional
	}

	return []Step{
		{ID: StepPersonal, Title: "Datos personales", check: func(s *FormState) FieldErrors {
			return r.check(s.Personal)
		}},
		{ID: StepNegocio, Title: "Datos del negocio", check: func(s *FormState) FieldErrors {
			return r.check(s.Negocio)
		}},
		{ID: StepBanco, Title: "Información bancaria", check: func(s *FormState) FieldErrors {
			return r.check(s.Banco)
		}},
		{ID: StepReferencias, Title: "Referencias", check: func(s *FormState) FieldErrors {
			return r.check(referencesStep{Referencias: s.Referencias})
		}},
		{ID: StepDocumentos, Title: "Documentos", check: func(s *FormState) FieldErrors {
			return checkDocuments(docs, s)
		}},
		// The review page only displays what was entered.
		{ID: StepRevision, Title: "Revisión"},
	}
}

// checkDocuments reports the set-level result under "documentos" and each
// failing slot under "documentos.<type>".
func checkDocuments(reg *core.Registry, s *FormState) FieldErrors {
	res := reg.ValidateDocumentSet(s.Documents())
	if res.Valid {
		return nil
	}

	fe := FieldErrors{string(StepDocumentos): res.Errors}
	for _, entry := range reg.All() {
		path := string(StepDocumentos) + "." + string(entry.Type)
		file := s.Documentos[entry.Type]
		if file == nil {
			if entry.Config.Required {
				fe.Add(path, "Este documento es obligatorio")
			}
			continue
		}
		for _, msg := range reg.Validate(file, entry.Type).Errors {
			fe.Add(path, msg)
		}
	}
	return fe
}
