package wizard

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/gqlupload"
)

// Reference bounds. The list never leaves [MinReferences, MaxReferences].
const (
	MinReferences = 3
	MaxReferences = 5
)

// PersonalInfo is the applicant's personal data.
type PersonalInfo struct {
	Nombres         string `json:"nombres" validate:"required,max=100"`
	Apellidos       string `json:"apellidos" validate:"required,max=100"`
	DPI             string `json:"dpi" validate:"required,dpi"`
	FechaNacimiento string `json:"fechaNacimiento" validate:"required,fecha,mayoredad"`
	Telefono        string `json:"telefono" validate:"required,telefono"`
	Correo          string `json:"correo" validate:"required,email,max=254"`
	Departamento    string `json:"departamento" validate:"required,departamento"`
	Municipio       string `json:"municipio" validate:"required"`
	Direccion       string `json:"direccion" validate:"required,max=200"`
}

// BusinessInfo describes the distributor's business.
type BusinessInfo struct {
	NombreComercial  string `json:"nombreComercial" validate:"required,max=150"`
	NIT              string `json:"nit" validate:"required,nit"`
	TipoNegocio      string `json:"tipoNegocio" validate:"required,oneof=individual juridica"`
	DireccionNegocio string `json:"direccionNegocio" validate:"required,max=200"`
	TelefonoNegocio  string `json:"telefonoNegocio" validate:"required,telefono"`
}

// BankInfo is the account commissions are paid into.
type BankInfo struct {
	Banco                string `json:"banco" validate:"required,banco"`
	TipoCuenta           string `json:"tipoCuenta" validate:"required,oneof=monetaria ahorro"`
	NumeroCuenta         string `json:"numeroCuenta" validate:"required,digitos,min=6,max=20"`
	NombreCuentahabiente string `json:"nombreCuentahabiente" validate:"required,max=150"`
}

// ReferenceEntry is one personal or commercial reference.
type ReferenceEntry struct {
	Nombres  string `json:"nombres" validate:"required,max=100"`
	Telefono string `json:"telefono" validate:"required,telefono"`
	Relacion string `json:"relacion" validate:"required,max=50"`
}

// FormState is the aggregated data of one registration.
// It is owned by a Controller and only mutated through it.
type FormState struct {
	// ID identifies the distributor being edited; empty when registering.
	ID          string
	Personal    PersonalInfo
	Negocio     BusinessInfo
	Banco       BankInfo
	Referencias []ReferenceEntry
	Documentos  map[core.DocumentTypeID]*core.FileHandle
}

// NewFormState returns an empty form with the minimum number of references
// and every canonical document slot present but absent.
func NewFormState() *FormState {
	s := &FormState{
		Referencias: make([]ReferenceEntry, MinReferences),
		Documentos:  make(map[core.DocumentTypeID]*core.FileHandle, len(core.DocumentTypes)),
	}
	for _, t := range core.DocumentTypes {
		s.Documentos[t] = nil
	}
	return s
}

// Clone returns a copy that shares file handles but no slices or maps.
func (s *FormState) Clone() *FormState {
	out := *s
	out.Referencias = append([]ReferenceEntry(nil), s.Referencias...)
	out.Documentos = make(map[core.DocumentTypeID]*core.FileHandle, len(s.Documentos))
	for t, f := range s.Documentos {
		out.Documentos[t] = f
	}
	return &out
}

// Documents returns the staged documents in canonical order. Absent slots
// are included with a nil file.
func (s *FormState) Documents() []core.Document {
	docs := make([]core.Document, 0, len(core.DocumentTypes))
	for _, t := range core.DocumentTypes {
		docs = append(docs, core.Document{Type: t, File: s.Documentos[t]})
	}
	return docs
}

// StagedCount returns the number of non-empty document slots.
func (s *FormState) StagedCount() int {
	n := 0
	for _, f := range s.Documentos {
		if f != nil {
			n++
		}
	}
	return n
}

// NonFileFields returns every field except the documents, flattened into
// one object in section order, as sent in the mutation's "data" variable.
func (s *FormState) NonFileFields() gqlupload.Object {
	var data gqlupload.Object
	if s.ID != "" {
		data = data.Set("id", s.ID)
	}
	data = appendFields(data, &s.Personal)
	data = appendFields(data, &s.Negocio)
	data = appendFields(data, &s.Banco)

	refs := make([]any, len(s.Referencias))
	for i := range s.Referencias {
		refs[i] = appendFields(nil, &s.Referencias[i])
	}
	return data.Set("referencias", refs)
}

// DocumentFields returns the document slots in canonical order, as sent in
// the mutation's "documentos" variable. Absent slots encode as null.
func (s *FormState) DocumentFields() gqlupload.Object {
	docs := make(gqlupload.Object, 0, len(core.DocumentTypes))
	for _, t := range core.DocumentTypes {
		docs = append(docs, gqlupload.Field{Key: string(t), Value: s.Documentos[t]})
	}
	return docs
}

func appendFields(obj gqlupload.Object, section any) gqlupload.Object {
	v := reflect.ValueOf(section).Elem()
	for i := 0; i < v.NumField(); i++ {
		obj = obj.Set(jsonName(v.Type().Field(i)), v.Field(i).String())
	}
	return obj
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

// field resolves a field path to the string it names. Paths are the JSON
// names used in field errors: "dpi", "nombreComercial" or
// "referencias.1.telefono".
func (s *FormState) field(path string) (*string, error) {
	if rest, ok := strings.CutPrefix(path, "referencias."); ok {
		idxStr, name, ok := strings.Cut(rest, ".")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, path)
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 || idx >= len(s.Referencias) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, path)
		}
		if p := lookupField(&s.Referencias[idx], name); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, path)
	}

	for _, section := range []any{&s.Personal, &s.Negocio, &s.Banco} {
		if p := lookupField(section, path); p != nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, path)
}

func lookupField(section any, name string) *string {
	v := reflect.ValueOf(section).Elem()
	for i := 0; i < v.NumField(); i++ {
		if jsonName(v.Type().Field(i)) == name {
			return v.Field(i).Addr().Interface().(*string)
		}
	}
	return nil
}

// Value returns the value of the field at path.
func (s *FormState) Value(path string) (string, error) {
	p, err := s.field(path)
	if err != nil {
		return "", err
	}
	return *p, nil
}

// FormStateFromFields builds a form from field paths such as "dpi" or
// "referencias.2.nombres". The reference list grows to the highest index
// named, within [MinReferences, MaxReferences]; document slots start absent.
func FormStateFromFields(values map[string]string) (*FormState, error) {
	s := NewFormState()

	refs := MinReferences
	for path := range values {
		rest, ok := strings.CutPrefix(path, "referencias.")
		if !ok {
			continue
		}
		idxStr, _, _ := strings.Cut(rest, ".")
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, path)
		}
		if idx >= MaxReferences {
			return nil, fmt.Errorf("%w: %q exceeds %d references", ErrReferenceLimit, path, MaxReferences)
		}
		refs = max(refs, idx+1)
	}
	s.Referencias = make([]ReferenceEntry, refs)

	for path, value := range values {
		p, err := s.field(path)
		if err != nil {
			return nil, err
		}
		*p = strings.TrimSpace(value)
	}
	return s, nil
}
