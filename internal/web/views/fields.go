package views

import (
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/registro/internal/wizard"
)

// BasePath prefixes every wizard route.
const BasePath = "/registro"

// route builds a wizard URL from path segments.
func route(parts ...string) templ.SafeURL {
	if len(parts) == 0 {
		return templ.URL(BasePath)
	}
	return templ.URL(BasePath + "/" + strings.Join(parts, "/"))
}

func previewURL(d wizard.DocumentView) templ.SafeURL {
	return route("vista-previa", d.Preview.ID())
}

type inputSpec struct {
	Path        string
	Label       string
	Type        string
	Placeholder string
	Hint        string
	Max         int
}

func (in inputSpec) inputType() string {
	if in.Type == "" {
		return "text"
	}
	return in.Type
}

func fieldValue(v wizard.View, path string) string {
	if v.Form == nil {
		return ""
	}
	s, _ := v.Form.Value(path)
	return s
}

func fieldID(path string) string {
	return "campo-" + path
}

func hasErrors(v wizard.View, path string) bool {
	return len(v.Errors[path]) > 0
}

func referencePath(i int, name string) string {
	return "referencias." + strconv.Itoa(i) + "." + name
}

func documentErrors(v wizard.View, d wizard.DocumentView) []string {
	return v.Errors["documentos."+string(d.Type)]
}

func plainOptions(values []string) []wizard.Choice {
	opts := make([]wizard.Choice, len(values))
	for i, v := range values {
		opts[i] = wizard.Choice{Value: v, Label: v}
	}
	return opts
}

func optionLabel(options []wizard.Choice, value string) string {
	for _, o := range options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

type reviewField struct {
	path  string
	label string
}

// reviewSection is one block of the review page.
type reviewSection struct {
	step   wizard.StepID
	fields []reviewField
}

var reviewSections = []reviewSection{
	{wizard.StepPersonal, []reviewField{
		{"nombres", "Nombres"}, {"apellidos", "Apellidos"}, {"dpi", "DPI"},
		{"fechaNacimiento", "Fecha de nacimiento"}, {"telefono", "Teléfono"},
		{"correo", "Correo electrónico"}, {"departamento", "Departamento"},
		{"municipio", "Municipio"}, {"direccion", "Dirección"},
	}},
	{wizard.StepNegocio, []reviewField{
		{"nombreComercial", "Nombre comercial"}, {"nit", "NIT"},
		{"tipoNegocio", "Tipo de negocio"}, {"direccionNegocio", "Dirección"},
		{"telefonoNegocio", "Teléfono"},
	}},
	{wizard.StepBanco, []reviewField{
		{"banco", "Banco"}, {"tipoCuenta", "Tipo de cuenta"},
		{"numeroCuenta", "Número de cuenta"}, {"nombreCuentahabiente", "Cuentahabiente"},
	}},
}

// reviewValue shows select fields by their label.
func reviewValue(v wizard.View, path string) string {
	value := fieldValue(v, path)
	switch path {
	case "tipoNegocio":
		return optionLabel(wizard.BusinessTypes, value)
	case "tipoCuenta":
		return optionLabel(wizard.AccountTypes, value)
	}
	return value
}

func stepTitle(v wizard.View, step wizard.StepID) string {
	for _, st := range v.Steps {
		if st.ID == step {
			return st.Title
		}
	}
	return ""
}

func stepURL(v wizard.View, step wizard.StepID) templ.SafeURL {
	for i, st := range v.Steps {
		if st.ID == step {
			return route("paso", strconv.Itoa(i))
		}
	}
	return route()
}

func documentStatus(v wizard.View, d wizard.DocumentView) string {
	switch {
	case d.FileName != "":
		return d.FileName + " (" + d.FileSize + ")"
	case v.Mode == wizard.ModeEdit.String():
		return "sin cambios"
	default:
		return "pendiente"
	}
}
