package wizard

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/locations"
)

// Banks lists the accepted banks in display order.
var Banks = []string{
	"Banco Industrial",
	"Banrural",
	"Banco G&T Continental",
	"BAC Credomatic",
	"Banco Agromercantil (BAM)",
	"Banco Promerica",
	"Banco Internacional",
	"Bantrab",
	"Banco Inmobiliario",
	"Vivibanco",
}

// BusinessTypes and AccountTypes map option values to display labels.
var (
	BusinessTypes = []Choice{
		{Value: "individual", Label: "Persona individual"},
		{Value: "juridica", Label: "Persona jurídica"},
	}
	AccountTypes = []Choice{
		{Value: "monetaria", Label: "Monetaria"},
		{Value: "ahorro", Label: "Ahorro"},
	}
)

// Choice is one option of a select field.
type Choice struct {
	Value string
	Label string
}

// DateLayout is the format of FechaNacimiento.
const DateLayout = "2006-01-02"

// AdultAge is the minimum age of an applicant.
const AdultAge = 18

var (
	dpiPattern      = regexp.MustCompile(`^[0-9]{13}$`)
	telefonoPattern = regexp.MustCompile(`^[0-9]{8}$`)
	nitPattern      = regexp.MustCompile(`^([0-9]{1,12})-?([0-9Kk])$`)
	digitsPattern   = regexp.MustCompile(`^[0-9]+$`)
)

// Rules validates form sections. One Rules value is shared by every session.
type Rules struct {
	validate *validator.Validate
	registry *core.Registry
	optional *core.Registry
	catalog  *locations.Catalog
	now      func() time.Time
}

// NewRules builds the validator for reg and cat.
func NewRules(reg *core.Registry, cat *locations.Catalog) *Rules {
	r := &Rules{
		validate: validator.New(),
		registry: reg,
		optional: reg.Optional(),
		catalog:  cat,
		now:      time.Now,
	}

	r.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := jsonName(f)
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(r.validate, "dpi", func(fl validator.FieldLevel) bool {
		return dpiPattern.MatchString(compact(fl.Field().String()))
	})
	mustRegister(r.validate, "telefono", func(fl validator.FieldLevel) bool {
		return telefonoPattern.MatchString(compact(fl.Field().String()))
	})
	mustRegister(r.validate, "nit", func(fl validator.FieldLevel) bool {
		return ValidNIT(fl.Field().String())
	})
	mustRegister(r.validate, "digitos", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	})
	mustRegister(r.validate, "fecha", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})
	mustRegister(r.validate, "mayoredad", func(fl validator.FieldLevel) bool {
		born, err := time.Parse(DateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		return !born.AddDate(AdultAge, 0, 0).After(r.now())
	})
	mustRegister(r.validate, "banco", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, b := range Banks {
			if b == v {
				return true
			}
		}
		return false
	})
	mustRegister(r.validate, "departamento", func(fl validator.FieldLevel) bool {
		return r.catalog.HasDepartment(fl.Field().String())
	})

	r.validate.RegisterStructValidation(func(sl validator.StructLevel) {
		p := sl.Current().Interface().(PersonalInfo)
		if p.Municipio == "" || !r.catalog.HasDepartment(p.Departamento) {
			return
		}
		if !r.catalog.Contains(p.Departamento, p.Municipio) {
			sl.ReportError(p.Municipio, "municipio", "Municipio", "municipio", "")
		}
	}, PersonalInfo{})

	return r
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// Registry returns the document registry the rules enforce.
func (r *Rules) Registry() *core.Registry {
	return r.registry
}

// Catalog returns the location catalog the rules enforce.
func (r *Rules) Catalog() *locations.Catalog {
	return r.catalog
}

// check validates v and converts the failures into field errors keyed by
// JSON path.
func (r *Rules) check(v any) FieldErrors {
	err := r.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": {err.Error()}}
	}

	fe := make(FieldErrors)
	for _, e := range verrs {
		fe.Add(fieldPath(e.Namespace()), message(e))
	}
	return fe
}

// fieldPath turns "referencesStep.referencias[1].telefono" into
// "referencias.1.telefono". The leading struct name is dropped.
func fieldPath(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	rest = strings.ReplaceAll(rest, "[", ".")
	return strings.ReplaceAll(rest, "]", "")
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "Este campo es obligatorio"
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("No puede registrar más de %s referencias", e.Param())
		}
		return fmt.Sprintf("No puede exceder %s caracteres", e.Param())
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("Debe registrar al menos %s referencias", e.Param())
		}
		return fmt.Sprintf("Debe tener al menos %s caracteres", e.Param())
	case "email":
		return "Ingrese un correo electrónico válido"
	case "dpi":
		return "El DPI debe tener 13 dígitos"
	case "telefono":
		return "El teléfono debe tener 8 dígitos"
	case "nit":
		return "Ingrese un NIT válido"
	case "fecha":
		return "Ingrese una fecha válida (AAAA-MM-DD)"
	case "mayoredad":
		return fmt.Sprintf("Debe tener al menos %d años", AdultAge)
	case "departamento":
		return "Seleccione un departamento válido"
	case "municipio":
		return "Seleccione un municipio del departamento elegido"
	case "oneof":
		return "Seleccione una opción válida"
	case "banco":
		return "Seleccione un banco de la lista"
	case "digitos":
		return "Solo se permiten dígitos"
	default:
		return "Valor no válido"
	}
}

// compact removes the spaces and hyphens people type in ids and phones.
func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, s)
}

// ValidNIT reports whether s is a Guatemalan tax id with a correct
// modulo-11 check digit, e.g. "1234567-9". A check value of 10 is written K.
func ValidNIT(s string) bool {
	m := nitPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return false
	}
	body, check := m[1], strings.ToUpper(m[2])

	sum := 0
	weight := len(body) + 1
	for _, d := range body {
		sum += int(d-'0') * weight
		weight--
	}
	want := (11 - sum%11) % 11

	if want == 10 {
		return check == "K"
	}
	return check == string(rune('0'+want))
}
