// Package views renders the registration wizard as HTML.
//
// Every component is a templ component bound to a read-only wizard.View
// snapshot. Components never change the form; each button posts back to the
// server, which applies the change through the wizard controller and
// renders the next snapshot.
//
// The *_templ.go files are generated from the .templ sources with
// `templ generate`.
package views

import "github.com/JonMunkholm/registro/internal/wizard"

// Page is what the wizard page needs besides the controller snapshot.
type Page struct {
	wizard.View
	// Departments lists every department in catalog order.
	Departments []string
	// Municipalities of the selected department, empty when none is.
	Municipalities []string
}

func (p Page) title() string {
	if p.Succeeded() {
		return "Registro enviado"
	}
	return p.Title
}
