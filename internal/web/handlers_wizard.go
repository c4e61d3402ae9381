package web

// handlers_wizard.go serves the HTML flow. Every POST applies one change
// through the session's controller and redirects back to GET /registro,
// which renders the current snapshot; field errors live in the controller,
// so they survive the redirect.

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/logging"
	"github.com/JonMunkholm/registro/internal/web/views"
	"github.com/JonMunkholm/registro/internal/wizard"
)

// handleWizardPage renders the current step, opening a session first when
// the browser has none.
func (s *Server) handleWizardPage(w http.ResponseWriter, r *http.Request) {
	c, sr, err := s.cookieSession(r)
	if err != nil {
		c, err = s.store.Create()
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		s.setSessionCookie(w, c.ID())
		sr = withSession(r, c.ID())
		logging.FromContext(sr.Context()).Info("registration started", "mode", c.Mode().String())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := views.Wizard(s.page(c)).Render(sr.Context(), w); err != nil {
		logging.FromContext(sr.Context()).Error("render wizard", "error", err)
	}
}

func (s *Server) redirectToWizard(w http.ResponseWriter, r *http.Request, fragment string) {
	target := views.BasePath
	if fragment != "" {
		target += "#" + fragment
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// wizardAction resolves the session, optionally applies the posted fields,
// runs action and redirects to the page.
func (s *Server) wizardAction(w http.ResponseWriter, r *http.Request, applyFields bool, action func(*wizard.Controller) error) {
	c, r, err := s.cookieSession(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if applyFields {
		values, err := formValues(r)
		if err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
		if err := c.SetFields(values); err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
	}

	if action != nil {
		if err := action(c); err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
	}
	s.redirectToWizard(w, r, "")
}

func (s *Server) handleWizardNext(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, true, func(c *wizard.Controller) error {
		_, err := c.Next()
		return err
	})
}

func (s *Server) handleWizardBack(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, true, (*wizard.Controller).Back)
}

func (s *Server) handleWizardGoTo(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, false, func(c *wizard.Controller) error {
		i, err := indexParam(r)
		if err != nil {
			return err
		}
		return c.GoTo(i)
	})
}

// handleWizardDepartment applies a department change. The posted municipio
// belongs to the previous department, so it is dropped and the controller
// clears it.
func (s *Server) handleWizardDepartment(w http.ResponseWriter, r *http.Request) {
	c, r, err := s.cookieSession(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	values, err := formValues(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	delete(values, "municipio")
	if err := c.SetFields(values); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.redirectToWizard(w, r, "campo-municipio")
}

func (s *Server) handleWizardAddReference(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, true, (*wizard.Controller).AddReference)
}

func (s *Server) handleWizardRemoveReference(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, true, func(c *wizard.Controller) error {
		i, err := indexParam(r)
		if err != nil {
			return err
		}
		return c.RemoveReference(i)
	})
}

// handleWizardStageDocument stages one uploaded file. A file that fails the
// document rules is not an error: its messages appear on the slot.
func (s *Server) handleWizardStageDocument(w http.ResponseWriter, r *http.Request) {
	c, r, err := s.cookieSession(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	t := core.DocumentTypeID(chi.URLParam(r, "docType"))
	file, err := s.readUpload(w, r, t)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	res, err := c.StageDocument(t, file)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	logging.WithFields(r.Context(), "document_type", t).Info("document staged",
		"valid", res.Valid,
		"size", file.Size,
		"mime_type", file.MimeType,
	)
	s.redirectToWizard(w, r, "documento-"+string(t))
}

func (s *Server) handleWizardClearDocument(w http.ResponseWriter, r *http.Request) {
	t := core.DocumentTypeID(chi.URLParam(r, "docType"))
	s.wizardAction(w, r, false, func(c *wizard.Controller) error {
		return c.ClearDocument(t)
	})
}

func (s *Server) handleWizardDismissError(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, false, func(c *wizard.Controller) error {
		c.DismissError()
		return nil
	})
}

// handleWizardFinalize submits the registration. The submission is detached
// from the request so a closed tab does not abort it half-way; the client's
// own timeout still bounds it.
func (s *Server) handleWizardFinalize(w http.ResponseWriter, r *http.Request) {
	s.wizardAction(w, r, false, func(c *wizard.Controller) error {
		_, err := c.Finalize(context.WithoutCancel(r.Context()))
		return err
	})
}

// handleWizardRestart discards the current session and opens a new one.
func (s *Server) handleWizardRestart(w http.ResponseWriter, r *http.Request) {
	if c, _, err := s.cookieSession(r); err == nil {
		s.store.Remove(c.ID())
	}
	c, err := s.store.Create()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.setSessionCookie(w, c.ID())
	s.redirectToWizard(w, r, "")
}

// handleWizardCancel abandons the registration, releasing its previews.
func (s *Server) handleWizardCancel(w http.ResponseWriter, r *http.Request) {
	if c, sr, err := s.cookieSession(r); err == nil {
		s.store.Remove(c.ID())
		logging.FromContext(sr.Context()).Info("registration cancelled")
	}
	s.clearSessionCookie(w)
	s.redirectToWizard(w, r, "")
}

func (s *Server) handleWizardPreview(w http.ResponseWriter, r *http.Request) {
	c, r, err := s.cookieSession(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	servePreview(w, r, c)
}
