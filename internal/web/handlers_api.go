package web

// handlers_api.go serves the JSON API: the same wizard driven by a client
// that renders it itself. The session id travels in the URL and every
// response carries the current wizard.View.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/logging"
	"github.com/JonMunkholm/registro/internal/wizard"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// createRequest is the optional body of POST /api/registro. With an ID the
// wizard edits that distributor; Campos prefill the form either way.
type createRequest struct {
	ID     string            `json:"id"`
	Campos map[string]string `json:"campos"`
}

type nextResponse struct {
	Advanced bool        `json:"advanced"`
	View     wizard.View `json:"view"`
}

type stageResponse struct {
	Result core.ValidationResult `json:"result"`
	View   wizard.View           `json:"view"`
}

type finalizeResponse struct {
	Outcome string      `json:"outcome"`
	View    wizard.View `json:"view"`
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleAPICreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var opts []wizard.Option
	if req.ID != "" || len(req.Campos) > 0 {
		initial, err := wizard.FormStateFromFields(req.Campos)
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
		if req.ID != "" {
			opts = append(opts, wizard.WithEdit(req.ID, initial))
		} else {
			opts = append(opts, wizard.WithInitial(initial))
		}
	}

	c, err := s.store.Create(opts...)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	logging.FromContext(withSession(r, c.ID()).Context()).Info("registration started",
		"mode", c.Mode().String(),
		"api", true,
	)
	writeJSON(w, r, http.StatusCreated, c.View())
}

// apiAction resolves the session from the URL, runs action and responds
// with the current view.
func (s *Server) apiAction(w http.ResponseWriter, r *http.Request, action func(*wizard.Controller) error) {
	c, r, err := s.apiSession(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if action != nil {
		if err := action(c); err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}
	}
	writeJSON(w, r, http.StatusOK, c.View())
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	s.apiAction(w, r, nil)
}

func (s *Server) handleAPIClose(w http.ResponseWriter, r *http.Request) {
	c, r, err := s.apiSession(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.store.Remove(c.ID())
	logging.FromContext(r.Context()).Info("registration cancelled", "api", true)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPISetFields(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	s.apiAction(w, r, func(c *wizard.Controller) error {
		return c.SetFields(values)
	})
}

func (s *Server) handleAPINext(w http.ResponseWriter, r *http.Request) {
	c, r, err := s.apiSession(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	advanced, err := c.Next()
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	status := http.StatusOK
	if !advanced {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, r, status, nextResponse{Advanced: advanced, View: c.View()})
}

func (s *Server) handleAPIBack(w http.ResponseWriter, r *http.Request) {
	s.apiAction(w, r, (*wizard.Controller).Back)
}

func (s *Server) handleAPIGoTo(w http.ResponseWriter, r *http.Request) {
	s.apiAction(w, r, func(c *wizard.Controller) error {
		i, err := indexParam(r)
		if err != nil {
			return err
		}
		return c.GoTo(i)
	})
}

func (s *Server) handleAPIAddReference(w http.ResponseWriter, r *http.Request) {
	s.apiAction(w, r, (*wizard.Controller).AddReference)
}

func (s *Server) handleAPIRemoveReference(w http.ResponseWriter, r *http.Request) {
	s.apiAction(w, r, func(c *wizard.Controller) error {
		i, err := indexParam(r)
		if err != nil {
			return err
		}
		return c.RemoveReference(i)
	})
}

// handleAPIStageDocument responds 200 with the validation result when the
// file was staged and 422 when the document rules rejected it.
func (s *Server) handleAPIStageDocument(w http.ResponseWriter, r *http.Request) {
	c, r, err := s.apiSession(r)
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

	status := http.StatusOK
	if !res.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, r, status, stageResponse{Result: res, View: c.View()})
}

func (s *Server) handleAPIClearDocument(w http.ResponseWriter, r *http.Request) {
	t := core.DocumentTypeID(chi.URLParam(r, "docType"))
	s.apiAction(w, r, func(c *wizard.Controller) error {
		return c.ClearDocument(t)
	})
}

// handleAPIFinalize submits the registration. Status follows the outcome:
// 200 accepted, 422 a step failed re-validation, 502 the backend failed.
func (s *Server) handleAPIFinalize(w http.ResponseWriter, r *http.Request) {
	c, r, err := s.apiSession(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	outcome, err := c.Finalize(context.WithoutCancel(r.Context()))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	status := http.StatusOK
	switch outcome {
	case wizard.OutcomeIncomplete:
		status = http.StatusUnprocessableEntity
	case wizard.OutcomeFailed:
		status = http.StatusBadGateway
	}
	writeJSON(w, r, status, finalizeResponse{Outcome: outcome.String(), View: c.View()})
}

func (s *Server) handleAPIPreview(w http.ResponseWriter, r *http.Request) {
	c, r, err := s.apiSession(r)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	servePreview(w, r, c)
}
