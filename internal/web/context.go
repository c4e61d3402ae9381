package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/web/views"
	"github.com/JonMunkholm/registro/internal/wizard"
)

// withSession returns r with the session id in its context, so loggers
// obtained from it carry session_id.
func withSession(r *http.Request, id string) *http.Request {
	return r.WithContext(core.ContextWithSessionID(r.Context(), id))
}

// cookieSession resolves the HTML flow's session from its cookie.
func (s *Server) cookieSession(r *http.Request) (*wizard.Controller, *http.Request, error) {
	cookie, err := r.Cookie(s.cfg.Session.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, r, wizard.ErrSessionNotFound
	}
	c, err := s.store.Get(cookie.Value)
	if err != nil {
		return nil, r, err
	}
	return c, withSession(r, c.ID()), nil
}

// apiSession resolves the JSON API's session from the URL.
func (s *Server) apiSession(r *http.Request) (*wizard.Controller, *http.Request, error) {
	c, err := s.store.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		return nil, r, err
	}
	return c, withSession(r, c.ID()), nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    id,
		Path:     views.BasePath,
		MaxAge:   int(s.cfg.Session.IdleTimeout.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     views.BasePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
