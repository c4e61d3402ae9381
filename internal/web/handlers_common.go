package web

// handlers_common.go holds what the HTML flow and the JSON API share:
// request parsing, preview serving, reference data and the health report.

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/gqlupload"
	"github.com/JonMunkholm/registro/internal/web/views"
	"github.com/JonMunkholm/registro/internal/wizard"
)

// uploadMemory is how much of a multipart request is kept in memory before
// spilling to temporary files.
const uploadMemory = 8 << 20

// formValues returns the posted form fields, first value per key.
func formValues(r *http.Request) (map[string]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	values := make(map[string]string, len(r.PostForm))
	for k, vs := range r.PostForm {
		if k == "" || len(vs) == 0 {
			continue
		}
		values[k] = vs[0]
	}
	return values, nil
}

// indexParam parses the {index} URL parameter.
func indexParam(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, wizard.ErrUnknownField
	}
	return i, nil
}

// readUpload reads the "archivo" part of a multipart request into a file
// handle for t. The request is capped at Upload.MaxRequestSize and the file
// read at most one byte past the type's limit, so an oversized file still
// fails the size rule with its real size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, t core.DocumentTypeID) (*core.FileHandle, error) {
	cfg, err := s.store.Rules().Registry().ConfigFor(t)
	if err != nil {
		return nil, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxRequestSize)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errNoFile, err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["archivo"]
	if len(headers) == 0 {
		return nil, errNoFile
	}
	return core.FileHandleFromPart(headers[0], cfg.MaxSizeBytes)
}

// servePreview writes the staged image behind a preview id. Released
// references are gone, so a stale page gets 404.
func servePreview(w http.ResponseWriter, r *http.Request, c *wizard.Controller) {
	file, ok := c.Preview(chi.URLParam(r, "previewID"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(file.Bytes())), 10))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(file.Bytes())
}

// page builds the renderer input for c.
func (s *Server) page(c *wizard.Controller) views.Page {
	v := c.View()
	cat := s.store.Rules().Catalog()

	p := views.Page{View: v, Departments: cat.Departments()}
	if v.Form != nil {
		p.Municipalities, _ = cat.Municipalities(v.Form.Personal.Departamento)
	}
	return p
}

// documentTypeResponse describes one registry entry.
type documentTypeResponse struct {
	Type      core.DocumentTypeID `json:"type"`
	Label     string              `json:"label"`
	Required  bool                `json:"required"`
	MaxSize   int64               `json:"maxSizeBytes"`
	MaxSizeMB string              `json:"maxSize"`
	MimeTypes []string            `json:"acceptedMimeTypes"`
	Formats   string              `json:"formats"`
}

func (s *Server) handleListDocumentTypes(w http.ResponseWriter, r *http.Request) {
	entries := s.store.Rules().Registry().All()
	out := make([]documentTypeResponse, len(entries))
	for i, e := range entries {
		out[i] = documentTypeResponse{
			Type:      e.Type,
			Label:     e.Config.Label,
			Required:  e.Config.Required,
			MaxSize:   e.Config.MaxSizeBytes,
			MaxSizeMB: core.FormatSize(e.Config.MaxSizeBytes),
			MimeTypes: e.Config.AcceptedMimeTypes,
			Formats:   core.AcceptedExtensions(e.Config),
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]string{
		"departamentos": s.store.Rules().Catalog().Departments(),
	})
}

func (s *Server) handleListMunicipalities(w http.ResponseWriter, r *http.Request) {
	dep, err := url.PathUnescape(chi.URLParam(r, "departamento"))
	if err != nil {
		dep = ""
	}
	munis, ok := s.store.Rules().Catalog().Municipalities(dep)
	if !ok {
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{
			Error:   "unknown department",
			Message: "Departamento desconocido",
			Code:    "LOC001",
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"departamento": dep,
		"municipios":   munis,
	})
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status      string                   `json:"status"`
	Sessions    int                      `json:"sessions"`
	Submissions *gqlupload.LimiterStatus `json:"submissions,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Sessions: s.store.Len()}
	if s.limiter != nil {
		st := s.limiter.Status()
		resp.Submissions = &st
	}
	writeJSON(w, r, http.StatusOK, resp)
}
