package core

// validation.go enforces the per-document acceptance rules.
//
// Validation happens at two levels:
//  1. File validation: one file against its document type (size, type, name)
//  2. Set validation: every required type present, then each file validated
//
// Every applicable message is collected; nothing short-circuits, so the
// renderer can show all problems with a file at once.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// fileNamePattern accepts plain names with a 2-4 letter extension.
var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9._\s-]+\.[A-Za-z]{2,4}$`)

const bytesPerMB = 1024 * 1024

// Validate checks file against the rules registered for t.
// An unregistered type yields an invalid result naming the type.
func (r *Registry) Validate(file *FileHandle, t DocumentTypeID) ValidationResult {
	cfg, err := r.ConfigFor(t)
	if err != nil {
		return newResult([]string{fmt.Sprintf("Tipo de documento desconocido: %s", t)})
	}
	return validateFile(file, cfg)
}

// ValidateDocumentSet checks that every required document is present and
// then validates each supplied file, prefixing messages with its label.
func (r *Registry) ValidateDocumentSet(docs []Document) ValidationResult {
	var errs []string

	present := make(map[DocumentTypeID]bool, len(docs))
	for _, doc := range docs {
		if doc.File != nil {
			present[doc.Type] = true
		}
	}

	for _, entry := range r.All() {
		if entry.Config.Required && !present[entry.Type] {
			errs = append(errs, fmt.Sprintf("Falta el documento requerido: %s", entry.Config.Label))
		}
	}

	for _, doc := range docs {
		if doc.File == nil {
			continue
		}
		cfg, err := r.ConfigFor(doc.Type)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: tipo de documento desconocido", doc.Type))
			continue
		}
		for _, msg := range validateFile(doc.File, cfg).Errors {
			errs = append(errs, cfg.Label+": "+msg)
		}
	}

	return newResult(errs)
}

func validateFile(file *FileHandle, cfg DocumentConfig) ValidationResult {
	if file == nil {
		return newResult([]string{"No se seleccionó ningún archivo"})
	}

	var errs []string

	if file.Size > cfg.MaxSizeBytes {
		errs = append(errs, fmt.Sprintf("El archivo excede el tamaño máximo permitido de %s MB", formatMB(cfg.MaxSizeBytes)))
	}

	if !acceptsMimeType(cfg, file.MimeType) {
		errs = append(errs, fmt.Sprintf("Tipo de archivo no permitido. Formatos aceptados: %s", AcceptedExtensions(cfg)))
	}

	if !fileNamePattern.MatchString(file.Name) {
		errs = append(errs, "El nombre del archivo contiene caracteres no permitidos")
	}

	if file.Size == 0 {
		errs = append(errs, "El archivo está vacío")
	}

	return newResult(errs)
}

func acceptsMimeType(cfg DocumentConfig, mimeType string) bool {
	for _, accepted := range cfg.AcceptedMimeTypes {
		if strings.EqualFold(accepted, mimeType) {
			return true
		}
	}
	return false
}

// AcceptedExtensions renders the accepted MIME types as extension labels:
// "jpeg" becomes "jpg", everything else is upper-cased.
func AcceptedExtensions(cfg DocumentConfig) string {
	labels := make([]string, 0, len(cfg.AcceptedMimeTypes))
	seen := make(map[string]bool, len(cfg.AcceptedMimeTypes))
	for _, mt := range cfg.AcceptedMimeTypes {
		label := extensionLabel(mt)
		if seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return strings.Join(labels, ", ")
}

func extensionLabel(mimeType string) string {
	sub := mimeType
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		sub = mimeType[i+1:]
	}
	if strings.EqualFold(sub, "jpeg") {
		return "jpg"
	}
	return strings.ToUpper(sub)
}

func formatMB(n int64) string {
	return trimFloat(float64(n) / bytesPerMB)
}

// trimFloat formats v with at most two decimals and no trailing zeros.
func trimFloat(v float64) string {
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
