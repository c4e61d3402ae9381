package core

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DocumentTypeID identifies a category of uploadable registration document.
// The set is closed: the document registry and the wizard's initial state
// are both built from DocumentTypes, so the two cannot drift apart.
type DocumentTypeID string

const (
	DocDPIFrontal      DocumentTypeID = "dpi_frontal"
	DocDPIPosterior    DocumentTypeID = "dpi_posterior"
	DocRTU             DocumentTypeID = "rtu"
	DocPatenteComercio DocumentTypeID = "patente_comercio"
)

// DocumentTypes lists every document type in canonical display order.
var DocumentTypes = []DocumentTypeID{
	DocDPIFrontal,
	DocDPIPosterior,
	DocRTU,
	DocPatenteComercio,
}

// Valid reports whether t is one of the canonical document types.
func (t DocumentTypeID) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DocumentConfig holds the acceptance rules for one document type.
type DocumentConfig struct {
	Label             string   `yaml:"label" json:"label"`
	MaxSizeBytes      int64    `yaml:"maxSizeBytes" json:"maxSizeBytes"`
	AcceptedMimeTypes []string `yaml:"acceptedMimeTypes" json:"acceptedMimeTypes"`
	Required          bool     `yaml:"required" json:"required"`
}

// FileHandle is a user-selected file held in memory until submission.
type FileHandle struct {
	Name     string
	Size     int64
	MimeType string
	data     []byte
}

// NewFileHandle wraps data as a FileHandle. Size is taken from len(data).
func NewFileHandle(name, mimeType string, data []byte) *FileHandle {
	return &FileHandle{
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
		data:     data,
	}
}

// FileHandleFromPart reads an uploaded multipart file into memory.
// At most limit+1 bytes are read so oversized files still fail the size
// check instead of being silently truncated. When the client did not send a
// usable Content-Type the type is sniffed from the content.
func FileHandleFromPart(header *multipart.FileHeader, limit int64) (*FileHandle, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", header.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", header.Filename, err)
	}

	fh := NewFileHandle(header.Filename, contentType(header.Header.Get("Content-Type"), data), data)
	if header.Size > fh.Size {
		fh.Size = header.Size
	}
	return fh, nil
}

// ReadFileHandle reads a local file the way FileHandleFromPart reads an
// upload: at most limit+1 bytes, type sniffed from the content, Size taken
// from the file system.
func ReadFileHandle(path string, limit int64) (*FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	fh := NewFileHandle(filepath.Base(path), contentType("", data), data)
	fh.Size = info.Size()
	return fh, nil
}

// contentType returns declared without parameters, or the sniffed type of
// data when nothing usable was declared.
func contentType(declared string, data []byte) string {
	mimeType := declared
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}
	// Strip parameters such as "; charset=utf-8".
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// Filename returns the original file name.
func (f *FileHandle) Filename() string { return f.Name }

// ContentType returns the declared MIME type.
func (f *FileHandle) ContentType() string { return f.MimeType }

// Reader returns a fresh reader over the file content.
func (f *FileHandle) Reader() io.Reader { return bytes.NewReader(f.data) }

// Bytes returns the file content. Callers must not modify it.
func (f *FileHandle) Bytes() []byte { return f.data }

// IsImage reports whether the file has an image MIME type.
func (f *FileHandle) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// Document pairs a staged file with the document type it was staged for.
type Document struct {
	Type DocumentTypeID
	File *FileHandle
}

// ValidationResult is the outcome of one validation pass.
// Validation failures are data, never Go errors.
type ValidationResult struct {
	Valid  bool     `json:"isValid"`
	Errors []string `json:"errors"`
}

// newResult builds a ValidationResult from collected messages.
func newResult(errs []string) ValidationResult {
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
