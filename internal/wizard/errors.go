package wizard

import (
	"errors"
	"sort"
)

// Sentinel errors. Their texts are matched by core.MapError, so keep them in
// sync with the patterns in internal/core/error_messages.go.
var (
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrInvalidTransition  = errors.New("invalid wizard transition")
	ErrNotAtReview        = errors.New("not at the review step")
	ErrReferenceLimit     = errors.New("reference limit reached")
	ErrUnknownField       = errors.New("unknown field")
	ErrSessionClosed      = errors.New("session closed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrTooManySessions    = errors.New("too many sessions")
)

// GenericSubmitError is shown when a failed submission carries no
// server-provided message.
const GenericSubmitError = "No se pudo completar el registro. Intente nuevamente."

// FieldErrors maps a field path to its messages, e.g.
// "referencias.0.telefono" or "documentos.rtu".
type FieldErrors map[string][]string

// Add appends msg to the messages of path.
func (fe FieldErrors) Add(path, msg string) {
	fe[path] = append(fe[path], msg)
}

// Has reports whether path has any message.
func (fe FieldErrors) Has(path string) bool {
	return len(fe[path]) > 0
}

// First returns the first message for path, or "".
func (fe FieldErrors) First(path string) string {
	if msgs := fe[path]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Paths returns the paths with messages in sorted order.
func (fe FieldErrors) Paths() []string {
	paths := make([]string, 0, len(fe))
	for p := range fe {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Clone returns a deep copy; nil stays nil.
func (fe FieldErrors) Clone() FieldErrors {
	if fe == nil {
		return nil
	}
	out := make(FieldErrors, len(fe))
	for p, msgs := range fe {
		out[p] = append([]string(nil), msgs...)
	}
	return out
}
