package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownDocumentType is returned when a document type has no registered
// configuration. It is a configuration error, not a validation failure.
var ErrUnknownDocumentType = errors.New("unknown document type")

// Registry holds the acceptance rules for every document type and enforces
// them. It is safe for concurrent use; the wizard sessions share one.
type Registry struct {
	mu      sync.RWMutex
	configs map[DocumentTypeID]DocumentConfig
}

// RegistryEntry is a registered document type together with its rules.
type RegistryEntry struct {
	Type   DocumentTypeID `json:"type"`
	Config DocumentConfig `json:"config"`
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: make(map[DocumentTypeID]DocumentConfig)}
}

// Register adds the rules for a document type.
// Only canonical types may be registered, and each only once.
func (r *Registry) Register(t DocumentTypeID, cfg DocumentConfig) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDocumentType, t)
	}
	if cfg.Label == "" {
		return fmt.Errorf("document %s: label is required", t)
	}
	if cfg.MaxSizeBytes <= 0 {
		return fmt.Errorf("document %s: maxSizeBytes must be positive", t)
	}
	if len(cfg.AcceptedMimeTypes) == 0 {
		return fmt.Errorf("document %s: at least one accepted MIME type is required", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[t]; exists {
		return fmt.Errorf("document %s: already registered", t)
	}
	r.configs[t] = cfg
	return nil
}

// ConfigFor returns the rules for t, or ErrUnknownDocumentType.
func (r *Registry) ConfigFor(t DocumentTypeID) (DocumentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[t]
	if !ok {
		return DocumentConfig{}, fmt.Errorf("%w: %q", ErrUnknownDocumentType, t)
	}
	return cfg, nil
}

// All returns the registered entries in canonical order.
func (r *Registry) All() []RegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]RegistryEntry, 0, len(r.configs))
	for _, t := range DocumentTypes {
		if cfg, ok := r.configs[t]; ok {
			result = append(result, RegistryEntry{Type: t, Config: cfg})
		}
	}
	return result
}

// Count returns the number of registered document types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}

// Label returns the display label for t, falling back to the raw id.
func (r *Registry) Label(t DocumentTypeID) string {
	if cfg, err := r.ConfigFor(t); err == nil {
		return cfg.Label
	}
	return string(t)
}

// Complete reports an error naming every canonical type that has no rules.
func (r *Registry) Complete() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []DocumentTypeID
	for _, t := range DocumentTypes {
		if _, ok := r.configs[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("document registry incomplete: missing %v", missing)
	}
	return nil
}

// Optional returns a copy of the registry in which no document is required.
// Edit flows use it: documents already on file need not be uploaded again,
// while any replacement still has to pass the same rules.
func (r *Registry) Optional() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := NewRegistry()
	for t, cfg := range r.configs {
		cfg.Required = false
		out.configs[t] = cfg
	}
	return out
}
