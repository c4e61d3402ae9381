package core

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed documents.yaml
var defaultDocumentsYAML []byte

// registryFile is the on-disk shape of the document registry.
type registryFile struct {
	Documents map[DocumentTypeID]DocumentConfig `yaml:"documentos"`
}

// LoadRegistry parses a YAML document registry. Every canonical document
// type must be configured.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var file registryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse document registry: %w", err)
	}

	reg := NewRegistry()
	// Register in canonical order so errors are reported deterministically.
	for _, t := range DocumentTypes {
		cfg, ok := file.Documents[t]
		if !ok {
			continue
		}
		if err := reg.Register(t, cfg); err != nil {
			return nil, err
		}
	}
	for t := range file.Documents {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDocumentType, t)
		}
	}
	if err := reg.Complete(); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadRegistryFile loads the registry from path, or the built-in defaults
// when path is empty.
func LoadRegistryFile(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document registry: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}

// DefaultRegistry returns the registry shipped with the binary.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(bytes.NewReader(defaultDocumentsYAML))
}
