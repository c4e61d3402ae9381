package core

// preview.go tracks transient preview references for staged images.
//
// A preview reference lets the step renderer display an image before it is
// submitted. References are owned by the table, not by the form state; the
// form state only remembers which reference belongs to which document and
// must release it when the file is replaced or the session ends. An
// unreleased reference is a leak, observable through Live.

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// previewScheme prefixes every preview reference.
const previewScheme = "blob:"

// PreviewRef is an opaque, revocable reference to a staged image.
type PreviewRef string

// ID returns the reference without its scheme, suitable for URLs.
func (r PreviewRef) ID() string {
	return strings.TrimPrefix(string(r), previewScheme)
}

// PreviewTable owns the live preview references of one wizard session.
type PreviewTable struct {
	mu       sync.Mutex
	live     map[PreviewRef]*FileHandle
	released int
}

// NewPreviewTable creates an empty table.
func NewPreviewTable() *PreviewTable {
	return &PreviewTable{live: make(map[PreviewRef]*FileHandle)}
}

// Derive creates a reference for file if it is an image.
// Non-image files get no preview and ok is false.
func (p *PreviewTable) Derive(file *FileHandle) (PreviewRef, bool) {
	if file == nil || !file.IsImage() {
		return "", false
	}

	ref := PreviewRef(previewScheme + uuid.NewString())

	p.mu.Lock()
	p.live[ref] = file
	p.mu.Unlock()

	return ref, true
}

// Release revokes ref. It reports false if ref was not live, so a second
// release of the same reference is a no-op.
func (p *PreviewTable) Release(ref PreviewRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.live[ref]; !ok {
		return false
	}
	delete(p.live, ref)
	p.released++
	return true
}

// Lookup returns the file behind a live reference. The id may be given with
// or without the scheme.
func (p *PreviewTable) Lookup(id string) (*FileHandle, bool) {
	ref := PreviewRef(id)
	if !strings.HasPrefix(id, previewScheme) {
		ref = PreviewRef(previewScheme + id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	file, ok := p.live[ref]
	return file, ok
}

// ReleaseAll revokes every live reference and returns how many there were.
func (p *PreviewTable) ReleaseAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.live)
	p.released += n
	p.live = make(map[PreviewRef]*FileHandle)
	return n
}

// Live returns the number of outstanding references.
func (p *PreviewTable) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Released returns how many references have been revoked so far.
func (p *PreviewTable) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}
