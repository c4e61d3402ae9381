package core

import (
	"strings"
	"testing"
)

func TestPreviewTable_DeriveOnlyImages(t *testing.T) {
	table := NewPreviewTable()

	ref, ok := table.Derive(NewFileHandle("frente.jpg", "image/jpeg", []byte("img")))
	if !ok {
		t.Fatal("Derive() for image returned ok = false")
	}
	if !strings.HasPrefix(string(ref), "blob:") {
		t.Errorf("ref = %q, want blob: prefix", ref)
	}

	if _, ok := table.Derive(NewFileHandle("rtu.pdf", "application/pdf", []byte("%PDF"))); ok {
		t.Error("Derive() for PDF returned ok = true, want no preview")
	}
	if _, ok := table.Derive(nil); ok {
		t.Error("Derive(nil) returned ok = true")
	}

	if got := table.Live(); got != 1 {
		t.Errorf("Live() = %d, want 1", got)
	}
}

func TestPreviewTable_ReleaseExactlyOnce(t *testing.T) {
	table := NewPreviewTable()
	ref, _ := table.Derive(NewFileHandle("a.png", "image/png", []byte("png")))

	if !table.Release(ref) {
		t.Fatal("first Release() = false, want true")
	}
	if table.Release(ref) {
		t.Error("second Release() = true, want false")
	}
	if got := table.Released(); got != 1 {
		t.Errorf("Released() = %d, want 1", got)
	}
	if got := table.Live(); got != 0 {
		t.Errorf("Live() = %d, want 0", got)
	}
}

func TestPreviewTable_Lookup(t *testing.T) {
	table := NewPreviewTable()
	file := NewFileHandle("a.png", "image/png", []byte("png"))
	ref, _ := table.Derive(file)

	for _, id := range []string{string(ref), ref.ID()} {
		got, ok := table.Lookup(id)
		if !ok || got != file {
			t.Errorf("Lookup(%q) = %v, %v; want the staged file", id, got, ok)
		}
	}

	table.Release(ref)
	if _, ok := table.Lookup(ref.ID()); ok {
		t.Error("Lookup() after Release found the file")
	}
}

func TestPreviewTable_ReleaseAll(t *testing.T) {
	table := NewPreviewTable()
	for i := 0; i < 3; i++ {
		table.Derive(NewFileHandle("a.png", "image/png", []byte("png")))
	}

	if got := table.ReleaseAll(); got != 3 {
		t.Errorf("ReleaseAll() = %d, want 3", got)
	}
	if got := table.Live(); got != 0 {
		t.Errorf("Live() = %d, want 0", got)
	}
	if got := table.ReleaseAll(); got != 0 {
		t.Errorf("second ReleaseAll() = %d, want 0", got)
	}
}
