package handle

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestNewRegistry_BasePath(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{"default", "", "/blobs/"},
		{"trailing slash", "/img/", "/img/"},
		{"no trailing slash", "/img", "/img/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.base)
			h := r.Create([]byte("x"), "text/plain")
			if !strings.HasPrefix(h.URL, tt.want) {
				t.Errorf("URL %s should start with %s", h.URL, tt.want)
			}
			if h.URL != tt.want+h.ID {
				t.Errorf("URL: got %s, want %s", h.URL, tt.want+h.ID)
			}
		})
	}
}

func TestRegistry_CreateLookupRevoke(t *testing.T) {
	r := NewRegistry("")
	data := []byte{0x89, 'P', 'N', 'G'}

	h := r.Create(data, "image/png")
	if h.ID == "" {
		t.Fatal("Create returned empty ID")
	}
	if h.Size != len(data) {
		t.Errorf("Size: got %d, want %d", h.Size, len(data))
	}

	got, ct, ok := r.Lookup(h.ID)
	if !ok {
		t.Fatal("Lookup should find a live handle")
	}
	if !bytes.Equal(got, data) {
		t.Error("Lookup returned different bytes")
	}
	if ct != "image/png" {
		t.Errorf("ContentType: got %s, want image/png", ct)
	}

	if !r.Revoke(h.ID) {
		t.Error("Revoke should report a live handle")
	}
	if r.Revoke(h.ID) {
		t.Error("second Revoke should report false")
	}
	if _, _, ok := r.Lookup(h.ID); ok {
		t.Error("Lookup should fail after Revoke")
	}
	if r.Len() != 0 {
		t.Errorf("Len: got %d, want 0", r.Len())
	}
}

func TestRegistry_SniffsContentType(t *testing.T) {
	r := NewRegistry("")
	pngHeader := []byte("\x89PNG\x0D\x0A\x1A\x0A")

	h := r.Create(pngHeader, "")
	if h.ContentType != "image/png" {
		t.Errorf("ContentType: got %s, want image/png", h.ContentType)
	}
}

func TestRegistry_UniqueIDs(t *testing.T) {
	r := NewRegistry("")
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		h := r.Create([]byte("x"), "text/plain")
		if seen[h.ID] {
			t.Fatalf("duplicate handle ID %s", h.ID)
		}
		seen[h.ID] = true
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry("")
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h := r.Create([]byte("data"), "text/plain")
				r.Lookup(h.ID)
				r.Revoke(h.ID)
			}
		}()
	}

	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len after concurrent create/revoke: got %d, want 0", r.Len())
	}
}

func TestScope_ReplaceRevokesPrevious(t *testing.T) {
	r := NewRegistry("")
	s := NewScope(r)

	if _, ok := s.Current(); ok {
		t.Fatal("new scope should be empty")
	}

	first := s.Replace([]byte("one"), "text/plain")
	second := s.Replace([]byte("two"), "text/plain")

	if _, _, ok := r.Lookup(first.ID); ok {
		t.Error("first handle should be revoked by Replace")
	}
	if _, _, ok := r.Lookup(second.ID); !ok {
		t.Error("second handle should be live")
	}
	if r.Len() != 1 {
		t.Errorf("Len: got %d, want 1", r.Len())
	}

	cur, ok := s.Current()
	if !ok || cur.ID != second.ID {
		t.Errorf("Current: got %+v, want %s", cur, second.ID)
	}
}

func TestScope_Release(t *testing.T) {
	r := NewRegistry("")
	s := NewScope(r)

	// Releasing an empty scope is a no-op
	s.Release()

	h := s.Replace([]byte("one"), "text/plain")
	s.Release()

	if _, _, ok := r.Lookup(h.ID); ok {
		t.Error("handle should be revoked after Release")
	}
	if _, ok := s.Current(); ok {
		t.Error("scope should be empty after Release")
	}
	s.Release()
}

func TestScope_RepeatedSelectionsDoNotLeak(t *testing.T) {
	r := NewRegistry("")
	s := NewScope(r)

	for i := 0; i < 25; i++ {
		s.Replace([]byte{byte(i)}, "application/octet-stream")
	}

	if r.Len() != 1 {
		t.Errorf("Len after 25 replacements: got %d, want 1", r.Len())
	}
}
