// Package handle issues revocable display handles for in-memory image blobs.
//
// A handle is the server-side equivalent of a browser object URL: an opaque
// URL that renders a blob without persisting it. Handles stay valid until
// revoked. Scope ties a handle's lifetime to whatever currently owns it, so
// replacing an image always revokes the one it supersedes.
package handle

import (
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultBasePath is the URL prefix handles are served under.
const DefaultBasePath = "/blobs/"

// Handle identifies one published blob.
type Handle struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type blob struct {
	data        []byte
	contentType string
}

// Registry stores published blobs. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	base  string
	blobs map[string]blob
}

// NewRegistry creates an empty registry serving handles under basePath.
// An empty basePath means DefaultBasePath.
func NewRegistry(basePath string) *Registry {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	return &Registry{
		base:  basePath,
		blobs: make(map[string]blob),
	}
}

// Create publishes data and returns its handle. When contentType is empty it
// is sniffed from the data.
func (r *Registry) Create(data []byte, contentType string) Handle {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	id := uuid.NewString()

	r.mu.Lock()
	r.blobs[id] = blob{data: data, contentType: contentType}
	r.mu.Unlock()

	return Handle{
		ID:          id,
		URL:         r.base + id,
		ContentType: contentType,
		Size:        len(data),
	}
}

// Lookup returns the blob behind id.
func (r *Registry) Lookup(id string) ([]byte, string, bool) {
	r.mu.RLock()
	b, ok := r.blobs[id]
	r.mu.RUnlock()
	return b.data, b.contentType, ok
}

// Revoke invalidates id. Reports whether the handle was live.
func (r *Registry) Revoke(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blobs[id]; !ok {
		return false
	}
	delete(r.blobs, id)
	return true
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// Scope owns at most one handle at a time. The zero value is not usable;
// create scopes with NewScope. A Scope is not safe for concurrent use; its
// owner serialises access.
type Scope struct {
	reg *Registry
	cur *Handle
}

// NewScope returns an empty scope publishing into reg.
func NewScope(reg *Registry) *Scope {
	return &Scope{reg: reg}
}

// Replace revokes the current handle, if any, then publishes data.
func (s *Scope) Replace(data []byte, contentType string) Handle {
	s.Release()
	h := s.reg.Create(data, contentType)
	s.cur = &h
	return h
}

// Release revokes the current handle. Safe to call on an empty scope.
func (s *Scope) Release() {
	if s.cur == nil {
		return
	}
	s.reg.Revoke(s.cur.ID)
	s.cur = nil
}

// Current returns the live handle, if any.
func (s *Scope) Current() (Handle, bool) {
	if s.cur == nil {
		return Handle{}, false
	}
	return *s.cur, true
}
