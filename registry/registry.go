/*
Package registry provides a process-wide registry of open stores, enforcing
at most one writer handle per canonicalized physical location (section 5
"Process-wide store registry").

WHY EXPLICIT REFCOUNTING, NOT weak:
  Go's weak package tracks GC-unreferenced objects; the trigger for
  releasing a store is an explicit Close() call, not garbage collection, so
  a refcount that only drops on Close models "last explicit closer" exactly.
  A weak-pointer-backed registry would let a store linger open until the
  next GC cycle noticed it was unreferenced, which is the wrong release
  discipline for a file handle.
*/
package registry

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/warp/factdb/fact"
)

// Opener constructs a fresh fact.IndexProvider for a canonical path. Called
// at most once per path for the lifetime of the registry entry.
type Opener func(path string) (fact.IndexProvider, error)

type handle struct {
	provider fact.IndexProvider
	refs     int
}

// Registry maps a canonicalized location string to a refcounted handle.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*handle
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{handles: make(map[string]*handle)}
}

// Handle is a refcounted reference to an open store. Close must be called
// exactly once per successful Open call.
type Handle struct {
	registry *Registry
	path     string
	Provider fact.IndexProvider
}

// Open returns the existing handle for path if one is open, incrementing
// its refcount, or constructs a new one via open. path is canonicalized
// with filepath.Abs/Clean before lookup so equivalent spellings of the same
// location share one handle (section 5).
func (r *Registry) Open(path string, open Opener) (*Handle, error) {
	canonical, err := canonicalize(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[canonical]; ok {
		h.refs++
		return &Handle{registry: r, path: canonical, Provider: h.provider}, nil
	}

	provider, err := open(canonical)
	if err != nil {
		return nil, err
	}
	r.handles[canonical] = &handle{provider: provider, refs: 1}
	return &Handle{registry: r, path: canonical, Provider: provider}, nil
}

// Close decrements the handle's refcount, closing the underlying provider
// (if it implements io-style Close) once the count reaches zero. Safe to
// call exactly once; calling it twice on the same Handle is a programming
// error the caller must avoid, mirroring how a file descriptor behaves.
func (h *Handle) Close(ctx context.Context) error {
	r := h.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.handles[h.path]
	if !ok {
		return fact.ErrStoreNotFound
	}
	entry.refs--
	if entry.refs > 0 {
		return nil
	}
	delete(r.handles, h.path)
	if closer, ok := entry.provider.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Path returns the canonicalized location this handle was opened against.
func (h *Handle) Path() string {
	return h.path
}

// RefCount reports the current number of open handles for path, for
// diagnostics (httpapi's status endpoint). Returns 0 if path is not open.
func (r *Registry) RefCount(path string) int {
	canonical, err := canonicalize(path)
	if err != nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[canonical]; ok {
		return h.refs
	}
	return 0
}

func canonicalize(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
