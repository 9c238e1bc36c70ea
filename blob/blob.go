// Package blob loads background documents referenced by templates.
//
// A reference is either a storage key ("backgrounds/acme/offer.pdf") served
// by the filesystem store, or an http(s) URL. Router dispatches on the
// scheme and Cache puts a redis read-through cache in front of any Store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the reference does not resolve to a document.
	ErrNotFound = errors.New("blob: not found")

	// ErrPermissionDenied indicates the document exists but cannot be read.
	ErrPermissionDenied = errors.New("blob: permission denied")

	// ErrInvalidKey indicates an empty key, an absolute path or a path
	// escaping the base directory.
	ErrInvalidKey = errors.New("blob: invalid key")
)

// Store fetches the bytes behind a reference.
type Store interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Router dispatches references to a Store by URL scheme. References without
// a scheme go to the default store.
type Router struct {
	def     Store
	schemes map[string]Store
}

// NewRouter returns a router sending plain keys to def.
func NewRouter(def Store) *Router {
	return &Router{def: def, schemes: make(map[string]Store)}
}

// Handle registers s for references starting with "<scheme>://".
func (r *Router) Handle(scheme string, s Store) *Router {
	r.schemes[strings.ToLower(scheme)] = s
	return r
}

// Fetch hands ref to the store registered for its scheme.
func (r *Router) Fetch(ctx context.Context, ref string) ([]byte, error) {
	scheme := Scheme(ref)
	if scheme == "" {
		if r.def == nil {
			return nil, fmt.Errorf("%w: no store for key %q", ErrInvalidKey, ref)
		}
		return r.def.Fetch(ctx, ref)
	}
	s, ok := r.schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidKey, scheme)
	}
	return s.Fetch(ctx, ref)
}

// Scheme returns the lower-cased scheme of ref, or "" for a plain key.
func Scheme(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(ref[:i])
}
