// internal/teststate/surface.go

// Package teststate exposes a synchronous query surface over the active
// map handle. Test harnesses poll it instead of reaching into provider
// internals; every call reads live handle state, nothing is cached.
package teststate

import (
	"sync"

	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/pkg/core"
)

// Surface wraps the currently bound handle. A nil binding answers every
// query with the empty result rather than panicking, since harnesses may
// poll before the dashboard has created its map.
type Surface struct {
	mu     sync.RWMutex
	handle provider.Handle
}

// New returns a surface bound to the given handle, which may be nil.
func New(h provider.Handle) *Surface {
	return &Surface{handle: h}
}

// Rebind atomically swaps the bound handle. Called when the dashboard
// tears down its map and creates a new one.
func (s *Surface) Rebind(h provider.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = h
}

// Handle returns the currently bound handle, or nil.
func (s *Surface) Handle() provider.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handle
}

// Ready reports whether a handle is bound and its style has loaded.
func (s *Surface) Ready() bool {
	h := s.Handle()
	return h != nil && h.StyleLoaded()
}

// Layers returns the bound handle's layer ids in paint order.
func (s *Surface) Layers() []string {
	h := s.Handle()
	if h == nil {
		return nil
	}
	snap := h.GetStyle()
	ids := make([]string, 0, len(snap.Layers))
	for _, l := range snap.Layers {
		ids = append(ids, l.ID)
	}
	return ids
}

// HasLayer reports whether the bound handle has a layer with the id.
func (s *Surface) HasLayer(id string) bool {
	h := s.Handle()
	if h == nil {
		return false
	}
	_, ok := h.GetLayer(id)
	return ok
}

// Sources returns the bound handle's source ids. Order is unspecified.
func (s *Surface) Sources() []string {
	h := s.Handle()
	if h == nil {
		return nil
	}
	snap := h.GetStyle()
	ids := make([]string, 0, len(snap.Sources))
	for id := range snap.Sources {
		ids = append(ids, id)
	}
	return ids
}

// HasSource reports whether the bound handle has a source with the id.
func (s *Surface) HasSource(id string) bool {
	h := s.Handle()
	if h == nil {
		return false
	}
	_, ok := h.GetStyle().Sources[id]
	return ok
}

// Style returns the bound handle's style snapshot, or the zero snapshot
// when nothing is bound.
func (s *Surface) Style() core.StyleSnapshot {
	h := s.Handle()
	if h == nil {
		return core.StyleSnapshot{}
	}
	return h.GetStyle()
}

// Default is the process-wide surface used by harness binaries, mirroring
// the fault registry's process-wide handle.
var Default = New(nil)
