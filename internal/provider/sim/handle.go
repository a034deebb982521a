// internal/provider/sim/handle.go
package sim

import (
	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/pkg/core"

	"sync"
)

// Handle is the in-memory map handle. Mutation methods are synchronous;
// only lifecycle notifications are deferred. Listener lists are
// snapshotted before each dispatch, so a callback registering new
// listeners mid-fire never affects the dispatch in flight.
type Handle struct {
	provider  *Provider
	container string
	opts      core.MapOptions

	mu            sync.Mutex
	sources       map[string]core.SourceDefinition
	layers        []core.LayerDefinition
	listeners     map[string][]func(core.MapEvent)
	pendingEvents []core.MapEvent
	styleLoaded   bool
	loadFired     bool
	closed        bool
}

func newHandle(p *Provider, container string, opts core.MapOptions) *Handle {
	return &Handle{
		provider:  p,
		container: container,
		opts:      opts,
		sources:   make(map[string]core.SourceDefinition),
		listeners: make(map[string][]func(core.MapEvent)),
	}
}

var _ provider.Handle = (*Handle)(nil)

// AddSource inserts a source. The handle is never partially mutated:
// a duplicate id fails before anything changes.
func (h *Handle) AddSource(id string, def core.SourceDefinition) error {
	if f, ok := h.provider.engineFault(); ok && f.FailureKind == fault.EngineDuplicateSourceID {
		h.provider.registry.Hit(fault.CategoryMapEngine, f.FailureKind)
		return &provider.DuplicateSourceError{ID: id}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return &provider.EngineError{Op: "addSource", Reason: "handle is closed"}
	}
	if _, exists := h.sources[id]; exists {
		h.mu.Unlock()
		return &provider.DuplicateSourceError{ID: id}
	}
	h.sources[id] = def
	h.mu.Unlock()

	h.emit(core.MapEvent{Name: core.EventSourceAdded, SourceID: id})
	return nil
}

// AddLayer appends a layer. Before style load the "layeradded"
// notification is queued and replayed once style-load fires; after style
// load it fires synchronously.
func (h *Handle) AddLayer(def core.LayerDefinition) error {
	if f, ok := h.provider.engineFault(); ok && f.FailureKind == fault.EngineDuplicateLayerID {
		h.provider.registry.Hit(fault.CategoryMapEngine, f.FailureKind)
		return &provider.DuplicateLayerError{ID: def.ID}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return &provider.EngineError{Op: "addLayer", Reason: "handle is closed"}
	}
	for _, l := range h.layers {
		if l.ID == def.ID {
			h.mu.Unlock()
			return &provider.DuplicateLayerError{ID: def.ID}
		}
	}
	if def.Source != "" {
		if _, ok := h.sources[def.Source]; !ok {
			h.mu.Unlock()
			return &provider.MissingSourceError{LayerID: def.ID, SourceID: def.Source}
		}
	}
	h.layers = append(h.layers, def)
	h.mu.Unlock()

	h.emit(core.MapEvent{Name: core.EventLayerAdded, LayerID: def.ID})
	return nil
}

// RemoveSource removes a source by id.
func (h *Handle) RemoveSource(id string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return &provider.EngineError{Op: "removeSource", Reason: "handle is closed"}
	}
	if _, ok := h.sources[id]; !ok {
		h.mu.Unlock()
		return &provider.NotFoundError{Kind: "source", ID: id}
	}
	delete(h.sources, id)
	h.mu.Unlock()

	h.emit(core.MapEvent{Name: core.EventSourceRemoved, SourceID: id})
	return nil
}

// RemoveLayer removes a layer by id, preserving the order of the rest.
func (h *Handle) RemoveLayer(id string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return &provider.EngineError{Op: "removeLayer", Reason: "handle is closed"}
	}
	idx := -1
	for i, l := range h.layers {
		if l.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return &provider.NotFoundError{Kind: "layer", ID: id}
	}
	h.layers = append(h.layers[:idx], h.layers[idx+1:]...)
	h.mu.Unlock()

	h.emit(core.MapEvent{Name: core.EventLayerRemoved, LayerID: id})
	return nil
}

// On registers a callback for the named event. Registering a load
// listener after the style has already loaded still fires it, but only
// through the scheduler, never inline.
func (h *Handle) On(event string, cb func(core.MapEvent)) {
	h.mu.Lock()
	h.listeners[event] = append(h.listeners[event], cb)
	alreadyLoaded := h.styleLoaded
	h.mu.Unlock()

	if alreadyLoaded && isLoadEvent(event) {
		ev := core.MapEvent{Name: event}
		h.provider.sched.Schedule(func() { cb(ev) })
	}
}

// GetStyle returns a deep copy of the current structural state. Callers
// can mutate the result without corrupting the handle.
func (h *Handle) GetStyle() core.StyleSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := core.StyleSnapshot{
		Sources: make(map[string]core.SourceDefinition, len(h.sources)),
		Layers:  make([]core.LayerDefinition, 0, len(h.layers)),
	}
	for id, src := range h.sources {
		snap.Sources[id] = copySource(src)
	}
	for _, l := range h.layers {
		snap.Layers = append(snap.Layers, copyLayer(l))
	}
	return snap
}

// GetLayer returns a copy of one layer definition.
func (h *Handle) GetLayer(id string) (core.LayerDefinition, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.layers {
		if l.ID == id {
			return copyLayer(l), true
		}
	}
	return core.LayerDefinition{}, false
}

// StyleLoaded reports whether the deferred style-load event has fired.
func (h *Handle) StyleLoaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.styleLoaded
}

// Close marks the handle dead and drops its listeners. Further mutation
// calls fail with an engine error.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.listeners = make(map[string][]func(core.MapEvent))
	h.pendingEvents = nil
	return nil
}

// fireStyleLoad runs on the scheduler, once. With a style-load-failure
// fault armed it fires an error event instead and the handle never
// becomes ready; otherwise it marks the style loaded, notifies load
// listeners and replays queued mutation notifications in call order.
func (h *Handle) fireStyleLoad() {
	h.mu.Lock()
	if h.loadFired || h.closed {
		h.mu.Unlock()
		return
	}
	h.loadFired = true
	h.mu.Unlock()

	if f, ok := h.provider.engineFault(); ok && f.FailureKind == fault.EngineStyleLoadFailure {
		h.provider.registry.Hit(fault.CategoryMapEngine, f.FailureKind)
		h.dispatch(core.MapEvent{Name: core.EventError, Message: "style failed to load"})
		return
	}

	// Snapshot the load listeners in the same critical section that flips
	// styleLoaded, so a listener registered concurrently is either in the
	// snapshot or scheduled by On, never both.
	h.mu.Lock()
	h.styleLoaded = true
	queued := h.pendingEvents
	h.pendingEvents = nil
	styleCbs := make([]func(core.MapEvent), len(h.listeners[core.EventStyleLoad]))
	copy(styleCbs, h.listeners[core.EventStyleLoad])
	loadCbs := make([]func(core.MapEvent), len(h.listeners[core.EventLoad]))
	copy(loadCbs, h.listeners[core.EventLoad])
	h.mu.Unlock()

	h.provider.notify(core.MapEvent{Name: core.EventStyleLoad})
	for _, cb := range styleCbs {
		cb(core.MapEvent{Name: core.EventStyleLoad})
	}
	for _, cb := range loadCbs {
		cb(core.MapEvent{Name: core.EventLoad})
	}
	for _, ev := range queued {
		h.dispatch(ev)
	}
}

// emit delivers mutation notifications. Before style load they queue so
// style-load always reaches listeners first.
func (h *Handle) emit(ev core.MapEvent) {
	h.mu.Lock()
	if !h.styleLoaded {
		h.pendingEvents = append(h.pendingEvents, ev)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.dispatch(ev)
}

func (h *Handle) dispatch(ev core.MapEvent) {
	h.provider.notify(ev)

	h.mu.Lock()
	cbs := make([]func(core.MapEvent), len(h.listeners[ev.Name]))
	copy(cbs, h.listeners[ev.Name])
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(ev)
	}
}

func isLoadEvent(event string) bool {
	return event == core.EventLoad || event == core.EventStyleLoad
}

func copySource(src core.SourceDefinition) core.SourceDefinition {
	out := src
	if src.Data != nil {
		out.Data = append([]byte(nil), src.Data...)
	}
	return out
}

func copyLayer(l core.LayerDefinition) core.LayerDefinition {
	out := l
	if l.Paint != nil {
		out.Paint = make(map[string]any, len(l.Paint))
		for k, v := range l.Paint {
			out.Paint[k] = v
		}
	}
	if l.Layout != nil {
		out.Layout = make(map[string]any, len(l.Layout))
		for k, v := range l.Layout {
			out.Layout[k] = v
		}
	}
	return out
}
