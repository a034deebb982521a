// internal/provider/engine/engine.go

// Package engine proxies the map contract to a running map-engine bridge
// over WebSocket. Mutations are validated against a local structural
// mirror so contract errors stay synchronous, then streamed to the
// bridge; lifecycle events flow back on the read loop.
package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/pkg/core"
	"github.com/hazmap/simkit/pkg/streaming"
)

// Config holds the bridge connection settings.
type Config struct {
	URL    string
	Secret string
}

// Provider implements the map contract against a live bridge.
type Provider struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	handle *Handle
}

// New creates a bridge-backed provider. No connection is made until
// Create is called.
func New(cfg Config) *Provider {
	return &Provider{cfg: cfg, logger: slog.Default()}
}

var _ provider.Provider = (*Provider)(nil)

// Create dials the bridge, sends create_map and waits for the ack. The
// bridge owns real readiness; style.load arrives on the event stream.
func (p *Provider) Create(container string, opts core.MapOptions) (provider.Handle, error) {
	h := &Handle{
		provider:  p,
		sources:   make(map[string]core.SourceDefinition),
		listeners: make(map[string][]func(core.MapEvent)),
	}
	h.conn = newConnection(p.logger, h.handleEvent)

	if err := h.conn.dial(p.cfg.URL, p.cfg.Secret); err != nil {
		return nil, &provider.EngineError{Op: "create", Reason: err.Error()}
	}

	data, err := marshalEnvelope(streaming.TypeCreateMap, streaming.CreateMapPayload{
		Container: container,
		Options:   opts,
	})
	if err != nil {
		_ = h.conn.close()
		return nil, err
	}

	// Cache for reconnect replay.
	h.conn.mu.Lock()
	h.conn.cachedCreateMsg = data
	h.conn.mu.Unlock()

	if err := h.conn.sendAndWait(data, streaming.TypeCreateMap, ackTimeout); err != nil {
		_ = h.conn.close()
		return nil, &provider.EngineError{Op: "create", Reason: err.Error()}
	}

	p.mu.Lock()
	p.handle = h
	p.mu.Unlock()
	return h, nil
}

// Close disconnects the live handle, if any.
func (p *Provider) Close() error {
	p.mu.Lock()
	h := p.handle
	p.handle = nil
	p.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close()
}

// Handle mirrors the bridge-side map structurally and streams mutations.
type Handle struct {
	provider *Provider
	conn     *connection

	mu          sync.Mutex
	sources     map[string]core.SourceDefinition
	layers      []core.LayerDefinition
	listeners   map[string][]func(core.MapEvent)
	styleLoaded bool
	closed      bool
}

var _ provider.Handle = (*Handle)(nil)

// AddSource validates locally, then streams add_source to the bridge.
func (h *Handle) AddSource(id string, def core.SourceDefinition) error {
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

	return h.sendEnvelope(streaming.TypeAddSource, streaming.AddSourcePayload{ID: id, Definition: def})
}

// AddLayer validates locally, then streams add_layer to the bridge.
func (h *Handle) AddLayer(def core.LayerDefinition) error {
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

	return h.sendEnvelope(streaming.TypeAddLayer, streaming.AddLayerPayload{Definition: def})
}

// RemoveSource removes from the mirror and streams the removal.
func (h *Handle) RemoveSource(id string) error {
	h.mu.Lock()
	if _, ok := h.sources[id]; !ok {
		h.mu.Unlock()
		return &provider.NotFoundError{Kind: "source", ID: id}
	}
	delete(h.sources, id)
	h.mu.Unlock()

	return h.sendEnvelope(streaming.TypeRemoveSource, streaming.RemovePayload{ID: id})
}

// RemoveLayer removes from the mirror and streams the removal.
func (h *Handle) RemoveLayer(id string) error {
	h.mu.Lock()
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

	return h.sendEnvelope(streaming.TypeRemoveLayer, streaming.RemovePayload{ID: id})
}

// On registers a callback; events arrive from the bridge's read loop.
func (h *Handle) On(event string, cb func(core.MapEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[event] = append(h.listeners[event], cb)
}

// GetStyle returns a deep copy of the local mirror.
func (h *Handle) GetStyle() core.StyleSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := core.StyleSnapshot{
		Sources: make(map[string]core.SourceDefinition, len(h.sources)),
		Layers:  make([]core.LayerDefinition, 0, len(h.layers)),
	}
	for id, src := range h.sources {
		if src.Data != nil {
			src.Data = append(json.RawMessage{}, src.Data...)
		}
		snap.Sources[id] = src
	}
	for _, l := range h.layers {
		snap.Layers = append(snap.Layers, copyLayer(l))
	}
	return snap
}

// GetLayer returns one layer from the mirror.
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

// StyleLoaded reports whether the bridge has announced style.load.
func (h *Handle) StyleLoaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.styleLoaded
}

// Close shuts down the connection.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.listeners = make(map[string][]func(core.MapEvent))
	h.mu.Unlock()
	return h.conn.close()
}

// handleEvent runs on the read loop for each map_event from the bridge.
func (h *Handle) handleEvent(payload streaming.MapEventPayload) {
	ev := payload.Event

	h.mu.Lock()
	if ev.Name == core.EventStyleLoad || ev.Name == core.EventLoad {
		h.styleLoaded = true
	}
	cbs := make([]func(core.MapEvent), len(h.listeners[ev.Name]))
	copy(cbs, h.listeners[ev.Name])
	h.mu.Unlock()

	for _, cb := range cbs {
		cb(ev)
	}
}

func (h *Handle) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	h.conn.send(data)
	return nil
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
