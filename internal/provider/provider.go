// internal/provider/provider.go
package provider

import "github.com/hazmap/simkit/pkg/core"

// Provider is the interface all map-engine implementations must satisfy.
// Application code is written against this contract only; whether the
// simulation or the real engine bridge is behind it is decided at startup.
type Provider interface {
	// Lifecycle
	Create(container string, opts core.MapOptions) (Handle, error)
	Close() error
}

// Handle represents one live map instance. All mutation goes through these
// methods; implementations must enforce the same error conditions as the
// real engine so error-path tests exercise real handling code.
type Handle interface {
	AddSource(id string, def core.SourceDefinition) error
	AddLayer(def core.LayerDefinition) error
	RemoveSource(id string) error
	RemoveLayer(id string) error

	// On registers a callback for the named event. Load events are always
	// delivered asynchronously, never from within On or Create.
	On(event string, cb func(core.MapEvent))

	// GetStyle returns a structural copy of current state. Mutating the
	// returned snapshot must not affect the handle.
	GetStyle() core.StyleSnapshot
	GetLayer(id string) (core.LayerDefinition, bool)

	// StyleLoaded reports whether the style-load event has fired.
	StyleLoaded() bool

	Close() error
}

// EventSink is an optional interface for providers that can push their
// events to an external subscriber (the harness event stream).
type EventSink interface {
	Subscribe(fn func(core.MapEvent))
}
