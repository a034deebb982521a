// internal/fault/registry.go
package fault

import (
	"log/slog"
	"sync"
)

// ChangeFunc observes arm and clear transitions. armed is true when a
// descriptor was set, false when the category was cleared; d is nil on
// clears.
type ChangeFunc func(cat Category, d Descriptor, armed bool)

// HitFunc observes production code hitting an armed fault.
type HitFunc func(cat Category, kind string)

// Registry holds the currently armed faults, at most one per category.
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	armed  map[Category]Descriptor
	logger *slog.Logger

	onChange []ChangeFunc
	onHit    []HitFunc
	onReset  []func()
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		armed:  make(map[Category]Descriptor),
		logger: slog.Default(),
	}
}

// SetLogger replaces the registry's logger.
func (r *Registry) SetLogger(l *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// OnChange registers fn to run after every arm or clear. Observers run
// outside the registry lock, in registration order.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// OnHit registers fn to run whenever Hit is called.
func (r *Registry) OnHit(fn HitFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onHit = append(r.onHit, fn)
}

// OnReset registers fn to run after every Reset.
func (r *Registry) OnReset(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReset = append(r.onReset, fn)
}

// Set arms a fault, replacing any fault previously armed for the same
// category. Faults in other categories are untouched.
func (r *Registry) Set(d Descriptor) {
	r.mu.Lock()
	prev, replaced := r.armed[d.Category()]
	r.armed[d.Category()] = d
	logger := r.logger
	observers := r.onChange
	r.mu.Unlock()

	if replaced {
		logger.Debug("fault replaced",
			"category", string(d.Category()), "kind", d.Kind(), "previous", prev.Kind())
	} else {
		logger.Debug("fault armed", "category", string(d.Category()), "kind", d.Kind())
	}
	for _, fn := range observers {
		fn(d.Category(), d, true)
	}
}

// Hit records that production code consulted the registry and honored an
// armed fault. The fault-aware seams call this at the moment they inject
// the failure.
func (r *Registry) Hit(cat Category, kind string) {
	r.mu.RLock()
	logger := r.logger
	observers := r.onHit
	r.mu.RUnlock()

	logger.Debug("injected fault hit", "category", string(cat), "kind", kind)
	for _, fn := range observers {
		fn(cat, kind)
	}
}

// Get returns the fault armed for the category, if any.
func (r *Registry) Get(cat Category) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.armed[cat]
	return d, ok
}

// Clear disarms the fault for one category. Observers are notified only
// when something was actually armed.
func (r *Registry) Clear(cat Category) {
	r.mu.Lock()
	_, wasArmed := r.armed[cat]
	delete(r.armed, cat)
	observers := r.onChange
	r.mu.Unlock()

	if !wasArmed {
		return
	}
	for _, fn := range observers {
		fn(cat, nil, false)
	}
}

// HasAny reports whether any fault is armed.
func (r *Registry) HasAny() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.armed) > 0
}

// ArmedFault pairs a category with its active descriptor.
type ArmedFault struct {
	Category   Category   `json:"category"`
	Descriptor Descriptor `json:"descriptor"`
}

// Active returns a snapshot of all armed faults in stable category order.
func (r *Registry) Active() []ArmedFault {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ArmedFault, 0, len(r.armed))
	for _, cat := range Categories {
		if d, ok := r.armed[cat]; ok {
			out = append(out, ArmedFault{Category: cat, Descriptor: d})
		}
	}
	return out
}

// Reset disarms every fault. Scenario teardown calls this so leftover
// faults never bleed into the next test.
func (r *Registry) Reset() {
	r.mu.Lock()
	if len(r.armed) > 0 {
		r.armed = make(map[Category]Descriptor)
	}
	observers := r.onReset
	r.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// Default is the process-wide registry. Test harnesses and providers that
// are not handed an explicit registry fall back to this one.
var Default = NewRegistry()

// Set arms a fault on the default registry.
func Set(d Descriptor) { Default.Set(d) }

// Get reads the default registry.
func Get(cat Category) (Descriptor, bool) { return Default.Get(cat) }

// Reset clears the default registry.
func Reset() { Default.Reset() }

var deprecationOnce sync.Once

// SetBackendFault arms an external API fault with the given status code.
//
// Deprecated: use Set(HTTPFault{Status: status}) instead. Kept so older
// suites keep passing; logs a one-time warning on first use.
func SetBackendFault(status int) {
	deprecationOnce.Do(func() {
		slog.Default().Warn("SetBackendFault is deprecated, use fault.Set with an HTTPFault descriptor")
	})
	Set(HTTPFault{Status: status})
}
