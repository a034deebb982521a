// internal/provider/sim/sim.go
package sim

import (
	"log/slog"
	"sync"

	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/pkg/core"
)

// Provider implements the map-engine contract entirely in memory. No real
// rendering happens; it keeps the structural state a dashboard component
// would observe and fires lifecycle events through a Scheduler so callers
// that assume asynchronous readiness are exercised the same way a real
// engine exercises them.
type Provider struct {
	sched     Scheduler
	ownsSched bool
	registry  *fault.Registry
	logger    *slog.Logger

	mu          sync.Mutex
	handles     []*Handle
	subscribers []func(core.MapEvent)
}

// Option configures a Provider.
type Option func(*Provider)

// WithScheduler replaces the default background scheduler. Tests pass a
// ManualScheduler here to pump deferred events deterministically.
func WithScheduler(s Scheduler) Option {
	return func(p *Provider) { p.sched = s }
}

// WithRegistry points the provider at a fault registry other than the
// process-wide default.
func WithRegistry(r *fault.Registry) Option {
	return func(p *Provider) { p.registry = r }
}

// WithLogger sets the provider's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// New creates a simulation provider. Without WithScheduler it owns a
// background AsyncScheduler and stops it on Close.
func New(opts ...Option) *Provider {
	p := &Provider{
		registry: fault.Default,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sched == nil {
		p.sched = NewAsyncScheduler()
		p.ownsSched = true
	}
	return p
}

var _ provider.Provider = (*Provider)(nil)

// Create builds a new handle and schedules its style-load firing. The
// handle is never ready synchronously; readiness arrives only once the
// scheduler runs the load task.
func (p *Provider) Create(container string, opts core.MapOptions) (provider.Handle, error) {
	if f, ok := p.engineFault(); ok && f.FailureKind == fault.EngineCreateFailure {
		p.registry.Hit(fault.CategoryMapEngine, f.FailureKind)
		return nil, &provider.EngineError{Op: "create", Reason: "injected engine failure"}
	}

	h := newHandle(p, container, opts)
	p.mu.Lock()
	p.handles = append(p.handles, h)
	p.mu.Unlock()

	p.sched.Schedule(h.fireStyleLoad)
	p.logger.Debug("map handle created", "container", container, "style", opts.Style)
	return h, nil
}

// Close closes all live handles and, if the provider owns its scheduler,
// stops it.
func (p *Provider) Close() error {
	p.mu.Lock()
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
	if p.ownsSched {
		if c, ok := p.sched.(*AsyncScheduler); ok {
			return c.Close()
		}
	}
	return nil
}

var _ provider.EventSink = (*Provider)(nil)

// Subscribe registers a tap that sees every event dispatched by any of
// the provider's handles. The harness event stream attaches here.
func (p *Provider) Subscribe(fn func(core.MapEvent)) {
	p.mu.Lock()
	p.subscribers = append(p.subscribers, fn)
	p.mu.Unlock()
}

func (p *Provider) notify(ev core.MapEvent) {
	p.mu.Lock()
	subs := make([]func(core.MapEvent), len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func (p *Provider) engineFault() (fault.EngineFault, bool) {
	d, ok := p.registry.Get(fault.CategoryMapEngine)
	if !ok {
		return fault.EngineFault{}, false
	}
	f, ok := d.(fault.EngineFault)
	return f, ok
}
