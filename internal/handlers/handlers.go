// internal/handlers/handlers.go

// Package handlers implements the command handlers behind the harness
// dispatcher. Every command an external automation harness can issue is
// routed here.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazmap/simkit/internal/api"
	"github.com/hazmap/simkit/internal/dispatcher"
	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/internal/fixture"
	"github.com/hazmap/simkit/internal/geo"
	"github.com/hazmap/simkit/internal/influx"
	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/internal/scenario"
	"github.com/hazmap/simkit/internal/teststate"
	"github.com/hazmap/simkit/pkg/core"
)

// Command names registered on the dispatcher.
const (
	CmdMapState         = "map_state"
	CmdCreateMap        = "create_map"
	CmdDestroyMap       = "destroy_map"
	CmdSetFault         = "set_fault"
	CmdClearFault       = "clear_fault"
	CmdResetFaults      = "reset_faults"
	CmdListFaults       = "list_faults"
	CmdFaultCatalog     = "fault_catalog"
	CmdGenerateScenario = "generate_scenario"
	CmdLoadScenario     = "load_scenario"
	CmdHealthcheck      = "healthcheck"
)

// Dependencies holds everything the handlers operate on. Catalog and API
// are optional; their commands report an error when unwired. Influx is
// optional; run summaries are recorded only when it is wired.
type Dependencies struct {
	Provider provider.Provider
	Surface  *teststate.Surface
	Registry *fault.Registry
	Store    *fixture.Store
	Catalog  *fixture.Catalog
	API      *api.Client
	Influx   *influx.Manager
	Logger   *slog.Logger
}

// Service provides the handler methods. A single service instance owns at
// most one live map handle at a time.
type Service struct {
	deps Dependencies

	mu     sync.Mutex
	handle provider.Handle
}

// NewService creates a handler service.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = fault.Default
	}
	return &Service{deps: deps}
}

// RegisterAll wires every command onto the dispatcher.
func (s *Service) RegisterAll(d *dispatcher.Dispatcher) {
	d.Register(CmdMapState, s.MapState)
	d.Register(CmdCreateMap, s.CreateMap)
	d.Register(CmdDestroyMap, s.DestroyMap)
	d.Register(CmdSetFault, s.SetFault)
	d.Register(CmdClearFault, s.ClearFault)
	d.Register(CmdResetFaults, s.ResetFaults)
	d.Register(CmdListFaults, s.ListFaults)
	d.Register(CmdFaultCatalog, s.FaultCatalog)
	d.Register(CmdGenerateScenario, s.GenerateScenario, dispatcher.Logged())
	d.Register(CmdLoadScenario, s.LoadScenario, dispatcher.Logged())
	d.Register(CmdHealthcheck, s.Healthcheck)
}

// Handle returns the live map handle, or nil when no map exists.
func (s *Service) Handle() provider.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// MapStateResponse summarizes the live handle for automation harnesses.
type MapStateResponse struct {
	Exists      bool     `json:"exists"`
	StyleLoaded bool     `json:"styleLoaded"`
	Sources     []string `json:"sources"`
	Layers      []string `json:"layers"`
}

// MapState reports readiness and the source/layer inventory.
func (s *Service) MapState(dispatcher.Event) (any, error) {
	resp := MapStateResponse{}
	if s.deps.Surface == nil {
		return resp, nil
	}
	resp.Exists = s.deps.Surface.Handle() != nil
	resp.StyleLoaded = s.deps.Surface.Ready()
	resp.Sources = s.deps.Surface.Sources()
	resp.Layers = s.deps.Surface.Layers()
	return resp, nil
}

type createMapRequest struct {
	Container string          `json:"container"`
	Options   core.MapOptions `json:"options"`
}

// CreateMap creates a fresh map handle, closing any previous one, and
// rebinds the test-state surface to it.
func (s *Service) CreateMap(e dispatcher.Event) (any, error) {
	var req createMapRequest
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &req); err != nil {
			return nil, fmt.Errorf("decoding create_map payload: %w", err)
		}
	}
	if req.Container == "" {
		req.Container = "map"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.deps.Logger.Warn("closing previous map handle", "error", err)
		}
		s.handle = nil
		if s.deps.Surface != nil {
			s.deps.Surface.Rebind(nil)
		}
	}

	h, err := s.deps.Provider.Create(req.Container, req.Options)
	if err != nil {
		return nil, err
	}
	s.handle = h
	if s.deps.Surface != nil {
		s.deps.Surface.Rebind(h)
	}
	s.deps.Logger.Info("map created", "container", req.Container, "style", req.Options.Style)
	return map[string]any{"created": true}, nil
}

// DestroyMap closes the live handle and unbinds the surface.
func (s *Service) DestroyMap(dispatcher.Event) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return map[string]any{"destroyed": false}, nil
	}
	err := s.handle.Close()
	s.handle = nil
	if s.deps.Surface != nil {
		s.deps.Surface.Rebind(nil)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"destroyed": true}, nil
}

type setFaultRequest struct {
	Category string `json:"category"`
	Kind     string `json:"kind,omitempty"`
	Status   int    `json:"status,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Surface  string `json:"surface,omitempty"`
	Variable string `json:"variable,omitempty"`
	DelayMs  int64  `json:"delayMs,omitempty"`
	Service  string `json:"service,omitempty"`
}

// SetFault arms one fault descriptor, replacing any fault already armed
// in the same category.
func (s *Service) SetFault(e dispatcher.Event) (any, error) {
	var req setFaultRequest
	if err := json.Unmarshal(e.Payload, &req); err != nil {
		return nil, fmt.Errorf("decoding set_fault payload: %w", err)
	}
	d, err := descriptorFromRequest(req)
	if err != nil {
		return nil, err
	}
	s.deps.Registry.Set(d)
	return map[string]any{"armed": true, "category": d.Category(), "kind": d.Kind()}, nil
}

func descriptorFromRequest(req setFaultRequest) (fault.Descriptor, error) {
	switch fault.Category(req.Category) {
	case fault.CategoryExternalAPI:
		if req.Status == 0 {
			return nil, fmt.Errorf("external-api fault requires a status")
		}
		return fault.HTTPFault{Status: req.Status}, nil
	case fault.CategoryMapEngine:
		if req.Kind == "" {
			return nil, fmt.Errorf("map-engine fault requires a kind")
		}
		return fault.EngineFault{FailureKind: req.Kind}, nil
	case fault.CategoryData:
		mode := req.Mode
		if mode == "" {
			mode = req.Kind
		}
		if mode == "" {
			return nil, fmt.Errorf("data fault requires a mode")
		}
		return fault.DataFault{Mode: mode}, nil
	case fault.CategoryUI:
		return fault.UIFault{Surface: req.Surface}, nil
	case fault.CategoryEnvironment:
		return fault.EnvironmentFault{Variable: req.Variable}, nil
	case fault.CategoryPerformance:
		if req.DelayMs <= 0 {
			return nil, fmt.Errorf("performance fault requires delayMs > 0")
		}
		return fault.PerformanceFault{Delay: time.Duration(req.DelayMs) * time.Millisecond}, nil
	case fault.CategoryIntegration:
		return fault.IntegrationFault{Service: req.Service, Mode: req.Mode}, nil
	default:
		return nil, fmt.Errorf("unknown fault category %q", req.Category)
	}
}

type clearFaultRequest struct {
	Category string `json:"category"`
}

// ClearFault disarms whatever fault is active in one category.
func (s *Service) ClearFault(e dispatcher.Event) (any, error) {
	var req clearFaultRequest
	if err := json.Unmarshal(e.Payload, &req); err != nil {
		return nil, fmt.Errorf("decoding clear_fault payload: %w", err)
	}
	cat := fault.Category(req.Category)
	if !knownCategory(cat) {
		return nil, fmt.Errorf("unknown fault category %q", req.Category)
	}
	s.deps.Registry.Clear(cat)
	return map[string]any{"cleared": true}, nil
}

func knownCategory(cat fault.Category) bool {
	for _, c := range fault.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// ResetFaults disarms everything. Automation harnesses call this between
// test cases.
func (s *Service) ResetFaults(dispatcher.Event) (any, error) {
	s.deps.Registry.Reset()
	return map[string]any{"reset": true}, nil
}

// ListFaults returns the armed faults in stable category order.
func (s *Service) ListFaults(dispatcher.Event) (any, error) {
	return s.deps.Registry.Active(), nil
}

type faultCatalogRequest struct {
	Category string `json:"category,omitempty"`
}

// FaultCatalog lists the known fault table, optionally filtered to one
// category.
func (s *Service) FaultCatalog(e dispatcher.Event) (any, error) {
	var req faultCatalogRequest
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &req); err != nil {
			return nil, fmt.Errorf("decoding fault_catalog payload: %w", err)
		}
	}
	if req.Category == "" {
		return fault.Catalog, nil
	}
	cat := fault.Category(req.Category)
	if !knownCategory(cat) {
		return nil, fmt.Errorf("unknown fault category %q", req.Category)
	}
	return fault.CatalogFor(cat), nil
}

type generateScenarioRequest struct {
	Name      string `json:"name"`
	Seed      uint64 `json:"seed"`
	Waypoints int    `json:"waypoints"`
	Routes    int    `json:"routes"`
	Buildings int    `json:"buildings"`
	Hazards   int    `json:"hazards"`

	// Origin is an optional "lng,lat" string recentring the generated
	// region. RoutePaths are optional explicit polylines in projected
	// coordinates, "[[x1,y1],[x2,y2],...]", appended after the generated
	// routes.
	Origin     string   `json:"origin,omitempty"`
	RoutePaths []string `json:"routePaths,omitempty"`
}

// GenerateScenario builds a seeded scenario, writes it to the fixture
// store and, when a catalog is wired, records it there too.
func (s *Service) GenerateScenario(e dispatcher.Event) (res any, err error) {
	var req generateScenarioRequest
	if err := json.Unmarshal(e.Payload, &req); err != nil {
		return nil, fmt.Errorf("decoding generate_scenario payload: %w", err)
	}
	if req.Name == "" {
		return nil, fmt.Errorf("generate_scenario requires a name")
	}
	if s.deps.Store == nil {
		return nil, fmt.Errorf("no fixture store configured")
	}

	start := time.Now()
	defer func() { s.recordRun(req.Name, req.Seed, start, err == nil) }()

	b := scenario.NewBuilder(req.Seed)
	if req.Origin != "" {
		pos, perr := geo.Position3DFromString(req.Origin)
		if perr != nil {
			return nil, fmt.Errorf("generate_scenario origin: %w", perr)
		}
		b.WithOrigin(core.LngLat{Lng: pos.X, Lat: pos.Y})
	}
	for i := 0; i < req.Waypoints; i++ {
		b.WithWaypoint(fmt.Sprintf("%s waypoint %d", req.Name, i+1))
	}
	for i := 0; i < req.Routes; i++ {
		b.WithRoute(fmt.Sprintf("%s route %d", req.Name, i+1), 6)
	}
	for i, path := range req.RoutePaths {
		line, perr := geo.ParsePolyline(path)
		if perr != nil {
			return nil, fmt.Errorf("generate_scenario route path %d: %w", i+1, perr)
		}
		b.WithRoutePath(fmt.Sprintf("%s path %d", req.Name, i+1), line)
	}
	for i := 0; i < req.Buildings; i++ {
		b.WithBuilding(fmt.Sprintf("%s building %d", req.Name, i+1))
	}
	kinds := []core.HazardKind{core.HazardFlood, core.HazardWildfire, core.HazardChemical}
	for i := 0; i < req.Hazards; i++ {
		b.WithHazardZone(kinds[i%len(kinds)])
	}
	scn := b.Freeze()

	meta, err := s.deps.Store.WriteScenario(req.Name, scn)
	if err != nil {
		return nil, err
	}
	if s.deps.Catalog != nil {
		if _, err := s.deps.Catalog.Save(req.Name, scn); err != nil {
			return nil, fmt.Errorf("recording fixture in catalog: %w", err)
		}
	}
	return meta, nil
}

// recordRun writes a run-summary telemetry point, best effort.
func (s *Service) recordRun(name string, seed uint64, start time.Time, ok bool) {
	if s.deps.Influx == nil {
		return
	}
	point := influx.RunPoint(name, seed, time.Since(start).Milliseconds(), ok)
	if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketHarnessRuns, point); err != nil {
		s.deps.Logger.Warn("recording run point", "error", err)
	}
}

type loadScenarioRequest struct {
	Name     string `json:"name"`
	Checksum string `json:"checksum,omitempty"`
}

// LoadScenarioResponse reports what a scenario load put on the map.
type LoadScenarioResponse struct {
	Metadata core.FixtureMetadata `json:"metadata"`
	Applied  ApplyResult          `json:"applied"`
}

// LoadScenario reads a fixture from disk, verifies its checksum and
// applies it to the live map handle as geojson sources and layers.
func (s *Service) LoadScenario(e dispatcher.Event) (res any, err error) {
	var req loadScenarioRequest
	if err := json.Unmarshal(e.Payload, &req); err != nil {
		return nil, fmt.Errorf("decoding load_scenario payload: %w", err)
	}
	if s.deps.Store == nil {
		return nil, fmt.Errorf("no fixture store configured")
	}

	start := time.Now()
	scn, meta, err := s.deps.Store.ReadScenario(req.Name, req.Checksum)
	if err != nil {
		return nil, err
	}
	defer func() { s.recordRun(req.Name, meta.Seed, start, err == nil) }()

	h := s.Handle()
	if h == nil && s.deps.Surface != nil {
		h = s.deps.Surface.Handle()
	}
	if h == nil {
		return nil, fmt.Errorf("no live map to apply scenario %q to", req.Name)
	}
	applied, err := ApplyScenario(h, scn)
	if err != nil {
		return nil, err
	}
	return LoadScenarioResponse{Metadata: meta, Applied: applied}, nil
}

// Healthcheck probes the feed API through the fault-aware client.
func (s *Service) Healthcheck(dispatcher.Event) (any, error) {
	if s.deps.API == nil {
		return nil, fmt.Errorf("no feed API client configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.API.Healthcheck(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"healthy": true}, nil
}
