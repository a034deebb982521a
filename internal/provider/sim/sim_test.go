// internal/provider/sim/sim_test.go
package sim

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/pkg/core"
)

func newTestProvider(t *testing.T) (*Provider, *ManualScheduler, *fault.Registry) {
	t.Helper()
	sched := NewManualScheduler()
	reg := fault.NewRegistry()
	p := New(WithScheduler(sched), WithRegistry(reg))
	t.Cleanup(func() { p.Close() })
	return p, sched, reg
}

func mustCreate(t *testing.T, p *Provider) provider.Handle {
	t.Helper()
	h, err := p.Create("map-root", core.MapOptions{Style: "hazmap://styles/base", Zoom: 9})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return h
}

func TestStyleNotLoadedSynchronously(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)

	if h.StyleLoaded() {
		t.Fatal("style must not be loaded synchronously after Create")
	}
	if n := sched.Drain(); n == 0 {
		t.Fatal("expected a scheduled style-load task")
	}
	if !h.StyleLoaded() {
		t.Fatal("style should be loaded after pumping the scheduler")
	}
}

func TestLoadListenerFiresDeferred(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)

	fired := 0
	h.On(core.EventLoad, func(core.MapEvent) { fired++ })
	if fired != 0 {
		t.Fatal("load listener must not fire synchronously")
	}
	sched.Drain()
	if fired != 1 {
		t.Fatalf("expected load listener to fire once, fired %d times", fired)
	}
}

func TestLateLoadListenerStillFiresViaScheduler(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	fired := false
	h.On(core.EventStyleLoad, func(core.MapEvent) { fired = true })
	if fired {
		t.Fatal("late load listener must not fire inline")
	}
	sched.Drain()
	if !fired {
		t.Fatal("late load listener should fire once pumped")
	}
}

func TestDuplicateSourceKeepsFirstInsertion(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	first := core.SourceDefinition{Type: "geojson", Data: json.RawMessage(`{"kind":"first"}`)}
	second := core.SourceDefinition{Type: "geojson", Data: json.RawMessage(`{"kind":"second"}`)}

	if err := h.AddSource("flood-zones", first); err != nil {
		t.Fatalf("first AddSource failed: %v", err)
	}
	err := h.AddSource("flood-zones", second)
	var dup *provider.DuplicateSourceError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateSourceError, got %v", err)
	}
	if dup.ID != "flood-zones" {
		t.Errorf("error should carry the offending id, got %q", dup.ID)
	}

	snap := h.GetStyle()
	if string(snap.Sources["flood-zones"].Data) != `{"kind":"first"}` {
		t.Error("first-inserted source must remain unchanged after a duplicate failure")
	}
}

func TestAddLayerMissingSourceDoesNotMutate(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	err := h.AddLayer(core.LayerDefinition{ID: "flood-fill", Type: "fill", Source: "flood-zones"})
	var missing *provider.MissingSourceError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSourceError, got %v", err)
	}
	if missing.LayerID != "flood-fill" || missing.SourceID != "flood-zones" {
		t.Errorf("error should carry layer and source ids, got %+v", missing)
	}
	if len(h.GetStyle().Layers) != 0 {
		t.Error("failed AddLayer must not mutate the layer sequence")
	}

	// Retry succeeds once the source exists.
	if err := h.AddSource("flood-zones", core.SourceDefinition{Type: "geojson"}); err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	if err := h.AddLayer(core.LayerDefinition{ID: "flood-fill", Type: "fill", Source: "flood-zones"}); err != nil {
		t.Fatalf("retry after adding the source should succeed: %v", err)
	}
	if _, ok := h.GetLayer("flood-fill"); !ok {
		t.Error("layer should exist after successful retry")
	}
}

func TestDuplicateLayerRejected(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	if err := h.AddLayer(core.LayerDefinition{ID: "hazard-outline", Type: "line"}); err != nil {
		t.Fatalf("AddLayer failed: %v", err)
	}
	err := h.AddLayer(core.LayerDefinition{ID: "hazard-outline", Type: "fill"})
	var dup *provider.DuplicateLayerError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateLayerError, got %v", err)
	}
	if dup.ID != "hazard-outline" {
		t.Errorf("error should carry the offending id, got %q", dup.ID)
	}
}

func TestRemoveUnknownTargetsFail(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	var notFound *provider.NotFoundError
	if err := h.RemoveLayer("ghost"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError for layer, got %v", err)
	}
	if notFound.Kind != "layer" {
		t.Errorf("expected kind layer, got %q", notFound.Kind)
	}
	if err := h.RemoveSource("ghost"); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError for source, got %v", err)
	}
	if notFound.Kind != "source" {
		t.Errorf("expected kind source, got %q", notFound.Kind)
	}
}

func TestStyleLoadFiresBeforeQueuedAdditions(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)

	var order []string
	h.On(core.EventStyleLoad, func(core.MapEvent) { order = append(order, "style.load") })
	h.On(core.EventSourceAdded, func(ev core.MapEvent) { order = append(order, "source:"+ev.SourceID) })
	h.On(core.EventLayerAdded, func(ev core.MapEvent) { order = append(order, "layer:"+ev.LayerID) })

	if err := h.AddSource("sensors", core.SourceDefinition{Type: "geojson"}); err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	if err := h.AddLayer(core.LayerDefinition{ID: "sensor-dots", Type: "circle", Source: "sensors"}); err != nil {
		t.Fatalf("AddLayer failed: %v", err)
	}
	if err := h.AddLayer(core.LayerDefinition{ID: "sensor-labels", Type: "symbol", Source: "sensors"}); err != nil {
		t.Fatalf("AddLayer failed: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("no events should fire before style load, got %v", order)
	}

	sched.Drain()

	want := []string{"style.load", "source:sensors", "layer:sensor-dots", "layer:sensor-labels"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestListenersFireInRegistrationOrder(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	var order []int
	h.On(core.EventLayerAdded, func(core.MapEvent) { order = append(order, 1) })
	h.On(core.EventLayerAdded, func(core.MapEvent) { order = append(order, 2) })
	h.On(core.EventLayerAdded, func(core.MapEvent) { order = append(order, 3) })

	if err := h.AddLayer(core.LayerDefinition{ID: "l1", Type: "line"}); err != nil {
		t.Fatalf("AddLayer failed: %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected registration order 1,2,3, got %v", order)
	}
}

func TestMidFireRegistrationDoesNotJoinCurrentDispatch(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	late := 0
	h.On(core.EventLayerAdded, func(core.MapEvent) {
		h.On(core.EventLayerAdded, func(core.MapEvent) { late++ })
	})

	if err := h.AddLayer(core.LayerDefinition{ID: "l1", Type: "line"}); err != nil {
		t.Fatalf("AddLayer failed: %v", err)
	}
	if late != 0 {
		t.Fatal("listener registered mid-fire must not see the current event")
	}
	if err := h.AddLayer(core.LayerDefinition{ID: "l2", Type: "line"}); err != nil {
		t.Fatalf("AddLayer failed: %v", err)
	}
	if late != 1 {
		t.Fatalf("listener registered mid-fire should see the next event once, saw %d", late)
	}
}

func TestGetStyleReturnsDeepCopy(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	if err := h.AddSource("sensors", core.SourceDefinition{Type: "geojson", Data: json.RawMessage(`{"a":1}`)}); err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	if err := h.AddLayer(core.LayerDefinition{
		ID: "dots", Type: "circle", Source: "sensors",
		Paint: map[string]any{"circle-radius": 4.0},
	}); err != nil {
		t.Fatalf("AddLayer failed: %v", err)
	}

	snap := h.GetStyle()
	snap.Layers[0].Paint["circle-radius"] = 99.0
	snap.Layers[0].ID = "mutated"
	snap.Sources["sensors"].Data[2] = 'X'
	delete(snap.Sources, "sensors")

	fresh := h.GetStyle()
	if _, ok := fresh.Sources["sensors"]; !ok {
		t.Fatal("mutating a snapshot must not remove handle sources")
	}
	if string(fresh.Sources["sensors"].Data) != `{"a":1}` {
		t.Error("mutating snapshot bytes must not corrupt handle data")
	}
	if fresh.Layers[0].ID != "dots" || fresh.Layers[0].Paint["circle-radius"] != 4.0 {
		t.Error("mutating a snapshot layer must not corrupt the handle")
	}
}

func TestRemovalAndAdditionOrderedByCall(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	var order []string
	h.On(core.EventLayerAdded, func(ev core.MapEvent) { order = append(order, "add:"+ev.LayerID) })
	h.On(core.EventLayerRemoved, func(ev core.MapEvent) { order = append(order, "rm:"+ev.LayerID) })

	if err := h.AddLayer(core.LayerDefinition{ID: "l1", Type: "line"}); err != nil {
		t.Fatal(err)
	}
	if err := h.RemoveLayer("l1"); err != nil {
		t.Fatal(err)
	}
	if err := h.AddLayer(core.LayerDefinition{ID: "l1", Type: "fill"}); err != nil {
		t.Fatalf("re-adding a removed id should succeed: %v", err)
	}

	want := []string{"add:l1", "rm:l1", "add:l1"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestCreateFaultInjection(t *testing.T) {
	p, _, reg := newTestProvider(t)
	reg.Set(fault.EngineFault{FailureKind: fault.EngineCreateFailure})

	_, err := p.Create("map-root", core.MapOptions{})
	var engineErr *provider.EngineError
	if !errors.As(err, &engineErr) {
		t.Fatalf("expected EngineError, got %v", err)
	}

	reg.Clear(fault.CategoryMapEngine)
	if _, err := p.Create("map-root", core.MapOptions{}); err != nil {
		t.Fatalf("Create should succeed after clearing the fault: %v", err)
	}
}

func TestStyleLoadFailureFiresErrorEvent(t *testing.T) {
	p, sched, reg := newTestProvider(t)
	h := mustCreate(t, p)
	reg.Set(fault.EngineFault{FailureKind: fault.EngineStyleLoadFailure})

	var loadFired, errFired bool
	h.On(core.EventStyleLoad, func(core.MapEvent) { loadFired = true })
	h.On(core.EventError, func(ev core.MapEvent) { errFired = ev.Message != "" })

	sched.Drain()

	if loadFired {
		t.Error("style.load must not fire when the style-load fault is armed")
	}
	if !errFired {
		t.Error("error event should fire with a message")
	}
	if h.StyleLoaded() {
		t.Error("handle must not report ready after a failed style load")
	}
}

func TestForcedDuplicateFaults(t *testing.T) {
	p, sched, reg := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	reg.Set(fault.EngineFault{FailureKind: fault.EngineDuplicateLayerID})
	var dupLayer *provider.DuplicateLayerError
	if err := h.AddLayer(core.LayerDefinition{ID: "unique", Type: "line"}); !errors.As(err, &dupLayer) {
		t.Fatalf("armed duplicate-layer fault should force DuplicateLayerError, got %v", err)
	}

	reg.Set(fault.EngineFault{FailureKind: fault.EngineDuplicateSourceID})
	var dupSource *provider.DuplicateSourceError
	if err := h.AddSource("unique", core.SourceDefinition{Type: "geojson"}); !errors.As(err, &dupSource) {
		t.Fatalf("armed duplicate-source fault should force DuplicateSourceError, got %v", err)
	}

	reg.Reset()
	if err := h.AddLayer(core.LayerDefinition{ID: "unique", Type: "line"}); err != nil {
		t.Fatalf("operation should succeed after reset: %v", err)
	}
}

func TestClosedHandleRejectsMutation(t *testing.T) {
	p, sched, _ := newTestProvider(t)
	h := mustCreate(t, p)
	sched.Drain()

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	var engineErr *provider.EngineError
	if err := h.AddSource("s", core.SourceDefinition{Type: "geojson"}); !errors.As(err, &engineErr) {
		t.Fatalf("expected EngineError on closed handle, got %v", err)
	}
}

func TestAsyncSchedulerDeliversLoad(t *testing.T) {
	p := New(WithRegistry(fault.NewRegistry()))
	defer p.Close()

	h, err := p.Create("map-root", core.MapOptions{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	loaded := make(chan struct{})
	h.On(core.EventLoad, func(core.MapEvent) { close(loaded) })
	<-loaded
	if !h.StyleLoaded() {
		t.Error("handle should report ready once load delivered")
	}
}
