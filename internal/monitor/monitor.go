// internal/monitor/monitor.go

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazmap/simkit/internal/dispatcher"
	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/internal/influx"
	"github.com/hazmap/simkit/internal/teststate"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	Surface    *teststate.Surface
	Registry   *fault.Registry
	Dispatcher *dispatcher.Dispatcher
	Influx     *influx.Manager
	Logger     *slog.Logger
}

// Status is a point-in-time snapshot of the harness.
type Status struct {
	Time        time.Time          `json:"time"`
	MapReady    bool               `json:"mapReady"`
	SourceCount int                `json:"sourceCount"`
	LayerCount  int                `json:"layerCount"`
	Faults      []fault.ArmedFault `json:"faults"`
	Commands    []string           `json:"commands"`
}

// Service reports harness status and optionally pushes it to InfluxDB
// on an interval.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the periodic reporter is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot collects the current status.
func (s *Service) Snapshot() Status {
	st := Status{Time: time.Now()}
	if s.deps.Surface != nil {
		st.MapReady = s.deps.Surface.Ready()
		st.SourceCount = len(s.deps.Surface.Sources())
		st.LayerCount = len(s.deps.Surface.Layers())
	}
	if s.deps.Registry != nil {
		st.Faults = s.deps.Registry.Active()
	}
	if s.deps.Dispatcher != nil {
		st.Commands = s.deps.Dispatcher.Commands()
	}
	return st
}

// SnapshotJSON returns the status as indented JSON.
func (s *Service) SnapshotJSON() (string, error) {
	st := s.Snapshot()
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling status: %w", err)
	}
	return string(b), nil
}

// Start launches the periodic reporter. Each tick logs a summary line
// and, when an Influx manager is wired, writes a status point.
func (s *Service) Start(interval time.Duration) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.run(interval)
}

// Stop halts the periodic reporter.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopChan)
}

func (s *Service) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.report()
		}
	}
}

func (s *Service) report() {
	st := s.Snapshot()
	s.deps.Logger.Debug("harness status",
		"mapReady", st.MapReady,
		"sources", st.SourceCount,
		"layers", st.LayerCount,
		"armedFaults", len(st.Faults),
	)

	if s.deps.Influx == nil {
		return
	}
	point := statusPoint(st)
	if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketHarnessRuns, point); err != nil {
		s.deps.Logger.Warn("writing status point", "error", err)
	}
}

func statusPoint(st Status) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement("harness_status").
		AddField("map_ready", st.MapReady).
		AddField("sources", st.SourceCount).
		AddField("layers", st.LayerCount).
		AddField("armed_faults", len(st.Faults)).
		SetTime(st.Time)
}
