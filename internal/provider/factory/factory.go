// internal/provider/factory/factory.go

// Package factory selects the active map provider from configuration.
package factory

import (
	"fmt"

	"github.com/hazmap/simkit/internal/config"
	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/internal/provider/engine"
	"github.com/hazmap/simkit/internal/provider/sim"
)

// New creates a map provider based on configuration. Sim options apply
// only when the sim provider is selected.
func New(cfg config.ProviderConfig, simOpts ...sim.Option) (provider.Provider, error) {
	switch cfg.Type {
	case "sim", "":
		return sim.New(simOpts...), nil
	case "engine":
		if cfg.Engine.URL == "" {
			return nil, fmt.Errorf("engine provider requires provider.engine.url")
		}
		return engine.New(engine.Config{URL: cfg.Engine.URL, Secret: cfg.Engine.Secret}), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
