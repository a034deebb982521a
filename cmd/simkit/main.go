// cmd/simkit/main.go

// Command simkit runs the HazMap test harness: it hosts a map provider
// (simulation by default, engine bridge when configured), the fault
// registry, the fixture store and the harness control server that
// external automation drives over HTTP and WebSocket.
//
// Usage:
//
//	simkit [-config DIR] serve
//	simkit [-config DIR] generate -name NAME -seed N [-waypoints N] [-routes N] [-buildings N] [-hazards N] [-origin "lng,lat"]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/hazmap/simkit/internal/api"
	"github.com/hazmap/simkit/internal/config"
	"github.com/hazmap/simkit/internal/database"
	"github.com/hazmap/simkit/internal/dispatcher"
	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/internal/fixture"
	"github.com/hazmap/simkit/internal/handlers"
	"github.com/hazmap/simkit/internal/harness"
	"github.com/hazmap/simkit/internal/influx"
	"github.com/hazmap/simkit/internal/logging"
	"github.com/hazmap/simkit/internal/monitor"
	intOtel "github.com/hazmap/simkit/internal/otel"
	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/internal/provider/factory"
	"github.com/hazmap/simkit/internal/teststate"
	"github.com/hazmap/simkit/pkg/core"
)

// Version can be overridden at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const binaryName = "simkit"

func main() {
	configDir := flag.String("config", ".", "directory containing simkit.cfg.json")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", binaryName, Version, BuildDate)
		return
	}

	// Load seeds defaults before reading, so a missing config file still
	// leaves a usable configuration behind.
	if err := config.Load(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "no config file loaded, using defaults: %v\n", err)
	}

	cmd := "serve"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "generate":
		err = runGenerate(flag.Args()[1:])
	default:
		err = fmt.Errorf("unknown subcommand %q (want serve or generate)", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	sessionStart := time.Now()

	logsDir := config.GetString("logsDir")
	if _, statErr := os.Stat(logsDir); os.IsNotExist(statErr) {
		os.Mkdir(logsDir, 0755)
	}
	logPath := logging.LogFilePath(logsDir, binaryName, sessionStart)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	// OTel pipeline first so the slog bridge can attach to it.
	otelCfg := config.GetOTelConfig()
	otelProvider, err := intOtel.New(context.Background(), intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing otel provider: %w", err)
	}

	var extraHandlers []slog.Handler
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		gelfHandler, gerr := logging.NewGELFHandler(graylogCfg.Address, config.GetString("logLevel"))
		if gerr != nil {
			fmt.Fprintf(os.Stderr, "gelf handler disabled: %v\n", gerr)
		} else {
			extraHandlers = append(extraHandlers, gelfHandler)
		}
	}

	slogManager := logging.NewSlogManager()
	var logProvider *sdklog.LoggerProvider
	if otelProvider.Enabled() {
		logProvider = otelProvider.SDK()
	}
	slogManager.Setup(logFile, config.GetString("logLevel"), logProvider, extraHandlers...)

	registry := fault.Default
	registry.SetLogger(slogManager.Logger())

	// Stamp every record with live fault context so log lines from a
	// faulted run are self-describing.
	logger := slog.New(logging.NewContextHandler(
		slogManager.Logger().Handler(),
		func() []slog.Attr {
			return []slog.Attr{slog.Int("armedFaults", len(registry.Active()))}
		},
	))
	slog.SetDefault(logger)
	logger.Info("starting harness", "version", Version, "logFile", logPath)

	zlog := zerolog.New(logFile).With().Timestamp().Logger()

	providerCfg := config.GetProviderConfig()
	prov, err := factory.New(providerCfg)
	if err != nil {
		return fmt.Errorf("building %s provider: %w", providerCfg.Type, err)
	}
	defer prov.Close()
	logger.Info("map provider ready", "type", providerCfg.Type)

	surface := teststate.Default

	fixtureCfg := config.GetFixtureConfig()
	if _, statErr := os.Stat(fixtureCfg.Dir); os.IsNotExist(statErr) {
		os.MkdirAll(fixtureCfg.Dir, 0755)
	}
	store := fixture.NewStore(fixtureCfg)

	var catalog *fixture.Catalog
	dbManager := database.NewManager(zlog)
	if err := dbManager.Connect(fixtureCfg.CatalogType, fixtureCfg.SqlitePath); err != nil {
		logger.Warn("fixture catalog disabled, database unavailable", "error", err)
	} else {
		defer dbManager.Close()
		catalog, err = fixture.NewCatalog(dbManager.DB)
		if err != nil {
			logger.Warn("fixture catalog disabled, migration failed", "error", err)
			catalog = nil
		}
	}

	apiClient := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))

	disp, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	var influxManager *influx.Manager
	if config.GetBool("influx.enabled") {
		influxManager = influx.NewManager(zlog, logging.LogFilePath(logsDir, binaryName+"_influx_backup", sessionStart)+".gz")
		if err := influxManager.Connect(); err != nil {
			logger.Warn("influx reporting disabled", "error", err)
			influxManager = nil
		}
	}
	if influxManager != nil {
		im := influxManager
		registry.OnChange(func(cat fault.Category, d fault.Descriptor, armed bool) {
			action, kind := "cleared", ""
			if armed {
				action, kind = "armed", d.Kind()
			}
			if err := im.WritePoint(context.Background(), influx.BucketFaultActivity, influx.FaultPoint(string(cat), kind, action)); err != nil {
				logger.Warn("recording fault point", "error", err)
			}
		})
		registry.OnHit(func(cat fault.Category, kind string) {
			if err := im.WritePoint(context.Background(), influx.BucketFaultActivity, influx.FaultPoint(string(cat), kind, "hit")); err != nil {
				logger.Warn("recording fault point", "error", err)
			}
		})
	}

	handlers.NewService(handlers.Dependencies{
		Provider: prov,
		Surface:  surface,
		Registry: registry,
		Store:    store,
		Catalog:  catalog,
		API:      apiClient,
		Influx:   influxManager,
		Logger:   logger,
	}).RegisterAll(disp)

	mon := monitor.NewService(monitor.Dependencies{
		Surface:    surface,
		Registry:   registry,
		Dispatcher: disp,
		Influx:     influxManager,
		Logger:     logger,
	})
	mon.Start(30 * time.Second)
	defer mon.Stop()

	harnessCfg := config.GetHarnessConfig()
	server := harness.New(harnessCfg.Addr, disp, mon, zlog)
	server.ObserveFaults(registry)
	if sink, ok := prov.(provider.EventSink); ok {
		sink.Subscribe(func(ev core.MapEvent) {
			server.PublishMapEvent(ev)
			if influxManager != nil {
				if err := influxManager.WritePoint(context.Background(), influx.BucketMapEvents, influx.MapEventPoint(providerCfg.Type, ev.Name)); err != nil {
					logger.Warn("recording map event point", "error", err)
				}
			}
		})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("harness server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("harness shutdown", "error", err)
	}
	if err := otelProvider.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", "error", err)
	}
	return nil
}
