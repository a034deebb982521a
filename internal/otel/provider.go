// internal/otel/provider.go

package otel

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	logapi "go.opentelemetry.io/otel/log"
)

// Config controls the telemetry pipeline.
type Config struct {
	// Enabled turns the pipeline on. When false, Provider hands out
	// noop implementations and every lifecycle call is a cheap no-op.
	Enabled bool

	// ServiceName is stamped on the OTel resource.
	ServiceName string

	// BatchTimeout is how long the batch processors buffer before
	// exporting. Zero means the SDK default.
	BatchTimeout time.Duration

	// LogWriter, when set, receives pretty-printed log records. Useful
	// for inspecting exactly what the harness emits during a run.
	LogWriter io.Writer

	// Endpoint is the OTLP/HTTP collector endpoint (host:port). Empty
	// disables the OTLP exporter.
	Endpoint string

	// Insecure disables TLS on the OTLP exporter.
	Insecure bool
}

// Provider owns the configured logger provider and exposes the pieces
// the rest of the harness needs.
type Provider struct {
	cfg Config
	lp  *sdklog.LoggerProvider
}

// New builds a Provider from cfg. A disabled config returns a Provider
// whose accessors hand out noops.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{cfg: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("building otel resource: %w", err)
	}

	var processors []sdklog.LoggerProviderOption
	processors = append(processors, sdklog.WithResource(res))

	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(
			stdoutlog.WithWriter(cfg.LogWriter),
			stdoutlog.WithPrettyPrint(),
		)
		if err != nil {
			return nil, fmt.Errorf("building stdout log exporter: %w", err)
		}
		processors = append(processors, sdklog.WithProcessor(p.batchProcessor(exp)))
	}

	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("building otlp log exporter: %w", err)
		}
		processors = append(processors, sdklog.WithProcessor(p.batchProcessor(exp)))
	}

	p.lp = sdklog.NewLoggerProvider(processors...)
	return p, nil
}

func (p *Provider) batchProcessor(exp sdklog.Exporter) *sdklog.BatchProcessor {
	if p.cfg.BatchTimeout > 0 {
		return sdklog.NewBatchProcessor(exp, sdklog.WithExportInterval(p.cfg.BatchTimeout))
	}
	return sdklog.NewBatchProcessor(exp)
}

// Enabled reports whether the pipeline is live.
func (p *Provider) Enabled() bool {
	return p.cfg.Enabled && p.lp != nil
}

// LoggerProvider returns the log provider, or a noop when disabled.
func (p *Provider) LoggerProvider() logapi.LoggerProvider {
	if !p.Enabled() {
		return noop.NewLoggerProvider()
	}
	return p.lp
}

// SDK returns the concrete SDK provider for callers that bridge it into
// slog, or nil when the pipeline is disabled.
func (p *Provider) SDK() *sdklog.LoggerProvider {
	if !p.Enabled() {
		return nil
	}
	return p.lp
}

// Meter returns a named meter from the global meter provider.
func (p *Provider) Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Flush forces pending records out through the exporters. Use it
// before shutdown so buffered records from the final scenario run are
// not lost.
func (p *Provider) Flush(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.lp.ForceFlush(ctx)
}

// Shutdown flushes and tears the pipeline down.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.lp.Shutdown(ctx)
}
