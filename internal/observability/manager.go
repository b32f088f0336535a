package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/brewline/internal/config"
)

const (
	serviceNamespace       = "brewline"
	defaultServiceVersion  = "0.1.0"
	defaultShutdownTimeout = 10 * time.Second
)

// Manager owns the tracer and meter providers for the process.
type Manager struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metricsHandler http.Handler
	cfg            config.Observability
	logger         *zap.Logger
}

// Module exposes the observability manager to Fx.
var Module = fx.Provide(NewManager)

// NewManager builds the configured providers and installs them globally on start.
func NewManager(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	mgr, err := newManager(context.Background(), cfg.Observability, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			mgr.install()
			return nil
		},
		OnStop: mgr.Shutdown,
	})
	return mgr, nil
}

func newManager(ctx context.Context, cfg config.Observability, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	resource, err := sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceNamespace(serviceNamespace),
			semconv.ServiceVersion(defaultServiceVersion),
			attribute.String("service.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	mgr := &Manager{cfg: cfg, logger: logger}
	if cfg.EnableTracing {
		if err := mgr.initTracing(ctx, resource); err != nil {
			return nil, err
		}
	}
	if cfg.EnableMetrics {
		if err := mgr.initMetrics(resource); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// install publishes the providers through the otel globals. Instruments created earlier
// through otel.Meter and otel.Tracer are delegated to them.
func (m *Manager) install() {
	if tp := m.tracerProvider; tp != nil {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	if mp := m.meterProvider; mp != nil {
		otel.SetMeterProvider(mp)
	}
	m.logger.Info("observability ready",
		zap.Bool("tracing", m.TracingEnabled()),
		zap.Bool("metrics", m.MetricsEnabled()),
	)
}

// Shutdown flushes pending spans and metrics.
func (m *Manager) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	var err error
	if tp := m.tracerProvider; tp != nil {
		err = errors.Join(err, tp.Shutdown(ctx))
	}
	if mp := m.meterProvider; mp != nil {
		err = errors.Join(err, mp.Shutdown(ctx))
	}
	return err
}

// TracingEnabled reports whether tracing is active.
func (m *Manager) TracingEnabled() bool {
	return m != nil && m.tracerProvider != nil
}

// MetricsEnabled reports whether metrics are active.
func (m *Manager) MetricsEnabled() bool {
	return m != nil && m.meterProvider != nil
}

// MetricsHandler exposes the Prometheus scrape handler; nil unless the prometheus
// exporter is selected.
func (m *Manager) MetricsHandler() http.Handler {
	if m == nil {
		return nil
	}
	return m.metricsHandler
}

// PrometheusPath returns the configured metrics endpoint path.
func (m *Manager) PrometheusPath() string {
	return m.cfg.PrometheusPath
}

// ServiceName is the name spans and metrics are reported under.
func (m *Manager) ServiceName() string {
	return m.cfg.ServiceName
}
