package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const exporterDialTimeout = 10 * time.Second

func (m *Manager) initTracing(ctx context.Context, resource *sdkresource.Resource) error {
	exporter, err := m.traceExporter(ctx)
	if err != nil {
		return err
	}
	if exporter == nil {
		return nil
	}

	m.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(m.cfg.TraceSampling))),
	)
	return nil
}

func (m *Manager) traceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch m.cfg.TraceExporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		if m.cfg.TraceEndpoint == "" {
			return nil, fmt.Errorf("OBS_OTLP_ENDPOINT must be set for otlp exporter")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(m.cfg.TraceEndpoint)}
		if m.cfg.TraceInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		dialCtx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
		defer cancel()
		return otlptracegrpc.New(dialCtx, opts...)
	case "none":
		return nil, nil
	default:
		m.logger.Warn("unsupported trace exporter; tracing disabled", zap.String("exporter", m.cfg.TraceExporter))
		return nil, nil
	}
}
