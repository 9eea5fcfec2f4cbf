package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	webhookEvents metric.Int64Counter
	syncJobs      metric.Int64Counter
	sweepRuns     metric.Int64Counter
	driftDetected metric.Int64Counter
	limitDenials  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "vocalis"
	}
	meter := provider.Meter(name)

	webhookEvents, err := meter.Int64Counter("vocalis_webhook_events_total")
	if err != nil {
		return nil, err
	}
	syncJobs, err := meter.Int64Counter("vocalis_sync_jobs_total")
	if err != nil {
		return nil, err
	}
	sweepRuns, err := meter.Int64Counter("vocalis_reconcile_sweeps_total")
	if err != nil {
		return nil, err
	}
	driftDetected, err := meter.Int64Counter("vocalis_drift_detected_total")
	if err != nil {
		return nil, err
	}
	limitDenials, err := meter.Int64Counter("vocalis_limit_denials_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		webhookEvents: webhookEvents,
		syncJobs:      syncJobs,
		sweepRuns:     sweepRuns,
		driftDetected: driftDetected,
		limitDenials:  limitDenials,
	}, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}

// RecordWebhookEvent counts an inbound webhook and its gate outcome.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

// RecordSyncJob counts a processed sync job by action and outcome.
func (m *Metrics) RecordSyncJob(ctx context.Context, action, outcome string) {
	if m == nil {
		return
	}
	m.syncJobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

// RecordSweep counts a reconciliation sweep run.
func (m *Metrics) RecordSweep(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.sweepRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// RecordDrift counts a locally-active resource found missing upstream.
func (m *Metrics) RecordDrift(ctx context.Context, resourceType string) {
	if m == nil {
		return
	}
	m.driftDetected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource_type", resourceType),
	))
}

// RecordLimitDenial counts a canPerform refusal by limit kind.
func (m *Metrics) RecordLimitDenial(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.limitDenials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}
