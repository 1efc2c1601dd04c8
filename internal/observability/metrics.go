package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/shiftsense/client-core/internal/config"
)

const meterName = "shiftsense-client-core"

type runtimeMetrics struct {
	sessionTransitions  metric.Int64Counter
	locationSubmissions metric.Int64Counter
	channelReconnects   metric.Int64Counter
	verificationChecks  metric.Int64Counter
}

var (
	metricsOnce sync.Once
	metrics     *runtimeMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
}

func runtimeCounters() *runtimeMetrics {
	metricsOnce.Do(func() {
		meter := otel.Meter(meterName)
		m := &runtimeMetrics{}
		var err error
		if m.sessionTransitions, err = meter.Int64Counter("session.transitions"); err != nil {
			return
		}
		if m.locationSubmissions, err = meter.Int64Counter("location.submissions"); err != nil {
			return
		}
		if m.channelReconnects, err = meter.Int64Counter("channel.reconnects"); err != nil {
			return
		}
		if m.verificationChecks, err = meter.Int64Counter("verification.checks"); err != nil {
			return
		}
		metrics = m
	})
	return metrics
}

func RecordSessionTransition(ctx context.Context, to string) {
	if m := runtimeCounters(); m != nil {
		m.sessionTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("to", to)))
	}
}

func RecordLocationSubmission(ctx context.Context, outcome, status string) {
	if m := runtimeCounters(); m != nil {
		m.locationSubmissions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("status", status),
		))
	}
}

func RecordChannelReconnect(ctx context.Context, cause string) {
	if m := runtimeCounters(); m != nil {
		m.channelReconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
	}
}

func RecordVerificationCheck(ctx context.Context, source, outcome string) {
	if m := runtimeCounters(); m != nil {
		m.verificationChecks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("outcome", outcome),
		))
	}
}
