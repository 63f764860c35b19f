package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, serviceName, serviceVersion string, cfg Config) (*sdkmetric.MeterProvider, error) {
	cfg.ApplyDefaults()

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(serviceName, serviceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)

	otel.SetMeterProvider(mp)
	return mp, nil
}

// Metrics records engine execution metrics.
type Metrics struct {
	executionTotal metric.Int64Counter
	taskTotal      metric.Int64Counter
	taskDuration   metric.Float64Histogram
}

// NewMetrics creates engine metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	executionTotal, err := meter.Int64Counter("execution.total",
		metric.WithDescription("Total number of execution requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating execution.total counter: %w", err)
	}

	taskTotal, err := meter.Int64Counter("task.total",
		metric.WithDescription("Total number of tasks by tool and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task.total counter: %w", err)
	}

	taskDuration, err := meter.Float64Histogram("task.duration",
		metric.WithDescription("Duration of task executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task.duration histogram: %w", err)
	}

	return &Metrics{
		executionTotal: executionTotal,
		taskTotal:      taskTotal,
		taskDuration:   taskDuration,
	}, nil
}

// RecordExecution records a completed execution request by status.
func (m *Metrics) RecordExecution(ctx context.Context, status string) {
	m.executionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

// RecordTask records a terminal task outcome.
func (m *Metrics) RecordTask(ctx context.Context, tool, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	m.taskTotal.Add(ctx, 1, attrs)
	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("tool", tool),
	))
}
