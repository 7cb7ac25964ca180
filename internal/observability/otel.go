package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
)

const serviceVersion = "1.0.0"

// SetupOpenTelemetry installs a meter provider backed by the Prometheus
// exporter, so otel instruments land in the same /metrics registry.
func SetupOpenTelemetry(serviceName string, logger *zap.Logger) (func(), error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	metricExporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	metricProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metricExporter),
	)

	otel.SetMeterProvider(metricProvider)

	logger.Info("OpenTelemetry initialized",
		zap.String("service", serviceName))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := metricProvider.Shutdown(ctx); err != nil {
			logger.Error("error shutting down OpenTelemetry", zap.Error(err))
		}
	}, nil
}
