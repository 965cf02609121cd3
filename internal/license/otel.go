package license

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// managerMetrics holds the OpenTelemetry instruments for license operations.
// They record against the global meter provider; exporter wiring belongs to
// the host application.
type managerMetrics struct {
	activations        metric.Int64Counter
	gateDenials        metric.Int64Counter
	activationDuration metric.Float64Histogram
}

func newManagerMetrics() *managerMetrics {
	meter := otel.Meter("convertcli/license")

	activations, err := meter.Int64Counter("license.activations",
		metric.WithDescription("License activation attempts by outcome"),
	)
	if err != nil {
		activations = nil
	}
	gateDenials, err := meter.Int64Counter("license.gate_denials",
		metric.WithDescription("Feature gate denials by feature"),
	)
	if err != nil {
		gateDenials = nil
	}
	duration, err := meter.Float64Histogram("license.activation_duration",
		metric.WithDescription("Activation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		duration = nil
	}

	return &managerMetrics{
		activations:        activations,
		gateDenials:        gateDenials,
		activationDuration: duration,
	}
}

func (m *managerMetrics) recordActivation(ctx context.Context, outcome string) {
	if m.activations == nil {
		return
	}
	m.activations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *managerMetrics) recordGateDenial(ctx context.Context, feature string) {
	if m.gateDenials == nil {
		return
	}
	m.gateDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("feature", feature)))
}

func (m *managerMetrics) recordActivationDuration(ctx context.Context, d time.Duration) {
	if m.activationDuration == nil {
		return
	}
	m.activationDuration.Record(ctx, d.Seconds())
}
