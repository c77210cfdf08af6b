package infra

import (
	"context"

	"inference-gateway/inference/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OtelStats publica eventos como métricas OpenTelemetry:
//
//	gateway.events.total       contador por op/outcome
//	gateway.upstream.duration  histograma (ms) das chamadas ao upstream
type OtelStats struct {
	events   metric.Int64Counter
	duration metric.Float64Histogram
}

func NewOtelStats(meter metric.Meter) (*OtelStats, error) {
	events, err := meter.Int64Counter(
		"gateway.events.total",
		metric.WithDescription("Gateway events by operation and outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"gateway.upstream.duration",
		metric.WithDescription("Upstream call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &OtelStats{events: events, duration: duration}, nil
}

func (s *OtelStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	attrs := []attribute.KeyValue{
		attribute.String("op", ev.Op),
		attribute.String("outcome", ev.Outcome),
	}
	if ev.StatusCode != 0 {
		attrs = append(attrs, attribute.Int("http.status_code", ev.StatusCode))
	}
	opt := metric.WithAttributes(attrs...)

	s.events.Add(ctx, 1, opt)
	if ev.Op == domain.OpExtract || ev.Op == domain.OpClassify {
		s.duration.Record(ctx, float64(ev.Duration.Milliseconds()), opt)
	}
	return nil
}
