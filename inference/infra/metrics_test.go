package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inference-gateway/inference/domain"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMetricsReader_PrometheusServesEvents(t *testing.T) {
	reader, handler, err := NewMetricsReader("prometheus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handler == nil {
		t.Fatalf("expected metrics handler for prometheus")
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	stats, err := NewOtelStats(mp.Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = stats.Record(context.Background(), domain.StatsEvent{
		Op:       domain.OpClassify,
		Outcome:  domain.OutcomeOK,
		Duration: 20 * time.Millisecond,
	})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "gateway_events") {
		t.Fatalf("expected gateway_events in exposition, got %q", w.Body.String())
	}
}

func TestNewMetricsReader_NoneHasNoHandler(t *testing.T) {
	reader, handler, err := NewMetricsReader("none")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reader == nil || handler != nil {
		t.Fatalf("expected reader without handler")
	}
	_ = reader.Shutdown(context.Background())
}

func TestNewMetricsReader_Unknown(t *testing.T) {
	if _, _, err := NewMetricsReader("graphite"); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}
