package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Not parallel: InitProvider registers the global providers and the
// Prometheus bridge on the default registry.
func TestInitProvider_MetricsReachDefaultRegistry(t *testing.T) {
	ctx := context.Background()

	shutdown, err := InitProvider(ctx, ProviderConfig{
		ServiceName:    "parley",
		ServiceVersion: "test",
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	// Instruments built from the global provider after InitProvider must
	// land in the default Prometheus registry, the one /metrics serves.
	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.STTDuration.Record(ctx, 0.2,
		metric.WithAttributes(attribute.String("engine", "SENDER")))

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "parley_stt_duration") {
			continue
		}
		metrics := mf.GetMetric()
		if len(metrics) == 0 {
			t.Fatalf("family %q has no metrics", mf.GetName())
		}
		hist := metrics[0].GetHistogram()
		if hist == nil {
			t.Fatalf("family %q is not a histogram", mf.GetName())
		}
		if got := hist.GetSampleCount(); got != 1 {
			t.Fatalf("sample count: want 1, got %d", got)
		}
		return
	}
	t.Fatal("parley_stt_duration family not gatherable from the default registry")
}
