package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusCollectorImplementsInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ Collector = NewPrometheusCollector(reg)
}

func TestPrometheusServerImplementsInterface(t *testing.T) {
	var _ Server = NewPrometheusServer(":0", "/metrics")
}

func TestPrometheusCollectorMethods(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	// All methods should execute without panic
	c.MessageParsed()
	c.ParseFailed("malformed")
	c.ParseFailed("encoding")
	c.TrailerComputed("Reviewed-by")
	c.TrailerSkipped("Reviewed-by", "already_present")
	c.TrailerSkipped("Tested-by", "already_sent")
	c.ReplyComposed()
	c.ComposeFailed()
	c.MessageSigned()
	c.DeliveryCompleted("smtp", "success")
	c.DeliveryCompleted("smtp", "failure")
	c.DeliveryCompleted("sendmail", "success")
	c.DeliveryDuration("smtp", 0.3)

	// Gather metrics to verify they were recorded
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	metricNames := make(map[string]bool)
	for _, mf := range mfs {
		metricNames[mf.GetName()] = true
	}

	expectedMetrics := []string{
		"ackmail_messages_parsed_total",
		"ackmail_parse_failures_total",
		"ackmail_trailers_computed_total",
		"ackmail_trailers_skipped_total",
		"ackmail_replies_composed_total",
		"ackmail_compose_failures_total",
		"ackmail_messages_signed_total",
		"ackmail_deliveries_total",
		"ackmail_delivery_duration_seconds",
	}

	for _, name := range expectedMetrics {
		if !metricNames[name] {
			t.Errorf("expected metric %q not found", name)
		}
	}
}

func TestPrometheusCollectorTrailerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.TrailerComputed("Reviewed-by")
	c.TrailerComputed("Reviewed-by")
	c.TrailerComputed("Acked-by")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() != "ackmail_trailers_computed_total" {
			continue
		}
		// One series per kind.
		if len(mf.GetMetric()) != 2 {
			t.Errorf("trailers_computed_total has %d metric entries, want 2", len(mf.GetMetric()))
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "kind" && l.GetValue() == "Reviewed-by" {
					if v := m.GetCounter().GetValue(); v != 2 {
						t.Errorf("Reviewed-by counter = %v, want 2", v)
					}
				}
			}
		}
	}
}

func TestPrometheusCollectorDeliveryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.DeliveryCompleted("smtp", "success")
	c.DeliveryCompleted("smtp", "failure")
	c.DeliveryCompleted("sendmail", "success")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "ackmail_deliveries_total" {
			// 3 distinct label combinations
			if len(mf.GetMetric()) != 3 {
				t.Errorf("deliveries_total has %d metric entries, want 3", len(mf.GetMetric()))
			}
		}
	}
}

func TestPrometheusServerStartStop(t *testing.T) {
	server := NewPrometheusServer("127.0.0.1:0", "/metrics")

	ctx, cancel := context.WithCancel(context.Background())

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	// Give server time to start
	time.Sleep(50 * time.Millisecond)

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	cancel()

	// Check that Start returned without error
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Start() did not return after shutdown")
	}
}
