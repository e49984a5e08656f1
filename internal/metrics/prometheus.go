package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	// Parse metrics
	messagesParsedTotal prometheus.Counter
	parseFailuresTotal  *prometheus.CounterVec

	// Trailer metrics
	trailersComputedTotal *prometheus.CounterVec
	trailersSkippedTotal  *prometheus.CounterVec

	// Compose metrics
	repliesComposedTotal prometheus.Counter
	composeFailuresTotal prometheus.Counter

	// Signing metrics
	messagesSignedTotal prometheus.Counter

	// Delivery metrics
	deliveriesTotal         *prometheus.CounterVec
	deliveryDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		messagesParsedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ackmail_messages_parsed_total",
			Help: "Total number of inbound messages parsed successfully.",
		}),
		parseFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ackmail_parse_failures_total",
			Help: "Total number of inbound messages that failed to parse.",
		}, []string{"reason"}),

		trailersComputedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ackmail_trailers_computed_total",
			Help: "Total number of acknowledgment trailers computed.",
		}, []string{"kind"}),
		trailersSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ackmail_trailers_skipped_total",
			Help: "Total number of acknowledgment trailers skipped.",
		}, []string{"kind", "reason"}),

		repliesComposedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ackmail_replies_composed_total",
			Help: "Total number of reply messages composed.",
		}),
		composeFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ackmail_compose_failures_total",
			Help: "Total number of reply compositions that failed.",
		}),

		messagesSignedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ackmail_messages_signed_total",
			Help: "Total number of replies signed with DKIM.",
		}),

		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ackmail_deliveries_total",
			Help: "Total number of delivery attempts.",
		}, []string{"transport", "result"}),
		deliveryDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ackmail_delivery_duration_seconds",
			Help:    "Time spent delivering a reply.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"transport"}),
	}

	// Register all metrics
	reg.MustRegister(
		c.messagesParsedTotal,
		c.parseFailuresTotal,
		c.trailersComputedTotal,
		c.trailersSkippedTotal,
		c.repliesComposedTotal,
		c.composeFailuresTotal,
		c.messagesSignedTotal,
		c.deliveriesTotal,
		c.deliveryDurationSeconds,
	)

	return c
}

// MessageParsed increments the parsed message counter.
func (c *PrometheusCollector) MessageParsed() {
	c.messagesParsedTotal.Inc()
}

// ParseFailed increments the parse failure counter.
func (c *PrometheusCollector) ParseFailed(reason string) {
	c.parseFailuresTotal.WithLabelValues(reason).Inc()
}

// TrailerComputed increments the computed trailer counter.
func (c *PrometheusCollector) TrailerComputed(kind string) {
	c.trailersComputedTotal.WithLabelValues(kind).Inc()
}

// TrailerSkipped increments the skipped trailer counter.
func (c *PrometheusCollector) TrailerSkipped(kind string, reason string) {
	c.trailersSkippedTotal.WithLabelValues(kind, reason).Inc()
}

// ReplyComposed increments the composed reply counter.
func (c *PrometheusCollector) ReplyComposed() {
	c.repliesComposedTotal.Inc()
}

// ComposeFailed increments the compose failure counter.
func (c *PrometheusCollector) ComposeFailed() {
	c.composeFailuresTotal.Inc()
}

// MessageSigned increments the signed message counter.
func (c *PrometheusCollector) MessageSigned() {
	c.messagesSignedTotal.Inc()
}

// DeliveryCompleted increments the delivery counter.
func (c *PrometheusCollector) DeliveryCompleted(transport string, result string) {
	c.deliveriesTotal.WithLabelValues(transport, result).Inc()
}

// DeliveryDuration observes the delivery duration.
func (c *PrometheusCollector) DeliveryDuration(transport string, seconds float64) {
	c.deliveryDurationSeconds.WithLabelValues(transport).Observe(seconds)
}
