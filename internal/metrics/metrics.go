// Package metrics provides interfaces and implementations for collecting
// acknowledgment pipeline metrics. This package defines the Collector
// interface for recording metrics and the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording pipeline metrics.
type Collector interface {
	// Parse metrics
	MessageParsed()
	ParseFailed(reason string)

	// Trailer metrics (labelled by trailer kind, e.g. "Reviewed-by")
	TrailerComputed(kind string)
	// reason should be "already_present" or "already_sent"
	TrailerSkipped(kind string, reason string)

	// Compose metrics
	ReplyComposed()
	ComposeFailed()

	// Signing metrics
	MessageSigned()

	// Delivery metrics (transport is "smtp" or "sendmail")
	// result should be "success" or "failure"
	DeliveryCompleted(transport string, result string)
	DeliveryDuration(transport string, seconds float64)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
