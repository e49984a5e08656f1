package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// MessageParsed is a no-op.
func (n *NoopCollector) MessageParsed() {}

// ParseFailed is a no-op.
func (n *NoopCollector) ParseFailed(reason string) {}

// TrailerComputed is a no-op.
func (n *NoopCollector) TrailerComputed(kind string) {}

// TrailerSkipped is a no-op.
func (n *NoopCollector) TrailerSkipped(kind string, reason string) {}

// ReplyComposed is a no-op.
func (n *NoopCollector) ReplyComposed() {}

// ComposeFailed is a no-op.
func (n *NoopCollector) ComposeFailed() {}

// MessageSigned is a no-op.
func (n *NoopCollector) MessageSigned() {}

// DeliveryCompleted is a no-op.
func (n *NoopCollector) DeliveryCompleted(transport string, result string) {}

// DeliveryDuration is a no-op.
func (n *NoopCollector) DeliveryDuration(transport string, seconds float64) {}
