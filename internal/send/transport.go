// Package send delivers a composed reply over a configured mail transport.
// The SMTP path is modeled as an explicit state machine so every failure
// reports exactly how far the submission got.
package send

import (
	"context"
	"io"
)

// Envelope carries the SMTP envelope for one submission.
type Envelope struct {
	From       string
	Recipients []string
}

// Transport delivers a rendered message. Implementations make exactly one
// attempt per call; retry policy belongs to the caller. Connections are not
// reused across calls.
type Transport interface {
	Send(ctx context.Context, env Envelope, msg io.Reader) error
}

// State tracks submission progress for error reporting.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
	StateSending
	StateDelivered
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateSending:
		return "SENDING"
	case StateDelivered:
		return "DELIVERED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
