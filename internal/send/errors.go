package send

import (
	"errors"
	"fmt"
	"net"
)

// ConnectionError reports a network or TLS failure before the message could
// be submitted.
type ConnectionError struct {
	State State
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed in state %s: %v", e.State, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError reports rejected credentials.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// DeliveryError reports a transport that accepted the connection but
// rejected the message, for example an invalid recipient.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Recipient != "" {
		return fmt.Sprintf("delivery rejected for %s: %v", e.Recipient, e.Err)
	}
	return fmt.Sprintf("delivery rejected: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// TimeoutError reports a submission phase that exceeded its deadline.
type TimeoutError struct {
	State State
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out in state %s: %v", e.State, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
