package send

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/ackmail/ackmail/internal/identity"
	"github.com/ackmail/ackmail/internal/logging"
)

// DefaultCommandTimeout bounds each SMTP command round trip.
const DefaultCommandTimeout = 30 * time.Second

// DefaultSubmissionTimeout bounds the DATA phase.
const DefaultSubmissionTimeout = 2 * time.Minute

// SMTPTransport submits a message over SMTP, dialing a fresh connection per
// call. The connection is secured per the settings' SecurityMode and
// authenticates with SASL PLAIN when credentials are present.
type SMTPTransport struct {
	Settings identity.TransportSettings
	Logger   *slog.Logger
	// TLSConfig overrides the TLS client configuration; nil means a
	// default config with ServerName set to the configured host.
	TLSConfig *tls.Config
	// CommandTimeout and SubmissionTimeout override the defaults when
	// non-zero.
	CommandTimeout    time.Duration
	SubmissionTimeout time.Duration
	// Trace receives a protocol transcript of each submission when set.
	Trace io.Writer
}

// NewSMTPTransport creates a transport for the given settings.
func NewSMTPTransport(settings identity.TransportSettings, logger *slog.Logger) *SMTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPTransport{
		Settings: settings,
		Logger:   logging.WithTransport(logger, string(identity.TransportSMTP), settings.Addr()),
	}
}

// stateHolder tracks submission progress under a lock so the timeout path
// can report how far the attempt got and tear the connection down.
type stateHolder struct {
	mu      sync.Mutex
	s       State
	client  *smtp.Client
	aborted bool
}

func (h *stateHolder) set(s State) {
	h.mu.Lock()
	h.s = s
	h.mu.Unlock()
}

func (h *stateHolder) get() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s
}

// adopt hands the live connection to the holder. It reports false when the
// attempt was already aborted; the caller then owns closing the connection.
func (h *stateHolder) adopt(c *smtp.Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.aborted {
		return false
	}
	h.client = c
	return true
}

// abort closes the adopted connection so the in-flight submission fails
// instead of completing after the caller has given up. It reports whether a
// connection existed to close.
func (h *stateHolder) abort() bool {
	h.mu.Lock()
	h.aborted = true
	c := h.client
	h.mu.Unlock()
	if c == nil {
		return false
	}
	c.Close()
	return true
}

// Send implements Transport. The submission runs in its own goroutine; when
// the context expires first, the connection is closed and Send waits for the
// submission to fail before returning a TimeoutError naming the phase that
// was in flight. A TimeoutError means the message was not delivered.
func (t *SMTPTransport) Send(ctx context.Context, env Envelope, msg io.Reader) error {
	holder := &stateHolder{s: StateDisconnected}

	done := make(chan error, 1)
	go func() {
		done <- t.submit(env, msg, holder)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		state := holder.get()
		if holder.abort() {
			<-done
		}
		t.Logger.Warn("submission aborted", "state", state.String(), "error", ctx.Err())
		return &TimeoutError{State: state, Err: ctx.Err()}
	}
}

func (t *SMTPTransport) submit(env Envelope, msg io.Reader, holder *stateHolder) error {
	holder.set(StateConnecting)

	client, err := t.dial()
	if err != nil {
		holder.set(StateFailed)
		if isTimeout(err) {
			return &TimeoutError{State: StateConnecting, Err: err}
		}
		return &ConnectionError{State: StateConnecting, Err: err}
	}
	if !holder.adopt(client) {
		client.Close()
		return &TimeoutError{State: StateConnecting, Err: context.Canceled}
	}
	defer client.Close()

	client.CommandTimeout = t.commandTimeout()
	client.SubmissionTimeout = t.submissionTimeout()
	if t.Trace != nil {
		client.DebugWriter = t.Trace
	}

	if t.Settings.HasAuth() {
		auth := sasl.NewPlainClient("", t.Settings.Username, t.Settings.Password)
		if err := client.Auth(auth); err != nil {
			holder.set(StateFailed)
			t.Logger.Warn("authentication rejected", "username", t.Settings.Username)
			return &AuthError{Err: err}
		}
	}
	holder.set(StateAuthenticated)

	holder.set(StateSending)
	if err := client.Mail(env.From, nil); err != nil {
		holder.set(StateFailed)
		return t.classify(err, "")
	}
	for _, rcpt := range env.Recipients {
		if err := client.Rcpt(rcpt, nil); err != nil {
			holder.set(StateFailed)
			return t.classify(err, rcpt)
		}
	}

	wc, err := client.Data()
	if err != nil {
		holder.set(StateFailed)
		return t.classify(err, "")
	}
	if _, err := io.Copy(wc, msg); err != nil {
		wc.Close()
		holder.set(StateFailed)
		return t.classify(err, "")
	}
	if err := wc.Close(); err != nil {
		holder.set(StateFailed)
		return t.classify(err, "")
	}

	holder.set(StateDelivered)
	t.Logger.Info("message submitted", "recipients", len(env.Recipients))

	// The message is accepted at this point; a failed QUIT is not a
	// delivery failure.
	if err := client.Quit(); err != nil {
		t.Logger.Warn("quit failed after delivery", "error", err)
	}
	return nil
}

// dial opens the connection per the configured security mode.
func (t *SMTPTransport) dial() (*smtp.Client, error) {
	addr := t.Settings.Addr()
	switch t.Settings.Security {
	case identity.SecurityNone:
		return smtp.Dial(addr)
	case identity.SecuritySTARTTLS:
		return smtp.DialStartTLS(addr, t.tlsConfig())
	case identity.SecurityTLS:
		return smtp.DialTLS(addr, t.tlsConfig())
	default:
		return nil, fmt.Errorf("unknown security mode %q", t.Settings.Security)
	}
}

func (t *SMTPTransport) tlsConfig() *tls.Config {
	if t.TLSConfig != nil {
		return t.TLSConfig
	}
	return &tls.Config{
		ServerName: t.Settings.Host,
		MinVersion: tls.VersionTLS12,
	}
}

func (t *SMTPTransport) commandTimeout() time.Duration {
	if t.CommandTimeout > 0 {
		return t.CommandTimeout
	}
	return DefaultCommandTimeout
}

func (t *SMTPTransport) submissionTimeout() time.Duration {
	if t.SubmissionTimeout > 0 {
		return t.SubmissionTimeout
	}
	return DefaultSubmissionTimeout
}

// classify maps an in-transaction error to the transport error taxonomy.
func (t *SMTPTransport) classify(err error, rcpt string) error {
	if isTimeout(err) {
		return &TimeoutError{State: StateSending, Err: err}
	}
	return &DeliveryError{Recipient: rcpt, Err: err}
}
