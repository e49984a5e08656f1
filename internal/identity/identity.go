// Package identity defines who the acknowledgment is sent as and how it is
// delivered. Providers source the values from external configuration stores
// (git config, the ackmail config file) and are injected into the pipeline
// so tests can substitute doubles.
package identity

import (
	"context"
	"fmt"
	"strings"
)

// SecurityMode selects the transport-layer security for SMTP submission.
type SecurityMode string

const (
	// SecurityNone submits over a cleartext connection.
	SecurityNone SecurityMode = "none"
	// SecuritySTARTTLS upgrades a cleartext connection via STARTTLS.
	SecuritySTARTTLS SecurityMode = "starttls"
	// SecurityTLS connects with implicit TLS (SMTPS).
	SecurityTLS SecurityMode = "tls"
)

// TransportKind selects the delivery mechanism.
type TransportKind string

const (
	// TransportSMTP submits over an SMTP connection.
	TransportSMTP TransportKind = "smtp"
	// TransportSendmail pipes the message to a local sendmail-compatible command.
	TransportSendmail TransportKind = "sendmail"
)

// Identity is the sender identity used for the From header and the trailer.
// Immutable for the run.
type Identity struct {
	Name  string
	Email string
}

// Mailbox renders the identity as "Name <email>", or just the address when
// no name is configured.
func (id Identity) Mailbox() string {
	if id.Name == "" {
		return id.Email
	}
	return fmt.Sprintf("%s <%s>", id.Name, id.Email)
}

// FirstName returns the first word of the configured name, falling back to
// the email address. Used for the reply sign-off.
func (id Identity) FirstName() string {
	fields := strings.Fields(id.Name)
	if len(fields) == 0 {
		return id.Email
	}
	return fields[0]
}

// TransportSettings holds the outbound delivery configuration.
// Immutable for the run.
type TransportSettings struct {
	Kind     TransportKind
	Host     string
	Port     int
	Security SecurityMode
	Username string
	Password string
	// SendmailCmd is the command line for TransportSendmail; the first
	// element is the executable.
	SendmailCmd []string
}

// Addr returns the host:port dial address for SMTP settings.
func (s TransportSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HasAuth reports whether SMTP authentication credentials are configured.
func (s TransportSettings) HasAuth() bool {
	return s.Username != ""
}

// Provider supplies identity and transport configuration from an external
// store. Implementations must not cache stale values across runs; within a
// run the returned values are treated as immutable.
type Provider interface {
	Identity(ctx context.Context) (Identity, error)
	Transport(ctx context.Context) (TransportSettings, error)
}

// ConfigMissingError reports a required configuration field that no provider
// could supply.
type ConfigMissingError struct {
	Field string
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Field)
}

// Static is a Provider backed by fixed values, used for config-file overrides
// and test doubles. Zero-valued fields are treated as unset by Fallback.
type Static struct {
	ID       Identity
	Settings TransportSettings
}

// Identity implements Provider.
func (s *Static) Identity(ctx context.Context) (Identity, error) {
	return s.ID, nil
}

// Transport implements Provider.
func (s *Static) Transport(ctx context.Context) (TransportSettings, error) {
	return s.Settings, nil
}

// Fallback merges two providers field-wise: values from primary win, unset
// fields fall back to secondary. Validation of required fields happens in
// Resolve, not here.
type Fallback struct {
	Primary   Provider
	Secondary Provider
}

// Identity implements Provider.
func (f *Fallback) Identity(ctx context.Context) (Identity, error) {
	primary, err := f.Primary.Identity(ctx)
	if err != nil {
		return Identity{}, err
	}
	secondary, err := f.Secondary.Identity(ctx)
	if err != nil {
		return Identity{}, err
	}
	if primary.Name == "" {
		primary.Name = secondary.Name
	}
	if primary.Email == "" {
		primary.Email = secondary.Email
	}
	return primary, nil
}

// Transport implements Provider.
func (f *Fallback) Transport(ctx context.Context) (TransportSettings, error) {
	primary, err := f.Primary.Transport(ctx)
	if err != nil {
		return TransportSettings{}, err
	}
	secondary, err := f.Secondary.Transport(ctx)
	if err != nil {
		return TransportSettings{}, err
	}
	if primary.Kind == "" {
		primary.Kind = secondary.Kind
	}
	if primary.Host == "" {
		primary.Host = secondary.Host
	}
	if primary.Port == 0 {
		primary.Port = secondary.Port
	}
	if primary.Security == "" {
		primary.Security = secondary.Security
	}
	if primary.Username == "" {
		primary.Username = secondary.Username
	}
	if primary.Password == "" {
		primary.Password = secondary.Password
	}
	if len(primary.SendmailCmd) == 0 {
		primary.SendmailCmd = secondary.SendmailCmd
	}
	return primary, nil
}

// Resolve fetches identity and transport settings from the provider and
// validates that the required fields are present. The email address must at
// least look like an address; full syntactic validation happens when the
// reply is composed.
func Resolve(ctx context.Context, p Provider) (Identity, TransportSettings, error) {
	id, err := p.Identity(ctx)
	if err != nil {
		return Identity{}, TransportSettings{}, err
	}
	if id.Email == "" {
		return Identity{}, TransportSettings{}, &ConfigMissingError{Field: "identity.email"}
	}
	if !strings.Contains(id.Email, "@") {
		return Identity{}, TransportSettings{}, fmt.Errorf("invalid identity email %q", id.Email)
	}

	settings, err := p.Transport(ctx)
	if err != nil {
		return Identity{}, TransportSettings{}, err
	}
	switch settings.Kind {
	case TransportSendmail:
		if len(settings.SendmailCmd) == 0 {
			return Identity{}, TransportSettings{}, &ConfigMissingError{Field: "transport.sendmail_cmd"}
		}
	case TransportSMTP, "":
		settings.Kind = TransportSMTP
		if settings.Host == "" {
			return Identity{}, TransportSettings{}, &ConfigMissingError{Field: "transport.host"}
		}
		if settings.Security == "" {
			settings.Security = SecurityNone
		}
		if settings.Port == 0 {
			settings.Port = DefaultPort(settings.Security)
		}
	default:
		return Identity{}, TransportSettings{}, fmt.Errorf("unknown transport kind %q", settings.Kind)
	}
	return id, settings, nil
}

// DefaultPort returns the conventional submission port for a security mode.
func DefaultPort(mode SecurityMode) int {
	switch mode {
	case SecurityTLS:
		return 465
	case SecuritySTARTTLS:
		return 587
	default:
		return 25
	}
}
