// Package config provides configuration management for the acknowledgment
// tool. Values merge in precedence order: defaults, then the TOML config
// file, then environment variables, then command-line flags. Identity and
// transport values left unset here fall back to git configuration at run
// time.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FileConfig is the top-level wrapper for the configuration file, so the
// tool's section can coexist with other tools sharing the file.
type FileConfig struct {
	Ackmail Config `toml:"ackmail"`
}

// Config holds the complete tool configuration.
type Config struct {
	LogLevel  string          `toml:"log_level"`
	Identity  IdentityConfig  `toml:"identity"`
	Transport TransportConfig `toml:"transport"`
	Reply     ReplyConfig     `toml:"reply"`
	DKIM      DKIMConfig      `toml:"dkim"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// IdentityConfig overrides the sender identity normally read from git
// configuration.
type IdentityConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// TransportConfig overrides the delivery transport normally read from git
// configuration.
type TransportConfig struct {
	// Kind is "smtp" or "sendmail"; empty means smtp.
	Kind     string `toml:"kind"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Security string `toml:"security"`
	Username string `toml:"username"`
	// PasswordSource is "config" or "keyring". With "keyring" the
	// password is fetched from the system keyring under the username.
	PasswordSource string   `toml:"password_source"`
	Password       string   `toml:"password"`
	SendmailCmd    []string `toml:"sendmail_cmd"`
}

// ReplyConfig controls the cosmetic parts of the composed reply. Pointers
// distinguish "absent" from "explicitly false".
type ReplyConfig struct {
	Quote         *bool `toml:"quote"`
	QuoteMaxLines int   `toml:"quote_max_lines"`
	SignOff       *bool `toml:"sign_off"`
}

// QuoteEnabled reports whether the reply quotes the original body.
func (r *ReplyConfig) QuoteEnabled() bool {
	return r.Quote == nil || *r.Quote
}

// SignOffEnabled reports whether the reply carries the thank-you sign-off.
func (r *ReplyConfig) SignOffEnabled() bool {
	return r.SignOff == nil || *r.SignOff
}

// DKIMConfig enables DKIM signing of outbound replies. Signing is active
// when all three fields are set.
type DKIMConfig struct {
	Domain   string `toml:"domain"`
	Selector string `toml:"selector"`
	KeyFile  string `toml:"key_file"`
}

// Enabled reports whether signing is configured.
func (d *DKIMConfig) Enabled() bool {
	return d.Domain != "" || d.Selector != "" || d.KeyFile != ""
}

// LedgerConfig enables the shared acknowledgment ledger.
type LedgerConfig struct {
	RedisURL string `toml:"redis_url"`
	TTL      string `toml:"ttl"`
}

// Enabled reports whether a ledger backend is configured.
func (l *LedgerConfig) Enabled() bool {
	return l.RedisURL != ""
}

// RecordTTL returns the record lifetime as a time.Duration. Returns zero
// (meaning the ledger default) if not configured or invalid.
func (l *LedgerConfig) RecordTTL() time.Duration {
	if l.TTL == "" {
		return 0
	}
	d, err := time.ParseDuration(l.TTL)
	if err != nil {
		return 0
	}
	return d
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		LogLevel: "info",
		Reply: ReplyConfig{
			QuoteMaxLines: 5,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9100",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	switch c.Transport.Kind {
	case "", "smtp", "sendmail":
	default:
		return fmt.Errorf("invalid transport kind %q (valid: smtp, sendmail)", c.Transport.Kind)
	}

	switch c.Transport.Security {
	case "", "none", "starttls", "tls":
	default:
		return fmt.Errorf("invalid transport security %q (valid: none, starttls, tls)", c.Transport.Security)
	}

	if c.Transport.Port < 0 || c.Transport.Port > 65535 {
		return fmt.Errorf("invalid transport port %d", c.Transport.Port)
	}

	switch c.Transport.PasswordSource {
	case "", "config", "keyring":
	default:
		return fmt.Errorf("invalid password_source %q (valid: config, keyring)", c.Transport.PasswordSource)
	}
	if c.Transport.PasswordSource == "keyring" && c.Transport.Username == "" {
		return errors.New("password_source \"keyring\" requires a transport username")
	}

	if c.Reply.QuoteMaxLines < 0 {
		return errors.New("quote_max_lines must not be negative")
	}

	if c.DKIM.Enabled() {
		if c.DKIM.Domain == "" {
			return errors.New("dkim domain is required when signing is configured")
		}
		if c.DKIM.Selector == "" {
			return errors.New("dkim selector is required when signing is configured")
		}
		if c.DKIM.KeyFile == "" {
			return errors.New("dkim key_file is required when signing is configured")
		}
	}

	if c.Ledger.TTL != "" {
		if _, err := time.ParseDuration(c.Ledger.TTL); err != nil {
			return fmt.Errorf("invalid ledger ttl: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}
