package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath string
	LogLevel   string
	DryRun     bool
	Input      string
	Kinds      kindsFlag
}

// kindsFlag collects repeated -kind flags.
type kindsFlag []string

func (k *kindsFlag) String() string {
	return strings.Join(*k, ",")
}

func (k *kindsFlag) Set(value string) error {
	if value == "" {
		return fmt.Errorf("kind must not be empty")
	}
	*k = append(*k, value)
	return nil
}

// RegisterFlags registers the tool's flags on the given flag set, so each
// subcommand can own its flag parsing.
func RegisterFlags(fs *flag.FlagSet, f *Flags) {
	fs.StringVar(&f.ConfigPath, "config", DefaultPath(), "Path to configuration file")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&f.DryRun, "dry-run", false, "Print the composed reply instead of sending it")
	fs.StringVar(&f.Input, "input", "-", "Path to the inbound message file (\"-\" for stdin)")
	fs.Var(&f.Kinds, "kind", "Trailer kind to send (repeatable; default Reviewed-by)")
}

// DefaultPath returns the default config file location under the user's
// config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ackmail.toml"
	}
	return filepath.Join(dir, "ackmail", "ackmail.toml")
}

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	// Merge file config into defaults
	cfg = mergeConfig(cfg, fileConfig.Ackmail)

	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero/non-empty flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// applies environment overrides, then flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	cfg = ApplyEnv(cfg)
	return ApplyFlags(cfg, f), nil
}

// mergeConfig merges non-zero values from src into dst.
func mergeConfig(dst, src Config) Config {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	if src.Identity.Name != "" {
		dst.Identity.Name = src.Identity.Name
	}
	if src.Identity.Email != "" {
		dst.Identity.Email = src.Identity.Email
	}

	if src.Transport.Kind != "" {
		dst.Transport.Kind = src.Transport.Kind
	}
	if src.Transport.Host != "" {
		dst.Transport.Host = src.Transport.Host
	}
	if src.Transport.Port > 0 {
		dst.Transport.Port = src.Transport.Port
	}
	if src.Transport.Security != "" {
		dst.Transport.Security = src.Transport.Security
	}
	if src.Transport.Username != "" {
		dst.Transport.Username = src.Transport.Username
	}
	if src.Transport.PasswordSource != "" {
		dst.Transport.PasswordSource = src.Transport.PasswordSource
	}
	if src.Transport.Password != "" {
		dst.Transport.Password = src.Transport.Password
	}
	if len(src.Transport.SendmailCmd) > 0 {
		dst.Transport.SendmailCmd = src.Transport.SendmailCmd
	}

	if src.Reply.Quote != nil {
		dst.Reply.Quote = src.Reply.Quote
	}
	if src.Reply.QuoteMaxLines > 0 {
		dst.Reply.QuoteMaxLines = src.Reply.QuoteMaxLines
	}
	if src.Reply.SignOff != nil {
		dst.Reply.SignOff = src.Reply.SignOff
	}

	if src.DKIM.Domain != "" {
		dst.DKIM.Domain = src.DKIM.Domain
	}
	if src.DKIM.Selector != "" {
		dst.DKIM.Selector = src.DKIM.Selector
	}
	if src.DKIM.KeyFile != "" {
		dst.DKIM.KeyFile = src.DKIM.KeyFile
	}

	if src.Ledger.RedisURL != "" {
		dst.Ledger.RedisURL = src.Ledger.RedisURL
	}
	if src.Ledger.TTL != "" {
		dst.Ledger.TTL = src.Ledger.TTL
	}

	// Metrics: enabled is explicitly set (boolean), so we merge only when true
	if src.Metrics.Enabled {
		dst.Metrics.Enabled = src.Metrics.Enabled
	}
	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}
	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}

	return dst
}
