package config

import "os"

// ApplyEnv applies environment variable overrides to the configuration.
// Environment variables take precedence over the TOML config but are
// overridden by command-line flags.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("ACKMAIL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ACKMAIL_SMTP_HOST"); v != "" {
		cfg.Transport.Host = v
	}
	if v := os.Getenv("ACKMAIL_SMTP_USERNAME"); v != "" {
		cfg.Transport.Username = v
	}
	if v := os.Getenv("ACKMAIL_SMTP_PASSWORD"); v != "" {
		cfg.Transport.Password = v
		cfg.Transport.PasswordSource = "config"
	}
	if v := os.Getenv("ACKMAIL_REDIS_URL"); v != "" {
		cfg.Ledger.RedisURL = v
	}
	if v := os.Getenv("ACKMAIL_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
		cfg.Metrics.Enabled = true
	}
	return cfg
}
