// Package gitconfig sources identity and transport settings from git
// configuration, matching the keys git send-email reads (user.name,
// user.email, sendemail.*). Values are looked up by shelling out to
// git config so includes, conditional sections, and per-repo overrides
// behave exactly as they do for git itself.
package gitconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ackmail/ackmail/internal/identity"
)

// Lookup retrieves a single git config value. ok is false when the key is
// unset. Injected so tests can run without git or a repository.
type Lookup func(ctx context.Context, key string) (value string, ok bool, err error)

// ExecLookup runs `git config --get <key>` and interprets exit status 1 as
// "key unset" per git-config(1).
func ExecLookup(ctx context.Context, key string) (string, bool, error) {
	out, err := exec.CommandContext(ctx, "git", "config", "--get", key).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("git config --get %s: %w", key, err)
	}
	return strings.TrimRight(string(out), "\n"), true, nil
}

// Provider implements identity.Provider on top of git configuration.
type Provider struct {
	lookup Lookup
	logger *slog.Logger
}

// New creates a Provider using the given lookup. A nil lookup uses
// ExecLookup; a nil logger uses slog.Default.
func New(lookup Lookup, logger *slog.Logger) *Provider {
	if lookup == nil {
		lookup = ExecLookup
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{lookup: lookup, logger: logger}
}

// Identity returns user.name and user.email. A missing name is allowed; a
// missing email is reported by identity.Resolve, not here, so config-file
// overrides can still fill it in.
func (p *Provider) Identity(ctx context.Context) (identity.Identity, error) {
	name, _, err := p.lookup(ctx, "user.name")
	if err != nil {
		return identity.Identity{}, err
	}
	email, _, err := p.lookup(ctx, "user.email")
	if err != nil {
		return identity.Identity{}, err
	}
	return identity.Identity{Name: name, Email: email}, nil
}

// Transport maps the sendemail.* keys onto transport settings:
//
//   - sendemail.sendmailcmd selects the sendmail transport
//   - sendemail.smtpserver starting with "/" is treated as a sendmail
//     command, the way git send-email does
//   - otherwise sendemail.smtpserver/smtpserverport/smtpencryption/smtpuser
//     describe an SMTP submission endpoint
func (p *Provider) Transport(ctx context.Context) (identity.TransportSettings, error) {
	if cmd, ok, err := p.lookup(ctx, "sendemail.sendmailcmd"); err != nil {
		return identity.TransportSettings{}, err
	} else if ok && cmd != "" {
		return identity.TransportSettings{
			Kind:        identity.TransportSendmail,
			SendmailCmd: strings.Fields(cmd),
		}, nil
	}

	server, ok, err := p.lookup(ctx, "sendemail.smtpserver")
	if err != nil {
		return identity.TransportSettings{}, err
	}
	if !ok || server == "" {
		// Leave everything unset; the config file or defaults take over.
		return identity.TransportSettings{}, nil
	}
	if strings.HasPrefix(server, "/") {
		p.logger.Debug("treating sendemail.smtpserver as a sendmail command", "path", server)
		return identity.TransportSettings{
			Kind:        identity.TransportSendmail,
			SendmailCmd: []string{server},
		}, nil
	}

	settings := identity.TransportSettings{
		Kind: identity.TransportSMTP,
		Host: server,
	}

	if port, ok, err := p.lookup(ctx, "sendemail.smtpserverport"); err != nil {
		return identity.TransportSettings{}, err
	} else if ok && port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return identity.TransportSettings{}, fmt.Errorf("invalid sendemail.smtpserverport %q: %w", port, err)
		}
		settings.Port = n
	}

	if enc, ok, err := p.lookup(ctx, "sendemail.smtpencryption"); err != nil {
		return identity.TransportSettings{}, err
	} else if ok {
		mode, err := parseEncryption(enc)
		if err != nil {
			return identity.TransportSettings{}, err
		}
		settings.Security = mode
	}

	if user, ok, err := p.lookup(ctx, "sendemail.smtpuser"); err != nil {
		return identity.TransportSettings{}, err
	} else if ok {
		settings.Username = user
	}

	return settings, nil
}

// parseEncryption maps git send-email's smtpencryption values onto security
// modes: "ssl" means implicit TLS, "tls" means STARTTLS.
func parseEncryption(enc string) (identity.SecurityMode, error) {
	switch strings.ToLower(enc) {
	case "":
		return identity.SecurityNone, nil
	case "ssl":
		return identity.SecurityTLS, nil
	case "tls":
		return identity.SecuritySTARTTLS, nil
	default:
		return "", fmt.Errorf("unknown sendemail.smtpencryption %q", enc)
	}
}
