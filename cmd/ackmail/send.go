package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ackmail/ackmail/internal/compose"
	"github.com/ackmail/ackmail/internal/config"
	"github.com/ackmail/ackmail/internal/credential"
	"github.com/ackmail/ackmail/internal/dkim"
	"github.com/ackmail/ackmail/internal/gitconfig"
	"github.com/ackmail/ackmail/internal/identity"
	"github.com/ackmail/ackmail/internal/ledger"
	"github.com/ackmail/ackmail/internal/logging"
	"github.com/ackmail/ackmail/internal/metrics"
	"github.com/ackmail/ackmail/internal/pipeline"
	"github.com/ackmail/ackmail/internal/send"
	"github.com/ackmail/ackmail/internal/trailer"
)

func runSend() {
	var flags config.Flags
	config.RegisterFlags(flag.CommandLine, &flags)
	flag.Parse()

	cfg, err := config.LoadWithFlags(&flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, aborting", "signal", sig.String())
		cancel()
	}()

	kinds, err := parseKinds(flags.Kinds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	raw, err := readInput(flags.Input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
		os.Exit(1)
	}

	id, settings, err := resolveIdentity(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error resolving identity: %v\n", err)
		os.Exit(1)
	}

	collector, metricsServer := metrics.New(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Address: cfg.Metrics.Address,
		Path:    cfg.Metrics.Path,
	})
	if cfg.Metrics.Enabled {
		go func() {
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	var ackLedger ledger.Ledger = ledger.Noop{}
	if cfg.Ledger.Enabled() {
		redisLedger, err := ledger.NewRedis(ctx, cfg.Ledger.RedisURL, cfg.Ledger.RecordTTL())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error connecting to ledger: %v\n", err)
			os.Exit(1)
		}
		defer redisLedger.Close()
		ackLedger = redisLedger
	}

	var signer *dkim.Signer
	if cfg.DKIM.Enabled() {
		signer, err = dkim.NewFromFile(cfg.DKIM.Domain, cfg.DKIM.Selector, cfg.DKIM.KeyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading signing key: %v\n", err)
			os.Exit(1)
		}
	}

	transport, transportKind := buildTransport(cfg, flags.DryRun, settings, logger)

	p := &pipeline.Pipeline{
		Identity:      id,
		Transport:     transport,
		TransportKind: transportKind,
		Signer:        signer,
		Ledger:        ackLedger,
		Metrics:       collector,
		Options: compose.Options{
			Quote:         cfg.Reply.QuoteEnabled(),
			QuoteMaxLines: cfg.Reply.QuoteMaxLines,
			SignOff:       cfg.Reply.SignOffEnabled(),
		},
		Logger: logger,
	}

	outcome, err := p.Run(ctx, raw, kinds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch outcome.Status {
	case pipeline.StatusSent:
		if flags.DryRun {
			logger.Info("dry run complete", "reply_id", outcome.MessageID)
		} else {
			logger.Info("done", "reply_id", outcome.MessageID)
		}
	case pipeline.StatusSkipped:
		for _, skip := range outcome.Skipped {
			fmt.Fprintf(os.Stderr, "%s: skipped (%s)\n", skip.Kind, skip.Reason)
		}
	}
}

// parseKinds validates the requested trailer kinds, defaulting to
// Reviewed-by when none were requested.
func parseKinds(names []string) ([]trailer.Kind, error) {
	if len(names) == 0 {
		return []trailer.Kind{trailer.ReviewedBy}, nil
	}
	kinds := make([]trailer.Kind, 0, len(names))
	for _, name := range names {
		kind, err := trailer.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// readInput reads the inbound message from a file or stdin.
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// resolveIdentity layers the config file values over git configuration and
// resolves the keyring password when configured.
func resolveIdentity(ctx context.Context, cfg config.Config, logger *slog.Logger) (identity.Identity, identity.TransportSettings, error) {
	password := cfg.Transport.Password
	if cfg.Transport.PasswordSource == "keyring" {
		var store credential.Store = credential.KeyringStore{}
		p, err := store.Get(cfg.Transport.Username)
		if err != nil {
			return identity.Identity{}, identity.TransportSettings{}, err
		}
		password = p
	}

	static := &identity.Static{
		ID: identity.Identity{
			Name:  cfg.Identity.Name,
			Email: cfg.Identity.Email,
		},
		Settings: identity.TransportSettings{
			Kind:        identity.TransportKind(cfg.Transport.Kind),
			Host:        cfg.Transport.Host,
			Port:        cfg.Transport.Port,
			Security:    identity.SecurityMode(cfg.Transport.Security),
			Username:    cfg.Transport.Username,
			Password:    password,
			SendmailCmd: cfg.Transport.SendmailCmd,
		},
	}

	provider := &identity.Fallback{
		Primary:   static,
		Secondary: gitconfig.New(nil, logger),
	}
	return identity.Resolve(ctx, provider)
}

// buildTransport picks the delivery transport. Dry runs write the rendered
// message to stdout instead of sending.
func buildTransport(cfg config.Config, dryRun bool, settings identity.TransportSettings, logger *slog.Logger) (send.Transport, string) {
	if dryRun {
		return &send.WriterTransport{W: os.Stdout}, "dry-run"
	}

	switch settings.Kind {
	case identity.TransportSendmail:
		return send.NewSendmailTransport(settings.SendmailCmd, logger), string(identity.TransportSendmail)
	default:
		tr := send.NewSMTPTransport(settings, logger)
		if strings.EqualFold(cfg.LogLevel, "debug") {
			tr.Trace = logging.NewTransactionWriter(io.Discard, logger, "smtp")
		}
		return tr, string(identity.TransportSMTP)
	}
}
