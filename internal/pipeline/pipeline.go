// Package pipeline runs one message through the full acknowledgment flow:
// parse, compute trailers, compose the reply, sign, and deliver. Each stage
// is injected so the command layer can assemble dry-run and test variants.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ackmail/ackmail/internal/compose"
	"github.com/ackmail/ackmail/internal/dkim"
	"github.com/ackmail/ackmail/internal/identity"
	"github.com/ackmail/ackmail/internal/ledger"
	"github.com/ackmail/ackmail/internal/logging"
	"github.com/ackmail/ackmail/internal/message"
	"github.com/ackmail/ackmail/internal/metrics"
	"github.com/ackmail/ackmail/internal/send"
	"github.com/ackmail/ackmail/internal/trailer"
)

// Status reports what the run did with the message.
type Status string

const (
	// StatusSent means a reply was composed and delivered.
	StatusSent Status = "sent"
	// StatusSkipped means every requested trailer was already acknowledged,
	// so no reply was sent.
	StatusSkipped Status = "skipped"
)

// SkipReasonPresent marks a trailer already present in the message body.
const SkipReasonPresent = "already_present"

// SkipReasonSent marks a trailer the ledger recorded as previously sent.
const SkipReasonSent = "already_sent"

// Skip records one trailer kind that was not sent, and why.
type Skip struct {
	Kind   trailer.Kind
	Reason string
}

// Outcome summarizes a pipeline run.
type Outcome struct {
	Status Status
	// MessageID is the outbound reply's message id when Status is StatusSent.
	MessageID string
	// Trailers are the trailers carried by the reply.
	Trailers []trailer.Trailer
	// Skipped lists the requested kinds that were not sent.
	Skipped []Skip
}

// Pipeline wires the stages together. All fields except Identity and
// Transport are optional; nil optional fields default to no-ops.
type Pipeline struct {
	Identity identity.Identity
	// Transport delivers the rendered reply.
	Transport send.Transport
	// TransportKind labels delivery metrics ("smtp", "sendmail").
	TransportKind string
	// Signer signs outbound replies when set.
	Signer *dkim.Signer
	// Ledger remembers sent acknowledgments across runs.
	Ledger ledger.Ledger
	// Metrics collects pipeline counters.
	Metrics metrics.Collector
	// Options shape the composed reply body.
	Options compose.Options
	Logger  *slog.Logger
}

func (p *Pipeline) ledger() ledger.Ledger {
	if p.Ledger == nil {
		return ledger.Noop{}
	}
	return p.Ledger
}

func (p *Pipeline) metrics() metrics.Collector {
	if p.Metrics == nil {
		return &metrics.NoopCollector{}
	}
	return p.Metrics
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// dedupeKinds drops repeated kinds, keeping first-seen order, so a kind
// requested twice yields a single trailer.
func dedupeKinds(kinds []trailer.Kind) []trailer.Kind {
	seen := make(map[trailer.Kind]struct{}, len(kinds))
	out := make([]trailer.Kind, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Run processes one raw message. Kinds that are already acknowledged are
// skipped; duplicate requested kinds collapse to one. When every kind is
// skipped the run ends with StatusSkipped and no delivery. Parse and compose
// failures return the stage's typed error.
func (p *Pipeline) Run(ctx context.Context, raw []byte, kinds []trailer.Kind) (*Outcome, error) {
	collector := p.metrics()

	parsed, err := message.Parse(raw)
	if err != nil {
		reason := "malformed"
		var encErr *message.EncodingError
		if errors.As(err, &encErr) {
			reason = "encoding"
		}
		collector.ParseFailed(reason)
		return nil, err
	}
	collector.MessageParsed()

	log := logging.WithMessage(p.logger(), parsed.MessageID)
	log.Debug("message parsed",
		"from", parsed.From.String(),
		"subject", parsed.Subject,
		"body_lines", len(parsed.BodyLines))

	outcome := &Outcome{Status: StatusSkipped}
	var trailers []trailer.Trailer
	for _, kind := range dedupeKinds(kinds) {
		result, err := trailer.Compute(parsed, p.Identity, kind)
		if err != nil {
			return nil, err
		}
		if result.NoOp {
			log.Info("trailer already present, skipping", "kind", string(kind))
			collector.TrailerSkipped(string(kind), SkipReasonPresent)
			outcome.Skipped = append(outcome.Skipped, Skip{Kind: kind, Reason: SkipReasonPresent})
			continue
		}

		seen, err := p.ledger().Seen(ctx, parsed.MessageID, string(kind))
		if err != nil {
			return nil, fmt.Errorf("checking acknowledgment ledger: %w", err)
		}
		if seen {
			log.Info("acknowledgment already sent, skipping", "kind", string(kind))
			collector.TrailerSkipped(string(kind), SkipReasonSent)
			outcome.Skipped = append(outcome.Skipped, Skip{Kind: kind, Reason: SkipReasonSent})
			continue
		}

		collector.TrailerComputed(string(kind))
		trailers = append(trailers, result.Trailer)
	}

	if len(trailers) == 0 {
		log.Info("nothing to acknowledge")
		return outcome, nil
	}

	point := trailer.Placement(parsed)
	reply, err := compose.Compose(parsed, trailers, point, p.Identity, p.Options)
	if err != nil {
		collector.ComposeFailed()
		return nil, err
	}
	rendered, err := reply.Bytes()
	if err != nil {
		collector.ComposeFailed()
		return nil, err
	}
	collector.ReplyComposed()

	if p.Signer != nil {
		rendered, err = p.Signer.Sign(rendered)
		if err != nil {
			return nil, err
		}
		collector.MessageSigned()
		log.Debug("reply signed", "domain", p.Signer.Domain())
	}

	env := send.Envelope{From: p.Identity.Email, Recipients: reply.Recipients()}
	start := time.Now()
	err = p.Transport.Send(ctx, env, bytes.NewReader(rendered))
	collector.DeliveryDuration(p.TransportKind, time.Since(start).Seconds())
	if err != nil {
		collector.DeliveryCompleted(p.TransportKind, "failure")
		return nil, err
	}
	collector.DeliveryCompleted(p.TransportKind, "success")

	for _, tr := range trailers {
		if err := p.ledger().Record(ctx, parsed.MessageID, string(tr.Kind)); err != nil {
			// The reply is already out; a ledger write failure must not
			// fail the run.
			log.Warn("recording acknowledgment failed", "kind", string(tr.Kind), "error", err)
		}
	}

	log.Info("acknowledgment sent",
		"reply_id", reply.MessageID,
		"to", parsed.From.Email,
		"trailers", len(trailers))

	outcome.Status = StatusSent
	outcome.MessageID = reply.MessageID
	outcome.Trailers = trailers
	return outcome, nil
}
