// Package compose builds the outbound acknowledgment reply from a parsed
// message, the computed trailers, and the sender identity. The input message
// is never mutated; the composer produces a fresh value with its own
// message id.
package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ackmail/ackmail/internal/identity"
	"github.com/ackmail/ackmail/internal/message"
	"github.com/ackmail/ackmail/internal/trailer"
)

// DefaultQuoteMaxLines bounds the quoted context so replies to long patches
// stay readable; the cut is marked with "> [ ... ]".
const DefaultQuoteMaxLines = 5

// patchSeparator ends the quotable part of a patch body; everything after
// "---" is diffstat and diff.
const patchSeparator = "---"

// Options control the cosmetic parts of the reply. The trailer-carrying
// body section is always produced.
type Options struct {
	// Quote appends an attributed, "> "-prefixed copy of the original
	// body for context.
	Quote bool
	// QuoteMaxLines truncates the quote; 0 means DefaultQuoteMaxLines.
	QuoteMaxLines int
	// SignOff appends a short thank-you signed with the sender's first
	// name.
	SignOff bool
}

// DefaultOptions mirror what the tool does when the config file is silent.
func DefaultOptions() Options {
	return Options{Quote: true, QuoteMaxLines: DefaultQuoteMaxLines, SignOff: true}
}

// ComposeError reports an identity or address problem that prevents
// building the reply.
type ComposeError struct {
	Reason string
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("cannot compose reply: %s", e.Reason)
}

// Outbound is the composed reply. It shares no mutable state with the
// parsed input.
type Outbound struct {
	// MessageID is freshly generated, bare form without brackets.
	MessageID  string
	From       message.Address
	To         []message.Address
	Cc         []message.Address
	Subject    string
	Date       time.Time
	InReplyTo  string
	References []string
	Body       string
}

// Recipients returns every envelope recipient address (To then Cc).
func (o *Outbound) Recipients() []string {
	out := make([]string, 0, len(o.To)+len(o.Cc))
	for _, a := range o.To {
		out = append(out, a.Email)
	}
	for _, a := range o.Cc {
		out = append(out, a.Email)
	}
	return out
}

// Compose builds the reply. Threading follows standard mail-client
// conventions: In-Reply-To names the original message, References extends
// the original chain, and the subject gains a single "Re: " prefix.
func Compose(parsed *message.ParsedMessage, trailers []trailer.Trailer, point trailer.InsertionPoint, id identity.Identity, opts Options) (*Outbound, error) {
	if id.Email == "" {
		return nil, &ComposeError{Reason: "identity email is empty"}
	}
	if !strings.Contains(id.Email, "@") {
		return nil, &ComposeError{Reason: fmt.Sprintf("identity email %q is not an address", id.Email)}
	}
	if len(trailers) == 0 {
		return nil, &ComposeError{Reason: "no trailers to send"}
	}

	out := &Outbound{
		MessageID: NewMessageID(id),
		From:      message.Address{Name: id.Name, Email: id.Email},
		To:        []message.Address{parsed.From},
		Cc:        ccList(parsed, id),
		Subject:   replySubject(parsed.Subject),
		Date:      time.Now(),
		InReplyTo: parsed.MessageID,
		Body:      buildBody(parsed, trailers, point, id, opts),
	}

	out.References = append(out.References, parsed.References...)
	if n := len(out.References); n == 0 || out.References[n-1] != parsed.MessageID {
		out.References = append(out.References, parsed.MessageID)
	}

	return out, nil
}

// NewMessageID generates a fresh message id under the identity's domain.
func NewMessageID(id identity.Identity) string {
	domain := id.Email
	if i := strings.LastIndex(id.Email, "@"); i >= 0 {
		domain = id.Email[i+1:]
	}
	return uuid.NewString() + "@" + domain
}

// replySubject adds a single "Re: " prefix, checking case-insensitively so
// repeated replies never stack "Re: Re: ".
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// ccList preserves the original To and Cc recipients, minus the original
// sender (who moves to To) and minus the identity itself, deduplicated.
func ccList(parsed *message.ParsedMessage, id identity.Identity) []message.Address {
	seen := map[string]bool{
		strings.ToLower(parsed.From.Email): true,
		strings.ToLower(id.Email):          true,
	}
	var out []message.Address
	for _, a := range append(append([]message.Address{}, parsed.To...), parsed.Cc...) {
		key := strings.ToLower(a.Email)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// buildBody assembles the reply body: the original body with the trailers
// inserted, then optionally the quoted context and the sign-off.
func buildBody(parsed *message.ParsedMessage, trailers []trailer.Trailer, point trailer.InsertionPoint, id identity.Identity, opts Options) string {
	lines := insertTrailers(parsed.BodyLines, trailers, point)

	if opts.Quote {
		maxLines := opts.QuoteMaxLines
		if maxLines <= 0 {
			maxLines = DefaultQuoteMaxLines
		}
		lines = append(lines, "")
		lines = append(lines, quoteOriginal(parsed, maxLines)...)
	}

	if opts.SignOff {
		lines = append(lines, "", "Thanks!", id.FirstName())
	}

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// insertTrailers splices the trailer lines into the body at the insertion
// point, adding the blank separator when requested.
func insertTrailers(body []string, trailers []trailer.Trailer, point trailer.InsertionPoint) []string {
	insert := make([]string, 0, len(trailers)+1)
	if point.NeedsBlank {
		insert = append(insert, "")
	}
	for _, t := range trailers {
		insert = append(insert, t.String())
	}

	out := make([]string, 0, len(body)+len(insert))
	out = append(out, body[:point.Line]...)
	out = append(out, insert...)
	out = append(out, body[point.Line:]...)
	return out
}

// quoteOriginal produces the attributed quote of the original body. The
// quote stops at the patch separator and is truncated after maxLines with a
// "[ ... ]" marker.
func quoteOriginal(parsed *message.ParsedMessage, maxLines int) []string {
	author := parsed.From.Name
	if author == "" {
		author = parsed.From.Email
	}

	var out []string
	if parsed.Date.IsZero() {
		out = append(out, fmt.Sprintf("%s wrote:", author))
	} else {
		out = append(out, fmt.Sprintf("On %s, %s wrote:", parsed.Date.Format(time.RFC1123Z), author))
	}

	for i, line := range parsed.BodyLines {
		if line == patchSeparator {
			break
		}
		if i >= maxLines {
			out = append(out, "> ", "> [ ... ]")
			break
		}
		if line == "" {
			out = append(out, ">")
		} else {
			out = append(out, "> "+line)
		}
	}
	return out
}
