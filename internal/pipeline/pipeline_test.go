package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/ackmail/ackmail/internal/compose"
	"github.com/ackmail/ackmail/internal/identity"
	"github.com/ackmail/ackmail/internal/message"
	"github.com/ackmail/ackmail/internal/pipeline"
	"github.com/ackmail/ackmail/internal/send"
	"github.com/ackmail/ackmail/internal/trailer"
)

const patchMail = "Message-ID: <patch-1@example.com>\r\n" +
	"From: Arthur Author <arthur@example.com>\r\n" +
	"To: dev@lists.example.com\r\n" +
	"Cc: Jane Doe <jane@example.com>\r\n" +
	"Subject: [PATCH] fix buffer overflow\r\n" +
	"Date: Mon, 03 Aug 2026 10:15:00 +0000\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"The ring buffer index wrapped one element early.\r\n" +
	"\r\n" +
	"Signed-off-by: Arthur Author <arthur@example.com>\r\n"

var jane = identity.Identity{Name: "Jane Doe", Email: "jane@example.com"}

// captureTransport records the envelope and bytes of each submission.
type captureTransport struct {
	mu        sync.Mutex
	envelopes []send.Envelope
	messages  [][]byte
	err       error
}

func (c *captureTransport) Send(ctx context.Context, env send.Envelope, msg io.Reader) error {
	if c.err != nil {
		return c.err
	}
	data, err := io.ReadAll(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.envelopes = append(c.envelopes, env)
	c.messages = append(c.messages, data)
	c.mu.Unlock()
	return nil
}

// mapLedger is an in-memory ledger double.
type mapLedger struct {
	mu      sync.Mutex
	records map[string]bool
}

func newMapLedger() *mapLedger {
	return &mapLedger{records: make(map[string]bool)}
}

func (l *mapLedger) Seen(ctx context.Context, messageID, kind string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records[messageID+"/"+kind], nil
}

func (l *mapLedger) Record(ctx context.Context, messageID, kind string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[messageID+"/"+kind] = true
	return nil
}

func newPipeline(transport *captureTransport, l *mapLedger) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Identity:      jane,
		Transport:     transport,
		TransportKind: "smtp",
		Ledger:        l,
		Options:       compose.Options{},
	}
}

func TestRun_SendsAcknowledgment(t *testing.T) {
	transport := &captureTransport{}
	p := newPipeline(transport, newMapLedger())

	outcome, err := p.Run(context.Background(), []byte(patchMail), []trailer.Kind{trailer.ReviewedBy})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Status != pipeline.StatusSent {
		t.Fatalf("status = %q, want %q", outcome.Status, pipeline.StatusSent)
	}
	if outcome.MessageID == "" {
		t.Error("outcome has no reply message id")
	}
	if len(outcome.Trailers) != 1 || outcome.Trailers[0].Kind != trailer.ReviewedBy {
		t.Errorf("trailers = %v", outcome.Trailers)
	}

	if len(transport.envelopes) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(transport.envelopes))
	}
	env := transport.envelopes[0]
	if env.From != "jane@example.com" {
		t.Errorf("envelope from = %q", env.From)
	}
	// Reply goes to the patch author; the list stays on Cc. Jane herself is
	// filtered out.
	want := map[string]bool{"arthur@example.com": true, "dev@lists.example.com": true}
	for _, rcpt := range env.Recipients {
		if !want[rcpt] {
			t.Errorf("unexpected recipient %q", rcpt)
		}
		delete(want, rcpt)
	}
	for rcpt := range want {
		t.Errorf("missing recipient %q", rcpt)
	}
}

func TestRun_ReplyIsThreaded(t *testing.T) {
	transport := &captureTransport{}
	p := newPipeline(transport, newMapLedger())

	if _, err := p.Run(context.Background(), []byte(patchMail), []trailer.Kind{trailer.ReviewedBy}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	reply, err := message.Parse(transport.messages[0])
	if err != nil {
		t.Fatalf("parsing delivered reply: %v", err)
	}
	if reply.InReplyTo != "patch-1@example.com" {
		t.Errorf("In-Reply-To = %q", reply.InReplyTo)
	}
	if len(reply.References) == 0 || reply.References[len(reply.References)-1] != "patch-1@example.com" {
		t.Errorf("References = %v", reply.References)
	}
	if reply.Subject != "Re: [PATCH] fix buffer overflow" {
		t.Errorf("Subject = %q", reply.Subject)
	}
	if got, ok := reply.HasTrailer("Reviewed-by", "jane@example.com"); !ok {
		t.Error("delivered reply carries no Reviewed-by trailer")
	} else if got.Name != "Jane Doe" {
		t.Errorf("trailer name = %q", got.Name)
	}
}

func TestRun_SecondRunIsSkipped(t *testing.T) {
	transport := &captureTransport{}
	l := newMapLedger()
	p := newPipeline(transport, l)
	ctx := context.Background()
	kinds := []trailer.Kind{trailer.ReviewedBy}

	if _, err := p.Run(ctx, []byte(patchMail), kinds); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	outcome, err := p.Run(ctx, []byte(patchMail), kinds)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if outcome.Status != pipeline.StatusSkipped {
		t.Errorf("second run status = %q, want %q", outcome.Status, pipeline.StatusSkipped)
	}
	if len(outcome.Skipped) != 1 || outcome.Skipped[0].Reason != pipeline.SkipReasonSent {
		t.Errorf("skipped = %v", outcome.Skipped)
	}
	if len(transport.envelopes) != 1 {
		t.Errorf("expected no second delivery, got %d total", len(transport.envelopes))
	}
}

func TestRun_ExistingTrailerIsNoOp(t *testing.T) {
	acked := strings.Replace(patchMail,
		"Signed-off-by: Arthur Author <arthur@example.com>\r\n",
		"Signed-off-by: Arthur Author <arthur@example.com>\r\nReviewed-by: Jane Doe <jane@example.com>\r\n",
		1)

	transport := &captureTransport{}
	p := newPipeline(transport, newMapLedger())

	outcome, err := p.Run(context.Background(), []byte(acked), []trailer.Kind{trailer.ReviewedBy})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Status != pipeline.StatusSkipped {
		t.Errorf("status = %q, want %q", outcome.Status, pipeline.StatusSkipped)
	}
	if len(outcome.Skipped) != 1 || outcome.Skipped[0].Reason != pipeline.SkipReasonPresent {
		t.Errorf("skipped = %v", outcome.Skipped)
	}
	if len(transport.envelopes) != 0 {
		t.Error("no reply must be sent when the trailer is already present")
	}
}

func TestRun_PartialKinds(t *testing.T) {
	// Reviewed-by is already present; Tested-by is not. The reply carries
	// only Tested-by.
	acked := strings.Replace(patchMail,
		"Signed-off-by: Arthur Author <arthur@example.com>\r\n",
		"Reviewed-by: Jane Doe <jane@example.com>\r\n",
		1)

	transport := &captureTransport{}
	p := newPipeline(transport, newMapLedger())

	outcome, err := p.Run(context.Background(), []byte(acked),
		[]trailer.Kind{trailer.ReviewedBy, trailer.TestedBy})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Status != pipeline.StatusSent {
		t.Fatalf("status = %q, want %q", outcome.Status, pipeline.StatusSent)
	}
	if len(outcome.Trailers) != 1 || outcome.Trailers[0].Kind != trailer.TestedBy {
		t.Errorf("trailers = %v", outcome.Trailers)
	}
	if len(outcome.Skipped) != 1 || outcome.Skipped[0].Kind != trailer.ReviewedBy {
		t.Errorf("skipped = %v", outcome.Skipped)
	}

	if !bytes.Contains(transport.messages[0], []byte("Tested-by: Jane Doe <jane@example.com>")) {
		t.Error("reply does not carry the Tested-by trailer")
	}
}

func TestRun_RepeatedKindYieldsOneTrailer(t *testing.T) {
	transport := &captureTransport{}
	p := newPipeline(transport, newMapLedger())

	outcome, err := p.Run(context.Background(), []byte(patchMail),
		[]trailer.Kind{trailer.ReviewedBy, trailer.ReviewedBy})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Status != pipeline.StatusSent {
		t.Fatalf("status = %q, want %q", outcome.Status, pipeline.StatusSent)
	}
	if len(outcome.Trailers) != 1 {
		t.Fatalf("trailers = %v, want exactly one", outcome.Trailers)
	}

	line := []byte("Reviewed-by: Jane Doe <jane@example.com>")
	if got := bytes.Count(transport.messages[0], line); got != 1 {
		t.Errorf("reply carries the trailer %d times, want 1", got)
	}
}

func TestRun_UnknownKind(t *testing.T) {
	p := newPipeline(&captureTransport{}, newMapLedger())

	_, err := p.Run(context.Background(), []byte(patchMail), []trailer.Kind{"reviewed-by"})
	var kindErr *trailer.UnknownKindError
	if !errors.As(err, &kindErr) {
		t.Fatalf("expected UnknownKindError, got %v", err)
	}
}

func TestRun_ParseFailure(t *testing.T) {
	p := newPipeline(&captureTransport{}, newMapLedger())

	_, err := p.Run(context.Background(), []byte("not a mail message"), []trailer.Kind{trailer.ReviewedBy})
	if err == nil {
		t.Fatal("expected parse error")
	}
	var malformed *message.MalformedError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedError, got %v", err)
	}
}

func TestRun_TransportFailureDoesNotRecord(t *testing.T) {
	transport := &captureTransport{err: errors.New("connection refused")}
	l := newMapLedger()
	p := newPipeline(transport, l)

	_, err := p.Run(context.Background(), []byte(patchMail), []trailer.Kind{trailer.ReviewedBy})
	if err == nil {
		t.Fatal("expected delivery error")
	}

	seen, _ := l.Seen(context.Background(), "patch-1@example.com", "Reviewed-by")
	if seen {
		t.Error("failed delivery must not be recorded in the ledger")
	}
}
