package send_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ackmail/ackmail/internal/send"
)

// writeFakeSendmail writes a shell script that records its arguments and
// stdin, so the test can verify the exact invocation.
func writeFakeSendmail(t *testing.T, exitCode int) (script, argsFile, stdinFile string) {
	t.Helper()
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	stdinFile = filepath.Join(dir, "stdin")
	script = filepath.Join(dir, "fake-sendmail")
	content := "#!/bin/sh\n" +
		"printf '%s\\n' \"$@\" > " + argsFile + "\n" +
		"cat > " + stdinFile + "\n"
	if exitCode != 0 {
		content += "echo 'cannot deliver' >&2\n"
	}
	content += "exit " + strconv.Itoa(exitCode) + "\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatalf("write fake sendmail: %v", err)
	}
	return script, argsFile, stdinFile
}

func TestSendmailTransport_Invocation(t *testing.T) {
	script, argsFile, stdinFile := writeFakeSendmail(t, 0)

	tr := send.NewSendmailTransport([]string{script, "-oi"}, nil)
	env := send.Envelope{
		From:       "jane@example.com",
		Recipients: []string{"arthur@example.com", "dev@lists.example.com"},
	}
	msg := "Subject: Re: test\r\n\r\nReviewed-by: Jane Doe <jane@example.com>\r\n"
	if err := tr.Send(context.Background(), env, strings.NewReader(msg)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("reading captured args: %v", err)
	}
	want := []string{"-oi", "-i", "-f", "jane@example.com", "arthur@example.com", "dev@lists.example.com"}
	got := strings.Split(strings.TrimSpace(string(args)), "\n")
	if len(got) != len(want) {
		t.Fatalf("args: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg[%d]: got %q, want %q", i, got[i], want[i])
		}
	}

	stdin, err := os.ReadFile(stdinFile)
	if err != nil {
		t.Fatalf("reading captured stdin: %v", err)
	}
	if !bytes.Contains(stdin, []byte("Reviewed-by: Jane Doe")) {
		t.Errorf("message not piped to stdin; got: %q", stdin)
	}
}

func TestSendmailTransport_NonZeroExit(t *testing.T) {
	script, _, _ := writeFakeSendmail(t, 1)

	tr := send.NewSendmailTransport([]string{script}, nil)
	env := send.Envelope{From: "jane@example.com", Recipients: []string{"arthur@example.com"}}
	err := tr.Send(context.Background(), env, strings.NewReader("body\n"))

	var delErr *send.DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if !strings.Contains(err.Error(), "cannot deliver") {
		t.Errorf("error should carry the command's stderr; got %v", err)
	}
}

func TestSendmailTransport_MissingCommand(t *testing.T) {
	tr := send.NewSendmailTransport(nil, nil)
	env := send.Envelope{From: "jane@example.com", Recipients: []string{"arthur@example.com"}}
	err := tr.Send(context.Background(), env, strings.NewReader("body\n"))

	var connErr *send.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
}

func TestSendmailTransport_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "slow-sendmail")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 10\n"), 0755); err != nil {
		t.Fatalf("write slow sendmail: %v", err)
	}

	tr := send.NewSendmailTransport([]string{script}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	env := send.Envelope{From: "jane@example.com", Recipients: []string{"arthur@example.com"}}
	err := tr.Send(ctx, env, strings.NewReader("body\n"))

	var toErr *send.TimeoutError
	if !errors.As(err, &toErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestWriterTransport(t *testing.T) {
	var buf bytes.Buffer
	tr := &send.WriterTransport{W: &buf}
	env := send.Envelope{
		From:       "jane@example.com",
		Recipients: []string{"arthur@example.com"},
	}
	msg := "Subject: Re: test\r\n\r\nbody\r\n"
	if err := tr.Send(context.Background(), env, strings.NewReader(msg)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Envelope-From: jane@example.com") {
		t.Errorf("missing envelope sender; got:\n%s", out)
	}
	if !strings.Contains(out, "Envelope-To: arthur@example.com") {
		t.Errorf("missing envelope recipient; got:\n%s", out)
	}
	if !strings.Contains(out, "Subject: Re: test") {
		t.Errorf("missing message bytes; got:\n%s", out)
	}
}
