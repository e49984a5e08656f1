package send

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/ackmail/ackmail/internal/identity"
	"github.com/ackmail/ackmail/internal/logging"
)

// SendmailTransport pipes the message to a local sendmail-compatible command,
// one subprocess per submission. The envelope is passed on the command line
// (-f for the sender, recipients as trailing arguments) and the message on
// stdin; -i keeps a lone dot from ending the input early.
type SendmailTransport struct {
	Cmd    []string
	Logger *slog.Logger
}

// NewSendmailTransport creates a transport running the given command line.
func NewSendmailTransport(cmd []string, logger *slog.Logger) *SendmailTransport {
	if logger == nil {
		logger = slog.Default()
	}
	name := ""
	if len(cmd) > 0 {
		name = cmd[0]
	}
	return &SendmailTransport{
		Cmd:    cmd,
		Logger: logging.WithTransport(logger, string(identity.TransportSendmail), name),
	}
}

// Send implements Transport.
func (t *SendmailTransport) Send(ctx context.Context, env Envelope, msg io.Reader) error {
	if len(t.Cmd) == 0 {
		return &ConnectionError{State: StateDisconnected, Err: fmt.Errorf("sendmail command not configured")}
	}

	args := append([]string{}, t.Cmd[1:]...)
	args = append(args, "-i", "-f", env.From)
	args = append(args, env.Recipients...)

	cmd := exec.CommandContext(ctx, t.Cmd[0], args...)
	cmd.Stdin = msg
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return &TimeoutError{State: StateSending, Err: ctx.Err()}
		}
		return &DeliveryError{Err: fmt.Errorf("%s: %w: %s", t.Cmd[0], err, bytes.TrimSpace(output.Bytes()))}
	}
	t.Logger.Info("message handed to sendmail", "recipients", len(env.Recipients))
	return nil
}
