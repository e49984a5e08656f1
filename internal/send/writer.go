package send

import (
	"context"
	"fmt"
	"io"
)

// WriterTransport writes the rendered message to an io.Writer instead of
// delivering it. Used for dry runs, where the operator wants to inspect the
// exact bytes that would have been submitted.
type WriterTransport struct {
	W io.Writer
}

// Send implements Transport.
func (t *WriterTransport) Send(ctx context.Context, env Envelope, msg io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fmt.Fprintf(t.W, "Envelope-From: %s\n", env.From)
	for _, rcpt := range env.Recipients {
		fmt.Fprintf(t.W, "Envelope-To: %s\n", rcpt)
	}
	fmt.Fprintln(t.W)
	if _, err := io.Copy(t.W, msg); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	return nil
}
