package compose

import (
	"bytes"
	"fmt"
	"io"

	"github.com/emersion/go-message/mail"

	"github.com/ackmail/ackmail/internal/message"
)

// WriteTo renders the outbound message as RFC 5322 bytes, with header
// encoding (encoded words, folding) and body transfer encoding handled by
// go-message.
func (o *Outbound) WriteTo(w io.Writer) error {
	var h mail.Header
	h.SetDate(o.Date)
	h.SetAddressList("From", []*mail.Address{{Name: o.From.Name, Address: o.From.Email}})
	h.SetAddressList("To", toMailAddresses(o.To))
	if len(o.Cc) > 0 {
		h.SetAddressList("Cc", toMailAddresses(o.Cc))
	}
	h.SetSubject(o.Subject)
	h.SetMessageID(o.MessageID)
	h.SetMsgIDList("In-Reply-To", []string{o.InReplyTo})
	h.SetMsgIDList("References", o.References)

	body, err := mail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("writing message header: %w", err)
	}
	if _, err := io.WriteString(body, o.Body); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}
	return body.Close()
}

// Bytes renders the outbound message into memory.
func (o *Outbound) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := o.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toMailAddresses(addrs []message.Address) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &mail.Address{Name: a.Name, Address: a.Email})
	}
	return out
}
