package message

import (
	"bytes"
	"errors"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // register extended charsets
	"github.com/emersion/go-message/mail"
)

// Parse decodes a raw RFC 5322 message. Message-ID, From, and Subject are
// required; their absence is a *MalformedError. Charset failures are
// reported as *EncodingError. For MIME messages the first text/plain part
// becomes the body; HTML-only messages are rejected.
func Parse(raw []byte) (*ParsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		if gomessage.IsUnknownCharset(err) {
			return nil, &EncodingError{Err: err}
		}
		return nil, &MalformedError{Reason: "unparseable message", Err: err}
	}
	defer mr.Close()

	parsed := &ParsedMessage{}

	if err := parseHeaders(&mr.Header, parsed); err != nil {
		return nil, err
	}

	body, err := firstPlainTextPart(mr)
	if err != nil {
		return nil, err
	}
	parsed.BodyLines = splitLines(body)
	parsed.Trailers = scanTrailers(parsed.BodyLines)

	return parsed, nil
}

func parseHeaders(h *mail.Header, parsed *ParsedMessage) error {
	msgID, err := h.MessageID()
	if err != nil {
		return &MalformedError{Reason: "invalid Message-ID header", Err: err}
	}
	if msgID == "" {
		return &MalformedError{Reason: "missing Message-ID header"}
	}
	parsed.MessageID = msgID

	from, err := h.AddressList("From")
	if err != nil {
		return &MalformedError{Reason: "invalid From header", Err: err}
	}
	if len(from) == 0 {
		return &MalformedError{Reason: "missing From header"}
	}
	parsed.From = Address{Name: from[0].Name, Email: from[0].Address}

	subject, err := h.Subject()
	if err != nil {
		if gomessage.IsUnknownCharset(err) {
			return &EncodingError{Err: err}
		}
		return &MalformedError{Reason: "invalid Subject header", Err: err}
	}
	if subject == "" {
		return &MalformedError{Reason: "missing Subject header"}
	}
	parsed.Subject = subject

	// Recipient lists and the date are optional; a bad list is still a
	// parse failure rather than a silently empty one.
	for _, field := range []struct {
		key  string
		dest *[]Address
	}{
		{"To", &parsed.To},
		{"Cc", &parsed.Cc},
	} {
		addrs, err := h.AddressList(field.key)
		if err != nil {
			return &MalformedError{Reason: "invalid " + field.key + " header", Err: err}
		}
		for _, a := range addrs {
			*field.dest = append(*field.dest, Address{Name: a.Name, Email: a.Address})
		}
	}

	if date, err := h.Date(); err == nil {
		parsed.Date = date
	}

	refs, err := h.MsgIDList("References")
	if err != nil {
		return &MalformedError{Reason: "invalid References header", Err: err}
	}
	inReplyTo, err := h.MsgIDList("In-Reply-To")
	if err != nil {
		return &MalformedError{Reason: "invalid In-Reply-To header", Err: err}
	}
	if len(inReplyTo) > 0 {
		parsed.InReplyTo = inReplyTo[0]
	}
	parsed.References = buildReferences(refs, parsed.InReplyTo)

	return nil
}

// buildReferences concatenates the References entries and In-Reply-To,
// dropping duplicates while preserving first-seen order. This chain seeds
// the reply's threading headers.
func buildReferences(refs []string, inReplyTo string) []string {
	seen := make(map[string]bool, len(refs)+1)
	var out []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range refs {
		add(id)
	}
	add(inReplyTo)
	return out
}

// firstPlainTextPart walks the MIME structure and returns the first
// text/plain part, decoded to UTF-8. A message with no such part cannot
// carry a trailer and is rejected.
func firstPlainTextPart(mr *mail.Reader) (string, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if gomessage.IsUnknownCharset(err) {
				return "", &EncodingError{Err: err}
			}
			return "", &MalformedError{Reason: "unreadable MIME part", Err: err}
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := header.ContentType()
		if err != nil {
			return "", &MalformedError{Reason: "invalid part Content-Type", Err: err}
		}
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}

		body, err := io.ReadAll(part.Body)
		if err != nil {
			return "", &EncodingError{Err: err}
		}
		return string(body), nil
	}
	return "", &MalformedError{Reason: "no text/plain body part"}
}

// splitLines normalizes CRLF to LF and splits into lines without
// terminators. A trailing newline does not yield a final empty line.
func splitLines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// scanTrailers records every canonical trailer line in the body.
func scanTrailers(lines []string) []TrailerLine {
	var trailers []TrailerLine
	for i, line := range lines {
		m := trailerPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		trailers = append(trailers, TrailerLine{
			Kind:  m[1],
			Name:  m[2],
			Email: m[3],
			Line:  i,
		})
	}
	return trailers
}

// IsMalformed reports whether err is a *MalformedError.
func IsMalformed(err error) bool {
	var malformed *MalformedError
	return errors.As(err, &malformed)
}
