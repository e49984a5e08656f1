// Package message decodes raw RFC 5322 mail into the structured form the
// rest of the pipeline works on. Parsing is strict: a message that lacks the
// headers needed for threading fails here rather than producing a partial
// result downstream.
package message

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Address is a parsed mailbox: display name plus address.
type Address struct {
	Name  string
	Email string
}

// String renders the address as "Name <email>", or the bare address when no
// display name is present.
func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// TrailerLine is an acknowledgment trailer found in a message body, such as
// "Reviewed-by: Jane Doe <jane@example.com>".
type TrailerLine struct {
	Kind  string
	Name  string
	Email string
	// Line is the index into BodyLines where the trailer was found.
	Line int
}

// String renders the trailer in canonical form.
func (t TrailerLine) String() string {
	if t.Name == "" {
		return fmt.Sprintf("%s: <%s>", t.Kind, t.Email)
	}
	return fmt.Sprintf("%s: %s <%s>", t.Kind, t.Name, t.Email)
}

// trailerPattern matches a canonical trailer line. The kind is
// case-sensitive and must end in "-by" (Reviewed-by, Signed-off-by, ...),
// which keeps quoted header lines in patch bodies from matching.
var trailerPattern = regexp.MustCompile(`^([A-Z][A-Za-z-]*-by): (.*?) ?<([^<>]+)>$`)

// ParsedMessage is the in-memory form of an inbound email. It is never
// mutated after Parse returns; the composer builds a fresh outbound value.
type ParsedMessage struct {
	// MessageID is the bare message id, without angle brackets. Never
	// empty after a successful parse.
	MessageID string
	From      Address
	To        []Address
	Cc        []Address
	Subject   string
	// Date is the parsed Date header; zero when absent.
	Date time.Time
	// References holds the threading chain: the References header entries
	// followed by In-Reply-To when not already present, duplicates
	// removed, order preserved. Bare ids, no brackets.
	References []string
	// InReplyTo is the bare id from In-Reply-To, or empty.
	InReplyTo string
	// BodyLines is the first text/plain part split into lines, without
	// line terminators. A trailing newline on the body does not produce
	// a final empty element.
	BodyLines []string
	// Trailers are the acknowledgment trailers already present in the
	// body, in order of appearance.
	Trailers []TrailerLine
}

// Body joins BodyLines back into the body text with a trailing newline.
func (m *ParsedMessage) Body() string {
	if len(m.BodyLines) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range m.BodyLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// HasTrailer reports whether a trailer of the given kind for the given email
// is already present. Kind comparison is exact; email comparison is
// case-insensitive per RFC 5321 practice for the domain part (and common
// practice for the whole address in review workflows).
func (m *ParsedMessage) HasTrailer(kind, email string) (TrailerLine, bool) {
	for _, t := range m.Trailers {
		if t.Kind == kind && strings.EqualFold(t.Email, email) {
			return t, true
		}
	}
	return TrailerLine{}, false
}

// LastTrailerLine returns the body line index of the last trailer, or -1
// when the body carries none.
func (m *ParsedMessage) LastTrailerLine() int {
	if len(m.Trailers) == 0 {
		return -1
	}
	return m.Trailers[len(m.Trailers)-1].Line
}

// MalformedError reports a message that cannot enter the pipeline: missing
// required headers, no plain-text body, or an unparseable structure.
type MalformedError struct {
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed message: %s", e.Reason)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// EncodingError reports a body or header whose declared charset could not be
// decoded.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("charset decoding failed: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }
