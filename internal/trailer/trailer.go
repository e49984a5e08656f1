// Package trailer decides which acknowledgment trailer to add to a reply
// and where it belongs in the body. The engine is idempotent: a trailer
// that is already present for the same identity yields a no-op result so
// the caller can skip sending instead of acknowledging twice.
package trailer

import (
	"fmt"
	"regexp"

	"github.com/ackmail/ackmail/internal/identity"
	"github.com/ackmail/ackmail/internal/message"
)

// Kind is a trailer kind such as Reviewed-by. Custom kinds are permitted
// when they match the canonical pattern.
type Kind string

const (
	ReviewedBy Kind = "Reviewed-by"
	TestedBy   Kind = "Tested-by"
	AckedBy    Kind = "Acked-by"
)

// kindPattern is the shape a custom trailer kind must have: capitalized,
// ending in "-by", matching the body-scan pattern in the message package.
var kindPattern = regexp.MustCompile(`^[A-Z][A-Za-z-]*-by$`)

// UnknownKindError reports a trailer kind that is neither recognized nor an
// allowed custom kind.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown trailer kind %q", e.Kind)
}

// ParseKind validates a caller-supplied kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case ReviewedBy, TestedBy, AckedBy:
		return Kind(s), nil
	}
	if kindPattern.MatchString(s) {
		return Kind(s), nil
	}
	return "", &UnknownKindError{Kind: s}
}

// Trailer is a single acknowledgment to be inserted into the reply body.
type Trailer struct {
	Kind  Kind
	Name  string
	Email string
}

// String renders the trailer in canonical "Kind: Name <email>" form.
func (t Trailer) String() string {
	if t.Name == "" {
		return fmt.Sprintf("%s: <%s>", t.Kind, t.Email)
	}
	return fmt.Sprintf("%s: %s <%s>", t.Kind, t.Name, t.Email)
}

// InsertionPoint says where in a body the trailer lines go.
type InsertionPoint struct {
	// Line is the index in BodyLines before which the trailer is
	// inserted (i.e. the trailer becomes line Line).
	Line int
	// NeedsBlank requests a blank separator line before the trailer,
	// used when appending to a body that has no trailer block yet.
	NeedsBlank bool
}

// Result is the outcome of computing a trailer. When NoOp is set the
// message already carries an equivalent trailer, Existing describes it, and
// no reply must be sent for this kind.
type Result struct {
	NoOp     bool
	Existing message.TrailerLine
	Trailer  Trailer
	Point    InsertionPoint
}

// Compute determines the trailer for the given kind and identity and its
// insertion point in the parsed body. Idempotence: an existing trailer with
// the same kind and a case-insensitively equal email produces a no-op
// result.
func Compute(parsed *message.ParsedMessage, id identity.Identity, kind Kind) (Result, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Result{}, err
	}

	if existing, ok := parsed.HasTrailer(string(kind), id.Email); ok {
		return Result{NoOp: true, Existing: existing}, nil
	}

	return Result{
		Trailer: Trailer{Kind: kind, Name: id.Name, Email: id.Email},
		Point:   Placement(parsed),
	}, nil
}

// Placement returns the insertion point for a new trailer: immediately
// after the last existing trailer, or at the end of the body preceded by a
// blank line when no trailer block exists yet.
func Placement(parsed *message.ParsedMessage) InsertionPoint {
	if last := parsed.LastTrailerLine(); last >= 0 {
		return InsertionPoint{Line: last + 1}
	}
	n := len(parsed.BodyLines)
	needsBlank := n > 0 && parsed.BodyLines[n-1] != ""
	return InsertionPoint{Line: n, NeedsBlank: needsBlank}
}
