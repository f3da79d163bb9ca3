package draft

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Marker is the literal line separating the header block from the body.
const Marker = "--text follows this line--"

// ErrMalformedDraft is returned when a draft has no marker line.
var ErrMalformedDraft = errors.New("malformed draft: missing header/body marker line")

// markerPattern matches the marker as a whole line, with its newline if any.
var markerPattern = regexp.MustCompile(`(?m)^--text follows this line--(?:\n|\z)`)

// fieldPattern matches one header field including folded continuation
// lines. Names are printable ASCII without the colon.
var fieldPattern = regexp.MustCompile(`(?m)^([!-9;-~]+):[ \t]*(.*(?:\n[ \t].*)*)\n`)

// HeaderField is a single name/value pair from the draft header block.
// Value keeps folded continuation lines as typed.
type HeaderField struct {
	Name  string
	Value string
}

// Parsed is the result of splitting a draft on its marker line.
type Parsed struct {
	// Header is the header block text, up to the marker line.
	Header string

	// Body is everything after the marker line.
	Body string

	// Fields are the header fields in the order they appear.
	Fields []HeaderField

	separator string
}

// Parse splits text on the first marker line and tokenizes the header
// block into fields.
func Parse(text string) (*Parsed, error) {
	loc := markerPattern.FindStringIndex(text)
	if loc == nil {
		return nil, ErrMalformedDraft
	}

	p := &Parsed{
		Header:    text[:loc[0]],
		Body:      text[loc[1]:],
		separator: text[loc[0]:loc[1]],
	}
	p.Fields = ParseFields(p.Header)
	return p, nil
}

// ParseFields tokenizes a header block. Lines that do not start a field
// and are not continuations are skipped.
func ParseFields(header string) []HeaderField {
	matches := fieldPattern.FindAllStringSubmatch(header, -1)
	fields := make([]HeaderField, 0, len(matches))
	for _, m := range matches {
		fields = append(fields, HeaderField{Name: m[1], Value: m[2]})
	}
	return fields
}

// Text rejoins the header block, marker line and body.
func (p *Parsed) Text() string {
	return p.Header + p.separator + p.Body
}

// BodyEmpty reports whether the body has no content besides whitespace.
func (p *Parsed) BodyEmpty() bool {
	return strings.TrimSpace(p.Body) == ""
}

// FileAttachment is a local file declared with Attached-File.
type FileAttachment struct {
	Path string
}

// MessageAttachment references a stored message declared with
// Attached-Message as "mailbox/uid".
type MessageAttachment struct {
	Ref string
}

// Locate splits the reference into mailbox and UID. The UID follows the
// last slash so hierarchical mailbox names are accepted.
func (a MessageAttachment) Locate() (string, uint32, error) {
	i := strings.LastIndex(a.Ref, "/")
	if i <= 0 || i == len(a.Ref)-1 {
		return "", 0, fmt.Errorf("invalid message reference %q: want mailbox/uid", a.Ref)
	}
	uid, err := strconv.ParseUint(strings.TrimSpace(a.Ref[i+1:]), 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid message reference %q: %w", a.Ref, err)
	}
	return a.Ref[:i], uint32(uid), nil
}

// Directive holds the PGP options requested by the draft.
type Directive struct {
	Sign    bool
	Encrypt bool
}

// Active reports whether any cryptographic operation was requested.
func (d Directive) Active() bool {
	return d.Sign || d.Encrypt
}
