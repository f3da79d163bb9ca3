package compose

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/nhle/draftmail/internal/draft"
)

// addressFields hold address lists and are re-encoded address by address.
var addressFields = map[string]bool{
	"from":     true,
	"to":       true,
	"cc":       true,
	"bcc":      true,
	"reply-to": true,
	"sender":   true,
}

// mimeFields are generated from the content and replace any copy the
// draft carries.
var mimeFields = map[string]bool{
	"mime-version":              true,
	"content-type":              true,
	"content-transfer-encoding": true,
}

// Message is an assembled mail message ready for crypto and delivery.
type Message struct {
	// Header holds the true headers in captured order with verbatim names.
	Header []draft.HeaderField

	// Charset tags the text body.
	Charset string

	// Encoding is the transfer encoding of the text body.
	Encoding string

	// Body is the text body encoded in Charset.
	Body []byte

	// Multipart is set when the draft declared attachments. The text body
	// is then the first part, followed by Parts.
	Multipart bool

	// Parts are the attachments in declared order.
	Parts []*Entity

	boundary string
	content  *Entity
}

// Get returns the value of the first header named name, compared
// case-insensitively, with folding removed.
func (m *Message) Get(name string) string {
	for _, f := range m.Header {
		if strings.EqualFold(f.Name, name) {
			return unfold(f.Value)
		}
	}
	return ""
}

// Has reports whether a header named name is present.
func (m *Message) Has(name string) bool {
	for _, f := range m.Header {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// AppendMessage embeds a stored message as a message/rfc822 part.
func (m *Message) AppendMessage(raw []byte) {
	m.Parts = append(m.Parts, &Entity{
		ContentType: "message/rfc822",
		Encoding:    Encoding8Bit,
		Body:        raw,
	})
}

// TextEntity returns the text body as a text/plain entity.
func (m *Message) TextEntity() *Entity {
	return &Entity{
		ContentType: "text/plain",
		Params:      map[string]string{"charset": m.Charset},
		Encoding:    m.Encoding,
		Body:        m.Body,
	}
}

// Content returns the entity that forms the message body: the crypto
// result if one was set, otherwise the text body alone or a multipart/mixed
// entity with the text body first.
func (m *Message) Content() *Entity {
	if m.content != nil {
		return m.content
	}
	if !m.Multipart {
		return m.TextEntity()
	}
	if m.boundary == "" {
		m.boundary = NewBoundary()
	}
	parts := append([]*Entity{m.TextEntity()}, m.Parts...)
	return &Entity{
		ContentType: "multipart/mixed",
		Params:      map[string]string{"boundary": m.boundary},
		Parts:       parts,
	}
}

// SetContent replaces the message body, typically with a signed or
// encrypted entity.
func (m *Message) SetContent(e *Entity) {
	m.content = e
}

// Sender returns the envelope sender taken from From.
func (m *Message) Sender() (string, error) {
	addrs, err := m.addresses("From")
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no From address")
	}
	return addrs[0], nil
}

// Recipients returns the envelope recipients from To, Cc and Bcc, without
// duplicates.
func (m *Message) Recipients() ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, name := range []string{"To", "Cc", "Bcc"} {
		addrs, err := m.addresses(name)
		if err != nil {
			return nil, err
		}
		for _, a := range addrs {
			key := strings.ToLower(a)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Message) addresses(name string) ([]string, error) {
	var out []string
	for _, f := range m.Header {
		if !strings.EqualFold(f.Name, name) {
			continue
		}
		v := strings.TrimSpace(unfold(f.Value))
		if v == "" {
			continue
		}
		list, err := mail.ParseAddressList(v)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		for _, a := range list {
			out = append(out, a.Address)
		}
	}
	return out, nil
}

// WriteTo writes the message in wire format. Bcc is not written, and the
// MIME fields describe the content actually written.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	content := m.Content()

	var h message.Header
	content.addHeader(&h)
	h.Add("MIME-Version", "1.0")
	for i := len(m.Header) - 1; i >= 0; i-- {
		f := m.Header[i]
		name := strings.ToLower(f.Name)
		if name == "bcc" || mimeFields[name] || strings.TrimSpace(f.Value) == "" {
			continue
		}
		v, err := encodeHeaderValue(f.Name, f.Value)
		if err != nil {
			return 0, err
		}
		h.AddRaw([]byte(f.Name + ": " + v + "\r\n"))
	}

	cw := &countingWriter{w: w}
	if err := textproto.WriteHeader(cw, h.Header); err != nil {
		return cw.n, fmt.Errorf("write header: %w", err)
	}
	if err := content.writeBody(cw); err != nil {
		return cw.n, fmt.Errorf("write body: %w", err)
	}
	return cw.n, nil
}

// Bytes renders the message in wire format.
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeHeaderValue applies RFC 2047 to non-ASCII values. ASCII values are
// written as typed with folding converted to CRLF.
func encodeHeaderValue(name, value string) (string, error) {
	if isASCII(value) {
		return strings.ReplaceAll(strings.ReplaceAll(value, "\r\n", "\n"), "\n", "\r\n"), nil
	}
	v := strings.TrimSpace(unfold(value))
	if !addressFields[strings.ToLower(name)] {
		return mime.QEncoding.Encode("utf-8", v), nil
	}
	list, err := mail.ParseAddressList(v)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}
	formatted := make([]string, len(list))
	for i, a := range list {
		formatted[i] = a.String()
	}
	return strings.Join(formatted, ", "), nil
}

func unfold(v string) string {
	v = strings.ReplaceAll(v, "\r\n", "\n")
	return strings.ReplaceAll(v, "\n", "")
}
