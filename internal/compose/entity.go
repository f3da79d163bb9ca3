package compose

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"
)

// Transfer encodings understood by Entity.
const (
	Encoding7Bit            = "7bit"
	Encoding8Bit            = "8bit"
	EncodingBase64          = "base64"
	EncodingQuotedPrintable = "quoted-printable"
)

// Entity is one MIME entity. Leaf entities carry a decoded Body that is
// encoded with Encoding on output; multipart entities carry Parts and a
// boundary parameter.
type Entity struct {
	ContentType       string
	Params            map[string]string
	Disposition       string
	DispositionParams map[string]string
	Encoding          string
	Description       string

	Body  []byte
	Parts []*Entity
}

// NewMultipart returns a multipart entity of the given subtype with a fresh
// boundary.
func NewMultipart(subtype string, params map[string]string, parts ...*Entity) *Entity {
	p := map[string]string{"boundary": NewBoundary()}
	for k, v := range params {
		p[k] = v
	}
	return &Entity{
		ContentType: "multipart/" + subtype,
		Params:      p,
		Parts:       parts,
	}
}

// NewBoundary returns a random multipart boundary.
func NewBoundary() string {
	return "draftmail-" + uuid.NewString()
}

// IsMultipart reports whether the entity is a multipart container.
func (e *Entity) IsMultipart() bool {
	return strings.HasPrefix(strings.ToLower(e.ContentType), "multipart/")
}

// IsText reports whether the entity is a text/* leaf.
func (e *Entity) IsText() bool {
	return strings.HasPrefix(strings.ToLower(e.ContentType), "text/")
}

// Header builds the MIME header fields of the entity.
func (e *Entity) Header() message.Header {
	var h message.Header
	e.addHeader(&h)
	return h
}

// addHeader adds the entity's MIME fields to h. textproto.Header writes
// fields in reverse insertion order, so the last field added is written
// first.
func (e *Entity) addHeader(h *message.Header) {
	if e.Description != "" {
		h.Add("Content-Description", e.Description)
	}
	if e.Disposition != "" {
		h.SetContentDisposition(e.Disposition, e.DispositionParams)
	}
	if e.Encoding != "" && !e.IsMultipart() {
		h.Add("Content-Transfer-Encoding", e.Encoding)
	}
	h.SetContentType(e.ContentType, e.Params)
}

// WriteTo writes the entity with its MIME header.
func (e *Entity) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	h := e.Header()
	if err := textproto.WriteHeader(cw, h.Header); err != nil {
		return cw.n, fmt.Errorf("write entity header: %w", err)
	}
	if err := e.writeBody(cw); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Bytes renders the entity with its MIME header.
func (e *Entity) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBody writes the entity body. Containers are framed by a
// textproto.MultipartWriter with each part header written by CreatePart, so
// a part renders the same bytes nested as it does through WriteTo.
func (e *Entity) writeBody(w io.Writer) error {
	if !e.IsMultipart() {
		return e.writeLeaf(w)
	}

	mw := textproto.NewMultipartWriter(w)
	if err := mw.SetBoundary(e.Params["boundary"]); err != nil {
		return fmt.Errorf("multipart entity %s: %w", e.ContentType, err)
	}
	for _, p := range e.Parts {
		h := p.Header()
		pw, err := mw.CreatePart(h.Header)
		if err != nil {
			return err
		}
		if err := p.writeBody(pw); err != nil {
			return err
		}
	}
	return mw.Close()
}

// writeLeaf encodes the body with the entity's transfer encoding.
func (e *Entity) writeLeaf(w io.Writer) error {
	var wc io.WriteCloser
	switch strings.ToLower(e.Encoding) {
	case EncodingBase64:
		wc = base64.NewEncoder(base64.StdEncoding, &lineWriter{w: w, max: 76})
	case EncodingQuotedPrintable:
		wc = quotedprintable.NewWriter(w)
	default:
		wc = nopCloser{w}
	}
	body := e.Body
	if !strings.EqualFold(e.Encoding, EncodingBase64) {
		body = CRLF(body)
	}
	if _, err := wc.Write(body); err != nil {
		return err
	}
	return wc.Close()
}

// lineWriter breaks encoded output into lines of at most max bytes
// separated by CRLF.
type lineWriter struct {
	w   io.Writer
	max int
	n   int
}

func (l *lineWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if l.n == l.max {
			if _, err := io.WriteString(l.w, "\r\n"); err != nil {
				return written, err
			}
			l.n = 0
		}
		k := min(l.max-l.n, len(p))
		if _, err := l.w.Write(p[:k]); err != nil {
			return written, err
		}
		l.n += k
		written += k
		p = p[k:]
	}
	return written, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// CRLF normalizes line endings to CRLF.
func CRLF(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
