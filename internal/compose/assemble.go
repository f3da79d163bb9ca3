package compose

import (
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/draftmail/internal/draft"
)

// Options controls message assembly.
type Options struct {
	// Charset is the preferred charset; utf-8 when empty.
	Charset string

	// ReadFile reads file attachments. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)

	// Now stamps the Date header. Defaults to time.Now.
	Now func() time.Time
}

// Input is a parsed and classified draft.
type Input struct {
	// Text is the full draft text; it decides the charset.
	Text string

	// Body is the text after the marker line.
	Body string

	Classification draft.Classification
}

// Assemble builds a message from a classified draft. File attachments are
// read here, in declared order; message attachments are returned unresolved
// for the caller to fetch and embed with Message.AppendMessage.
func Assemble(in Input, opts Options) (*Message, []draft.MessageAttachment, error) {
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	charset := NegotiateCharset(in.Text, opts.Charset)
	body, charset := EncodeText(in.Body, charset)

	c := in.Classification
	m := &Message{
		Header:    append([]draft.HeaderField(nil), c.Headers...),
		Charset:   charset,
		Encoding:  Encoding8Bit,
		Body:      body,
		Multipart: c.HasAttachments(),
	}

	read := make(map[string][]byte)
	for _, f := range c.Files {
		data, ok := read[f.Path]
		if !ok {
			var err error
			data, err = opts.ReadFile(f.Path)
			if err != nil {
				return nil, nil, &FileAttachmentError{Path: f.Path, Err: err}
			}
			read[f.Path] = data
		}
		m.Parts = append(m.Parts, fileEntity(f.Path, data))
	}

	if !m.Has("Date") {
		m.Header = append(m.Header, draft.HeaderField{
			Name:  "Date",
			Value: opts.Now().Format(time.RFC1123Z),
		})
	}
	if !m.Has("Message-ID") {
		m.Header = append(m.Header, draft.HeaderField{
			Name:  "Message-ID",
			Value: newMessageID(m),
		})
	}

	return m, append([]draft.MessageAttachment(nil), c.Messages...), nil
}

func fileEntity(path string, data []byte) *Entity {
	name := filepath.Base(path)
	contentType := "application/octet-stream"
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			contentType = mt
		}
	}
	return &Entity{
		ContentType:       contentType,
		Params:            map[string]string{"name": name},
		Disposition:       "attachment",
		DispositionParams: map[string]string{"filename": name},
		Encoding:          EncodingBase64,
		Body:              data,
	}
}

func newMessageID(m *Message) string {
	domain := "localhost"
	if from, err := m.Sender(); err == nil {
		if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
			domain = from[i+1:]
		}
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
