package draft

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	text := New("Alice <alice@example.com>")
	p, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "", p.Body)
	require.Len(t, p.Fields, 3)
	assert.Equal(t, "From", p.Fields[0].Name)
	assert.Equal(t, "Alice <alice@example.com>", p.Fields[0].Value)
}

func TestInsertField_GoesAboveMarker(t *testing.T) {
	text := "To: b@example.com\n--text follows this line--\nbody\n"

	out, err := AttachFile(text, "/tmp/report.pdf")
	require.NoError(t, err)
	out, err = RequestSign(out)
	require.NoError(t, err)
	out, err = RequestEncrypt(out)
	require.NoError(t, err)
	out, err = AttachMessage(out, "INBOX", 9)
	require.NoError(t, err)

	assert.Equal(t, "To: b@example.com\n"+
		"Attached-File: /tmp/report.pdf\n"+
		"PGP-Sign: yes\n"+
		"PGP-Encrypt: yes\n"+
		"Attached-Message: INBOX/9\n"+
		"--text follows this line--\nbody\n", out)

	p, err := Parse(out)
	require.NoError(t, err)
	c := Classify(p.Fields)
	assert.Equal(t, Directive{Sign: true, Encrypt: true}, c.Directive)
	assert.Equal(t, []FileAttachment{{Path: "/tmp/report.pdf"}}, c.Files)
	assert.Equal(t, []MessageAttachment{{Ref: "INBOX/9"}}, c.Messages)
}

func TestInsertField_MissingMarker(t *testing.T) {
	text := "To: b@example.com\n\nbody\n"
	out, err := RequestSign(text)
	assert.True(t, errors.Is(err, ErrMalformedDraft))
	assert.Equal(t, text, out)
}
