package pgp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/draftmail/internal/compose"
	"github.com/nhle/draftmail/internal/draft"
)

func newKey(t *testing.T, name, email string) *openpgp.Entity {
	t.Helper()
	e, err := openpgp.NewEntity(name, "", email, &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	require.NoError(t, err)
	return e
}

func newMessage(t *testing.T, text string) *compose.Message {
	t.Helper()
	p, err := draft.Parse(text)
	require.NoError(t, err)
	m, _, err := compose.Assemble(compose.Input{
		Text:           text,
		Body:           p.Body,
		Classification: draft.Classify(p.Fields),
	}, compose.Options{})
	require.NoError(t, err)
	return m
}

func TestApply_NoDirectiveIsNoop(t *testing.T) {
	c := New(nil, nil, Options{})
	m := newMessage(t, "To: b@x.org\n--text follows this line--\nhi")
	before := m.Content()

	require.NoError(t, c.Apply(context.Background(), m, draft.Directive{}))
	assert.Equal(t, before, m.Content())
}

func TestApply_Sign(t *testing.T) {
	alice := newKey(t, "Alice", "alice@x.org")
	c := New(openpgp.EntityList{alice}, nil, Options{})
	m := newMessage(t, "From: alice@x.org\nTo: bob@x.org\n--text follows this line--\nHello Bob\n")

	require.NoError(t, c.Apply(context.Background(), m, draft.Directive{Sign: true}))

	signed := m.Content()
	assert.Equal(t, "multipart/signed", signed.ContentType)
	assert.Equal(t, "application/pgp-signature", signed.Params["protocol"])
	assert.Equal(t, "pgp-sha256", signed.Params["micalg"])
	require.Len(t, signed.Parts, 2)
	assert.Equal(t, compose.EncodingQuotedPrintable, signed.Parts[0].Encoding)

	data, err := signed.Parts[0].Bytes()
	require.NoError(t, err)
	_, err = openpgp.CheckArmoredDetachedSignature(openpgp.EntityList{alice},
		bytes.NewReader(data), bytes.NewReader(signed.Parts[1].Body), nil)
	require.NoError(t, err)

	raw, err := m.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(raw), string(data))
	assert.Contains(t, string(raw), "-----BEGIN PGP SIGNATURE-----")
}

func TestApply_SignWithoutKey(t *testing.T) {
	c := New(nil, nil, Options{})
	m := newMessage(t, "To: bob@x.org\n--text follows this line--\nhi")

	err := c.Apply(context.Background(), m, draft.Directive{Sign: true})
	assert.True(t, errors.Is(err, ErrNoSigningKey))
	assert.Equal(t, "text/plain", m.Content().ContentType)
}

func TestApply_EncryptAndSign(t *testing.T) {
	alice := newKey(t, "Alice", "alice@x.org")
	bob := newKey(t, "Bob", "bob@x.org")
	c := New(openpgp.EntityList{alice}, openpgp.EntityList{bob}, Options{EncryptToSelf: true})
	m := newMessage(t, "From: alice@x.org\nTo: Bob <bob@x.org>\n--text follows this line--\nsecret plans\n")

	require.NoError(t, c.Apply(context.Background(), m, draft.Directive{Sign: true, Encrypt: true}))

	enc := m.Content()
	assert.Equal(t, "multipart/encrypted", enc.ContentType)
	require.Len(t, enc.Parts, 2)
	assert.Equal(t, "Version: 1\n", string(enc.Parts[0].Body))

	for _, reader := range []*openpgp.Entity{bob, alice} {
		block, err := armor.Decode(bytes.NewReader(enc.Parts[1].Body))
		require.NoError(t, err)
		md, err := openpgp.ReadMessage(block.Body, openpgp.EntityList{reader, alice}, nil, nil)
		require.NoError(t, err)
		plain, err := io.ReadAll(md.UnverifiedBody)
		require.NoError(t, err)
		assert.True(t, md.IsSigned)
		assert.NoError(t, md.SignatureError)
		assert.Contains(t, string(plain), "Content-Type: text/plain")
		assert.Contains(t, string(plain), "secret plans")
	}

	raw, err := m.Bytes()
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "secret plans"))
}

func TestApply_EncryptMissingRecipientKey(t *testing.T) {
	c := New(nil, nil, Options{})
	m := newMessage(t, "To: carol@x.org\n--text follows this line--\nhi")

	err := c.Apply(context.Background(), m, draft.Directive{Encrypt: true})
	var mk *MissingKeyError
	require.True(t, errors.As(err, &mk))
	assert.Equal(t, "carol@x.org", mk.Address)
}

func TestApply_SignMultipartKeepsAttachments(t *testing.T) {
	alice := newKey(t, "Alice", "alice@x.org")
	c := New(openpgp.EntityList{alice}, nil, Options{})
	m := newMessage(t, "From: alice@x.org\nAttached-Message: INBOX/1\n--text follows this line--\nfwd\n")
	m.AppendMessage([]byte("Subject: old\r\n\r\nold\r\n"))

	require.NoError(t, c.Apply(context.Background(), m, draft.Directive{Sign: true}))

	signed := m.Content()
	inner := signed.Parts[0]
	assert.Equal(t, "multipart/mixed", inner.ContentType)
	require.Len(t, inner.Parts, 2)
	assert.Equal(t, "message/rfc822", inner.Parts[1].ContentType)
}

func TestApply_HonorsCanceledContext(t *testing.T) {
	c := New(nil, nil, Options{})
	m := newMessage(t, "To: b@x.org\n--text follows this line--\nhi")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Apply(ctx, m, draft.Directive{Sign: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApply_SignRefuses8BitMessagePart(t *testing.T) {
	alice := newKey(t, "Alice", "alice@x.org")
	c := New(openpgp.EntityList{alice}, nil, Options{})
	m := newMessage(t, "From: alice@x.org\nAttached-Message: INBOX/1\n--text follows this line--\nfwd\n")
	m.AppendMessage([]byte("Subject: alt\r\n\r\nGrüße\r\n"))

	err := c.Apply(context.Background(), m, draft.Directive{Sign: true})

	var eb *EightBitPartError
	require.ErrorAs(t, err, &eb)
	assert.Equal(t, "message/rfc822", eb.ContentType)
	assert.Equal(t, "multipart/mixed", m.Content().ContentType)
}

func TestApply_SignMarks7BitMessagePart(t *testing.T) {
	alice := newKey(t, "Alice", "alice@x.org")
	c := New(openpgp.EntityList{alice}, nil, Options{})
	m := newMessage(t, "From: alice@x.org\nAttached-Message: INBOX/1\n--text follows this line--\nfwd\n")
	m.AppendMessage([]byte("Subject: old\r\n\r\nold\r\n"))

	require.NoError(t, c.Apply(context.Background(), m, draft.Directive{Sign: true}))

	inner := m.Content().Parts[0]
	assert.Equal(t, compose.Encoding7Bit, inner.Parts[1].Encoding)
}
