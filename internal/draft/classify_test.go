package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_RoutesControlFields(t *testing.T) {
	fields := []HeaderField{
		{Name: "From", Value: "a@example.com"},
		{Name: "Attached-File", Value: "  /tmp/a.txt "},
		{Name: "Received", Value: "one"},
		{Name: "Attached-Message", Value: "INBOX/12 "},
		{Name: "Received", Value: "two"},
		{Name: "Attached-File", Value: "/tmp/a.txt"},
		{Name: "PGP-Encrypt", Value: " yes"},
	}

	c := Classify(fields)

	assert.Equal(t, []HeaderField{
		{Name: "From", Value: "a@example.com"},
		{Name: "Received", Value: "one"},
		{Name: "Received", Value: "two"},
	}, c.Headers)
	assert.Equal(t, []FileAttachment{{Path: "/tmp/a.txt"}, {Path: "/tmp/a.txt"}}, c.Files)
	assert.Equal(t, []MessageAttachment{{Ref: "INBOX/12"}}, c.Messages)
	assert.Equal(t, Directive{Sign: false, Encrypt: true}, c.Directive)
	assert.True(t, c.HasAttachments())
}

func TestClassify_DirectiveDefaultsOff(t *testing.T) {
	c := Classify([]HeaderField{{Name: "Subject", Value: "x"}})
	assert.Equal(t, Directive{}, c.Directive)
	assert.False(t, c.Directive.Active())
	assert.False(t, c.HasAttachments())
}

func TestClassify_LastPGPSignWins(t *testing.T) {
	c := Classify([]HeaderField{
		{Name: "PGP-Sign", Value: "yes"},
		{Name: "PGP-Sign", Value: "no"},
	})
	assert.False(t, c.Directive.Sign)

	c = Classify([]HeaderField{
		{Name: "PGP-Sign", Value: "no"},
		{Name: "PGP-Sign", Value: "yes"},
	})
	assert.True(t, c.Directive.Sign)
}

func TestClassify_OnlyLiteralYesActivates(t *testing.T) {
	for _, v := range []string{"Yes", "YES", "true", "1", "y", ""} {
		c := Classify([]HeaderField{{Name: "PGP-Sign", Value: v}})
		assert.False(t, c.Directive.Sign, v)
	}
}

func TestClassify_NamesAreCaseSensitive(t *testing.T) {
	c := Classify([]HeaderField{
		{Name: "attached-file", Value: "/tmp/x"},
		{Name: "Pgp-Sign", Value: "yes"},
	})
	assert.Empty(t, c.Files)
	assert.False(t, c.Directive.Sign)
	assert.Len(t, c.Headers, 2)
	assert.Equal(t, "attached-file", c.Headers[0].Name)
}

func TestClassify_Idempotent(t *testing.T) {
	p, err := Parse("To: x@example.com\nAttached-File: /a\nPGP-Sign: yes\nAttached-Message: Sent/3\n" +
		"--text follows this line--\nbody\n")
	require.NoError(t, err)

	first := Classify(p.Fields)
	second := Classify(p.Fields)
	assert.Equal(t, first, second)
}
