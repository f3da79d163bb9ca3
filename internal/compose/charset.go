package compose

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultCharset is used when no charset is configured or the configured
// one cannot represent the draft.
const DefaultCharset = "utf-8"

// NegotiateCharset returns the charset the draft will be sent in. The
// preferred charset is kept when every character of text is representable
// in it; otherwise the result is utf-8.
func NegotiateCharset(text, preferred string) string {
	name := strings.ToLower(strings.TrimSpace(preferred))
	switch name {
	case "", "utf-8", "utf8":
		return DefaultCharset
	case "us-ascii", "ascii":
		if isASCII(text) {
			return "us-ascii"
		}
		return DefaultCharset
	}

	enc, canonical := lookupCharset(name)
	if enc == nil {
		return DefaultCharset
	}
	if _, err := enc.NewEncoder().String(text); err != nil {
		return DefaultCharset
	}
	return canonical
}

// EncodeText converts text to charset. Unknown charsets and
// unrepresentable text are returned as utf-8.
func EncodeText(text, charset string) ([]byte, string) {
	name := strings.ToLower(strings.TrimSpace(charset))
	switch name {
	case "", "utf-8", "utf8":
		return []byte(text), DefaultCharset
	case "us-ascii", "ascii":
		if isASCII(text) {
			return []byte(text), "us-ascii"
		}
		return []byte(text), DefaultCharset
	}

	enc, canonical := lookupCharset(name)
	if enc == nil {
		return []byte(text), DefaultCharset
	}
	b, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return []byte(text), DefaultCharset
	}
	return b, canonical
}

func lookupCharset(name string) (encoding.Encoding, string) {
	enc, err := ianaindex.MIME.Encoding(name)
	if err != nil || enc == nil {
		return nil, ""
	}
	canonical, err := ianaindex.MIME.Name(enc)
	if err != nil {
		canonical = name
	}
	return enc, strings.ToLower(canonical)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
