package draft

import (
	"strconv"
	"strings"
)

// New returns the text of an empty draft addressed from the given sender.
func New(from string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\n")
	b.WriteString("To: \n")
	b.WriteString("Subject: \n")
	b.WriteString(Marker + "\n")
	return b.String()
}

// InsertField adds "name: value" as the last header line, directly above
// the marker line.
func InsertField(text, name, value string) (string, error) {
	loc := markerPattern.FindStringIndex(text)
	if loc == nil {
		return text, ErrMalformedDraft
	}
	return text[:loc[0]] + name + ": " + value + "\n" + text[loc[0]:], nil
}

// AttachFile declares path as a file attachment.
func AttachFile(text, path string) (string, error) {
	return InsertField(text, FieldAttachedFile, path)
}

// AttachMessage declares a stored message as an attachment.
func AttachMessage(text, mailbox string, uid uint32) (string, error) {
	return InsertField(text, FieldAttachedMessage, mailbox+"/"+strconv.FormatUint(uint64(uid), 10))
}

// RequestSign asks for the message to be PGP signed.
func RequestSign(text string) (string, error) {
	return InsertField(text, FieldPGPSign, "yes")
}

// RequestEncrypt asks for the message to be PGP encrypted.
func RequestEncrypt(text string) (string, error) {
	return InsertField(text, FieldPGPEncrypt, "yes")
}
