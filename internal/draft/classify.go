package draft

import "strings"

// Control field names. Matching is exact-case.
const (
	FieldAttachedFile    = "Attached-File"
	FieldAttachedMessage = "Attached-Message"
	FieldPGPSign         = "PGP-Sign"
	FieldPGPEncrypt      = "PGP-Encrypt"
)

// Classification separates control fields from true mail headers.
type Classification struct {
	Headers   []HeaderField
	Files     []FileAttachment
	Messages  []MessageAttachment
	Directive Directive
}

// HasAttachments reports whether any file or message is attached.
func (c Classification) HasAttachments() bool {
	return len(c.Files) > 0 || len(c.Messages) > 0
}

// Classify routes fields by name. True headers keep their order and
// multiplicity; a repeated PGP field takes its last value.
func Classify(fields []HeaderField) Classification {
	var c Classification
	for _, f := range fields {
		switch f.Name {
		case FieldAttachedFile:
			c.Files = append(c.Files, FileAttachment{Path: strings.TrimSpace(f.Value)})
		case FieldAttachedMessage:
			c.Messages = append(c.Messages, MessageAttachment{Ref: strings.TrimSpace(f.Value)})
		case FieldPGPSign:
			c.Directive.Sign = strings.TrimSpace(f.Value) == "yes"
		case FieldPGPEncrypt:
			c.Directive.Encrypt = strings.TrimSpace(f.Value) == "yes"
		default:
			c.Headers = append(c.Headers, f)
		}
	}
	return c
}
