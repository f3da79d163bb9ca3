package testutil

import (
	"io/fs"
	"testing"

	"github.com/nhle/draftmail/internal/compose"
	"github.com/nhle/draftmail/internal/draft"
)

// AssembleDraft parses, classifies and assembles text, failing the test on
// any error.
func AssembleDraft(t *testing.T, text string, files map[string]string) (*compose.Message, []draft.MessageAttachment, draft.Directive) {
	t.Helper()

	p, err := draft.Parse(text)
	if err != nil {
		t.Fatalf("parsing draft: %v", err)
	}
	c := draft.Classify(p.Fields)
	m, pending, err := compose.Assemble(compose.Input{Text: text, Body: p.Body, Classification: c}, compose.Options{
		ReadFile: ReadFiles(files),
	})
	if err != nil {
		t.Fatalf("assembling draft: %v", err)
	}
	return m, pending, c.Directive
}

// ReadFiles returns a file reader serving contents from files.
func ReadFiles(files map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		data, ok := files[path]
		if !ok {
			return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
		}
		return []byte(data), nil
	}
}
