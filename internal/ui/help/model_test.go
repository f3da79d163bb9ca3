package help

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/draftmail/internal/draft"
	"github.com/nhle/draftmail/internal/keys"
)

func TestView_ListsKeysCommandsAndFields(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 120, 40)
	out := m.View()

	assert.Contains(t, out, "alt+s")
	assert.Contains(t, out, "attach-message")
	assert.Contains(t, out, draft.FieldAttachedFile)
	assert.Contains(t, out, draft.FieldPGPEncrypt)
}
