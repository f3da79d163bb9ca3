package prompt

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt_IdleIgnoresMessages(t *testing.T) {
	m := New(80, 24)
	assert.False(t, m.Active())
	assert.Empty(t, m.View())

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.Active())
}

func TestPrompt_AbortAnswersNo(t *testing.T) {
	m := New(80, 24)
	m.Confirm("send", "Send this mail?")
	require.True(t, m.Active())
	assert.Equal(t, "send", m.Tag())
	assert.Contains(t, m.View(), "Send this mail?")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, ResultMsg{Tag: "send"}, cmd())
	assert.False(t, m.Active())
}
