package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := Parse("  send ")
	require.NoError(t, err)
	assert.Equal(t, Command{Name: Send}, c)

	c, err = Parse("attach /tmp/my report.pdf")
	require.NoError(t, err)
	assert.Equal(t, Command{Name: Attach, Arg: "/tmp/my report.pdf"}, c)

	c, err = Parse("Transport sendmail")
	require.NoError(t, err)
	assert.Equal(t, Command{Name: Transport, Arg: "sendmail"}, c)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("launch")
	assert.ErrorContains(t, err, "unknown command")

	_, err = Parse("attach")
	assert.ErrorContains(t, err, "needs an argument")

	_, err = Parse("send now")
	assert.ErrorContains(t, err, "takes no argument")
}

func TestModel_EnterEmitsCommand(t *testing.T) {
	m := NewModel(80, 24)
	for _, r := range "sign" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg{Command: Command{Name: Sign}}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestModel_InvalidLineEmitsError(t *testing.T) {
	m := NewModel(80, 24)
	for _, r := range "bogus" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg, ok := cmd().(ErrorMsg)
	require.True(t, ok)
	assert.ErrorContains(t, msg.Err, "bogus")
}
