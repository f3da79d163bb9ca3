package buffer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateNamesUniquely(t *testing.T) {
	m := NewManager()
	a := m.Create("a", Settings{})
	b := m.Create("b", Settings{})
	c := m.Create("c", Settings{})

	assert.Equal(t, "*draft*", a.Name)
	assert.Equal(t, "*draft*<2>", b.Name)
	assert.Equal(t, "*draft*<3>", c.Name)
	assert.Equal(t, Visible, a.State)

	require.NoError(t, m.Kill(a.ID))
	d := m.Create("d", Settings{})
	assert.Equal(t, "*draft*", d.Name)
}

func TestManager_SendSuccessLifecycle(t *testing.T) {
	m := NewManager()
	b := m.Create("text", Settings{})

	require.NoError(t, m.Hide(b.ID))
	assert.Equal(t, HiddenPending, b.State)
	assert.Empty(t, m.Visible())

	require.NoError(t, m.Destroy(b.ID))
	_, err := m.Get(b.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Empty(t, m.List())
}

func TestManager_SendFailureRestoresText(t *testing.T) {
	m := NewManager()
	b := m.Create("To: x\n--text follows this line--\nbody", Settings{DeliveryMethod: "smtp"})

	require.NoError(t, m.Hide(b.ID))
	require.NoError(t, m.Restore(b.ID))

	got, err := m.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, Visible, got.State)
	assert.Equal(t, "To: x\n--text follows this line--\nbody", got.Text)
	assert.Equal(t, "smtp", got.Settings.DeliveryMethod)
}

func TestManager_InvalidTransitions(t *testing.T) {
	m := NewManager()
	b := m.Create("x", Settings{})

	assert.True(t, IsTransitionError(m.Restore(b.ID)))
	assert.True(t, IsTransitionError(m.Destroy(b.ID)))

	require.NoError(t, m.Hide(b.ID))
	assert.True(t, IsTransitionError(m.Hide(b.ID)))
	assert.True(t, IsTransitionError(m.Kill(b.ID)))
	assert.True(t, IsTransitionError(m.SetText(b.ID, "edited")))
	assert.Equal(t, "x", b.Text)

	assert.True(t, errors.Is(m.Hide("missing"), ErrNotFound))
}

func TestManager_SetTextUpdatesTimestamp(t *testing.T) {
	m := NewManager()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }
	b := m.Create("x", Settings{})

	m.now = func() time.Time { return start.Add(time.Minute) }
	require.NoError(t, m.SetText(b.ID, "y"))
	assert.Equal(t, "y", b.Text)
	assert.Equal(t, start.Add(time.Minute), b.UpdatedAt)
	assert.Equal(t, start, b.CreatedAt)
}

func TestManager_ListOrder(t *testing.T) {
	m := NewManager()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.Add(&Buffer{ID: "late", CreatedAt: base.Add(time.Hour)})
	m.Add(&Buffer{ID: "early", CreatedAt: base})

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "early", list[0].ID)
	assert.Equal(t, "late", list[1].ID)
}
