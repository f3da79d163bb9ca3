// Package buffer tracks draft buffers and their lifecycle while a send is
// in flight. A Manager is owned by the UI loop and is not safe for
// concurrent use.
package buffer

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/draftmail/internal/transport"
)

// State is the lifecycle state of a draft buffer.
type State int

const (
	// Visible buffers can be edited.
	Visible State = iota
	// HiddenPending buffers have a send in flight.
	HiddenPending
	// Destroyed buffers were sent or killed.
	Destroyed
)

func (s State) String() string {
	switch s {
	case Visible:
		return "visible"
	case HiddenPending:
		return "pending"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNotFound is returned for unknown buffer IDs.
var ErrNotFound = errors.New("draft buffer not found")

// TransitionError reports a lifecycle transition that is not allowed.
type TransitionError struct {
	ID   string
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("draft %s: cannot go from %s to %s", e.ID, e.From, e.To)
}

// IsTransitionError checks if an error is a TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// Settings are per-buffer overrides of the account's delivery settings.
type Settings struct {
	DeliveryMethod  string
	DeliveryOptions transport.Options
}

// Buffer is a draft being edited.
type Buffer struct {
	ID        string
	Name      string
	Text      string
	Settings  Settings
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Manager owns the draft buffers.
type Manager struct {
	buffers map[string]*Buffer
	now     func() time.Time
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{buffers: make(map[string]*Buffer), now: time.Now}
}

// Create adds a new visible buffer holding text.
func (m *Manager) Create(text string, settings Settings) *Buffer {
	now := m.now()
	return m.Add(&Buffer{
		ID:        uuid.NewString(),
		Text:      text,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Add registers an existing buffer, such as one restored from disk. It
// is made visible and given a unique name.
func (m *Manager) Add(b *Buffer) *Buffer {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.State = Visible
	b.Name = m.uniqueName()
	m.buffers[b.ID] = b
	return b
}

func (m *Manager) uniqueName() string {
	taken := make(map[string]bool)
	for _, b := range m.buffers {
		if b.State != Destroyed {
			taken[b.Name] = true
		}
	}
	if !taken["*draft*"] {
		return "*draft*"
	}
	for i := 2; ; i++ {
		name := fmt.Sprintf("*draft*<%d>", i)
		if !taken[name] {
			return name
		}
	}
}

// Get returns a buffer by ID. Destroyed buffers are not returned.
func (m *Manager) Get(id string) (*Buffer, error) {
	b, ok := m.buffers[id]
	if !ok || b.State == Destroyed {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return b, nil
}

// List returns buffers that are not destroyed, oldest first.
func (m *Manager) List() []*Buffer {
	var out []*Buffer
	for _, b := range m.buffers {
		if b.State != Destroyed {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Visible returns the editable buffers, oldest first.
func (m *Manager) Visible() []*Buffer {
	var out []*Buffer
	for _, b := range m.List() {
		if b.State == Visible {
			out = append(out, b)
		}
	}
	return out
}

// SetText replaces the text of a visible buffer.
func (m *Manager) SetText(id, text string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	if b.State != Visible {
		return &TransitionError{ID: id, From: b.State, To: Visible}
	}
	b.Text = text
	b.UpdatedAt = m.now()
	return nil
}

// SetSettings replaces the delivery overrides of a visible buffer.
func (m *Manager) SetSettings(id string, s Settings) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	if b.State != Visible {
		return &TransitionError{ID: id, From: b.State, To: Visible}
	}
	b.Settings = s
	return nil
}

// Hide moves a visible buffer to HiddenPending.
func (m *Manager) Hide(id string) error {
	return m.transition(id, Visible, HiddenPending)
}

// Restore makes a HiddenPending buffer visible again. The text is
// untouched.
func (m *Manager) Restore(id string) error {
	return m.transition(id, HiddenPending, Visible)
}

// Destroy removes a buffer after a successful send.
func (m *Manager) Destroy(id string) error {
	return m.transition(id, HiddenPending, Destroyed)
}

// Kill removes a visible buffer without sending it.
func (m *Manager) Kill(id string) error {
	return m.transition(id, Visible, Destroyed)
}

func (m *Manager) transition(id string, from, to State) error {
	b, ok := m.buffers[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if b.State != from {
		return &TransitionError{ID: id, From: b.State, To: to}
	}
	b.State = to
	if to == Destroyed {
		delete(m.buffers, id)
	}
	return nil
}
