// Package send drives a draft from the editor to the delivery executor and
// back. Prepare, Assemble and Dispatch run on the UI loop; the delivery
// itself runs as a tea.Cmd whose result is reconciled on the UI loop.
package send

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/draftmail/internal/buffer"
	"github.com/nhle/draftmail/internal/compose"
	"github.com/nhle/draftmail/internal/deliver"
	"github.com/nhle/draftmail/internal/draft"
	"github.com/nhle/draftmail/internal/transport"
)

// DefaultMethod is used when neither the draft nor the account names a
// delivery method.
const DefaultMethod = "smtp"

// Runner executes a delivery job.
type Runner interface {
	Run(ctx context.Context, job deliver.Job) deliver.Outcome
}

// Hook runs after the user confirms a send and before the draft is parsed.
// It may edit the buffer text. An error aborts the send.
type Hook func(b *buffer.Buffer) error

// Account holds the account-level delivery defaults.
type Account struct {
	DeliveryMethod  string
	DeliveryOptions transport.Options
}

// Pipeline turns draft buffers into delivery jobs.
type Pipeline struct {
	Charset string
	Account Account
	Runner  Runner
	PreSend []Hook

	// ReadFile and Now are passed to compose.Assemble.
	ReadFile func(string) ([]byte, error)
	Now      func() time.Time
}

// Prepared is a parsed and classified draft waiting for assembly.
type Prepared struct {
	BufferID       string
	Text           string
	Parsed         *draft.Parsed
	Classification draft.Classification
	Method         string
	Options        transport.Options
}

// BodyEmpty reports whether the body is blank and needs confirmation.
func (p *Prepared) BodyEmpty() bool {
	return p.Parsed.BodyEmpty()
}

// Prepare runs the pre-send hooks and parses the buffer. It fails with
// draft.ErrMalformedDraft when the marker line is missing. Nothing is
// changed on failure besides what hooks did.
func (p *Pipeline) Prepare(b *buffer.Buffer) (*Prepared, error) {
	if b.State != buffer.Visible {
		return nil, &buffer.TransitionError{ID: b.ID, From: b.State, To: buffer.HiddenPending}
	}
	for _, hook := range p.PreSend {
		if err := hook(b); err != nil {
			return nil, fmt.Errorf("pre-send hook: %w", err)
		}
	}

	parsed, err := draft.Parse(b.Text)
	if err != nil {
		return nil, err
	}

	method := b.Settings.DeliveryMethod
	if method == "" {
		method = p.Account.DeliveryMethod
	}
	if method == "" {
		method = DefaultMethod
	}
	opts := b.Settings.DeliveryOptions
	if opts == nil {
		opts = p.Account.DeliveryOptions
	}

	return &Prepared{
		BufferID:       b.ID,
		Text:           b.Text,
		Parsed:         parsed,
		Classification: draft.Classify(parsed.Fields),
		Method:         method,
		Options:        opts,
	}, nil
}

// Assemble builds the message and reads file attachments. It fails with
// a compose.FileAttachmentError before anything leaves the machine.
func (p *Pipeline) Assemble(prep *Prepared) (deliver.Job, error) {
	msg, pending, err := compose.Assemble(compose.Input{
		Text:           prep.Text,
		Body:           prep.Parsed.Body,
		Classification: prep.Classification,
	}, compose.Options{
		Charset:  p.Charset,
		ReadFile: p.ReadFile,
		Now:      p.Now,
	})
	if err != nil {
		return deliver.Job{}, err
	}
	return deliver.Job{
		DraftID:   prep.BufferID,
		Message:   msg,
		Messages:  pending,
		Directive: prep.Classification.Directive,
		Method:    prep.Method,
		Options:   prep.Options,
	}, nil
}

// Dispatch hides the buffer and returns the command that performs the
// delivery in the background. The command's message is a DeliveredMsg.
func (p *Pipeline) Dispatch(bufs *buffer.Manager, job deliver.Job) (tea.Cmd, error) {
	if err := bufs.Hide(job.DraftID); err != nil {
		return nil, err
	}
	runner := p.Runner
	return func() tea.Msg {
		return DeliveredMsg{Outcome: runner.Run(context.Background(), job)}
	}, nil
}

// DeliveredMsg carries a delivery outcome back to the UI loop.
type DeliveredMsg struct {
	Outcome deliver.Outcome
}
