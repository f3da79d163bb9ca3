// Package deliver runs the background half of a send: embedding stored
// messages, applying PGP, submitting through a transport and archiving to
// the outbox.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/nhle/draftmail/internal/compose"
	"github.com/nhle/draftmail/internal/draft"
	"github.com/nhle/draftmail/internal/mailstore"
	"github.com/nhle/draftmail/internal/transport"
)

// Status is the terminal state of a delivery attempt.
type Status int

const (
	Sent Status = iota
	Failed
)

func (s Status) String() string {
	if s == Sent {
		return "sent"
	}
	return "failed"
}

// Job is everything the background step needs. It is built on the UI
// thread and not shared afterwards.
type Job struct {
	DraftID   string
	Message   *compose.Message
	Messages  []draft.MessageAttachment
	Directive draft.Directive
	Method    string
	Options   transport.Options
}

// Outcome is the result of a delivery attempt.
type Outcome struct {
	DraftID   string
	Status    Status
	Err       error
	Warning   error
	MessageID string
	Subject   string
}

// Crypto signs and/or encrypts a message in place.
type Crypto interface {
	Apply(ctx context.Context, msg *compose.Message, d draft.Directive) error
}

// Opener builds a transport for a delivery method.
type Opener interface {
	Open(ctx context.Context, method string, opts transport.Options) (transport.Transport, error)
}

// Executor performs delivery jobs.
type Executor struct {
	store     mailstore.Store
	crypto    Crypto
	transport Opener
	outbox    string
	logger    *slog.Logger
}

// Config wires an Executor. Store may be nil when neither message
// attachments nor an outbox are used; Crypto may be nil when PGP is not
// configured.
type Config struct {
	Store     mailstore.Store
	Crypto    Crypto
	Transport Opener
	Outbox    string
	Logger    *slog.Logger
}

// NewExecutor returns an executor.
func NewExecutor(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:     cfg.Store,
		crypto:    cfg.Crypto,
		transport: cfg.Transport,
		outbox:    cfg.Outbox,
		logger:    logger,
	}
}

// Run executes the job. Steps run strictly in order: attached messages,
// crypto, submission, outbox. Any failure before the outbox step ends the
// attempt as Failed; an outbox failure is reported as a warning on a Sent
// outcome. Panics are recovered into a Failed outcome.
func (e *Executor) Run(ctx context.Context, job Job) (out Outcome) {
	out = Outcome{DraftID: job.DraftID, Status: Failed}
	if job.Message != nil {
		out.MessageID = job.Message.Get("Message-ID")
		out.Subject = job.Message.Get("Subject")
	}

	defer func() {
		if r := recover(); r != nil && out.Status != Sent {
			out.Status = Failed
			out.Err = fmt.Errorf("delivery panic: %v", r)
			e.logger.Error("delivery panicked",
				"draft", job.DraftID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := e.deliver(ctx, job); err != nil {
		out.Status = Failed
		out.Err = err
		e.logger.Error("delivery failed", "draft", job.DraftID, "error", err)
		return out
	}

	out.Status = Sent
	e.logger.Info("mail sent", "draft", job.DraftID, "message_id", out.MessageID, "transport", job.Method)

	if e.outbox != "" {
		if err := e.archive(ctx, job.Message); err != nil {
			out.Warning = err
			e.logger.Warn("outbox append failed", "draft", job.DraftID, "mailbox", e.outbox, "error", err)
		}
	}
	return out
}

func (e *Executor) deliver(ctx context.Context, job Job) error {
	msg := job.Message
	if msg == nil {
		return errors.New("no message to deliver")
	}

	if err := e.attachMessages(ctx, msg, job.Messages); err != nil {
		return err
	}

	if job.Directive.Active() {
		if e.crypto == nil {
			return &CryptoError{Err: errors.New("pgp is not configured")}
		}
		if err := e.crypto.Apply(ctx, msg, job.Directive); err != nil {
			return &CryptoError{Err: err}
		}
	}

	env, err := envelope(msg)
	if err != nil {
		return &TransportError{Method: job.Method, Err: err}
	}
	raw, err := msg.Bytes()
	if err != nil {
		return &TransportError{Method: job.Method, Err: fmt.Errorf("render message: %w", err)}
	}

	if e.transport == nil {
		return &TransportError{Method: job.Method, Err: errors.New("no transport registry")}
	}
	t, err := e.transport.Open(ctx, job.Method, job.Options)
	if err != nil {
		return &TransportError{Method: job.Method, Err: err}
	}
	if err := t.Send(ctx, env, raw); err != nil {
		return &TransportError{Method: t.Name(), Err: err}
	}
	return nil
}

// attachMessages fetches each referenced message once, in declared order.
func (e *Executor) attachMessages(ctx context.Context, msg *compose.Message, refs []draft.MessageAttachment) error {
	if len(refs) == 0 {
		return nil
	}
	if e.store == nil {
		return &MessageAttachmentFetchError{Ref: refs[0].Ref, Err: errors.New("no message store configured")}
	}

	fetched := make(map[string][]byte)
	for _, ref := range refs {
		raw, ok := fetched[ref.Ref]
		if !ok {
			mailbox, uid, err := ref.Locate()
			if err != nil {
				return &MessageAttachmentFetchError{Ref: ref.Ref, Err: err}
			}
			raw, err = e.store.Fetch(ctx, mailbox, uid)
			if err != nil {
				return &MessageAttachmentFetchError{Ref: ref.Ref, Err: err}
			}
			fetched[ref.Ref] = raw
			e.logger.Debug("fetched attached message", "mailbox", mailbox, "uid", uid, "size", len(raw))
		}
		msg.AppendMessage(raw)
	}
	return nil
}

// archive appends the sent message to the outbox. A panic here is
// reported like any other append failure since the message has already
// been submitted.
func (e *Executor) archive(ctx context.Context, msg *compose.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("outbox append panicked", "mailbox", e.outbox, "panic", r, "stack", string(debug.Stack()))
			err = &OutboxAppendError{Mailbox: e.outbox, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if e.store == nil {
		return &OutboxAppendError{Mailbox: e.outbox, Err: errors.New("no message store configured")}
	}
	raw, err := msg.Bytes()
	if err != nil {
		return &OutboxAppendError{Mailbox: e.outbox, Err: err}
	}
	if err := e.store.Append(ctx, e.outbox, raw, []string{mailstore.FlagSeen}); err != nil {
		return &OutboxAppendError{Mailbox: e.outbox, Err: err}
	}
	return nil
}

func envelope(msg *compose.Message) (transport.Envelope, error) {
	from, err := msg.Sender()
	if err != nil {
		return transport.Envelope{}, err
	}
	to, err := msg.Recipients()
	if err != nil {
		return transport.Envelope{}, err
	}
	if len(to) == 0 {
		return transport.Envelope{}, errors.New("no recipients")
	}
	return transport.Envelope{From: from, To: to}, nil
}
