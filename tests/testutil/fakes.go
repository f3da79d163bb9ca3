package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/nhle/draftmail/internal/compose"
	"github.com/nhle/draftmail/internal/draft"
	"github.com/nhle/draftmail/internal/mailstore"
	"github.com/nhle/draftmail/internal/transport"
)

// Recorder collects calls from the fakes in the order they happen so
// tests can assert ordering across collaborators.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

// Record appends a call description.
func (r *Recorder) Record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// AppendedMessage is one message stored through FakeStore.Append.
type AppendedMessage struct {
	Mailbox string
	Raw     []byte
	Flags   []string
}

// FakeStore is an in-memory mailstore.Store.
type FakeStore struct {
	Rec *Recorder

	// Messages maps "mailbox/uid" to raw bytes.
	Messages  map[string][]byte
	FetchErr  error
	AppendErr error

	mu       sync.Mutex
	Appended []AppendedMessage
}

var _ mailstore.Store = (*FakeStore)(nil)

// NewFakeStore returns an empty FakeStore recording into rec.
func NewFakeStore(rec *Recorder) *FakeStore {
	return &FakeStore{Rec: rec, Messages: map[string][]byte{}}
}

// Fetch implements mailstore.Store.
func (f *FakeStore) Fetch(_ context.Context, mailbox string, uid uint32) ([]byte, error) {
	ref := fmt.Sprintf("%s/%d", mailbox, uid)
	f.Rec.Record("fetch %s", ref)
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	raw, ok := f.Messages[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, mailstore.ErrNotFound)
	}
	return raw, nil
}

// Append implements mailstore.Store.
func (f *FakeStore) Append(_ context.Context, mailbox string, msg []byte, flags []string) error {
	f.Rec.Record("append %s", mailbox)
	if f.AppendErr != nil {
		return f.AppendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Appended = append(f.Appended, AppendedMessage{Mailbox: mailbox, Raw: msg, Flags: flags})
	return nil
}

// Close implements mailstore.Store.
func (f *FakeStore) Close() error { return nil }

// Submission is one message sent through FakeTransport.
type Submission struct {
	Envelope transport.Envelope
	Raw      []byte
}

// FakeTransport records submissions.
type FakeTransport struct {
	Rec     *Recorder
	Method  string
	SendErr error

	mu   sync.Mutex
	Sent []Submission
}

// Name implements transport.Transport.
func (f *FakeTransport) Name() string { return f.Method }

// Send implements transport.Transport.
func (f *FakeTransport) Send(_ context.Context, env transport.Envelope, msg []byte) error {
	f.Rec.Record("send %s", f.Method)
	if f.SendErr != nil {
		return f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, Submission{Envelope: env, Raw: msg})
	return nil
}

// FakeOpener hands out FakeTransports by method name.
type FakeOpener struct {
	Rec        *Recorder
	Transports map[string]*FakeTransport

	mu      sync.Mutex
	Options []transport.Options
}

// NewFakeOpener returns an opener with one FakeTransport per method.
func NewFakeOpener(rec *Recorder, methods ...string) *FakeOpener {
	o := &FakeOpener{Rec: rec, Transports: map[string]*FakeTransport{}}
	for _, m := range methods {
		o.Transports[m] = &FakeTransport{Rec: rec, Method: m}
	}
	return o
}

// Open implements deliver.Opener.
func (o *FakeOpener) Open(_ context.Context, method string, opts transport.Options) (transport.Transport, error) {
	o.mu.Lock()
	o.Options = append(o.Options, opts)
	o.mu.Unlock()

	t, ok := o.Transports[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", transport.ErrUnknownMethod, method)
	}
	return t, nil
}

// FakeCrypto records directives and marks the message instead of
// performing real PGP.
type FakeCrypto struct {
	Rec *Recorder
	Err error

	// PartsSeen is the number of attachment parts present when Apply ran.
	PartsSeen int
}

// Apply implements deliver.Crypto.
func (c *FakeCrypto) Apply(_ context.Context, msg *compose.Message, d draft.Directive) error {
	c.Rec.Record("crypto sign=%t encrypt=%t", d.Sign, d.Encrypt)
	c.PartsSeen = len(msg.Parts)
	if c.Err != nil {
		return c.Err
	}
	content := msg.Content()
	msg.SetContent(compose.NewMultipart("signed", map[string]string{"protocol": "application/x-fake"}, content))
	return nil
}
