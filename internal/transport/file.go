package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/emersion/go-mbox"
)

// FileOptions configures the file transport.
type FileOptions struct {
	Location string `mapstructure:"location"`
}

// File appends each message to an mbox file. It is useful for testing
// account setups without sending real mail.
type File struct {
	opts FileOptions
	now  func() time.Time

	mu sync.Mutex
}

// NewFile returns a file transport.
func NewFile(opts FileOptions) *File {
	return &File{opts: opts, now: time.Now}
}

func newFile(_ context.Context, opts Options, _ Secrets) (Transport, error) {
	var o FileOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	if o.Location == "" {
		return nil, fmt.Errorf("file transport: location is required")
	}
	return NewFile(o), nil
}

// Name returns the transport name.
func (f *File) Name() string {
	return "file"
}

// Send appends msg to the mbox file, creating it if needed.
func (f *File) Send(_ context.Context, env Envelope, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.opts.Location), 0o755); err != nil {
		return fmt.Errorf("create mbox directory: %w", err)
	}
	out, err := os.OpenFile(f.opts.Location, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer out.Close()

	if err := writeMbox(out, env.From, f.now(), msg); err != nil {
		return fmt.Errorf("write mbox %s: %w", f.opts.Location, err)
	}
	return nil
}

// writeMbox writes one message in mbox format with LF line endings.
func writeMbox(out io.Writer, from string, date time.Time, msg []byte) error {
	if from == "" {
		from = "MAILER-DAEMON"
	}
	w := mbox.NewWriter(out)
	mw, err := w.CreateMessage(from, date)
	if err != nil {
		return err
	}
	if _, err := mw.Write(bytes.ReplaceAll(msg, []byte("\r\n"), []byte("\n"))); err != nil {
		return err
	}
	return w.Close()
}
