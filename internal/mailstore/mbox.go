package mailstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-mbox"
)

// MboxStore keeps each mailbox as an mbox file in a directory. The UID of
// a message is its 1-based position in the file.
type MboxStore struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewMboxStore returns a store rooted at dir.
func NewMboxStore(dir string) *MboxStore {
	return &MboxStore{dir: dir, now: time.Now}
}

func (s *MboxStore) path(mailbox string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(mailbox))
	if mailbox == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid mailbox name %q", mailbox)
	}
	return filepath.Join(s.dir, clean), nil
}

// Fetch returns the uid-th message of the mailbox file with CRLF line
// endings.
func (s *MboxStore) Fetch(_ context.Context, mailbox string, uid uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(mailbox)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s/%d: %w", mailbox, uid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening mailbox %s: %w", mailbox, err)
	}
	defer f.Close()

	r := mbox.NewReader(f)
	for i := uint32(1); ; i++ {
		msg, err := r.NextMessage()
		if err == io.EOF {
			return nil, fmt.Errorf("%s/%d: %w", mailbox, uid, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("reading mailbox %s: %w", mailbox, err)
		}
		if i != uid {
			continue
		}
		raw, err := io.ReadAll(msg)
		if err != nil {
			return nil, fmt.Errorf("reading %s/%d: %w", mailbox, uid, err)
		}
		return toCRLF(raw), nil
	}
}

// Append adds msg at the end of the mailbox file. \Seen is recorded as a
// "Status: RO" header, the mbox convention.
func (s *MboxStore) Append(_ context.Context, mailbox string, msg []byte, flags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(mailbox)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating mailbox directory: %w", err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening mailbox %s: %w", mailbox, err)
	}
	defer f.Close()

	lf := bytes.ReplaceAll(msg, []byte("\r\n"), []byte("\n"))
	if slices.Contains(flags, FlagSeen) {
		lf = withStatus(lf, "RO")
	}

	w := mbox.NewWriter(f)
	mw, err := w.CreateMessage(envelopeSender(lf), s.now())
	if err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	if _, err := mw.Write(lf); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	return nil
}

// Close is a no-op.
func (s *MboxStore) Close() error {
	return nil
}

// withStatus sets the Status header in the header block of msg.
func withStatus(msg []byte, status string) []byte {
	headerEnd := bytes.Index(msg, []byte("\n\n"))
	if headerEnd < 0 {
		headerEnd = len(msg)
	}
	headers := string(msg[:headerEnd])
	rest := msg[headerEnd:]

	var lines []string
	for _, line := range strings.Split(headers, "\n") {
		if strings.HasPrefix(line, "Status: ") {
			continue
		}
		lines = append(lines, line)
	}
	lines = append(lines, "Status: "+status)
	return append([]byte(strings.Join(lines, "\n")), rest...)
}

// envelopeSender extracts the From address for the mbox separator line.
func envelopeSender(msg []byte) string {
	for _, line := range strings.Split(string(msg), "\n") {
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "From: "); ok {
			if i := strings.LastIndex(v, "<"); i >= 0 {
				if j := strings.Index(v[i:], ">"); j > 0 {
					return v[i+1 : i+j]
				}
			}
			return strings.TrimSpace(v)
		}
	}
	return "MAILER-DAEMON"
}

func toCRLF(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}
