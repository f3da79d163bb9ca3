package mailstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPStore keeps one authenticated IMAP session and reconnects lazily
// when it is lost.
type IMAPStore struct {
	host     string
	port     int
	username string
	password string
	tls      bool
	insecure bool
	timeout  time.Duration

	mu     sync.Mutex
	client *imapclient.Client
}

// NewIMAPStore creates an IMAP store. No connection is made until first
// use.
func NewIMAPStore(cfg Config, password string) *IMAPStore {
	port := cfg.Port
	if port == 0 {
		port = 143
		if cfg.TLS {
			port = 993
		}
	}
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &IMAPStore{
		host:     cfg.Host,
		port:     port,
		username: cfg.Username,
		password: password,
		tls:      cfg.TLS,
		insecure: cfg.SkipVerify,
		timeout:  timeout,
	}
}

func (s *IMAPStore) addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// connect dials and logs in. The caller holds s.mu.
func (s *IMAPStore) connect(ctx context.Context) (*imapclient.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	addr := s.addr()
	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	tlsConfig := &tls.Config{ServerName: s.host, InsecureSkipVerify: s.insecure}
	var client *imapclient.Client
	if s.tls {
		client = imapclient.New(tls.Client(conn, tlsConfig), nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsConfig})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("STARTTLS with %s: %w", addr, err)
		}
	}

	if err := client.Login(s.username, s.password).Wait(); err != nil {
		_ = client.Close()
		return nil, &AuthError{
			Username: s.username,
			Message:  fmt.Sprintf("authentication failed for %s: %v", s.username, err),
		}
	}

	slog.Debug("imap connected", "address", addr, "user", s.username)
	s.client = client
	return client, nil
}

// drop discards a broken session. The caller holds s.mu.
func (s *IMAPStore) drop() {
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
}

// Fetch returns the full RFC 822 bytes of a message without setting
// \Seen.
func (s *IMAPStore) Fetch(ctx context.Context, mailbox string, uid uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := client.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		if err := fetchCmd.Close(); err != nil {
			s.drop()
			return nil, fmt.Errorf("fetching %s/%d: %w", mailbox, uid, err)
		}
		return nil, fmt.Errorf("%s/%d: %w", mailbox, uid, ErrNotFound)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}
	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("%s/%d: %w", mailbox, uid, ErrNotFound)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("closing fetch: %w", err)
	}
	return raw, nil
}

// Append uploads msg to mailbox with the given flags.
func (s *IMAPStore) Append(ctx context.Context, mailbox string, msg []byte, flags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}

	imapFlags := make([]imap.Flag, len(flags))
	for i, f := range flags {
		imapFlags[i] = imap.Flag(f)
	}

	appendCmd := client.Append(mailbox, int64(len(msg)), &imap.AppendOptions{
		Flags: imapFlags,
		Time:  time.Now(),
	})
	if _, err := appendCmd.Write(msg); err != nil {
		s.drop()
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	if err := appendCmd.Close(); err != nil {
		s.drop()
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	return nil
}

// Ping sends NOOP, connecting first if needed. A failed NOOP drops the
// session so the next call reconnects.
func (s *IMAPStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	if err := client.Noop().Wait(); err != nil {
		s.drop()
		return fmt.Errorf("NOOP: %w", err)
	}
	return nil
}

// Close logs out and closes the session.
func (s *IMAPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Logout().Wait()
	s.drop()
	return err
}
