// Package mailstore reads stored messages and appends new ones. It backs
// message attachments and the outbox copy of sent mail.
package mailstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FlagSeen marks a message as read.
const FlagSeen = `\Seen`

// Store is a mailbox-oriented message store.
type Store interface {
	// Fetch returns the raw bytes of the message with the given UID.
	Fetch(ctx context.Context, mailbox string, uid uint32) ([]byte, error)

	// Append stores msg in mailbox with the given flags.
	Append(ctx context.Context, mailbox string, msg []byte, flags []string) error

	// Close releases any held connection.
	Close() error
}

// Pinger is implemented by stores that hold a server session open.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Secrets looks up a stored secret by key.
type Secrets interface {
	Get(key string) (string, error)
}

// Config selects and configures a store.
type Config struct {
	// Type is imap, mbox or s3. Empty means imap.
	Type string

	// IMAP
	Host           string
	Port           int
	Username       string
	PasswordKey    string
	TLS            bool
	SkipVerify     bool
	ConnectTimeout time.Duration

	// mbox
	Directory string

	// s3
	Bucket string
	Region string
	Prefix string
}

// ErrNotFound is returned when a requested message does not exist.
var ErrNotFound = errors.New("message not found")

// AuthError indicates that the store rejected the configured credentials.
type AuthError struct {
	Username string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Username, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Open builds the store described by cfg.
func Open(ctx context.Context, cfg Config, secrets Secrets) (Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "imap":
		if cfg.Host == "" {
			return nil, fmt.Errorf("imap store: host is required")
		}
		var password string
		if cfg.PasswordKey != "" {
			if secrets == nil {
				return nil, fmt.Errorf("imap store: no secret store for %q", cfg.PasswordKey)
			}
			p, err := secrets.Get(cfg.PasswordKey)
			if err != nil {
				return nil, fmt.Errorf("imap store: read password: %w", err)
			}
			password = p
		}
		return NewIMAPStore(cfg, password), nil
	case "mbox":
		if cfg.Directory == "" {
			return nil, fmt.Errorf("mbox store: directory is required")
		}
		return NewMboxStore(cfg.Directory), nil
	case "s3":
		s3, err := OpenS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
