package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPOptions configures the smtp transport.
type SMTPOptions struct {
	Address            string `mapstructure:"address"`
	Port               int    `mapstructure:"port"`
	Domain             string `mapstructure:"domain"`
	UserName           string `mapstructure:"user_name"`
	Password           string `mapstructure:"password"`
	PasswordKey        string `mapstructure:"password_key"`
	Authentication     string `mapstructure:"authentication"`
	EnableStartTLSAuto bool   `mapstructure:"enable_starttls_auto"`
	TLS                bool   `mapstructure:"tls"`
	OpenTimeout        int    `mapstructure:"open_timeout"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// SMTP submits messages to an SMTP server.
type SMTP struct {
	opts SMTPOptions
}

// NewSMTP returns an smtp transport with defaults applied.
func NewSMTP(opts SMTPOptions) *SMTP {
	if opts.Address == "" {
		opts.Address = "localhost"
	}
	if opts.Port == 0 {
		opts.Port = 25
		if opts.TLS {
			opts.Port = 465
		}
	}
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = 30
	}
	return &SMTP{opts: opts}
}

func newSMTP(_ context.Context, opts Options, secrets Secrets) (Transport, error) {
	o := SMTPOptions{EnableStartTLSAuto: true}
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	pass, err := secret(secrets, o.Password, o.PasswordKey)
	if err != nil {
		return nil, err
	}
	o.Password = pass
	return NewSMTP(o), nil
}

// Name returns the transport name.
func (s *SMTP) Name() string {
	return "smtp"
}

// Send dials the server, negotiates TLS and authentication, and submits
// the message.
func (s *SMTP) Send(ctx context.Context, env Envelope, msg []byte) error {
	addr := net.JoinHostPort(s.opts.Address, strconv.Itoa(s.opts.Port))

	c, err := s.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if s.opts.UserName != "" {
		if err := c.Auth(s.auth()); err != nil {
			return fmt.Errorf("authenticate as %s: %w", s.opts.UserName, err)
		}
	}

	if err := c.SendMail(env.From, env.To, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("submit message: %w", err)
	}
	if err := c.Quit(); err != nil {
		slog.Debug("smtp quit failed", "address", addr, "error", err)
	}

	slog.Info("message submitted", "transport", s.Name(), "address", addr, "recipients", len(env.To))
	return nil
}

// dial opens a session that has greeted the server. When STARTTLS is
// advertised and wanted, the probing session is dropped and a new
// connection is upgraded before greeting again.
func (s *SMTP) dial(ctx context.Context, addr string) (*smtp.Client, error) {
	tlsConfig := &tls.Config{
		ServerName:         s.opts.Address,
		InsecureSkipVerify: s.opts.InsecureSkipVerify,
	}

	conn, err := s.connect(ctx, addr)
	if err != nil {
		return nil, err
	}
	if s.opts.TLS {
		conn = tls.Client(conn, tlsConfig)
	}

	c := smtp.NewClient(conn)
	if err := c.Hello(s.opts.Domain); err != nil {
		c.Close()
		return nil, fmt.Errorf("EHLO: %w", err)
	}
	if s.opts.TLS || !s.opts.EnableStartTLSAuto {
		return c, nil
	}
	if ok, _ := c.Extension("STARTTLS"); !ok {
		return c, nil
	}
	c.Close()

	conn, err = s.connect(ctx, addr)
	if err != nil {
		return nil, err
	}
	c, err = smtp.NewClientStartTLS(conn, tlsConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("STARTTLS: %w", err)
	}
	if err := c.Hello(s.opts.Domain); err != nil {
		c.Close()
		return nil, fmt.Errorf("EHLO: %w", err)
	}
	return c, nil
}

func (s *SMTP) connect(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: time.Duration(s.opts.OpenTimeout) * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return conn, nil
}

func (s *SMTP) auth() sasl.Client {
	switch strings.ToLower(s.opts.Authentication) {
	case "login":
		return sasl.NewLoginClient(s.opts.UserName, s.opts.Password)
	default:
		return sasl.NewPlainClient("", s.opts.UserName, s.opts.Password)
	}
}
