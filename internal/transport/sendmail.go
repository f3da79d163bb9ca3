package transport

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// SendmailOptions configures the sendmail transport.
type SendmailOptions struct {
	Location  string `mapstructure:"location"`
	Arguments string `mapstructure:"arguments"`
}

// Sendmail pipes messages to a local sendmail-compatible program.
type Sendmail struct {
	opts SendmailOptions
}

// NewSendmail returns a sendmail transport with defaults applied.
func NewSendmail(opts SendmailOptions) *Sendmail {
	if opts.Location == "" {
		opts.Location = "/usr/sbin/sendmail"
	}
	if opts.Arguments == "" {
		opts.Arguments = "-i"
	}
	return &Sendmail{opts: opts}
}

func newSendmail(_ context.Context, opts Options, _ Secrets) (Transport, error) {
	var o SendmailOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	return NewSendmail(o), nil
}

// Name returns the transport name.
func (s *Sendmail) Name() string {
	return "sendmail"
}

// Send runs the program with the envelope sender and recipients and
// writes the message to its standard input.
func (s *Sendmail) Send(ctx context.Context, env Envelope, msg []byte) error {
	args := strings.Fields(s.opts.Arguments)
	if env.From != "" {
		args = append(args, "-f", env.From)
	}
	args = append(args, "--")
	args = append(args, env.To...)

	cmd := exec.CommandContext(ctx, s.opts.Location, args...)
	cmd.Stdin = bytes.NewReader(bytes.ReplaceAll(msg, []byte("\r\n"), []byte("\n")))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", s.opts.Location, err, msg)
		}
		return fmt.Errorf("%s: %w", s.opts.Location, err)
	}
	return nil
}
