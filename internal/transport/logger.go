package transport

import (
	"context"
	"log/slog"
)

// LoggerOptions configures the logger transport.
type LoggerOptions struct {
	// Level is the slog level name; defaults to info.
	Level string `mapstructure:"level"`
}

// Logger writes submissions to the log instead of delivering them.
type Logger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogger returns a logger transport writing to l, or the default logger
// when l is nil.
func NewLogger(l *slog.Logger, opts LoggerOptions) *Logger {
	if l == nil {
		l = slog.Default()
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil || opts.Level == "" {
		level = slog.LevelInfo
	}
	return &Logger{logger: l, level: level}
}

func newLogger(_ context.Context, opts Options, _ Secrets) (Transport, error) {
	var o LoggerOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	return NewLogger(nil, o), nil
}

// Name returns the transport name.
func (l *Logger) Name() string {
	return "logger"
}

// Send logs the envelope and the message.
func (l *Logger) Send(ctx context.Context, env Envelope, msg []byte) error {
	l.logger.Log(ctx, l.level, "message delivered to log",
		"from", env.From,
		"to", env.To,
		"size", len(msg),
		"message", string(msg),
	)
	return nil
}
