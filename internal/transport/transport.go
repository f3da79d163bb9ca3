// Package transport defines the interface for mail submission backends and
// a registry that opens them by delivery method name.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ErrUnknownMethod is returned by Registry.Open for an unregistered
// delivery method.
var ErrUnknownMethod = errors.New("unknown delivery method")

// Envelope carries the SMTP envelope of a submission.
type Envelope struct {
	From string
	To   []string
}

// Transport submits a fully rendered message.
type Transport interface {
	// Send submits msg to the envelope recipients.
	Send(ctx context.Context, env Envelope, msg []byte) error

	// Name returns the delivery method name.
	Name() string
}

// Options are transport-specific settings, usually decoded from the
// account's delivery_options.
type Options map[string]any

// Secrets looks up a stored secret by key.
type Secrets interface {
	Get(key string) (string, error)
}

// Factory builds a Transport from options.
type Factory func(ctx context.Context, opts Options, secrets Secrets) (Transport, error)

// Registry maps delivery method names to factories.
type Registry struct {
	factories map[string]Factory
	secrets   Secrets
}

// NewRegistry returns a registry with the built-in transports registered.
func NewRegistry(secrets Secrets) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		secrets:   secrets,
	}
	r.Register("smtp", newSMTP)
	r.Register("sendmail", newSendmail)
	r.Register("file", newFile)
	r.Register("ses", newSES)
	r.Register("logger", newLogger)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(method string, f Factory) {
	r.factories[strings.ToLower(method)] = f
}

// Methods returns the registered method names in sorted order.
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the transport registered under method.
func (r *Registry) Open(ctx context.Context, method string, opts Options) (Transport, error) {
	f, ok := r.factories[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return f(ctx, opts, r.secrets)
}

// decode fills out from opts. Keys match mapstructure tags and strings are
// converted to numbers, booleans and durations.
func decode(opts Options, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(opts)); err != nil {
		return fmt.Errorf("decode delivery options: %w", err)
	}
	return nil
}

// secret returns value if set, else the secret stored under key.
func secret(secrets Secrets, value, key string) (string, error) {
	if value != "" || key == "" {
		return value, nil
	}
	if secrets == nil {
		return "", fmt.Errorf("no secret store for %q", key)
	}
	v, err := secrets.Get(key)
	if err != nil {
		return "", fmt.Errorf("read secret %q: %w", key, err)
	}
	return v, nil
}
