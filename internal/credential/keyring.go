package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "draftmail"

// Keyring reads and writes secrets for mail accounts: store and SMTP
// passwords, AWS secret keys and the PGP passphrase.
type Keyring struct {
	ring keyring.Keyring
}

// Open returns the system keyring, falling back to an encrypted file
// under ~/.config/draftmail/credentials.
func Open() (*Keyring, error) {
	return open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/draftmail/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("draftmail-file-key"),
		KeychainTrustApplication: true,
	})
}

// OpenFile returns a keyring backed only by encrypted files in dir.
func OpenFile(dir string) (*Keyring, error) {
	return open(keyring.Config{
		ServiceName:      serviceName,
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          dir,
		FilePasswordFunc: keyring.FixedStringPrompt("draftmail-file-key"),
	})
}

func open(cfg keyring.Config) (*Keyring, error) {
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

// Get retrieves a credential value by key.
func (k *Keyring) Get(key string) (string, error) {
	item, err := k.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (k *Keyring) Set(key, value string) error {
	err := k.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key.
func (k *Keyring) Delete(key string) error {
	if err := k.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// Passphrase returns a lookup of the secret stored under key, suitable
// for unlocking a PGP secret key. An empty key yields a nil function.
func (k *Keyring) Passphrase(key string) func() ([]byte, error) {
	if key == "" {
		return nil
	}
	return func() ([]byte, error) {
		v, err := k.Get(key)
		if err != nil {
			return nil, err
		}
		return []byte(v), nil
	}
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	k, err := Open()
	if err != nil {
		return err
	}
	return k.Set(key, value)
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	k, err := Open()
	if err != nil {
		return err
	}
	return k.Delete(key)
}
