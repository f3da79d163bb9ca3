package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StoreConfig selects the message store an account reads attached
// messages from and archives sent mail to.
type StoreConfig struct {
	// Type is "imap" (default), "mbox" or "s3".
	Type string `mapstructure:"type" yaml:"type"`

	Host        string `mapstructure:"host" yaml:"host"`
	Port        int    `mapstructure:"port" yaml:"port"`
	Username    string `mapstructure:"username" yaml:"username"`
	PasswordKey string `mapstructure:"password_key" yaml:"password_key"`
	TLS         bool   `mapstructure:"tls" yaml:"tls"`

	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	Directory string `mapstructure:"directory" yaml:"directory"`

	Bucket string `mapstructure:"bucket" yaml:"bucket"`
	Region string `mapstructure:"region" yaml:"region"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// AccountConfig holds the settings of one mail account.
type AccountConfig struct {
	// From is the sender placed in new drafts.
	From string `mapstructure:"from" yaml:"from"`

	// DeliveryMethod names the transport: smtp, sendmail, file, ses or logger.
	DeliveryMethod string `mapstructure:"delivery_method" yaml:"delivery_method"`

	// DeliveryOptions are passed to the transport.
	DeliveryOptions map[string]any `mapstructure:"delivery_options" yaml:"delivery_options"`

	Store StoreConfig `mapstructure:"store" yaml:"store"`
}

// PGPConfig locates the keys used for PGP-Sign and PGP-Encrypt.
type PGPConfig struct {
	SecretKeyring string `mapstructure:"secret_keyring" yaml:"secret_keyring"`
	PublicKeyring string `mapstructure:"public_keyring" yaml:"public_keyring"`

	// PassphraseKey is the keyring entry holding the secret key passphrase.
	PassphraseKey string `mapstructure:"passphrase_key" yaml:"passphrase_key"`

	EncryptToSelf bool `mapstructure:"encrypt_to_self" yaml:"encrypt_to_self"`
}

// LogConfig controls the diagnostic log.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// Charset is the preferred charset for outgoing mail.
	Charset string `mapstructure:"charset" yaml:"charset"`

	// Outbox is the mailbox sent mail is copied to. Empty disables it.
	Outbox string `mapstructure:"outbox" yaml:"outbox"`

	// Directory holds the local database and log.
	Directory string `mapstructure:"directory" yaml:"directory"`

	IMAPConnectTimeoutSec int `mapstructure:"imap_connect_timeout" yaml:"imap_connect_timeout"`
	KeepAliveIntervalSec  int `mapstructure:"keep_alive_interval" yaml:"keep_alive_interval"`

	CurrentAccount string                   `mapstructure:"current_account" yaml:"current_account"`
	Accounts       map[string]AccountConfig `mapstructure:"accounts" yaml:"accounts"`

	PGP PGPConfig `mapstructure:"pgp" yaml:"pgp"`
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// IMAPConnectTimeout returns the store connection timeout.
func (c *AppConfig) IMAPConnectTimeout() time.Duration {
	return time.Duration(c.IMAPConnectTimeoutSec) * time.Second
}

// KeepAliveInterval returns the period between store keep-alive pings.
func (c *AppConfig) KeepAliveInterval() time.Duration {
	return time.Duration(c.KeepAliveIntervalSec) * time.Second
}

// Account returns the current account: current_account if it names one,
// otherwise the first account by name. ok is false when no account is
// configured.
func (c *AppConfig) Account() (name string, acct AccountConfig, ok bool) {
	if len(c.Accounts) == 0 {
		return "", AccountConfig{}, false
	}
	if a, found := c.Accounts[strings.ToLower(c.CurrentAccount)]; found && c.CurrentAccount != "" {
		return strings.ToLower(c.CurrentAccount), a, true
	}
	names := make([]string, 0, len(c.Accounts))
	for n := range c.Accounts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names[0], c.Accounts[names[0]], true
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/draftmail/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "draftmail", "config.yaml")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Charset:               "utf-8",
		Directory:             "~/.draftmail",
		IMAPConnectTimeoutSec: 10,
		KeepAliveIntervalSec:  60,
		Accounts:              map[string]AccountConfig{},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "~/.draftmail/draftmail.log",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("charset", "utf-8")
	v.SetDefault("directory", "~/.draftmail")
	v.SetDefault("imap_connect_timeout", 10)
	v.SetDefault("keep_alive_interval", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "~/.draftmail/draftmail.log")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.CurrentAccount != "" {
		if _, ok := cfg.Accounts[strings.ToLower(cfg.CurrentAccount)]; !ok {
			return nil, fmt.Errorf("parsing config %s: current_account %q is not defined", path, cfg.CurrentAccount)
		}
	}
	for name, acct := range cfg.Accounts {
		if acct.Store.Type == "" {
			acct.Store.Type = "imap"
			cfg.Accounts[name] = acct
		}
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("charset", cfg.Charset)
	v.Set("directory", cfg.Directory)
	v.Set("imap_connect_timeout", cfg.IMAPConnectTimeoutSec)
	v.Set("keep_alive_interval", cfg.KeepAliveIntervalSec)
	if cfg.Outbox != "" {
		v.Set("outbox", cfg.Outbox)
	}
	if cfg.CurrentAccount != "" {
		v.Set("current_account", cfg.CurrentAccount)
	}
	v.Set("accounts", cfg.Accounts)
	v.Set("pgp", cfg.PGP)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
