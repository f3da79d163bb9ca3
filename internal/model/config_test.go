package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "utf-8", cfg.Charset)
	assert.Equal(t, 10*time.Second, cfg.IMAPConnectTimeout())
	assert.Equal(t, time.Minute, cfg.KeepAliveInterval())
	assert.Empty(t, cfg.Outbox)
	_, _, ok := cfg.Account()
	assert.False(t, ok)
}

func TestLoadConfig_Accounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
charset: iso-8859-1
outbox: Sent
current_account: work
accounts:
  home:
    from: me@home.org
    delivery_method: sendmail
  work:
    from: me@work.com
    delivery_method: smtp
    delivery_options:
      address: smtp.work.com
      port: 587
    store:
      host: imap.work.com
      tls: true
pgp:
  passphrase_key: pgp-work
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "iso-8859-1", cfg.Charset)
	assert.Equal(t, "Sent", cfg.Outbox)
	assert.Equal(t, "pgp-work", cfg.PGP.PassphraseKey)

	name, acct, ok := cfg.Account()
	require.True(t, ok)
	assert.Equal(t, "work", name)
	assert.Equal(t, "me@work.com", acct.From)
	assert.Equal(t, "smtp.work.com", acct.DeliveryOptions["address"])
	assert.Equal(t, "imap", acct.Store.Type)
	assert.True(t, acct.Store.TLS)
	assert.Equal(t, "sendmail", cfg.Accounts["home"].DeliveryMethod)
}

func TestLoadConfig_UnknownCurrentAccount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("current_account: ghost\n"), 0o600))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "ghost")
}

func TestAccount_FirstByName(t *testing.T) {
	cfg := &AppConfig{Accounts: map[string]AccountConfig{
		"zeta":  {From: "z@x.org"},
		"alpha": {From: "a@x.org"},
	}}
	name, acct, ok := cfg.Account()
	require.True(t, ok)
	assert.Equal(t, "alpha", name)
	assert.Equal(t, "a@x.org", acct.From)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := defaultAppConfig()
	cfg.Outbox = "Sent"
	cfg.Accounts["main"] = AccountConfig{From: "me@x.org", DeliveryMethod: "file"}

	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Sent", got.Outbox)
	assert.Equal(t, "file", got.Accounts["main"].DeliveryMethod)
	assert.Equal(t, "imap", got.Accounts["main"].Store.Type)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".draftmail"), ExpandHome("~/.draftmail"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.Equal(t, "~user/x", ExpandHome("~user/x"))
}
