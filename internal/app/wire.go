package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"

	"github.com/nhle/draftmail/internal/deliver"
	"github.com/nhle/draftmail/internal/mailstore"
	"github.com/nhle/draftmail/internal/model"
	"github.com/nhle/draftmail/internal/pgp"
	"github.com/nhle/draftmail/internal/send"
	"github.com/nhle/draftmail/internal/store"
	appsync "github.com/nhle/draftmail/internal/sync"
	"github.com/nhle/draftmail/internal/transport"
)

// Secrets is the credential lookup used while wiring.
type Secrets interface {
	Get(key string) (string, error)
	Passphrase(key string) func() ([]byte, error)
}

// Wire builds the application dependencies for the current account. The
// returned cleanup closes the message store.
func Wire(ctx context.Context, cfg *model.AppConfig, db store.Store, secrets Secrets, logger *slog.Logger) (Deps, func(), error) {
	name, acct, _ := cfg.Account()

	deps := Deps{
		Store:   db,
		Account: name,
		From:    acct.From,
		Logger:  logger,
	}
	cleanup := func() {}

	ms, err := openMailStore(ctx, cfg, name, acct, secrets)
	if err != nil {
		// Sending still works without attached messages or an outbox.
		logger.Warn("message store unavailable", "account", name, "error", err)
	}
	if ms != nil {
		cleanup = func() {
			if err := ms.Close(); err != nil {
				logger.Warn("closing message store", "error", err)
			}
		}
		if p, ok := ms.(mailstore.Pinger); ok {
			deps.KeepAlive = appsync.New(p, cfg.KeepAliveInterval(), logger)
		}
	}

	var crypto deliver.Crypto
	if cfg.PGP.SecretKeyring != "" || cfg.PGP.PublicKeyring != "" {
		c, err := pgp.Open(pgp.Options{
			SecretKeyring: model.ExpandHome(cfg.PGP.SecretKeyring),
			PublicKeyring: model.ExpandHome(cfg.PGP.PublicKeyring),
			Passphrase:    secrets.Passphrase(cfg.PGP.PassphraseKey),
			EncryptToSelf: cfg.PGP.EncryptToSelf,
		})
		if err != nil {
			cleanup()
			return Deps{}, nil, fmt.Errorf("loading PGP keys: %w", err)
		}
		crypto = c
	}

	registry := transport.NewRegistry(secrets)
	deps.Methods = registry.Methods()

	execCfg := deliver.Config{
		Crypto:    crypto,
		Transport: registry,
		Outbox:    cfg.Outbox,
		Logger:    logger,
	}
	if ms != nil {
		execCfg.Store = ms
	}

	deps.Pipeline = &send.Pipeline{
		Charset: cfg.Charset,
		Account: send.Account{
			DeliveryMethod:  acct.DeliveryMethod,
			DeliveryOptions: deliveryOptions(name, acct),
		},
		Runner: deliver.NewExecutor(execCfg),
		ReadFile: func(path string) ([]byte, error) {
			return os.ReadFile(model.ExpandHome(path))
		},
	}

	return deps, cleanup, nil
}

func openMailStore(ctx context.Context, cfg *model.AppConfig, name string, acct model.AccountConfig, secrets Secrets) (mailstore.Store, error) {
	sc := acct.Store
	if sc.Host == "" && sc.Directory == "" && sc.Bucket == "" {
		return nil, nil
	}
	passwordKey := sc.PasswordKey
	if passwordKey == "" && sc.Username != "" {
		passwordKey = "imap-" + name
	}
	return mailstore.Open(ctx, mailstore.Config{
		Type:           sc.Type,
		Host:           sc.Host,
		Port:           sc.Port,
		Username:       sc.Username,
		PasswordKey:    passwordKey,
		TLS:            sc.TLS,
		SkipVerify:     sc.InsecureSkipVerify,
		ConnectTimeout: cfg.IMAPConnectTimeout(),
		Directory:      model.ExpandHome(sc.Directory),
		Bucket:         sc.Bucket,
		Region:         sc.Region,
		Prefix:         sc.Prefix,
	}, secrets)
}

// deliveryOptions copies the account's transport options and points an
// authenticating SMTP transport at the account's keyring entry.
func deliveryOptions(name string, acct model.AccountConfig) transport.Options {
	if acct.DeliveryOptions == nil {
		return nil
	}
	opts := transport.Options(maps.Clone(acct.DeliveryOptions))
	_, hasUser := opts["user_name"]
	_, hasPassword := opts["password"]
	_, hasKey := opts["password_key"]
	if hasUser && !hasPassword && !hasKey {
		opts["password_key"] = "smtp-" + name
	}
	return opts
}
