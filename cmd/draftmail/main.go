// Command draftmail is a terminal mail composer: write drafts, attach
// files and stored messages, sign or encrypt, and send through SMTP,
// sendmail, an mbox file or Amazon SES.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/nhle/draftmail/internal/app"
	"github.com/nhle/draftmail/internal/credential"
	"github.com/nhle/draftmail/internal/model"
	"github.com/nhle/draftmail/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "draftmail:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.StringP("config", "c", model.DefaultConfigPath(), "path to the YAML configuration file")
	initConfig := flag.Bool("init", false, "write a default configuration file and exit")
	storeSecret := flag.String("store-secret", "", "read a secret from stdin and store it in the keyring under `key`")
	deleteSecret := flag.String("delete-secret", "", "remove the keyring entry `key`")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: draftmail [flags] [draft-file...]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	switch {
	case *initConfig:
		return writeDefaultConfig(*configPath)
	case *storeSecret != "":
		value, err := readSecret(os.Stdin)
		if err != nil {
			return err
		}
		return credential.Set(*storeSecret, value)
	case *deleteSecret != "":
		return credential.Delete(*deleteSecret)
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	drafts, err := readDrafts(flag.Args())
	if err != nil {
		return err
	}

	dir := model.ExpandHome(cfg.Directory)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	db, err := store.NewSQLiteStore(filepath.Join(dir, "draftmail.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	secrets, err := credential.Open()
	if err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := app.Wire(ctx, cfg, db, secrets, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	deps.Drafts = drafts

	logger.Info("starting draftmail", "account", deps.Account, "config", *configPath)

	p := tea.NewProgram(app.New(deps), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// setupLogger opens the log file and installs a handler at the configured
// level. The terminal belongs to the UI, so nothing is logged to stderr.
func setupLogger(cfg model.LogConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = io.Discard
	closeFn := func() {}
	if cfg.File != "" {
		path := model.ExpandHome(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn, nil
}

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Println("wrote", path)
	return nil
}

// readSecret reads the first line of r.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty secret")
	}
	return line, nil
}

// readDrafts loads draft files named on the command line.
func readDrafts(paths []string) ([]string, error) {
	drafts := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading draft: %w", err)
		}
		drafts = append(drafts, string(data))
	}
	return drafts, nil
}
