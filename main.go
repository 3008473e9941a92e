// LocalManus TUI - A terminal client for the LocalManus agent backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/zhangdahai112/LocalManus/internal/auth"
	"github.com/zhangdahai112/LocalManus/internal/cli"
	"github.com/zhangdahai112/LocalManus/internal/config"
	"github.com/zhangdahai112/LocalManus/internal/manus"
	"github.com/zhangdahai112/LocalManus/internal/session"
	"github.com/zhangdahai112/LocalManus/internal/storage"
	"github.com/zhangdahai112/LocalManus/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		flagPlain   = flag.Bool("plain", false, "use the line-oriented chat loop instead of the TUI")
		flagBaseURL = flag.String("base-url", "", "backend base URL (overrides config)")
		flagConfig  = flag.String("config", "", "config file path (default ~/.localmanus/config.toml)")
		flagVersion = flag.Bool("version", false, "print version and exit")
		flagLogin   = flag.Bool("login", false, "save the access token encrypted and exit")
	)
	flag.Parse()

	if *flagVersion {
		fmt.Printf("localmanus %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if *flagLogin {
		if err := login(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*flagPlain, *flagBaseURL, *flagConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(plain bool, baseURL, configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if configPath == "" {
		var err error
		configPath, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if baseURL != "" {
		cfg.Backend.BaseURL = baseURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, logClose, err := newLogger(&cfg)
	if err != nil {
		return err
	}
	defer logClose()
	slog.SetDefault(logger)

	token := resolveToken(&cfg, logger)

	client := manus.NewClientWithConfig(&manus.ClientConfig{
		BaseURL:        cfg.Backend.BaseURL,
		AccessToken:    token,
		ConnectTimeout: cfg.ConnectTimeout(),
		UploadTimeout:  cfg.UploadTimeout(),
	})
	client.SetLogger(logger)

	if err := client.CheckRunning(ctx); err != nil {
		if errors.Is(err, manus.ErrNotRunning) {
			fmt.Fprintf(os.Stderr, "warning: backend not reachable at %s\n", cfg.Backend.BaseURL)
		}
		logger.Warn("backend health check failed", "base_url", cfg.Backend.BaseURL, "error", err)
	}

	store := openUploadStore(logger)
	if store != nil {
		defer store.Close()
	}

	controller := session.NewController(client, logger)

	// Config file edits take effect live. Only connection settings are
	// re-applied; UI settings need a restart.
	go func() {
		err := config.Watch(ctx, configPath, logger, func(next config.Config) {
			client.UpdateConfig(&manus.ClientConfig{
				BaseURL:        next.Backend.BaseURL,
				AccessToken:    resolveToken(&next, logger),
				ConnectTimeout: next.ConnectTimeout(),
				UploadTimeout:  next.UploadTimeout(),
			})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("config watch stopped", "error", err)
		}
	}()

	if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return cli.NewRepl(controller, client, store, logger).Run(ctx)
	}

	model := chat.New(controller, client, store, logger, chat.Options{
		Markdown: cfg.UI.Markdown,
		Version:  Version,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// login prompts for the access token and a passphrase and stores the token
// encrypted under ~/.localmanus/credentials.
func login() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("login needs an interactive terminal")
	}

	fmt.Print("Access token: ")
	token, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return err
	}
	if len(token) == 0 {
		return errors.New("empty token")
	}

	fmt.Print("Passphrase: ")
	passphrase, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return err
	}
	if len(passphrase) == 0 {
		return errors.New("empty passphrase")
	}

	dir, err := config.Dir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "credentials")
	if err := auth.SaveToken(path, string(token), string(passphrase)); err != nil {
		return err
	}
	fmt.Println("Token saved to " + path)
	fmt.Println("Set LOCALMANUS_PASSPHRASE to use it.")
	return nil
}

// newLogger opens the configured log file. Logs never go to the terminal;
// the TUI owns the screen.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	path, err := cfg.LogPath()
	if err != nil {
		return nil, nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		// Fall back to a silent logger rather than failing startup.
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}

	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, func() { file.Close() }, nil
}

// resolveToken prefers the encrypted credential file over the config value.
// The passphrase comes from LOCALMANUS_PASSPHRASE; without it the encrypted
// file is skipped.
func resolveToken(cfg *config.Config, logger *slog.Logger) string {
	passphrase := os.Getenv("LOCALMANUS_PASSPHRASE")
	if passphrase != "" {
		dir, err := config.Dir()
		if err == nil {
			token, err := auth.LoadToken(filepath.Join(dir, "credentials"), passphrase)
			switch {
			case err == nil:
				return token
			case errors.Is(err, auth.ErrNoCredentials):
				// Fall through to the config value.
			default:
				logger.Warn("credential file unusable", "error", err)
			}
		}
	}
	return cfg.Backend.AccessToken
}

// openUploadStore opens the local upload catalog; failure disables the
// catalog but never blocks chatting.
func openUploadStore(logger *slog.Logger) *storage.UploadStore {
	dir, err := config.Dir()
	if err != nil {
		logger.Warn("upload catalog disabled", "error", err)
		return nil
	}
	store, err := storage.OpenUploadStore(filepath.Join(dir, "uploads.db"))
	if err != nil {
		logger.Warn("upload catalog disabled", "error", err)
		return nil
	}
	return store
}
