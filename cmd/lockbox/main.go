package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	boltadapter "github.com/ericfisherdev/lockbox/internal/adapter/driven/bolt"
	githubadapter "github.com/ericfisherdev/lockbox/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/lockbox/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/lockbox/internal/adapter/driving/http"
	"github.com/ericfisherdev/lockbox/internal/adapter/driving/terminal"
	"github.com/ericfisherdev/lockbox/internal/application"
	"github.com/ericfisherdev/lockbox/internal/config"
	"github.com/ericfisherdev/lockbox/internal/domain/model"
	"github.com/ericfisherdev/lockbox/internal/domain/port/driven"
)

const usage = `usage: lockbox [shell|serve]

  shell   interactive password manager (default)
  serve   unlock the vault, then serve the JSON API on LOCKBOX_LISTEN_ADDR`

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(cfg))

	mode := "shell"
	if len(args) > 0 {
		mode = args[0]
	}
	if mode != "shell" && mode != "serve" {
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown mode %q", mode)
	}
	if mode == "serve" {
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
	}

	slog.Debug("config loaded",
		"mode", mode,
		"db_path", cfg.DBPath,
		"backend", cfg.Backend,
		"cipher", cfg.Cipher.String(),
		"sync_enabled", cfg.SyncEnabled(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Wire remote sync (optional).
	var remote driven.RemoteSync
	if cfg.SyncEnabled() {
		client, err := githubadapter.NewClient(githubadapter.Options{
			Repo:      cfg.SyncRepo,
			Path:      cfg.SyncPath,
			Branch:    cfg.SyncBranch,
			TokenFile: cfg.SyncTokenFile,
		})
		if err != nil {
			return fmt.Errorf("configure remote sync: %w", err)
		}
		remote = client
		slog.Debug("remote sync configured", "repo", cfg.SyncRepo, "path", cfg.SyncPath)
	}
	syncSvc := application.NewSyncService(remote, slog.Default())

	// 4. Start a session: open the store and prompt for the passphrase.
	ui := terminal.New(os.Stdin, os.Stdout)
	shell := application.NewShell(ui, storeOpener(cfg), syncSvc, slog.Default(),
		application.WithSuite(cfg.Cipher),
	)
	defer func() {
		if closeErr := shell.Close(); closeErr != nil {
			slog.Error("error closing vault", "error", closeErr)
		}
	}()

	if err := shell.Start(ctx); err != nil {
		if errors.Is(err, model.ErrInputCancelled) {
			return nil
		}
		return err
	}

	if mode == "serve" {
		return serve(ctx, cfg, shell.Vault(), syncSvc)
	}

	// Ctrl-C at a prompt ends the session like "exit".
	if err := shell.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// storeOpener returns the StoreOpener for the configured backend.
func storeOpener(cfg *config.Config) application.StoreOpener {
	return func(ctx context.Context) (driven.VaultStore, error) {
		switch cfg.Backend {
		case config.BackendBolt:
			return boltadapter.Open(ctx, cfg.DBPath, cfg.LockTimeout)
		default:
			return sqliteadapter.Open(ctx, cfg.DBPath, cfg.LockTimeout)
		}
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// serve exposes the unlocked vault over HTTP until ctx is done.
func serve(ctx context.Context, cfg *config.Config, vault *application.Vault, syncSvc *application.SyncService) error {
	apiHandler := httphandler.NewHandler(vault, syncSvc, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, cfg.APIToken, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
