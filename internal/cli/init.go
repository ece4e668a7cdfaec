// Package cli holds the startup steps shared by the bilancio binaries.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/backend"
	"bilancio/internal/config"
	applog "bilancio/internal/log"
)

// SetupLogger installs a text logger on stdout as the slog default.
func SetupLogger(level string) *slog.Logger {
	return SetupLoggerTo(os.Stdout, level)
}

func SetupLoggerTo(w io.Writer, level string) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: applog.ParseLevel(level)})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile reads .env when present. A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	exitOnError(logger, cfg.Validate(), "Configuration validation failed")
	return cfg
}

// OpenBackend opens the configured store and loads the ledger, exiting the
// process when either step fails.
func OpenBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	exitOnError(logger, err, "Invalid backend configuration")

	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	exitOnError(logger, err, "Failed to open ledger", "backend", bcfg.Type)
	return res
}

func exitOnError(logger *slog.Logger, err error, msg string, args ...any) {
	if err == nil {
		return
	}
	logger.Error(msg, append([]any{applog.FieldError, err}, args...)...)
	os.Exit(1)
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with at most timeout to finish; done is closed
// once it returns or the timeout expires.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received")

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup != nil {
				cleanup()
			}
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached", "timeout", timeout)
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the signal arrived and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
