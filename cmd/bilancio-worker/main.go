package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/backend"
	"bilancio/internal/cli"
	"bilancio/internal/ledger"
	gsheet "bilancio/internal/sheets/google"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateExport(); err != nil {
		logger.Error("Export configuration validation failed", "error", err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).CreateStore(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	defer store.Close()

	exporter, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		SummarySheetName:   cfg.GoogleSummarySheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		CurrencySymbol:     cfg.CurrencySymbol,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	var opts []worker.Option
	if st, ok := store.(lastModifier); ok {
		opts = append(opts, worker.WithChangeStamp(func(ctx context.Context) (time.Time, error) {
			at, _, err := st.LastModified(ctx)
			return at, err
		}))
	}
	w := worker.NewExportWorker(func(ctx context.Context) (*ledger.Ledger, error) {
		return ledger.Open(ctx, store, ledger.WithRequiredCategory(cfg.RequireCategory))
	}, exporter, opts...)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, falling back to periodic export only", "error", err)
		} else {
			defer client.Close()
			g.Go(func() error {
				return client.ConsumeLedgerEvents(gctx, w.HandleLedgerEvent)
			})
			logger.Info("Consuming ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, exporting periodically", "interval", cfg.ExportInterval)
	}

	g.Go(func() error {
		return w.RunPeriodic(gctx, cfg.ExportInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

// lastModifier is implemented by stores that stamp every write.
type lastModifier interface {
	LastModified(ctx context.Context) (time.Time, bool, error)
}
