package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"bilancio/internal/backend"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/services"
)

var (
	errUsage    = errors.New("invalid arguments")
	errNotFound = errors.New("transaction not found")
)

// app carries what every subcommand needs once the backend is open.
type app struct {
	service  *services.TransactionService
	currency string
	cleanup  backend.CleanupFunc

	backendType     string
	dataDir         string
	dbPath          string
	logLevel        string
	requireCategory bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bilancio-cli",
		Short: "Track income and expenses from the terminal",
		Long: `bilancio-cli records income and expense transactions in the same ledger
the bilancio web server uses, and prints balances and per-category totals.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cfg := config.Load()
	flags := root.PersistentFlags()
	flags.StringVar(&a.backendType, "backend", cfg.DataBackend, "data backend ("+strings.Join(backend.GetBackendTypeStrings(), ", ")+")")
	flags.StringVar(&a.dataDir, "data-dir", cfg.DataDir, "directory of the file backend")
	flags.StringVar(&a.dbPath, "db", cfg.SQLiteDBPath, "database path of the sqlite backend")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.BoolVar(&a.requireCategory, "require-category", cfg.RequireCategory, "reject transactions without a category")

	root.AddCommand(
		addCmd(a),
		listCmd(a),
		removeCmd(a),
		totalsCmd(a),
		statsCmd(a),
		categoriesCmd(a),
		seedCmd(a),
	)
	return root
}

// open loads the configuration, applies flag overrides and opens the ledger.
func (a *app) open(cmd *cobra.Command, _ []string) error {
	logger := cli.SetupLoggerTo(cmd.ErrOrStderr(), a.logLevel)

	cfg := config.Load()
	cfg.DataBackend = a.backendType
	cfg.DataDir = a.dataDir
	cfg.SQLiteDBPath = a.dbPath
	cfg.RequireCategory = a.requireCategory
	cfg.SeedDemoData = false
	a.currency = cfg.CurrencySymbol

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(cmd.Context(), backendCfg)
	if err != nil {
		return err
	}
	a.service = res.Service
	a.cleanup = res.Cleanup

	slog.Debug("Ledger opened", "backend", backendCfg.Type, "transactions", res.Ledger.Len())
	return nil
}

func (a *app) close() error {
	if a.cleanup == nil {
		return nil
	}
	err := a.cleanup()
	a.cleanup = nil
	return err
}

// run wraps fn so the ledger is open while it executes and closed afterwards,
// whatever fn returns.
func (a *app) run(fn func(cmd *cobra.Command, args []string, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.open(cmd, args); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, a.close())
		}()
		return fn(cmd, args, cmd.OutOrStdout())
	}
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}
