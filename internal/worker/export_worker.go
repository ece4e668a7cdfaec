package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/sheets"
)

// Opener loads the current ledger from the shared store.
type Opener func(ctx context.Context) (*ledger.Ledger, error)

// ChangeStamp returns a value that changes whenever the store is written.
type ChangeStamp func(ctx context.Context) (time.Time, error)

type Option func(*ExportWorker)

// WithChangeStamp lets Export skip reloading the ledger while the store's
// stamp equals the one seen at the last export.
func WithChangeStamp(stamp ChangeStamp) Option {
	return func(w *ExportWorker) { w.stamp = stamp }
}

// ExportWorker mirrors the ledger into a spreadsheet. It re-reads the store
// on every trigger and skips the export when the content has not changed
// since the last successful one.
type ExportWorker struct {
	open     Opener
	exporter sheets.LedgerExporter
	stamp    ChangeStamp

	mu        sync.Mutex
	lastSum   uint64
	lastStamp time.Time
	exported  bool
}

func NewExportWorker(open Opener, exporter sheets.LedgerExporter, opts ...Option) *ExportWorker {
	w := &ExportWorker{
		open:     open,
		exporter: exporter,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleLedgerEvent is the AMQP consumer callback. A returned error makes the
// broker redeliver the event.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"kind", ev.Kind,
		"tx_id", ev.TransactionID,
		"revision", ev.Revision)

	if _, err := w.Export(ctx, ev.Revision); err != nil {
		return fmt.Errorf("export after %s: %w", ev.Kind, err)
	}
	return nil
}

// Export loads the ledger and exports it unless nothing changed. It reports
// whether an export was performed. Concurrent calls are serialized.
func (w *ExportWorker) Export(ctx context.Context, revision uint64) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var stamp time.Time
	if w.stamp != nil {
		st, err := w.stamp(ctx)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Store change stamp unavailable, comparing content", "error", err)
		case w.exported && st.Equal(w.lastStamp):
			slog.DebugContext(ctx, "Store untouched since last export, skipping", "revision", revision)
			return false, nil
		default:
			stamp = st
		}
	}

	l, err := w.open(ctx)
	if err != nil {
		return false, fmt.Errorf("open ledger: %w", err)
	}
	view := ViewOf(l, revision)

	sum := fingerprint(view)
	if w.exported && sum == w.lastSum {
		w.lastStamp = stamp
		slog.DebugContext(ctx, "Ledger unchanged, skipping export", "revision", revision)
		return false, nil
	}

	if err := w.exporter.Export(ctx, view); err != nil {
		return false, err
	}
	w.lastSum = sum
	w.lastStamp = stamp
	w.exported = true

	slog.InfoContext(ctx, "Successfully exported ledger",
		"revision", revision,
		"transactions", len(view.Transactions))
	return true, nil
}

// RunPeriodic exports once immediately and then on every tick until ctx is
// cancelled. Failures are logged and retried on the next tick.
func (w *ExportWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid export interval %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.Export(ctx, 0); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Periodic export failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ViewOf copies what the exporter needs out of l.
func ViewOf(l *ledger.Ledger, revision uint64) sheets.LedgerView {
	return sheets.LedgerView{
		Revision:     revision,
		Transactions: l.Transactions(),
		Totals:       l.Totals(),
		Categories:   core.ActiveOnly(l.GroupByCategory()),
	}
}

// fingerprint hashes the exported content, ignoring the revision.
func fingerprint(v sheets.LedgerView) uint64 {
	h := fnv.New64a()
	for _, tx := range v.Transactions {
		fmt.Fprintf(h, "%d|%d|%s|%s|%s|%s\n", tx.ID, tx.Amount.Cents, tx.Type, tx.Category, tx.Note, tx.Date)
	}
	h.Write([]byte{0})
	for _, c := range v.Categories {
		fmt.Fprintf(h, "%s|%d|%d\n", c.Category, c.Income.Cents, c.Expense.Cents)
	}
	return h.Sum64()
}
