package sheets

import (
	"context"

	"bilancio/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerView is a read-only copy of the ledger at one revision.
	LedgerView struct {
		Revision     uint64
		Transactions []core.Transaction // newest first
		Totals       core.Totals
		Categories   []core.CategoryTotals // active categories only
	}

	// LedgerExporter mirrors a ledger view into an external spreadsheet,
	// replacing whatever the previous export wrote.
	LedgerExporter interface {
		Export(ctx context.Context, view LedgerView) error
	}
)
