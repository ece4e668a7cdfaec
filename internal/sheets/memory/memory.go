package memory

import (
	"context"
	"slices"
	"sync"

	"bilancio/internal/sheets"
)

// Exporter keeps exported views in memory. It stands in for a spreadsheet
// when none is configured.
type Exporter struct {
	mu    sync.Mutex
	views []sheets.LedgerView
	err   error
}

var _ sheets.LedgerExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// Export records a copy of view, or returns the error set with Fail.
func (e *Exporter) Export(_ context.Context, view sheets.LedgerView) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	view.Transactions = slices.Clone(view.Transactions)
	view.Categories = slices.Clone(view.Categories)
	e.views = append(e.views, view)
	return nil
}

// Fail makes every following Export return err. A nil err clears it.
func (e *Exporter) Fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Views returns the recorded exports, oldest first.
func (e *Exporter) Views() []sheets.LedgerView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.views)
}

// Last returns the most recent export.
func (e *Exporter) Last() (sheets.LedgerView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.views) == 0 {
		return sheets.LedgerView{}, false
	}
	return e.views[len(e.views)-1], true
}
