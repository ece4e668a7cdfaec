// Package ledger holds the ordered list of income and expense transactions of
// a single profile together with its category set, and derives balance and
// per-category statistics from them.
//
// Every mutation writes the whole snapshot to the backing store before it is
// committed in memory: a failed write returns a *core.PersistenceError and
// leaves the ledger exactly as it was.
package ledger

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/storage"
)

type Option func(*Ledger)

// WithClock replaces time.Now, used for ids, creation timestamps and the default date.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithRequiredCategory rejects transactions recorded without a category
// instead of filing them under core.DefaultCategory.
func WithRequiredCategory(required bool) Option {
	return func(l *Ledger) { l.requireCategory = required }
}

// WithDefaultCategories sets the categories installed when the store has none.
func WithDefaultCategories(cats []string) Option {
	return func(l *Ledger) { l.defaults = normalizeCategories(cats) }
}

func WithLogger(logger *applog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger.WithComponent(applog.ComponentLedger)
		}
	}
}

type Ledger struct {
	mu              sync.RWMutex
	store           storage.Store
	now             func() time.Time
	requireCategory bool
	defaults        []string
	logger          *applog.Logger

	txs        []core.Transaction // newest first
	categories []string
	lastID     int64
	revision   uint64
}

// Open rehydrates a ledger from store. Malformed records are dropped with a
// warning; a store that cannot be read or holds invalid JSON is an error.
func Open(ctx context.Context, store storage.Store, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:    store,
		now:      time.Now,
		defaults: slices.Clone(core.DefaultCategories),
		logger:   applog.Default(applog.ComponentLedger),
	}
	for _, opt := range opts {
		opt(l)
	}

	snap, err := loadSnapshot(ctx, store, l.logger)
	if err != nil {
		return nil, err
	}

	l.txs = snap.transactions
	if snap.hasCategories {
		l.categories = snap.categories
	} else {
		l.categories = slices.Clone(l.defaults)
	}
	for _, tx := range l.txs {
		l.lastID = max(l.lastID, tx.ID)
	}

	l.logger.InfoContext(ctx, "Ledger loaded",
		applog.FieldCount, len(l.txs),
		"categories", len(l.categories),
		applog.FieldOperation, applog.OpLoad)
	return l, nil
}

// Add validates the candidate, records it as the newest transaction and
// persists the ledger. On a validation failure the returned error is a
// *core.ValidationError naming the offending field.
func (l *Ledger) Add(ctx context.Context, c core.Candidate) (core.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	tx, err := l.build(c, now)
	if err != nil {
		return core.Transaction{}, err
	}

	tx.ID = now.UnixMilli()
	if tx.ID <= l.lastID {
		tx.ID = l.lastID + 1
	}
	tx.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	txs := make([]core.Transaction, 0, len(l.txs)+1)
	txs = append(txs, tx)
	txs = append(txs, l.txs...)

	cats := l.categories
	if !slices.Contains(cats, tx.Category) {
		cats = append(slices.Clone(cats), tx.Category)
	}

	if err := l.commit(ctx, txs, cats); err != nil {
		return core.Transaction{}, err
	}
	l.lastID = tx.ID

	applog.NewEventLogger(l.logger).TransactionAdded(ctx,
		tx.ID, tx.Type.String(), tx.Amount.Cents, tx.Category, l.revision)
	return tx, nil
}

// build turns raw form values into a transaction without id or timestamp.
// Checks run in order amount, type, category, date, note.
func (l *Ledger) build(c core.Candidate, now time.Time) (core.Transaction, error) {
	amount, err := core.ParseAmount(c.Amount)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: core.FieldAmount, Err: err}
	}

	typ, err := core.ParseTxType(c.Type)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: core.FieldType, Err: err}
	}

	category := strings.TrimSpace(c.Category)
	if category == "" {
		if l.requireCategory {
			return core.Transaction{}, &core.ValidationError{Field: core.FieldCategory, Err: core.ErrMissingCategory}
		}
		category = core.DefaultCategory
	}

	date := core.DateOf(now)
	if strings.TrimSpace(c.Date) != "" {
		if date, err = core.ParseDate(c.Date); err != nil {
			return core.Transaction{}, &core.ValidationError{Field: core.FieldDate, Err: err}
		}
	}

	note := strings.TrimSpace(c.Note)
	if utf8.RuneCountInString(note) > core.MaxNoteLength {
		return core.Transaction{}, &core.ValidationError{Field: core.FieldNote, Err: core.ErrNoteTooLong}
	}
	if note == "" {
		note = core.DefaultNote
	}

	return core.Transaction{
		Amount:   amount,
		Type:     typ,
		Category: category,
		Note:     note,
		Date:     date,
	}, nil
}

// Remove deletes the transaction with the given id. Removing an unknown id is
// a no-op that reports false.
func (l *Ledger) Remove(ctx context.Context, id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := slices.IndexFunc(l.txs, func(tx core.Transaction) bool { return tx.ID == id })
	if idx < 0 {
		return false, nil
	}

	txs := slices.Delete(slices.Clone(l.txs), idx, idx+1)
	if err := l.commit(ctx, txs, l.categories); err != nil {
		return false, err
	}

	applog.NewEventLogger(l.logger).TransactionRemoved(ctx, id, l.revision)
	return true, nil
}

// Replace installs txs as the whole ledger, newest first. Every record must
// be valid and ids must be unique. Categories and notes are trimmed, a blank
// note becomes the default and a missing creation time is derived from the id.
func (l *Ledger) Replace(ctx context.Context, txs []core.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaceLocked(ctx, txs)
}

func (l *Ledger) replaceLocked(ctx context.Context, txs []core.Transaction) error {
	seen := make(map[int64]struct{}, len(txs))
	var lastID int64
	cats := l.categories
	norm := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return err
		}
		// Same defaults and trimming as a snapshot reload applies.
		tx, err := NewRecord(tx).Transaction()
		if err != nil {
			return err
		}
		norm = append(norm, tx)
		if _, dup := seen[tx.ID]; dup {
			return &core.ValidationError{Field: core.FieldID, Err: core.ErrDuplicateID}
		}
		seen[tx.ID] = struct{}{}
		lastID = max(lastID, tx.ID)
		if !slices.Contains(cats, tx.Category) {
			cats = append(slices.Clone(cats), tx.Category)
		}
	}

	if err := l.commit(ctx, norm, cats); err != nil {
		return err
	}
	l.lastID = max(l.lastID, lastID)
	l.logger.InfoContext(ctx, "Ledger replaced",
		applog.FieldCount, len(txs),
		applog.FieldRevision, l.revision)
	return nil
}

// SeedDemo installs three sample transactions when the ledger is empty and
// reports whether it did.
func (l *Ledger) SeedDemo(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.txs) > 0 {
		return false, nil
	}

	now := l.now()
	base := max(now.UnixMilli(), l.lastID+1)
	today := core.DateOf(now)
	yesterday := core.DateOf(now.AddDate(0, 0, -1))
	at := func(d time.Duration) time.Time { return time.UnixMilli(now.Add(-d).UnixMilli()).UTC() }

	demo := []core.Transaction{
		{ID: base, Amount: core.Money{Cents: 5000000}, Type: core.Income, Category: "Salary", Note: "Advance", Date: today, CreatedAt: at(24 * time.Hour)},
		{ID: base + 1, Amount: core.Money{Cents: 150000}, Type: core.Expense, Category: "Food", Note: "Lunch at a cafe", Date: today, CreatedAt: at(12 * time.Hour)},
		{ID: base + 2, Amount: core.Money{Cents: 50000}, Type: core.Expense, Category: "Transport", Note: "Taxi", Date: yesterday, CreatedAt: at(48 * time.Hour)},
	}
	if err := l.replaceLocked(ctx, demo); err != nil {
		return false, err
	}
	return true, nil
}

// Totals returns income, expense and balance over the whole ledger.
func (l *Ledger) Totals() core.Totals {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return core.SumTotals(l.txs)
}

// Filter returns a copy of the transactions matching f, newest first.
func (l *Ledger) Filter(f core.TypeFilter) []core.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]core.Transaction, 0, len(l.txs))
	for _, tx := range l.txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// Transactions returns a copy of the whole ledger, newest first.
func (l *Ledger) Transactions() []core.Transaction {
	return l.Filter(core.FilterAll)
}

// GroupByCategory sums income and expense per category. Known categories come
// first in their configured order, followed by categories that only appear in
// transactions. Rows without activity are included.
func (l *Ledger) GroupByCategory() []core.CategoryTotals {
	l.mu.RLock()
	defer l.mu.RUnlock()

	index := make(map[string]int, len(l.categories))
	rows := make([]core.CategoryTotals, 0, len(l.categories))
	for _, c := range l.categories {
		index[c] = len(rows)
		rows = append(rows, core.CategoryTotals{Category: c})
	}
	for _, tx := range l.txs {
		i, ok := index[tx.Category]
		if !ok {
			i = len(rows)
			index[tx.Category] = i
			rows = append(rows, core.CategoryTotals{Category: tx.Category})
		}
		switch tx.Type {
		case core.Income:
			rows[i].Income = rows[i].Income.Add(tx.Amount)
		case core.Expense:
			rows[i].Expense = rows[i].Expense.Add(tx.Amount)
		}
	}
	return rows
}

func (l *Ledger) Get(id int64) (core.Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, tx := range l.txs {
		if tx.ID == id {
			return tx, true
		}
	}
	return core.Transaction{}, false
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.txs)
}

// Revision counts committed mutations since Open.
func (l *Ledger) Revision() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revision
}

func (l *Ledger) Categories() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.categories)
}

// AddCategory appends name to the category set. Adding an existing category is a no-op.
func (l *Ledger) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &core.ValidationError{Field: core.FieldCategory, Err: core.ErrEmptyCategory}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.categories, name) {
		return nil
	}
	return l.commit(ctx, l.txs, append(slices.Clone(l.categories), name))
}

// RemoveCategory drops name from the category set. Transactions filed under
// it keep their category.
func (l *Ledger) RemoveCategory(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)

	l.mu.Lock()
	defer l.mu.Unlock()
	idx := slices.Index(l.categories, name)
	if idx < 0 {
		return false, nil
	}
	cats := slices.Delete(slices.Clone(l.categories), idx, idx+1)
	if err := l.commit(ctx, l.txs, cats); err != nil {
		return false, err
	}
	return true, nil
}

// commit persists the next state and installs it only when the write succeeded.
// Callers hold the write lock.
func (l *Ledger) commit(ctx context.Context, txs []core.Transaction, cats []string) error {
	entries, err := snapshotEntries(txs, cats)
	if err != nil {
		return &core.PersistenceError{Op: applog.OpSave, Err: err}
	}
	if err := l.store.Put(ctx, entries...); err != nil {
		l.logger.ErrorContext(ctx, "Failed to save ledger snapshot",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypePersistence,
			applog.FieldOperation, applog.OpSave)
		return &core.PersistenceError{Op: applog.OpSave, Err: err}
	}
	l.txs = txs
	l.categories = cats
	l.revision++
	return nil
}
