package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/storage"
)

// Record is the persisted and wire shape of a transaction. Amount is a plain
// JSON decimal in currency units; Timestamp is the creation time in epoch ms.
type Record struct {
	ID          int64       `json:"id"`
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	Note        string      `json:"note"`
	Description string      `json:"description,omitempty"` // older snapshots
	Date        string      `json:"date"`
	Timestamp   int64       `json:"timestamp"`
}

func NewRecord(tx core.Transaction) Record {
	return Record{
		ID:        tx.ID,
		Amount:    json.Number(tx.Amount.Decimal().String()),
		Type:      tx.Type.String(),
		Category:  tx.Category,
		Note:      tx.Note,
		Date:      tx.Date.String(),
		Timestamp: tx.CreatedAt.UnixMilli(),
	}
}

// Transaction converts a loaded record, filling defaults for fields older
// snapshots may lack. The result is validated.
func (r Record) Transaction() (core.Transaction, error) {
	amount, err := core.ParseAmount(r.Amount.String())
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: core.FieldAmount, Err: err}
	}
	typ, err := core.ParseTxType(r.Type)
	if err != nil {
		return core.Transaction{}, &core.ValidationError{Field: core.FieldType, Err: err}
	}

	ts := r.Timestamp
	if ts <= 0 {
		ts = r.ID
	}
	created := time.UnixMilli(ts).UTC()

	var date core.Date
	if strings.TrimSpace(r.Date) == "" {
		if r.Timestamp <= 0 {
			return core.Transaction{}, &core.ValidationError{Field: core.FieldDate, Err: core.ErrInvalidDate}
		}
		date = core.DateOf(created)
	} else if date, err = core.ParseDate(r.Date); err != nil {
		return core.Transaction{}, &core.ValidationError{Field: core.FieldDate, Err: err}
	}

	category := strings.TrimSpace(r.Category)
	if category == "" {
		category = core.DefaultCategory
	}
	note := strings.TrimSpace(r.Note)
	if note == "" {
		note = strings.TrimSpace(r.Description)
	}
	if note == "" {
		note = core.DefaultNote
	}

	tx := core.Transaction{
		ID:        r.ID,
		Amount:    amount,
		Type:      typ,
		Category:  category,
		Note:      note,
		Date:      date,
		CreatedAt: created,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

type snapshot struct {
	transactions []core.Transaction
	categories   []string
	// hasCategories is false when the store never held a categories entry.
	hasCategories bool
}

func encodeTransactions(txs []core.Transaction) ([]byte, error) {
	recs := make([]Record, len(txs))
	for i, tx := range txs {
		recs[i] = NewRecord(tx)
	}
	return json.Marshal(recs)
}

// decodeTransactions parses the transactions entry. Records that fail schema
// checks are skipped and reported through drop; only a malformed document is an error.
func decodeTransactions(b []byte, drop func(index int, err error)) ([]core.Transaction, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	txs := make([]core.Transaction, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for i, msg := range raw {
		var rec Record
		if err := json.Unmarshal(msg, &rec); err != nil {
			drop(i, err)
			continue
		}
		tx, err := rec.Transaction()
		if err != nil {
			drop(i, err)
			continue
		}
		if _, dup := seen[tx.ID]; dup {
			drop(i, &core.ValidationError{Field: core.FieldID, Err: core.ErrDuplicateID})
			continue
		}
		seen[tx.ID] = struct{}{}
		txs = append(txs, tx)
	}
	return txs, nil
}

func encodeCategories(cats []string) ([]byte, error) {
	if cats == nil {
		cats = []string{}
	}
	return json.Marshal(cats)
}

func decodeCategories(b []byte) ([]string, error) {
	var cats []string
	if err := json.Unmarshal(b, &cats); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return normalizeCategories(cats), nil
}

func loadSnapshot(ctx context.Context, store storage.Store, logger *applog.Logger) (snapshot, error) {
	var snap snapshot

	b, ok, err := store.Get(ctx, storage.KeyTransactions)
	if err != nil {
		return snap, &core.PersistenceError{Op: applog.OpLoad, Err: err}
	}
	if ok {
		snap.transactions, err = decodeTransactions(b, func(i int, err error) {
			logger.WarnContext(ctx, "Dropping malformed transaction record",
				"index", i, applog.FieldError, err, applog.FieldOperation, applog.OpLoad)
		})
		if err != nil {
			return snap, &core.PersistenceError{Op: applog.OpLoad, Err: err}
		}
	}

	b, ok, err = store.Get(ctx, storage.KeyCategories)
	if err != nil {
		return snap, &core.PersistenceError{Op: applog.OpLoad, Err: err}
	}
	if ok {
		snap.categories, err = decodeCategories(b)
		if err != nil {
			return snap, &core.PersistenceError{Op: applog.OpLoad, Err: err}
		}
		snap.hasCategories = true
	}
	return snap, nil
}

// snapshotEntries encodes both entries for a single atomic Put.
func snapshotEntries(txs []core.Transaction, cats []string) ([]storage.Entry, error) {
	tb, err := encodeTransactions(txs)
	if err != nil {
		return nil, err
	}
	cb, err := encodeCategories(cats)
	if err != nil {
		return nil, err
	}
	return []storage.Entry{
		{Key: storage.KeyTransactions, Value: tb},
		{Key: storage.KeyCategories, Value: cb},
	}, nil
}

func normalizeCategories(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
