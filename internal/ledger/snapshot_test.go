package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bilancio/internal/core"
)

func TestRecordJSONShape(t *testing.T) {
	tx := core.Transaction{
		ID:        1741599000000,
		Amount:    core.Money{Cents: 5000000},
		Type:      core.Income,
		Category:  "Salary",
		Note:      "Advance",
		Date:      core.NewDate(2025, 3, 10),
		CreatedAt: time.UnixMilli(1741599000000).UTC(),
	}
	b, err := json.Marshal(NewRecord(tx))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 1741599000000,
		"amount": 50000,
		"type": "income",
		"category": "Salary",
		"note": "Advance",
		"date": "2025-03-10",
		"timestamp": 1741599000000
	}`, string(b))

	var rec Record
	require.NoError(t, json.Unmarshal(b, &rec))
	back, err := rec.Transaction()
	require.NoError(t, err)
	assert.Equal(t, tx, back)
}

func TestRecordFallbacks(t *testing.T) {
	// No date and no timestamp: the date cannot be recovered.
	_, err := Record{ID: 10, Amount: "1", Type: "expense"}.Transaction()
	assert.ErrorIs(t, err, core.ErrInvalidDate)

	// Date derived from the timestamp, created_at from the id when timestamp is missing.
	tx, err := Record{ID: 10, Amount: "1", Type: "expense", Timestamp: 1741599000000}.Transaction()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", tx.Date.String())

	tx, err = Record{ID: 1741599000000, Amount: "2.5", Date: "2025-03-01"}.Transaction()
	require.NoError(t, err)
	assert.Equal(t, core.Expense, tx.Type)
	assert.Equal(t, int64(1741599000000), tx.CreatedAt.UnixMilli())
	assert.Equal(t, core.DefaultNote, tx.Note)
}

func TestDecodeTransactionsReportsDrops(t *testing.T) {
	var dropped []int
	txs, err := decodeTransactions([]byte(`[
		{"id": 1, "amount": "3.10", "type": "income", "date": "2025-01-01"},
		{"id": 2, "amount": 0, "type": "income", "date": "2025-01-01"}
	]`), func(i int, err error) { dropped = append(dropped, i) })
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(310), txs[0].Amount.Cents)
	assert.Equal(t, []int{1}, dropped)

	_, err = decodeTransactions([]byte(`{"id": 1}`), func(int, error) {})
	assert.Error(t, err)
}
