package google

import (
	"testing"

	"bilancio/internal/core"
	ports "bilancio/internal/sheets"
)

func sampleView() ports.LedgerView {
	txs := []core.Transaction{
		{ID: 3, Amount: core.Money{Cents: 150000}, Type: core.Expense, Category: "Food", Note: "Lunch at a cafe", Date: core.NewDate(2025, 3, 10)},
		{ID: 2, Amount: core.Money{Cents: 5000000}, Type: core.Income, Category: "Salary", Note: "Advance", Date: core.NewDate(2025, 3, 9)},
	}
	return ports.LedgerView{
		Revision:     4,
		Transactions: txs,
		Totals:       core.SumTotals(txs),
		Categories: []core.CategoryTotals{
			{Category: "Food", Expense: core.Money{Cents: 150000}},
			{Category: "Salary", Income: core.Money{Cents: 5000000}},
		},
	}
}

func TestTransactionRows(t *testing.T) {
	rows := transactionRows(sampleView())
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || len(rows[0]) != 7 {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	first := rows[1]
	if first[0] != int64(3) || first[1] != "2025-03-10" || first[2] != "expense" || first[3] != "Food" {
		t.Fatalf("unexpected first row: %v", first)
	}
	if first[5] != 1500.0 || first[6] != -1500.0 {
		t.Fatalf("unexpected amounts: %v %v", first[5], first[6])
	}
	if rows[2][6] != 50000.0 {
		t.Fatalf("income should be signed positive, got %v", rows[2][6])
	}
}

func TestTransactionRowsEmptyLedger(t *testing.T) {
	rows := transactionRows(ports.LedgerView{})
	if len(rows) != 1 {
		t.Fatalf("expected only the header, got %v", rows)
	}
}

func TestSummaryRows(t *testing.T) {
	rows := summaryRows(sampleView(), "₽")
	if len(rows) != 6 {
		t.Fatalf("unexpected row count %d: %v", len(rows), rows)
	}
	if rows[1][0] != "Food" || rows[1][3] != -1500.0 {
		t.Fatalf("unexpected food row: %v", rows[1])
	}
	total := rows[4]
	if total[0] != "Total" || total[1] != 50000.0 || total[2] != 1500.0 || total[3] != 48500.0 {
		t.Fatalf("unexpected total row: %v", total)
	}
	if rows[5][1] != "48 500.00 ₽" {
		t.Fatalf("unexpected formatted balance: %v", rows[5])
	}
}
