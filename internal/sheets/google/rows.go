package google

import (
	"bilancio/internal/core"
	ports "bilancio/internal/sheets"
)

var (
	transactionHeader = []any{"ID", "Date", "Type", "Category", "Note", "Amount", "Signed"}
	summaryHeader     = []any{"Category", "Income", "Expense", "Net"}
)

// transactionRows renders one row per transaction, newest first. Amounts are
// numbers in currency units so the sheet can sum them.
func transactionRows(view ports.LedgerView) [][]any {
	rows := make([][]any, 0, len(view.Transactions)+1)
	rows = append(rows, transactionHeader)
	for _, tx := range view.Transactions {
		rows = append(rows, []any{
			tx.ID,
			tx.Date.String(),
			tx.Type.String(),
			tx.Category,
			tx.Note,
			units(tx.Amount),
			units(tx.Signed()),
		})
	}
	return rows
}

// summaryRows renders per-category totals followed by a blank line and the
// ledger totals. The formatted balance goes in the last row.
func summaryRows(view ports.LedgerView, currency string) [][]any {
	rows := make([][]any, 0, len(view.Categories)+4)
	rows = append(rows, summaryHeader)
	for _, c := range view.Categories {
		rows = append(rows, []any{c.Category, units(c.Income), units(c.Expense), units(c.Income.Sub(c.Expense))})
	}
	t := view.Totals
	rows = append(rows,
		[]any{},
		[]any{"Total", units(t.Income), units(t.Expense), units(t.Balance)},
		[]any{"Balance", core.FormatMoney(t.Balance, currency)},
	)
	return rows
}

func units(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}
