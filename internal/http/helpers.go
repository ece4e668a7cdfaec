package http

import (
	"net/http"
	"strings"

	"bilancio/internal/core"
)

type transactionView struct {
	ID       int64
	Date     string
	Type     string
	Category string
	Note     string
	Amount   string // signed and formatted
	Income   bool
}

type balanceView struct {
	Balance  string
	Income   string
	Expense  string
	Negative bool
}

type filterView struct {
	Value  string
	Label  string
	Active bool
}

type listView struct {
	Filter  string
	Filters []filterView
	Items   []transactionView
}

type statsRowView struct {
	Category string
	Income   string
	Expense  string
	Net      string
}

type indexView struct {
	Today           string
	Categories      []string
	RequireCategory bool
	DefaultCategory string
	MaxNoteLength   int
	Balance         balanceView
	List            listView
}

// parseFilter reads the filter query parameter. Unknown values fall back to all.
func (s *Server) parseFilter(r *http.Request) core.TypeFilter {
	raw := r.URL.Query().Get("filter")
	f, err := core.ParseTypeFilter(raw)
	if err != nil {
		ctxLogger(r).DebugContext(r.Context(), "Unknown filter, showing all", "filter", raw)
	}
	return f
}

func (s *Server) balanceOf(t core.Totals) balanceView {
	return balanceView{
		Balance:  core.FormatMoney(t.Balance, s.currency),
		Income:   core.FormatMoney(t.Income, s.currency),
		Expense:  core.FormatMoney(t.Expense, s.currency),
		Negative: t.Balance.Cents < 0,
	}
}

func (s *Server) listOf(f core.TypeFilter, txs []core.Transaction) listView {
	v := listView{
		Filter: string(f),
		Filters: []filterView{
			{Value: string(core.FilterAll), Label: "All"},
			{Value: string(core.FilterIncome), Label: "Income"},
			{Value: string(core.FilterExpense), Label: "Expenses"},
		},
		Items: make([]transactionView, 0, len(txs)),
	}
	for i := range v.Filters {
		v.Filters[i].Active = v.Filters[i].Value == v.Filter
	}
	for _, tx := range txs {
		v.Items = append(v.Items, transactionView{
			ID:       tx.ID,
			Date:     tx.Date.String(),
			Type:     tx.Type.String(),
			Category: tx.Category,
			Note:     tx.Note,
			Amount:   core.FormatSigned(tx, s.currency),
			Income:   tx.Type == core.Income,
		})
	}
	return v
}

func (s *Server) statsOf(rows []core.CategoryTotals) []statsRowView {
	out := make([]statsRowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, statsRowView{
			Category: r.Category,
			Income:   core.FormatMoney(r.Income, s.currency),
			Expense:  core.FormatMoney(r.Expense, s.currency),
			Net:      core.FormatMoney(r.Income.Sub(r.Expense), s.currency),
		})
	}
	return out
}

// amountString renders money as a plain decimal for JSON.
func amountString(m core.Money) string {
	return m.Decimal().StringFixed(2)
}

// wantsJSON reports whether the request targets the API or the client sent or asked for JSON.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// sanitizeInput removes control characters except tab and newlines, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
