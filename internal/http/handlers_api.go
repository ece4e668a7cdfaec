package http

import (
	"net/http"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
)

type apiTransaction struct {
	ID        int64  `json:"id"`
	Amount    string `json:"amount"`
	Type      string `json:"type"`
	Category  string `json:"category"`
	Note      string `json:"note"`
	Date      string `json:"date"`
	Formatted string `json:"formatted"`
}

type apiCategoryTotals struct {
	Category string `json:"category"`
	Income   string `json:"income"`
	Expense  string `json:"expense"`
	Net      string `json:"net"`
}

func (s *Server) apiTransaction(tx core.Transaction) apiTransaction {
	return apiTransaction{
		ID:        tx.ID,
		Amount:    amountString(tx.Amount),
		Type:      tx.Type.String(),
		Category:  tx.Category,
		Note:      tx.Note,
		Date:      tx.Date.String(),
		Formatted: core.FormatSigned(tx, s.currency),
	}
}

func (s *Server) handleAPITransactions(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	f := s.parseFilter(r)
	txs := s.transactions(r.Context(), f)
	out := make([]apiTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, s.apiTransaction(tx))
	}
	NewResponse().JSON(map[string]interface{}{
		"filter":       f,
		"revision":     s.service.Revision(),
		"transactions": out,
	}).Write(w)
}

func (s *Server) handleAPITotals(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	t := s.service.Totals()
	NewResponse().JSON(map[string]interface{}{
		"income":            amountString(t.Income),
		"expense":           amountString(t.Expense),
		"balance":           amountString(t.Balance),
		"balance_formatted": core.FormatMoney(t.Balance, s.currency),
		"currency":          s.currency,
	}).Write(w)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	rows := s.stats(r.Context())
	out := make([]apiCategoryTotals, 0, len(rows))
	for _, c := range rows {
		out = append(out, apiCategoryTotals{
			Category: c.Category,
			Income:   amountString(c.Income),
			Expense:  amountString(c.Expense),
			Net:      amountString(c.Income.Sub(c.Expense)),
		})
	}
	NewResponse().JSON(map[string]interface{}{"categories": out}).Write(w)
}

// handleAPICategories lists (GET), adds (POST) or removes (DELETE) a category.
func (s *Server) handleAPICategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		NewResponse().JSON(map[string]interface{}{"categories": s.service.Categories()}).Write(w)
		return
	case http.MethodPost, http.MethodDelete:
	default:
		MethodNotAllowed("GET, POST, DELETE").Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "", "Invalid request format")
		return
	}
	name := p.Get("name")

	status := http.StatusOK
	if r.Method == http.MethodPost {
		if err := s.service.AddCategory(r.Context(), name); err != nil {
			s.writeMutationError(w, r, applog.OpCreate, err)
			return
		}
		status = http.StatusCreated
	} else {
		removed, err := s.service.RemoveCategory(r.Context(), name)
		if err != nil {
			s.writeMutationError(w, r, applog.OpDelete, err)
			return
		}
		if !removed {
			s.writeError(w, r, http.StatusNotFound, "name", "unknown category")
			return
		}
	}

	ctxLogger(r).InfoContext(r.Context(), "Categories changed",
		applog.FieldCategory, name,
		applog.FieldMethod, r.Method,
		applog.FieldRevision, s.service.Revision())
	NewResponse().Status(status).JSON(map[string]interface{}{"categories": s.service.Categories()}).Write(w)
}
