package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	names := make([]string, 0, len(s.readiness))
	for name := range s.readiness {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.readiness[name](ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	checks["ledger"] = map[string]interface{}{
		"transactions": s.service.Ledger().Len(),
		"revision":     s.service.Revision(),
	}

	NewResponse().Status(httpStatus).JSON(map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceStats := s.traceMiddleware.Stats()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	listHits, listMisses := s.listCache.Stats()
	statsHits, statsMisses := s.statsCache.Stats()

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value interface{}) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceStats.Requests)
	metric("http_last_request_duration_seconds", "Duration of the most recent request", "gauge", fmt.Sprintf("%.6f", traceStats.LastDuration.Seconds()))
	metric("transactions_created_total", "Transactions recorded through HTTP", "counter", atomic.LoadInt64(&s.appMetrics.transactionsCreated))
	metric("transactions_deleted_total", "Transactions deleted through HTTP", "counter", atomic.LoadInt64(&s.appMetrics.transactionsDeleted))
	metric("persistence_failures_total", "Mutations rejected because the snapshot could not be saved", "counter", atomic.LoadInt64(&s.appMetrics.persistenceFailures))
	metric("ledger_transactions", "Transactions currently in the ledger", "gauge", s.service.Ledger().Len())
	metric("ledger_revision", "Commits since the ledger was opened", "gauge", s.service.Revision())

	fmt.Fprintf(w, "# HELP cache_hits_total Total view cache hits\n# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total{cache=\"transactions\"} %d\n", listHits)
	fmt.Fprintf(w, "cache_hits_total{cache=\"stats\"} %d\n\n", statsHits)
	fmt.Fprintf(w, "# HELP cache_misses_total Total view cache misses\n# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total{cache=\"transactions\"} %d\n", listMisses)
	fmt.Fprintf(w, "cache_misses_total{cache=\"stats\"} %d\n\n", statsMisses)

	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	f := s.parseFilter(r)
	data := indexView{
		Today:           core.DateOf(time.Now()).String(),
		Categories:      s.service.Categories(),
		RequireCategory: s.requireCategory,
		DefaultCategory: core.DefaultCategory,
		MaxNoteLength:   core.MaxNoteLength,
		Balance:         s.balanceOf(s.service.Totals()),
		List:            s.listOf(f, s.transactions(r.Context(), f)),
	}
	s.render(w, r, "index.html", data)
}

func (s *Server) handleBalancePartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	s.render(w, r, "balance.html", s.balanceOf(s.service.Totals()))
}

func (s *Server) handleTransactionsPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	f := s.parseFilter(r)
	s.render(w, r, "transactions.html", s.listOf(f, s.transactions(r.Context(), f)))
}

func (s *Server) handleStatsPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	s.render(w, r, "stats.html", s.statsOf(s.stats(r.Context())))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		ctxLogger(r).WarnContext(r.Context(), "Parse request body error",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpParse)
		s.writeError(w, r, http.StatusBadRequest, "", "Invalid request format")
		return
	}

	tx, err := s.service.Create(r.Context(), p.Candidate())
	if err != nil {
		s.writeMutationError(w, r, applog.OpCreate, err)
		return
	}
	s.recordCreated()
	revision := s.service.Revision()

	if p.IsJSON() || wantsJSON(r) {
		NewResponse().Status(http.StatusCreated).JSON(s.apiTransaction(tx)).Write(w)
		return
	}

	msg := fmt.Sprintf("Saved %s (%s)", core.FormatSigned(tx, s.currency), tx.Category)
	NewResponse().
		LedgerChanged(revision).
		ResetForm().
		Notify(NotificationSuccess, msg).
		HTML(`<div class="success">` + template.HTMLEscapeString(msg) + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "", "Invalid request format")
		return
	}
	id, err := p.ID()
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "id", err.Error())
		return
	}

	removed, err := s.service.Delete(r.Context(), id)
	if err != nil {
		s.writeMutationError(w, r, applog.OpDelete, err)
		return
	}
	if removed {
		s.recordDeleted()
		ctxLogger(r).InfoContext(r.Context(), "Transaction deleted",
			applog.FieldTxID, id,
			applog.FieldRevision, s.service.Revision(),
			applog.FieldOperation, applog.OpDelete)
	}

	if p.IsJSON() || wantsJSON(r) {
		NewResponse().JSON(map[string]interface{}{"id": id, "removed": removed}).Write(w)
		return
	}

	// An empty body lets htmx drop the list row that issued the request.
	resp := NewResponse().LedgerChanged(s.service.Revision())
	if removed {
		resp.Notify(NotificationSuccess, "Transaction deleted")
	} else {
		resp.Notify(NotificationInfo, "Transaction was already deleted")
	}
	resp.Write(w)
}

// writeMutationError maps ledger errors to responses. Validation problems are
// the client's to fix; persistence failures mean nothing was saved.
func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if ve, ok := core.IsValidation(err); ok {
		ctxLogger(r).InfoContext(r.Context(), "Rejected invalid input",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeValidation,
			applog.FieldOperation, op)
		s.writeError(w, r, http.StatusUnprocessableEntity, ve.Field, ve.Error())
		return
	}

	errType := applog.ErrorTypeInternal
	msg := "Something went wrong, nothing was changed"
	if core.IsPersistence(err) {
		s.recordPersistenceFailure()
		errType = applog.ErrorTypePersistence
		msg = "Could not save changes, nothing was changed"
	}
	applog.NewEventLogger(ctxLogger(r)).Failure(r.Context(), "Ledger mutation failed", err, op, errType)
	s.writeError(w, r, http.StatusInternalServerError, "", msg)
}

// writeError answers JSON clients with a JSON body and htmx clients with an
// HTML fragment plus a notification.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, field, message string) {
	if wantsJSON(r) {
		JSONError(status, field, message).Write(w)
		return
	}
	resp := HTMLError(status, message)
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		resp.Notify(NotificationError, message)
	}
	resp.Write(w)
}

// render executes a template into a buffer so a failure never sends a partial page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	if s.templates == nil {
		ctxLogger(r).ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		ctxLogger(r).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err,
			"template", name,
			applog.FieldOperation, applog.OpRender)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
