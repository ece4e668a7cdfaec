// Package trace tags each HTTP request with an id and logs its lifecycle.
package trace

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "bilancio/internal/log"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxIncomingIDLength = 64

type requestIDKey struct{}

// Stats is a snapshot of the request counters.
type Stats struct {
	Requests     int64
	LastDuration time.Duration
}

type Middleware struct {
	clientIP func(*http.Request) string
	events   *applog.EventLogger

	requests     atomic.Int64
	lastDuration atomic.Int64
}

// NewMiddleware builds the tracer. clientIP may be nil; logger defaults to
// the trace component logger.
func NewMiddleware(clientIP func(*http.Request) string, logger *applog.Logger) *Middleware {
	if logger == nil {
		logger = applog.Default(applog.ComponentTrace)
	}
	return &Middleware{clientIP: clientIP, events: applog.NewEventLogger(logger)}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := incomingRequestID(r)
		if id == "" {
			id = GenerateRequestID()
		}
		ctx := WithRequestID(r.Context(), id)
		r = r.WithContext(ctx)
		w.Header().Set(RequestIDHeader, id)

		var ip string
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}

		m.requests.Add(1)
		m.events.RequestStarted(ctx, r, ip)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		m.lastDuration.Store(int64(elapsed))
		m.events.RequestCompleted(ctx, r, sw.status, elapsed.Milliseconds(), ip)
	})
}

func (m *Middleware) Stats() Stats {
	return Stats{
		Requests:     m.requests.Load(),
		LastDuration: time.Duration(m.lastDuration.Load()),
	}
}

// incomingRequestID accepts a caller supplied id when it is short and printable.
func incomingRequestID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
	if id == "" || len(id) > maxIncomingIDLength {
		return ""
	}
	if strings.ContainsFunc(id, func(c rune) bool { return c < 0x21 || c > 0x7e }) {
		return ""
	}
	return id
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID returns the id stored by the middleware, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDFromRequest adapts GetRequestID for log.RequestIDMiddleware.
func RequestIDFromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}
