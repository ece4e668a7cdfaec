// Package ratelimit caps requests per client IP in fixed windows.
package ratelimit

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	RequestsPerWindow int
	Window            time.Duration
	// IdleTTL is how long a client is remembered after its last request.
	IdleTTL         time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig allows 60 requests per minute.
func DefaultConfig() Config {
	return Config{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		IdleTTL:           10 * time.Minute,
		CleanupInterval:   5 * time.Minute,
	}
}

type window struct {
	start time.Time
	last  time.Time
	count int
}

// Limiter counts requests per client. Each client's window starts with its
// first request and resets once Window has passed.
type Limiter struct {
	cfg  Config
	now  func() time.Time
	stop chan struct{}
	once sync.Once

	mu      sync.Mutex
	clients map[string]*window
	hits    atomic.Int64
}

// NewLimiter starts a background sweep of idle clients; call Stop to end it.
// Zero config fields take their default.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = def.RequestsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
		clients: make(map[string]*window),
	}
	go l.sweepLoop()
	return l
}

// Allow counts one request from client. When the request is over the limit
// it reports false and how long until the window resets.
func (l *Limiter) Allow(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[client]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		l.clients[client] = &window{start: now, last: now, count: 1}
		return true, 0
	}

	w.count++
	w.last = now
	if w.count > l.cfg.RequestsPerWindow {
		l.hits.Add(1)
		return false, w.start.Add(l.cfg.Window).Sub(now)
	}
	return true, 0
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep forgets clients idle for longer than IdleTTL.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.cfg.IdleTTL)
	for client, w := range l.clients {
		if w.last.Before(cutoff) {
			delete(l.clients, client)
		}
	}
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Stop ends the sweep goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   l.hits.Load(),
		ClientCount: int64(l.ActiveClients()),
	}
}

// RejectFunc answers a request over the limit. retryAfter is the time left
// in the client's window.
type RejectFunc func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration)

// Middleware limits requests whose method is in methods, or every request
// when methods is empty. A nil reject answers with a plain 429.
func (l *Limiter) Middleware(clientIP func(*http.Request) string, reject RejectFunc, methods ...string) func(http.Handler) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, _ *http.Request, retryAfter time.Duration) {
			w.Header().Set("Retry-After", RetryAfterSeconds(retryAfter))
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(methods) == 0 || slices.Contains(methods, r.Method) {
				if ok, retry := l.Allow(clientIP(r)); !ok {
					reject(w, r, retry)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RetryAfterSeconds formats d for the Retry-After header, rounding up to at
// least one second.
func RetryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	return strconv.FormatInt(max(secs, 1), 10)
}
