package gateway

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/basket/go-craft/internal/config"
	"github.com/basket/go-craft/internal/otel"
)

const (
	defaultRequestsPerMinute = 60
	defaultBurst             = 10
)

// quota is one client's request allowance, refilled continuously.
type quota struct {
	mu       sync.Mutex
	left     float64
	lastSeen time.Time
}

// take refills by the time since lastSeen and spends one request. When the
// quota is empty it reports how long until the next request fits.
func (q *quota) take(now time.Time, perSecond, burst float64) (bool, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.left = math.Min(burst, q.left+now.Sub(q.lastSeen).Seconds()*perSecond)
	q.lastSeen = now
	if q.left >= 1 {
		q.left--
		return true, 0
	}
	wait := time.Duration((1 - q.left) / perSecond * float64(time.Second))
	return false, wait
}

func (q *quota) idleSince() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastSeen
}

// ClientLimiter throttles workbook API calls per client host. Health checks,
// metrics and the event stream are never throttled.
type ClientLimiter struct {
	enabled   bool
	perSecond float64
	burst     float64
	metrics   *otel.Metrics
	now       func() time.Time

	mu      sync.Mutex
	clients map[string]*quota
}

type LimiterOption func(*ClientLimiter)

// WithLimiterClock replaces time.Now.
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *ClientLimiter) { l.now = now }
}

// NewClientLimiter builds a limiter from the rate_limit config. Zero values
// fall back to 60 requests per minute with a burst of 10. metrics may be nil.
func NewClientLimiter(cfg config.RateLimitConfig, metrics *otel.Metrics, opts ...LimiterOption) *ClientLimiter {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = defaultBurst
	}
	l := &ClientLimiter{
		enabled:   cfg.Enabled,
		perSecond: float64(rpm) / 60,
		burst:     float64(burst),
		metrics:   metrics,
		now:       time.Now,
		clients:   make(map[string]*quota),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wrap throttles next. A disabled limiter returns next unchanged.
func (l *ClientLimiter) Wrap(next http.Handler) http.Handler {
	if !l.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if unthrottled(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ok, wait := l.quotaFor(clientHost(r)).take(l.now(), l.perSecond, l.burst)
		if !ok {
			if l.metrics != nil {
				l.metrics.RateLimitRejects.Add(r.Context(), 1)
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unthrottled(path string) bool {
	switch path {
	case "/healthz", apiPrefix + "/healthz", "/metrics", "/ws":
		return true
	}
	return false
}

func retryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func (l *ClientLimiter) quotaFor(host string) *quota {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.clients[host]
	if !ok {
		q = &quota{left: l.burst, lastSeen: l.now()}
		l.clients[host] = q
	}
	return q
}

// Clients returns how many client hosts are tracked.
func (l *ClientLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Forget drops clients idle for longer than maxIdle and returns how many
// were dropped. A forgotten client starts again with a full burst.
func (l *ClientLimiter) Forget(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped := 0
	for host, q := range l.clients {
		if !q.idleSince().After(cutoff) {
			delete(l.clients, host)
			dropped++
		}
	}
	return dropped
}

// ForgetIdle runs Forget every interval until ctx is done.
func (l *ClientLimiter) ForgetIdle(ctx context.Context, interval, maxIdle time.Duration, logger *slog.Logger) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := l.Forget(maxIdle); n > 0 {
					logger.Debug("rate limiter forgot idle clients", "dropped", n, "tracked", l.Clients())
				}
			}
		}
	}()
}

// clientHost keys quotas by remote host so one client's ports share a quota.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
