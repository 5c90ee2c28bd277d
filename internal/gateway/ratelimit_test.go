package gateway_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/basket/go-craft/internal/config"
	"github.com/basket/go-craft/internal/gateway"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// hit sends one GET from remoteAddr and returns the recorder.
func hit(h http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(rpm, burst int, clock *fakeClock) *gateway.ClientLimiter {
	return gateway.NewClientLimiter(config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: rpm,
		BurstSize:         burst,
	}, nil, gateway.WithLimiterClock(clock.Now))
}

func TestClientLimiter_BurstThenReject(t *testing.T) {
	for _, burst := range []int{1, 3, 5} {
		clock := newFakeClock()
		handler := newLimiter(60, burst, clock).Wrap(okHandler())

		for i := 0; i < burst; i++ {
			if rec := hit(handler, "/api/v1/work_items", "10.0.0.1:5000"); rec.Code != http.StatusOK {
				t.Fatalf("burst %d, request %d: expected 200, got %d", burst, i, rec.Code)
			}
		}
		rec := hit(handler, "/api/v1/work_items", "10.0.0.1:5000")
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("burst %d: expected 429 once spent, got %d", burst, rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "1" {
			t.Fatalf("burst %d: Retry-After = %q, want 1", burst, got)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected json error body, got content type %q", ct)
		}
	}
}

func TestClientLimiter_RefillAndRetryAfter(t *testing.T) {
	// 6 per minute is one request every 10 seconds.
	clock := newFakeClock()
	handler := newLimiter(6, 1, clock).Wrap(okHandler())

	if rec := hit(handler, "/api/v1/actions", "10.0.0.2:1"); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	clock.Advance(4 * time.Second)
	rec := hit(handler, "/api/v1/actions", "10.0.0.2:1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 before refill, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "6" {
		t.Fatalf("Retry-After = %q, want 6", got)
	}

	clock.Advance(7 * time.Second)
	if rec := hit(handler, "/api/v1/actions", "10.0.0.2:1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after refill, got %d", rec.Code)
	}
}

func TestClientLimiter_KeyedByHost(t *testing.T) {
	clock := newFakeClock()
	rl := newLimiter(60, 2, clock)
	handler := rl.Wrap(okHandler())

	// Different ports on one host share a quota.
	hit(handler, "/api/v1/people", "10.0.0.3:1000")
	hit(handler, "/api/v1/people", "10.0.0.3:1001")
	if rec := hit(handler, "/api/v1/people", "10.0.0.3:1002"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("same host: expected 429, got %d", rec.Code)
	}
	if rec := hit(handler, "/api/v1/people", "10.0.0.4:1000"); rec.Code != http.StatusOK {
		t.Fatalf("other host: expected 200, got %d", rec.Code)
	}
	if rl.Clients() != 2 {
		t.Fatalf("expected 2 clients, got %d", rl.Clients())
	}
}

func TestClientLimiter_SkipsHealthMetricsAndStream(t *testing.T) {
	handler := newLimiter(60, 1, newFakeClock()).Wrap(okHandler())

	hit(handler, "/api/v1/work_items", "10.0.0.5:1")
	if rec := hit(handler, "/api/v1/work_items", "10.0.0.5:1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for /api/v1/work_items, got %d", rec.Code)
	}
	for _, path := range []string{"/healthz", "/api/v1/healthz", "/metrics", "/ws"} {
		if rec := hit(handler, path, "10.0.0.5:1"); rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, rec.Code)
		}
	}
}

func TestClientLimiter_ForgetIdle(t *testing.T) {
	clock := newFakeClock()
	rl := newLimiter(60, 10, clock)
	handler := rl.Wrap(okHandler())

	for _, addr := range []string{"10.1.0.1:1", "10.1.0.2:1", "10.1.0.3:1"} {
		hit(handler, "/api/v1/actions", addr)
	}
	clock.Advance(5 * time.Minute)
	hit(handler, "/api/v1/actions", "10.1.0.3:1")

	if n := rl.Forget(time.Minute); n != 2 {
		t.Fatalf("expected 2 idle clients dropped, got %d", n)
	}
	if rl.Clients() != 1 {
		t.Fatalf("expected the active client to remain, got %d", rl.Clients())
	}
	if n := rl.Forget(time.Hour); n != 0 {
		t.Fatalf("nothing is idle for an hour, dropped %d", n)
	}
}

func TestClientLimiter_Disabled(t *testing.T) {
	handler := gateway.NewClientLimiter(config.RateLimitConfig{Enabled: false}, nil).Wrap(okHandler())
	for i := 0; i < 20; i++ {
		if rec := hit(handler, "/api/v1/actions", "10.2.0.1:1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 with limiter disabled, got %d", i, rec.Code)
		}
	}
}
