package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hospital/hms/internal/platform/auth"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2030, 5, 20, 8, 0, 0, 0, time.UTC)}
}

// headerAuth stands in for the JWT middleware: X-Test-User becomes the caller.
func headerAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if uid := c.Request().Header.Get("X-Test-User"); uid != "" {
			ctx := auth.WithAuthContext(c.Request().Context(), auth.AuthContext{UserID: uid, Role: auth.RolePatient})
			c.SetRequest(c.Request().WithContext(ctx))
		}
		return next(c)
	}
}

func doRequest(e *echo.Echo, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "203.0.113.7:5555"
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBucketLimiter_BurstThenRefill(t *testing.T) {
	clock := newFakeClock()
	l := newBucketLimiter(RateLimitConfig{RequestsPerSecond: 2, BurstSize: 3}, clock.now)

	for i := 0; i < 3; i++ {
		if ok, _ := l.take("k"); !ok {
			t.Fatalf("request %d within burst was refused", i+1)
		}
	}
	ok, retry := l.take("k")
	if ok {
		t.Fatal("expected the bucket to be empty after the burst")
	}
	if retry != 1 {
		t.Errorf("expected Retry-After 1 at 2 rps, got %d", retry)
	}

	clock.advance(500 * time.Millisecond)
	if ok, _ := l.take("k"); !ok {
		t.Error("expected one token after half a second at 2 rps")
	}
	if ok, _ := l.take("k"); ok {
		t.Error("expected the refilled token to be spent")
	}

	clock.advance(time.Hour)
	for i := 0; i < 3; i++ {
		if ok, _ := l.take("k"); !ok {
			t.Fatalf("refill must cap at the burst size, request %d refused", i+1)
		}
	}
	if ok, _ := l.take("k"); ok {
		t.Error("refill exceeded the burst size")
	}
}

func TestBucketLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want int
	}{
		{"slow refill", 0.25, 4},
		{"one per second", 1, 1},
		{"no refill", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newBucketLimiter(RateLimitConfig{RequestsPerSecond: tt.rate, BurstSize: 1}, newFakeClock().now)
			l.take("k")
			if _, retry := l.take("k"); retry != tt.want {
				t.Errorf("expected Retry-After %d, got %d", tt.want, retry)
			}
		})
	}
}

func TestBucketLimiter_EvictsIdleBuckets(t *testing.T) {
	clock := newFakeClock()
	l := newBucketLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute}, clock.now)

	l.take("old")
	clock.advance(45 * time.Second)
	l.take("recent")
	if l.size() != 2 {
		t.Fatalf("expected 2 buckets, got %d", l.size())
	}

	clock.advance(30 * time.Second)
	l.take("recent")
	if l.size() != 1 {
		t.Errorf("expected the idle bucket to be dropped, got %d buckets", l.size())
	}
}

func TestRateLimit_Headers(t *testing.T) {
	e := echo.New()
	e.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}))
	e.GET("/slots", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := doRequest(e, "/slots", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "1" {
		t.Errorf("expected X-RateLimit-Limit 1, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec = doRequest(e, "/slots", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("unexpected throttling headers %v", rec.Header())
	}
}

func TestRateLimit_AfterAuthSeparatesUsersOnOneIP(t *testing.T) {
	e := echo.New()
	api := e.Group("/api")
	protected := api.Group("", headerAuth, RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}))
	protected.GET("/appointments", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	if rec := doRequest(e, "/api/appointments", "alice"); rec.Code != http.StatusOK {
		t.Fatalf("alice: expected 200, got %d", rec.Code)
	}
	if rec := doRequest(e, "/api/appointments", "bob"); rec.Code != http.StatusOK {
		t.Errorf("bob shares alice's IP but must get his own bucket, got %d", rec.Code)
	}
	if rec := doRequest(e, "/api/appointments", "alice"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("alice: expected 429 on her second request, got %d", rec.Code)
	}
}

func TestClientKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	if got := ClientKey(c); got != "ip:198.51.100.4" {
		t.Errorf("anonymous key = %q", got)
	}

	c.SetRequest(req.WithContext(auth.WithAuthContext(req.Context(), auth.AuthContext{UserID: "u-9", Role: auth.RoleDoctor})))
	if got := ClientKey(c); got != "user:u-9" {
		t.Errorf("authenticated key = %q", got)
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 100 || cfg.BurstSize != 200 || cfg.IdleTTL != 10*time.Minute {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
