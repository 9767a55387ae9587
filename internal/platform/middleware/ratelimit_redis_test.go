package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// fakeScripter counts script invocations per key like the fixed-window script.
type fakeScripter struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   map[string]interface{}
	err    error
}

func newFakeScripter() *fakeScripter {
	return &fakeScripter{counts: make(map[string]int64), ttls: make(map[string]interface{})}
}

func (f *fakeScripter) run(keys []string, args []interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	f.counts[keys[0]]++
	if f.counts[keys[0]] == 1 {
		f.ttls[keys[0]] = args[0]
	}
	return redis.NewCmdResult(f.counts[keys[0]], nil)
}

func (f *fakeScripter) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(keys, args)
}

func (f *fakeScripter) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(keys, args)
}

func (f *fakeScripter) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(keys, args)
}

func (f *fakeScripter) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(keys, args)
}

func (f *fakeScripter) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeScripter) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRedisRateLimiter_Limit(t *testing.T) {
	rdb := newFakeScripter()
	rl := NewRedisRateLimiter(rdb, 2, time.Minute, "test")
	h := rl.Middleware(zerolog.Nop(), false)(okHandler)
	e := echo.New()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("request %d: expected limit header 2, got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	rec := httptest.NewRecorder()
	err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}

	for key, ttl := range rdb.ttls {
		if ttl != int64(60000) {
			t.Errorf("key %s: expected window 60000ms, got %v", key, ttl)
		}
	}
}

func TestRedisRateLimiter_FailOpen(t *testing.T) {
	rdb := newFakeScripter()
	rdb.err = errors.New("connection refused")
	e := echo.New()

	open := NewRedisRateLimiter(rdb, 1, time.Minute, "").Middleware(zerolog.Nop(), true)(okHandler)
	if err := open(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())); err != nil {
		t.Errorf("fail-open limiter should pass the request, got %v", err)
	}

	closed := NewRedisRateLimiter(rdb, 1, time.Minute, "").Middleware(zerolog.Nop(), false)(okHandler)
	err := closed(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", err)
	}
}

func TestNewRedisRateLimiter_Defaults(t *testing.T) {
	rl := NewRedisRateLimiter(newFakeScripter(), 0, 0, "  ")
	if rl.limit != 60 || rl.window != time.Minute || rl.prefix != "rl" {
		t.Errorf("unexpected defaults %+v", rl)
	}
}

func TestRedisRateLimiter_KeysByUserAfterAuth(t *testing.T) {
	rdb := newFakeScripter()
	e := echo.New()
	protected := e.Group("/api", headerAuth, NewRedisRateLimiter(rdb, 1, time.Minute, "hms").Middleware(zerolog.Nop(), false))
	protected.GET("/slots", okHandler)

	for _, user := range []string{"alice", "bob"} {
		if rec := doRequest(e, "/api/slots", user); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", user, rec.Code)
		}
	}
	if rec := doRequest(e, "/api/slots", "alice"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("alice: expected 429, got %d", rec.Code)
	}
	if rdb.counts["hms:user:alice"] != 2 || rdb.counts["hms:user:bob"] != 1 {
		t.Errorf("unexpected window counters %v", rdb.counts)
	}
}
