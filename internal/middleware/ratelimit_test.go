package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vita-api/internal/ratelimit"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func limitedEcho(t *testing.T, limit int) *echo.Echo {
	t.Helper()
	l := ratelimit.New(zap.NewNop().Sugar(), map[ratelimit.RouteClass]ratelimit.WindowConfig{
		ratelimit.ClassGeneric: {Limit: limit, Window: time.Minute},
	}, 0, 0)
	t.Cleanup(l.Close)

	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(zap.NewNop().Sugar())
	e.Use(NewTrackMiddleware(zap.NewNop().Sugar()))
	e.Use(NewRateLimitMiddleware(l, ratelimit.ClassGeneric))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	return e
}

func TestRateLimitMiddlewareRejectsOverLimit(t *testing.T) {
	e := limitedEcho(t, 2)

	statuses := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.9:4567"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("first two requests = %v, want 200s", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", statuses[2])
	}
}

func TestRateLimitMiddlewareIsolatesClients(t *testing.T) {
	e := limitedEcho(t, 1)

	for i, addr := range []string{"203.0.113.9:1", "203.0.113.10:1"} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d from %s = %d, want 200", i, addr, rec.Code)
		}
	}
}

func TestRateLimitMiddlewareRunsBeforeUserLookup(t *testing.T) {
	l := ratelimit.New(zap.NewNop().Sugar(), map[ratelimit.RouteClass]ratelimit.WindowConfig{
		ratelimit.ClassGeneric: {Limit: 2, Window: time.Minute},
	}, 0, 0)
	t.Cleanup(l.Close)

	lookups := 0
	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(zap.NewNop().Sugar())
	e.Use(NewTrackMiddleware(zap.NewNop().Sugar()))
	e.Use(NewRateLimitMiddleware(l, ratelimit.ClassGeneric))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			lookups++
			return next(c)
		}
	})
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.9:4567"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}
	if lookups != 2 {
		t.Fatalf("rejected requests reached downstream middleware: lookups = %d, want 2", lookups)
	}
}

func TestRateLimitMiddlewareKeysOnBearerKey(t *testing.T) {
	e := limitedEcho(t, 1)

	// Same IP, distinct keys: budgets are independent.
	for i, key := range []string{strings.Repeat("a", 32), strings.Repeat("b", 32)} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.9:4567"
		req.Header.Set("Authorization", "Bearer "+key)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d, want 200", i, rec.Code)
		}
	}

	// Second request on a key already at its limit is rejected.
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "203.0.113.9:4567"
	req.Header.Set("Authorization", "Bearer "+strings.Repeat("a", 32))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("repeat request = %d, want 429", rec.Code)
	}
}

func TestRateLimitMiddlewareSetsRetryAfter(t *testing.T) {
	e := limitedEcho(t, 1)

	for i := range 2 {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.9:4567"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if i == 1 && rec.Header().Get("Retry-After") == "" {
			t.Fatal("rejected request missing Retry-After")
		}
	}
}
