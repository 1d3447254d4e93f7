package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kdl-rgb/bytells/internal/nl2sql"
)

func TestRateLimiterRejectsOnceBurstIsSpent(t *testing.T) {
	var calls int
	limited := RateLimiter(0.001, 2)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/query/translate", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		limited.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i, rr.Code)
		}
		if rr.Header().Get("X-RateLimit-Limit") != "2" {
			t.Fatalf("X-RateLimit-Limit = %q", rr.Header().Get("X-RateLimit-Limit"))
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/query/translate", nil)
	req.RemoteAddr = "10.0.0.1:5001"
	rr := httptest.NewRecorder()
	limited.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if body := decodeBody(t, rr); body["error_code"] != "RATE_LIMITED" || body["retryable"] != true {
		t.Fatalf("body = %v", body)
	}

	other := httptest.NewRequest(http.MethodPost, "/v1/query/translate", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rr = httptest.NewRecorder()
	limited.ServeHTTP(rr, other)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("other client status = %d", rr.Code)
	}
	if calls != 3 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestRateLimiterDisabledForNonPositiveRate(t *testing.T) {
	limited := RateLimiter(0, 1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		limited.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i, rr.Code)
		}
	}
}

func TestClientLimitersSweepIdleClients(t *testing.T) {
	now := time.Date(2026, 2, 19, 7, 30, 0, 0, time.UTC)
	limiters := newClientLimiters(1, 1)
	limiters.now = func() time.Time { return now }

	limiters.get("10.0.0.1")
	limiters.get("10.0.0.2")
	now = now.Add(limiterIdleAfter + time.Minute)
	limiters.get("10.0.0.2")

	if _, ok := limiters.clients["10.0.0.1"]; ok {
		t.Fatal("expected idle client to be swept")
	}
	if len(limiters.clients) != 1 {
		t.Fatalf("clients = %d", len(limiters.clients))
	}
}

func TestTranslateRouteIsRateLimited(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"BYTELLS_RATE_LIMIT_REQUESTS_PER_SEC": "0.001",
		"BYTELLS_RATE_LIMIT_BURST":            "1",
	})
	gen := &stubGenerator{result: nl2sql.Result{SQL: "SELECT 1 LIMIT 100;", Source: nl2sql.SourceLocal}}
	h := NewHandler(cfg, Dependencies{Generator: gen})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query/translate", strings.NewReader(`{"prompt":"x"}`)))
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
