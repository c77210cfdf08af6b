package inference

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inference-gateway/inference/domain"
	"inference-gateway/inference/infra"
)

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc("", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_IgnoresXForwardedForWhenNotTrusted(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestRateLimit_AllowsThenRejectsSameKey(t *testing.T) {
	store := infra.NewRateStore(0.02, 1, infra.WithCleanupEvery(0))
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := RateLimit(RateLimitOptions{
		Store:               store,
		Stats:               stats,
		RetryAfter:          2 * time.Second,
		AddRateLimitHeaders: true,
	})(next)

	r1 := httptest.NewRequest(http.MethodGet, "http://example/hex?label=red", nil)
	r1.RemoteAddr = "10.0.0.1:1234"
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w1.Code)
	}
	if got := w1.Header().Get("X-RateLimit-Key"); got != "10.0.0.1" {
		t.Fatalf("expected X-RateLimit-Key=10.0.0.1, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-RPS"); got != "0.02" {
		t.Fatalf("expected X-RateLimit-RPS=0.02, got %q", got)
	}
	if got := w1.Header().Get("X-RateLimit-Burst"); got != "1" {
		t.Fatalf("expected X-RateLimit-Burst=1, got %q", got)
	}

	// burst=1 e rps bem baixo: a segunda bloqueia
	r2 := httptest.NewRequest(http.MethodGet, "http://example/hex?label=red", nil)
	r2.RemoteAddr = "10.0.0.1:1234"
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After=2, got %q", got)
	}

	if calls != 1 {
		t.Fatalf("expected next handler to be called once, got %d", calls)
	}
	if got := stats.Count(domain.OpAdmit, domain.OutcomeAllowed); got != 1 {
		t.Fatalf("expected 1 allowed event, got %d", got)
	}
	if got := stats.Count(domain.OpAdmit, domain.OutcomeDenied); got != 1 {
		t.Fatalf("expected 1 denied event, got %d", got)
	}
}

func TestRateLimit_KeyByHeader(t *testing.T) {
	store := infra.NewRateStore(0.02, 1, infra.WithCleanupEvery(0))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RateLimit(RateLimitOptions{Store: store, KeyHeader: "X-Api-Key"})(next)

	// chaves diferentes têm limiters próprios
	for _, key := range []string{"client-a", "client-b"} {
		r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set("X-Api-Key", key)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", key, w.Code)
		}
	}
}

func TestRateLimit_RejectsBeforeCredentialPool(t *testing.T) {
	up := &scriptedUpstream{}
	gw, kv := newEndToEnd(t, up, "key-a", "key-b")
	h := RateLimit(RateLimitOptions{
		Store: infra.NewRateStore(0.02, 1, infra.WithCleanupEvery(0)),
	})(gw)

	get := func(addr, label string) int {
		r := httptest.NewRequest(http.MethodGet, "http://example/hex?label="+label+"&bypassCache=1", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	if code := get("10.0.0.1:1000", "sky"); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	before, _, _ := kv.Get(context.Background(), "pool:state")

	if code := get("10.0.0.1:1001", "sky"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	after, _, _ := kv.Get(context.Background(), "pool:state")
	if string(before) != string(after) {
		t.Fatalf("expected pool state untouched by rejected request: %s -> %s", before, after)
	}
	if up.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", up.calls)
	}

	// outro chamador ainda chega ao upstream
	if code := get("10.0.0.2:1000", "sky"); code != http.StatusOK {
		t.Fatalf("expected 200 for another caller, got %d", code)
	}
	if up.calls != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", up.calls)
	}
}
