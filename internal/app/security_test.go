package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientRateLimiterAllow(t *testing.T) {
	l := NewClientRateLimiter(2, time.Minute)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow("k") {
		t.Fatalf("third request should be blocked")
	}
	if !l.Allow("other") {
		t.Fatalf("other clients have their own bucket")
	}

	now = now.Add(30 * time.Second)
	if !l.Allow("k") {
		t.Fatalf("bucket should refill after half the window")
	}
}

func TestClientRateLimiterEvictsIdle(t *testing.T) {
	l := NewClientRateLimiter(5, time.Minute)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	now = now.Add(limiterIdleTTL + time.Second)
	l.Allow("c")

	if got := l.size(); got != 1 {
		t.Fatalf("expected idle clients evicted, %d remain", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewClientRateLimiter(1, time.Minute)
	h := RateLimitMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		remoteAddr string
		wantStatus int
	}{
		{name: "first", remoteAddr: "10.0.0.1:5000", wantStatus: http.StatusNoContent},
		{name: "same client new port", remoteAddr: "10.0.0.1:5001", wantStatus: http.StatusTooManyRequests},
		{name: "different client", remoteAddr: "10.0.0.2:5000", wantStatus: http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/exams", nil)
			req.RemoteAddr = tc.remoteAddr
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, w.Code)
			}
		})
	}
}

func TestCSRFMiddlewareEnforced(t *testing.T) {
	mw := CSRFMiddleware(true)
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/e-1/scores", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})
	req.Header.Set(csrfHeaderName, "abc")
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCSRFMiddlewareRejectsMissingToken(t *testing.T) {
	mw := CSRFMiddleware(true)
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exams/e-1/scores", nil)
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
