package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllow_UnderLimit(t *testing.T) {
	rl := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("Fourth request should be rejected")
	}
}

func TestAllow_PerAddress(t *testing.T) {
	rl := New(1, time.Minute)

	if !rl.Allow("10.0.0.1") {
		t.Error("First address should be allowed")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("Second address has its own window")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("First address should now be limited")
	}
}

func TestAllow_WindowReset(t *testing.T) {
	rl := New(1, 10*time.Millisecond)

	if !rl.Allow("10.0.0.1") {
		t.Fatal("First request should be allowed")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("Second request should be rejected")
	}

	time.Sleep(15 * time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Error("Request after window lapse should be allowed")
	}
}

func TestAllow_ZeroMax(t *testing.T) {
	rl := New(0, time.Minute)
	if rl.Allow("10.0.0.1") {
		t.Error("Zero limit should reject everything")
	}
}

func TestMiddleware(t *testing.T) {
	rl := New(1, time.Minute)
	handler := Middleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/check", nil)
	req.RemoteAddr = "10.0.0.1:55000"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Error("Expected JSON refusal body")
	}

	// A different port on the same host is still the same address.
	req2 := httptest.NewRequest(http.MethodPost, "/api/check", nil)
	req2.RemoteAddr = "10.0.0.1:55001"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req2)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 for same host, got %d", w.Code)
	}
}
