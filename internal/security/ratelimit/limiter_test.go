package ratelimit

import (
	"testing"
	"time"
)

func TestWindowLimiterAllow(t *testing.T) {
	l := NewWindowLimiter(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("fourth request should be limited")
	}
	// Other keys are independent
	if !l.Allow("10.0.0.2") {
		t.Fatalf("different key should be allowed")
	}
}

func TestWindowLimiterEmptyKey(t *testing.T) {
	l := NewWindowLimiter(1, time.Minute)
	defer l.Stop()

	if !l.Allow("") || !l.Allow("") {
		t.Fatalf("empty key must never be limited")
	}
}

func TestWindowLimiterExpiry(t *testing.T) {
	l := NewWindowLimiter(1, 10*time.Millisecond)
	defer l.Stop()

	if !l.Allow("k") {
		t.Fatalf("first request should pass")
	}
	if l.Allow("k") {
		t.Fatalf("second immediate request should be limited")
	}
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatalf("request after window should pass")
	}
}
