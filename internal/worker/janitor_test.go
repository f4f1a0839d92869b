package worker

import (
	"context"
	"testing"
	"time"

	"github.com/yourorg/biportal/pkg/cache"
)

func TestJanitorPurgesExpiredEntries(t *testing.T) {
	c := cache.New()
	c.Set("rows:CLIENTA:1", []string{"a"}, time.Millisecond)
	c.Set("rows:CLIENTB:1", []string{"b"}, time.Hour)

	time.Sleep(5 * time.Millisecond)

	j := NewJanitor(c, nil, nil, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for c.Len() > 1 {
		select {
		case <-deadline:
			t.Fatalf("expired entry was not purged, cache len %d", c.Len())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}

	if _, ok := c.Get("rows:CLIENTB:1"); !ok {
		t.Fatal("live entry should survive the sweep")
	}
}

func TestNewJanitorDefaults(t *testing.T) {
	j := NewJanitor(nil, nil, nil, 0)
	if j.interval != time.Minute {
		t.Fatalf("expected default interval of 1m, got %v", j.interval)
	}
	if j.logger == nil {
		t.Fatal("expected default logger")
	}
}
