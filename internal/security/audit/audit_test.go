package audit

import (
	"testing"
	"time"
)

func TestSubscribeReceivesEvents(t *testing.T) {
	al := NewLogger(nil)
	ch, cancel := al.Subscribe()
	defer cancel()

	al.LogEmbedIssued("alice", "CLIENTA")

	select {
	case e := <-ch:
		if e.Actor != "alice" || e.ClientKey != "CLIENTA" || e.Action != "embed_token" {
			t.Fatalf("unexpected event: %+v", e)
		}
		if e.ID == "" {
			t.Fatalf("expected generated event id")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	al := NewLogger(nil)
	ch, cancel := al.Subscribe()
	cancel()

	al.LogLogin("alice", "password", "success")

	select {
	case e := <-ch:
		t.Fatalf("expected no event after cancel, got %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	al := NewLogger(nil)
	_, cancel := al.Subscribe()
	defer cancel()

	// Overflow the subscriber buffer; Record must not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			al.LogDataAccess("alice", "CLIENTA", "ok")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Record blocked on slow subscriber")
	}
}
