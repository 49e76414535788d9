package core

import (
	"context"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting for %v", kind)
			}
			if ev.Kind() == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// nextEvent returns the next event in order, failing on timeout.
func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
		return nil
	}
}

// mustBeQuiet asserts nothing arrives within a short window.
func mustBeQuiet(t *testing.T, ch <-chan Event) {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event %v: %+v", ev.Kind(), ev)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func newClient(hub *Hub, id string) *Client {
	c := NewClient(id, 0)
	hub.Register(c)
	return c
}

// startDispatcher runs a dispatcher and waits until it accepts events.
func startDispatcher(t *testing.T, hub *Hub) *Dispatcher {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	d := NewDispatcher(hub, 0, nil)
	go d.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !d.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("dispatcher did not start")
		}
		time.Sleep(time.Millisecond)
	}
	return d
}
