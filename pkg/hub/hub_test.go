package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestEncode(t *testing.T) {
	msg, err := Encode(Event{Type: "mute", Data: map[string]bool{"muted": true}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if msg.Type != "mute" {
		t.Errorf("Type = %q, want mute", msg.Type)
	}
	var got Event
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "mute" {
		t.Errorf("decoded type = %q", got.Type)
	}
}

// register attaches a connection-less client to h for inspection.
func register(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan Message, 16)}
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("register timed out")
	}
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case m, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return Message{}
}

func TestHubBroadcast(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a, b := register(t, h), register(t, h)
	if n := h.ClientCount(); n != 2 {
		t.Fatalf("ClientCount = %d, want 2", n)
	}
	if err := h.Publish("notification", map[string]string{"message": "hi"}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*Client{a, b} {
		if m := receive(t, c); m.Type != "notification" {
			t.Errorf("got %q", m.Type)
		}
	}
}

func TestHubReplaysSticky(t *testing.T) {
	h := New("test", WithSticky("mute", "settings"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	first := register(t, h)
	h.Publish("mute", false)
	h.Publish("mute", true)
	h.Publish("notification", "transient")
	for range 3 {
		receive(t, first)
	}

	late := register(t, h)
	m := receive(t, late)
	var e Event
	if err := json.Unmarshal(m.Data, &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != "mute" || e.Data != true {
		t.Errorf("replayed %+v, want latest mute", e)
	}
	select {
	case extra := <-late.send:
		t.Errorf("unexpected replay of %q", extra.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubStopClosesClients(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := register(t, h)
	cancel()

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client not closed on stop")
	}
	if h.IsRunning() {
		t.Error("hub still running")
	}
	if NewClient(h, nil) != nil {
		t.Error("NewClient on a stopped hub should return nil")
	}
}
