package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNewEventMarshalsPayload(t *testing.T) {
	card := 17
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	event, err := NewEvent(EventTypeWinnerAnnounced, "room-1", 5, at, WinnerPayload{
		Winner:      "alice",
		WinningCard: &card,
		Prize:       80,
		Pattern:     "Full House",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID.String() == "" || event.Type != EventTypeWinnerAnnounced || event.RoundNumber != 5 {
		t.Fatalf("unexpected event: %+v", event)
	}

	var payload WinnerPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if payload.Winner != "alice" || payload.WinningCard == nil || *payload.WinningCard != 17 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestMemoryPublisherOfType(t *testing.T) {
	p := NewMemoryPublisher()
	ctx := context.Background()
	for _, typ := range []EventType{EventTypeRoundRolledOver, EventTypeNoWinnerAnnounced, EventTypeRoundRolledOver} {
		e, err := NewEvent(typ, "room", 1, time.Now(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := p.Publish(ctx, e); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}
	if got := len(p.OfType(EventTypeRoundRolledOver)); got != 2 {
		t.Fatalf("expected 2 rollover events, got %d", got)
	}
	if got := len(p.Events()); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
}
