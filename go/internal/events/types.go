package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a room or engine transition worth fanning out.
type EventType string

const (
	EventTypeWinnerAnnounced     EventType = "WinnerAnnounced"
	EventTypeNoWinnerAnnounced   EventType = "NoWinnerAnnounced"
	EventTypeRoundRolledOver     EventType = "RoundRolledOver"
	EventTypeEngineStatusChanged EventType = "EngineStatusChanged"
	EventTypeEngineAutoStarted   EventType = "EngineAutoStarted"
)

// Event is the envelope published for every transition.
type Event struct {
	ID          uuid.UUID       `json:"eventId"`
	Type        EventType       `json:"eventType"`
	RoomID      string          `json:"roomId"`
	RoundNumber int             `json:"roundNumber,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// WinnerPayload is carried by WinnerAnnounced.
type WinnerPayload struct {
	Winner       string  `json:"winner"`
	WinningCard  *int    `json:"winning_card,omitempty"`
	Prize        float64 `json:"prize"`
	Pattern      string  `json:"pattern"`
	IsUserWinner bool    `json:"is_user_winner"`
}

// EngineStatusPayload is carried by EngineStatusChanged and EngineAutoStarted.
type EngineStatusPayload struct {
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
}

// NewEvent builds an event with a fresh id and marshalled payload.
func NewEvent(eventType EventType, roomID string, roundNumber int, at time.Time, payload interface{}) (Event, error) {
	event := Event{
		ID:          uuid.New(),
		Type:        eventType,
		RoomID:      roomID,
		RoundNumber: roundNumber,
		Timestamp:   at,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		event.Payload = raw
	}
	return event, nil
}
