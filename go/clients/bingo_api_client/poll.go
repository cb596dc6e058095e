package bingo_api_client

import (
	"context"
	"fmt"
	"net/url"
)

// Update kinds carried by the poll endpoint.
const (
	UpdateNewNumber     = "new_number"
	UpdateCurrentNumber = "current_number"
	UpdatePlayerCount   = "player_count"
	UpdateGameFinished  = "game_finished"
)

type PollUpdate struct {
	Type      string `json:"type"`
	Number    int    `json:"number,omitempty"`
	Letter    string `json:"letter,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Count     int    `json:"count,omitempty"`
}

type PollResponse struct {
	RoundStatus string       `json:"round_status"`
	Updates     []PollUpdate `json:"updates"`
	Timestamp   string       `json:"timestamp"`
}

// PollUpdates fetches the changes observed by the backend since cursor.
func (c *BingoApiClient) PollUpdates(ctx context.Context, cursor string) (*PollResponse, error) {
	endpoint := PollEndpoint
	if cursor != "" {
		endpoint = fmt.Sprintf("%s?%s=%s", PollEndpoint, LastPollParam, url.QueryEscape(cursor))
	}

	var response PollResponse
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to poll updates: %w", err)
	}
	return &response, nil
}
