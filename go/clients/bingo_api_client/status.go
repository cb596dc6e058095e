package bingo_api_client

import (
	"context"
	"fmt"
)

type RoundPayload struct {
	ID             int64   `json:"id"`
	RoundNumber    int     `json:"round_number"`
	Status         string  `json:"status"`
	TimeRemaining  int     `json:"time_remaining"`
	TotalStake     float64 `json:"total_stake"`
	CalledNumbers  []int   `json:"called_numbers"`
	Winner         *string `json:"winner"`
	WinningCard    *int    `json:"winning_card"`
	PrizePool      float64 `json:"prize_pool"`
	WinningPattern *string `json:"winning_pattern"`
}

type PlayerCardPayload struct {
	ID            int64 `json:"id"`
	CardNumber    int   `json:"card_number"`
	MarkedNumbers []int `json:"marked_numbers,omitempty"`
}

type PlayerPayload struct {
	Cards         []PlayerCardPayload `json:"cards"`
	WalletBalance float64             `json:"wallet_balance"`
	HasWon        bool                `json:"has_won"`
	WinningCard   *int                `json:"winning_card"`
}

type RecentCallPayload struct {
	ID       int64  `json:"id"`
	Letter   string `json:"letter"`
	Number   int    `json:"number"`
	CalledAt string `json:"called_at"`
}

type GamePayload struct {
	RecentCalls   []RecentCallPayload `json:"recent_calls"`
	PlayerCount   int                 `json:"player_count"`
	TotalCards    int                 `json:"total_cards"`
	SelectedCards int                 `json:"selected_cards"`
}

// StatusResponse is the lightweight full snapshot.
type StatusResponse struct {
	Round     *RoundPayload  `json:"round"`
	Player    *PlayerPayload `json:"player"`
	Game      *GamePayload   `json:"game"`
	Timestamp string         `json:"timestamp"`
}

func (c *BingoApiClient) GetLightweightStatus(ctx context.Context) (*StatusResponse, error) {
	var response StatusResponse
	if err := c.GetJSON(ctx, LightweightStatusEndpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get lightweight status: %w", err)
	}
	return &response, nil
}

type PlayerCountResponse struct {
	PlayerCount int `json:"player_count"`
}

func (c *BingoApiClient) GetPlayerCount(ctx context.Context) (int, error) {
	var response PlayerCountResponse
	if err := c.GetJSON(ctx, PlayerCountEndpoint, &response); err != nil {
		return 0, fmt.Errorf("failed to get player count: %w", err)
	}
	return response.PlayerCount, nil
}
