package bingo_api_client

import (
	"context"
	"fmt"
)

type CardPayload struct {
	ID          int64   `json:"id"`
	CardNumber  int     `json:"card_number"`
	Numbers     Grid    `json:"numbers"`
	IsMine      bool    `json:"is_mine"`
	IsAvailable bool    `json:"is_available"`
	SelectedBy  *string `json:"selected_by,omitempty"`
}

type CardsResponse struct {
	Cards          []CardPayload `json:"cards"`
	TotalCards     int           `json:"total_cards"`
	AvailableCards int           `json:"available_cards"`
	MyCards        int           `json:"my_cards"`
}

func (c *BingoApiClient) GetAvailableCards(ctx context.Context) (*CardsResponse, error) {
	var response CardsResponse
	if err := c.GetJSON(ctx, AvailableCardsEndpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get available cards: %w", err)
	}
	return &response, nil
}
