package bingo_api_client

import (
	"context"
	"fmt"
)

type SelectionRequest struct {
	CardNumber int `json:"card_number"`
}

type SelectionResponse struct {
	Success       bool    `json:"success"`
	WalletBalance float64 `json:"wallet_balance"`
	TotalStake    float64 `json:"total_stake"`
	Message       string  `json:"message,omitempty"`
	Error         string  `json:"error,omitempty"`
}

func (c *BingoApiClient) SelectCard(ctx context.Context, roundID int64, cardNumber int) (*SelectionResponse, error) {
	var response SelectionResponse
	endpoint := fmt.Sprintf(SelectCardEndpointFmt, roundID)
	if err := c.PostJSON(ctx, endpoint, SelectionRequest{CardNumber: cardNumber}, &response); err != nil {
		return nil, fmt.Errorf("failed to select card %d: %w", cardNumber, err)
	}
	return &response, nil
}

func (c *BingoApiClient) DeselectCard(ctx context.Context, roundID int64, cardNumber int) (*SelectionResponse, error) {
	var response SelectionResponse
	endpoint := fmt.Sprintf(DeselectCardEndpointFmt, roundID)
	if err := c.PostJSON(ctx, endpoint, SelectionRequest{CardNumber: cardNumber}, &response); err != nil {
		return nil, fmt.Errorf("failed to deselect card %d: %w", cardNumber, err)
	}
	return &response, nil
}
