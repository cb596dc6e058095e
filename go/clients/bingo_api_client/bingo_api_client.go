package bingo_api_client

import (
	"github.com/fanoshome/bingo/go/clients"
)

type BingoApiClient struct {
	*clients.BaseClient
}

func NewBingoApiClient(baseURL, token string) *BingoApiClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &BingoApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetBearerToken(token)

	return client
}
