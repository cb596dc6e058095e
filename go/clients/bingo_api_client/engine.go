package bingo_api_client

import (
	"context"
	"encoding/json"
	"fmt"
)

// Engine status values reported by the backend runner.
const (
	EngineRunning    = "running"
	EngineStopped    = "stopped"
	EngineNotStarted = "not_started"
)

type EngineStatus struct {
	Status      string  `json:"status"`
	TickCount   int     `json:"tick_count,omitempty"`
	Errors      int     `json:"errors,omitempty"`
	RunningTime string  `json:"running_time,omitempty"`
	LastTick    *string `json:"last_tick,omitempty"`
	Interval    float64 `json:"interval,omitempty"`
	ThreadAlive bool    `json:"thread_alive,omitempty"`
}

type EngineStatusResponse struct {
	Success bool `json:"success"`
	// Status is kept raw so callers can compare the exact serialized form.
	Status json.RawMessage `json:"status"`
}

// Decode parses the raw status object.
func (r *EngineStatusResponse) Decode() (*EngineStatus, error) {
	if len(r.Status) == 0 || string(r.Status) == "null" {
		return nil, nil
	}
	var status EngineStatus
	if err := json.Unmarshal(r.Status, &status); err != nil {
		return nil, fmt.Errorf("failed to decode engine status: %w", err)
	}
	return &status, nil
}

type EngineAck struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c *BingoApiClient) GetEngineStatus(ctx context.Context) (*EngineStatusResponse, error) {
	var response EngineStatusResponse
	if err := c.GetJSON(ctx, EngineStatusEndpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get engine status: %w", err)
	}
	return &response, nil
}

func (c *BingoApiClient) StartEngine(ctx context.Context) (*EngineAck, error) {
	return c.engineCommand(ctx, EngineStartEndpoint)
}

func (c *BingoApiClient) StopEngine(ctx context.Context) (*EngineAck, error) {
	return c.engineCommand(ctx, EngineStopEndpoint)
}

func (c *BingoApiClient) RunSingleTick(ctx context.Context) (*EngineAck, error) {
	return c.engineCommand(ctx, EngineTickEndpoint)
}

func (c *BingoApiClient) engineCommand(ctx context.Context, endpoint string) (*EngineAck, error) {
	var ack EngineAck
	if err := c.PostJSON(ctx, endpoint, nil, &ack); err != nil {
		return nil, fmt.Errorf("engine command %s failed: %w", endpoint, err)
	}
	return &ack, nil
}
