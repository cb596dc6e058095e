package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/fanoshome/bingo/go/clients/bingo_api_client"
	"github.com/fanoshome/bingo/go/internal/config"
	"github.com/fanoshome/bingo/go/internal/engine"
	"github.com/fanoshome/bingo/go/internal/events"
	"github.com/fanoshome/bingo/go/internal/gateway"
	"github.com/fanoshome/bingo/go/internal/room"
)

type Services struct {
	Publisher events.Publisher
	Room      *room.Room
	Monitor   *engine.Monitor
	Gateway   *gateway.Service
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	// API client → publisher → room → engine monitor → gateway
	client := bingo_api_client.NewBingoApiClient(cfg.API.BaseURL, cfg.API.Token)
	client.SetTimeout(cfg.API.Timeout)

	publisher, err := setupPublisher(cfg)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()

	bingoRoom := room.New(client, cfg.RoomConfig(),
		room.WithClock(clock),
		room.WithPublisher(publisher),
	)
	if err := bingoRoom.Mount(ctx); err != nil {
		publisher.Close()
		return nil, fmt.Errorf("mount room: %w", err)
	}

	var monitor *engine.Monitor
	var engineController gateway.EngineController
	if cfg.Engine.Enabled {
		monitor = engine.NewMonitor(client, cfg.EngineConfig(bingoRoom.ID()), clock, publisher)
		if err := monitor.Start(ctx); err != nil {
			bingoRoom.Unmount()
			publisher.Close()
			return nil, fmt.Errorf("start engine monitor: %w", err)
		}
		engineController = monitor
	}

	gw := gateway.NewService(cfg.GatewayConfig(), bingoRoom, engineController)
	go gw.Start(ctx)

	return &Services{
		Publisher: publisher,
		Room:      bingoRoom,
		Monitor:   monitor,
		Gateway:   gw,
	}, nil
}

func setupPublisher(cfg config.Config) (events.Publisher, error) {
	if !cfg.Events.Enabled {
		return events.NoOpPublisher{}, nil
	}
	publisher, err := events.NewNATSPublisher(cfg.NATSConfig())
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	log.Info().Str("url", cfg.Events.NATSURL).Msg("Publishing room events to NATS")
	return publisher, nil
}

// Close stops background work in reverse construction order.
func (s *Services) Close() {
	if s.Monitor != nil {
		s.Monitor.Stop()
	}
	s.Room.Unmount()
	if err := s.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close event publisher")
	}
}
