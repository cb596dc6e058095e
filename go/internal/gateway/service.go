package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/fanoshome/bingo/go/internal/room"
)

// RoomStream is a room that also publishes its views.
type RoomStream interface {
	RoomController
	Subscribe() (<-chan room.View, func())
}

type Config struct {
	AllowedOrigins   []string
	ConnectionConfig ConnectionConfig
}

func DefaultConfig() Config {
	return Config{ConnectionConfig: DefaultConnectionConfig()}
}

// Service is the local HTTP and WebSocket surface of a mounted room.
type Service struct {
	config            Config
	room              RoomStream
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// NewService wires the gateway. eng may be nil when engine controls are disabled.
func NewService(config Config, r RoomStream, eng EngineController) *Service {
	cm := NewConnectionManager(config.ConnectionConfig)
	return &Service{
		config:            config,
		room:              r,
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, r),
		stateHandler:      NewStateHandler(r, eng),
	}
}

// Start forwards room views to WebSocket viewers until ctx is done.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting room gateway service")
	go s.connectionManager.Start(ctx)

	views, cancel := s.room.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room gateway service shutting down")
			return
		case v, ok := <-views:
			if !ok {
				log.Info().Msg("room closed its view stream")
				return
			}
			s.connectionManager.Broadcast(v)
		}
	}
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	r.Get("/ws", s.wsHandler.HandleStream)

	r.Group(func(r chi.Router) {
		r.Use(compress)
		s.stateHandler.RegisterStateRoutes(r)
	})

	log.Info().Msg("room gateway routes registered")
	return NewCORS(s.config.AllowedOrigins).Handler(r)
}

func (s *Service) ConnectionCount() int {
	return s.connectionManager.ConnectionCount()
}
