package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	api "github.com/fanoshome/bingo/go/clients/bingo_api_client"
	"github.com/fanoshome/bingo/go/internal/engine"
	"github.com/fanoshome/bingo/go/internal/room"
)

// RoomController is the room surface the gateway drives. *room.Room satisfies it.
type RoomController interface {
	View() room.View
	Refresh(ctx context.Context)
	Select(ctx context.Context, card int) room.Outcome
	Deselect(ctx context.Context, card int) room.Outcome
	Toggle(ctx context.Context, card int) room.Outcome
	PlayerCount(ctx context.Context) (int, error)
}

// EngineController is the engine surface the gateway drives. *engine.Monitor satisfies it.
type EngineController interface {
	Status() engine.Status
	StartEngine(ctx context.Context) (*api.EngineAck, error)
	StopEngine(ctx context.Context) (*api.EngineAck, error)
	Tick(ctx context.Context) (*api.EngineAck, error)
}

// IntentResponse is returned for every card intent.
type IntentResponse struct {
	Outcome room.Outcome `json:"outcome"`
	View    room.View    `json:"view"`
}

// StateHandler serves room state and accepts player intents.
type StateHandler struct {
	room   RoomController
	engine EngineController
}

func NewStateHandler(r RoomController, e EngineController) *StateHandler {
	return &StateHandler{room: r, engine: e}
}

// RegisterStateRoutes mounts the room and engine routes on r.
func (h *StateHandler) RegisterStateRoutes(r chi.Router) {
	r.Route("/api/room", func(r chi.Router) {
		r.Get("/state", h.HandleGetState)
		r.Post("/refresh", h.HandleRefresh)
		r.Get("/player-count", h.HandlePlayerCount)
		r.Post("/cards/{card}/select", h.cardIntent(h.room.Select))
		r.Post("/cards/{card}/deselect", h.cardIntent(h.room.Deselect))
		r.Post("/cards/{card}/toggle", h.cardIntent(h.room.Toggle))
	})
	if h.engine != nil {
		r.Route("/api/engine", func(r chi.Router) {
			r.Get("/status", h.HandleEngineStatus)
			r.Post("/start", h.engineCommand("start", h.engine.StartEngine))
			r.Post("/stop", h.engineCommand("stop", h.engine.StopEngine))
			r.Post("/tick", h.engineCommand("tick", h.engine.Tick))
		})
	}
}

// HandleGetState handles GET /api/room/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.room.View())
}

// HandleRefresh handles POST /api/room/refresh
func (h *StateHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.room.Refresh(r.Context())
	writeJSON(w, http.StatusOK, h.room.View())
}

// HandlePlayerCount handles GET /api/room/player-count
func (h *StateHandler) HandlePlayerCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.room.PlayerCount(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get player count")
		writeError(w, http.StatusBadGateway, "failed to get player count")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"player_count": count})
}

func (h *StateHandler) cardIntent(fn func(ctx context.Context, card int) room.Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := strconv.Atoi(chi.URLParam(r, "card"))
		if err != nil || card <= 0 {
			writeError(w, http.StatusBadRequest, "invalid card number")
			return
		}

		outcome := fn(r.Context(), card)
		status := http.StatusOK
		if outcome != room.OutcomeConfirmed {
			status = http.StatusConflict
		}
		writeJSON(w, status, IntentResponse{Outcome: outcome, View: h.room.View()})
	}
}

// HandleEngineStatus handles GET /api/engine/status
func (h *StateHandler) HandleEngineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Status())
}

func (h *StateHandler) engineCommand(name string, fn func(ctx context.Context) (*api.EngineAck, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ack, err := fn(r.Context())
		if err != nil {
			log.Error().Err(err).Str("command", name).Msg("engine command failed")
			writeError(w, http.StatusBadGateway, "engine "+name+" failed")
			return
		}
		writeJSON(w, http.StatusOK, ack)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
