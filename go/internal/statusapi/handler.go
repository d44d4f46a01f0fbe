package statusapi

import (
	"encoding/json"
	"net/http"

	"github.com/lila-games/xoxo/go/internal/match"
	"github.com/rs/zerolog/log"
)

// StateProvider defines what the status API reads match state from
type StateProvider interface {
	View() match.View
}

// StateHandler handles HTTP requests for the local match state
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetState handles GET /api/match/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view := h.stateProvider.View()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		log.Error().Err(err).Msg("failed to encode match state response")
	}
}

// HandleGetBoard handles GET /api/match/board, a plain-text rendering
func (h *StateHandler) HandleGetBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view := h.stateProvider.View()
	if view.MatchID == "" {
		http.Error(w, "Not in a match", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(view.Board.String() + "\n" + view.Status + "\n")); err != nil {
		log.Error().Err(err).Msg("failed to write board response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/match/state", h.HandleGetState)
	mux.HandleFunc("/api/match/board", h.HandleGetBoard)
}
