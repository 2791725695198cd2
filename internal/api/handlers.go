package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"volley-club/internal/game"
	"volley-club/internal/game/vec"
	"volley-club/internal/render"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetScore(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > game.MaxPointHistory {
			writeError(w, "limit must be between 1 and "+strconv.Itoa(game.MaxPointHistory), http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, h.engine.Scoreboard(limit))
}

func (h *routerHandlers) handleGetEventStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()

	arbitrations := make(map[string]uint64, len(stats.Arbitrations))
	for k, v := range stats.Arbitrations {
		arbitrations[k.String()] = v
	}
	touches := make(map[string]uint64, len(stats.Touches))
	for k, v := range stats.Touches {
		touches[k.String()] = v
	}

	writeJSON(w, map[string]interface{}{
		"arbitrations":    arbitrations,
		"touches":         touches,
		"invalidGeometry": stats.InvalidGeometry,
		"noValidTarget":   stats.NoValidTarget,
		"lifecycleFaults": stats.LifecycleFaults,
		"eventLog":        h.engine.GetEventLogStats(),
	})
}

func (h *routerHandlers) handleCourtPNG(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot().Clone()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.WritePNG(w, &snap, h.engine.Court(), render.DefaultOptions()); err != nil {
		log.Printf("⚠️ Court render failed: %v", err)
	}
}

// strikeRequest launches the ball from outside the agents
type strikeRequest struct {
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`
	Operator bool       `json:"operator"`
}

func (h *routerHandlers) handleStrike(w http.ResponseWriter, r *http.Request) {
	var req strikeRequest
	if err := decodeValidated(r, h.schemas.strike, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	pos := vec.New(req.Position[0], req.Position[1], req.Position[2])
	vel := vec.New(req.Velocity[0], req.Velocity[1], req.Velocity[2])
	if err := h.engine.StrikeBall(pos, vel, req.Operator); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleServe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agent string `json:"agent"`
	}
	if err := decodeValidated(r, h.schemas.serve, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.engine.RequestServe(req.Agent); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position [3]float64 `json:"position"`
	}
	if err := decodeValidated(r, h.schemas.operator, &req); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	p := vec.New(req.Position[0], req.Position[1], req.Position[2])
	if err := h.engine.MoveOperator(p); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func (h *routerHandlers) handleRallyReset(w http.ResponseWriter, r *http.Request) {
	log.Println("🔄 Rally reset requested via API")
	h.engine.ResetRally()
	writeJSON(w, map[string]bool{"success": true})
}

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidStrike), errors.Is(err, game.ErrBoundaryViolation):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNoOperator), errors.Is(err, game.ErrNotServing):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
