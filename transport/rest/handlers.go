package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Engenuics/ANTTT/internal/arbiter"
	"github.com/Engenuics/ANTTT/internal/board"
	"github.com/Engenuics/ANTTT/internal/input"
	"github.com/Engenuics/ANTTT/internal/led"
)

type stateSource interface {
	Snapshot() arbiter.Snapshot
}

type panelSource interface {
	Snapshot() []bool
}

type presser interface {
	Press(index int) bool
}

// ledsResponse is the panel grouped by bank.
type ledsResponse struct {
	Home   []bool `json:"home"`
	Away   []bool `json:"away"`
	Yellow bool   `json:"yellow"`
	Red    bool   `json:"red"`
	Green  bool   `json:"green"`
}

type pressResponse struct {
	Button int `json:"button"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	logger  *slog.Logger
	state   stateSource
	panel   panelSource
	buttons presser
}

func (that *handlers) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(that.logger, w, http.StatusOK, that.state.Snapshot())
}

func (that *handlers) getLEDs(w http.ResponseWriter, _ *http.Request) {
	lit := that.panel.Snapshot()
	if len(lit) < led.Count {
		writeJSON(that.logger, w, http.StatusInternalServerError, errorResponse{Error: "panel_unavailable"})
		return
	}

	writeJSON(that.logger, w, http.StatusOK, ledsResponse{
		Home:   lit[led.HomeBase : led.HomeBase+board.CellCount],
		Away:   lit[led.AwayBase : led.AwayBase+board.CellCount],
		Yellow: lit[led.StatusYellow],
		Red:    lit[led.StatusRed],
		Green:  lit[led.StatusGreen],
	})
}

// pressButton latches a simulated press, the arbiter picks it up on its next tick.
func (that *handlers) pressButton(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "pressButton")

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= input.ButtonCount {
		writeJSON(that.logger, w, http.StatusBadRequest, errorResponse{Error: "invalid_button"})
		return
	}

	if !that.buttons.Press(index) {
		writeJSON(that.logger, w, http.StatusConflict, errorResponse{Error: "already_pressed"})
		return
	}

	log.Debug("button pressed", "button", index)

	writeJSON(that.logger, w, http.StatusAccepted, pressResponse{Button: index})
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
