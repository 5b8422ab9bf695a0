package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fff-console/internal/domain"
	"fff-console/internal/round"
)

// HostHandler exposes the host's trigger surface over plain HTTP. Each
// endpoint maps to one coordinator trigger; a guard violation answers 409 so
// a wrong click is visible to the host but harmless.
type HostHandler struct {
	flow *round.Flow
}

func NewHostHandler(flow *round.Flow) *HostHandler {
	return &HostHandler{flow: flow}
}

// Register wires the host routes onto the mux.
func (h *HostHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/host/intro", h.trigger(func(r *http.Request) error {
		return h.flow.StartIntro(r.Context())
	}))
	mux.HandleFunc("/host/question", h.trigger(func(*http.Request) error {
		return h.flow.ShowQuestion()
	}))
	mux.HandleFunc("/host/reveal-answers", h.trigger(func(*http.Request) error {
		return h.flow.RevealAnswers()
	}))
	mux.HandleFunc("/host/reveal-correct", h.trigger(func(*http.Request) error {
		return h.flow.RevealCorrect()
	}))
	mux.HandleFunc("/host/confirm-winner", h.confirmWinner)
	mux.HandleFunc("/host/end-round", h.trigger(func(*http.Request) error {
		return h.flow.EndRound()
	}))
	mux.HandleFunc("/host/abort", h.trigger(func(*http.Request) error {
		return h.flow.Abort()
	}))
	mux.HandleFunc("/host/state", h.state)
}

func (h *HostHandler) trigger(fn func(*http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := fn(r); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.flow.Snapshot())
	}
}

type outcomeResponse struct {
	Outcome domain.RoundOutcome `json:"outcome"`
	State   domain.RoundView    `json:"state"`
}

func (h *HostHandler) confirmWinner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	outcome, err := h.flow.ConfirmWinner()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse{Outcome: outcome, State: h.flow.Snapshot()})
}

func (h *HostHandler) state(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.flow.Snapshot())
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrGuardViolation) {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
