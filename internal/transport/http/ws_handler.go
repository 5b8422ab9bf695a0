package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"fff-console/internal/domain"
	"fff-console/internal/round"
)

// WSHandler upgrades participant connections and wires them into the round
// coordinator: joins into the registry, answers into the ledger, broadcasts
// out through the hub.
type WSHandler struct {
	flow     *round.Flow
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(flow *round.Flow, hub *Hub) *WSHandler {
	return &WSHandler{
		flow: flow,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Generation int64  `json:"generation"`
	Sequence   string `json:"sequence"`
}

type joinedPayload struct {
	Participant domain.Participant `json:"participant"`
	Phase       domain.Phase       `json:"phase"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS handles one participant for the connection's lifetime.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" || displayName == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	participant := h.flow.Registry().Join(userID, displayName)
	defer h.flow.Registry().Leave(userID)

	c := newClient(userID, displayName)
	h.hub.register(c)
	defer h.hub.unregister(c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for env := range c.send {
			if err := conn.WriteJSON(env); err != nil {
				log.Debug().Err(err).Str("participant_id", c.id).Msg("ws write error")
				return
			}
		}
	}()

	c.enqueue(newEnvelope("joined", joinedPayload{
		Participant: participant,
		Phase:       h.flow.Phase(),
	}))
	log.Info().Str("participant_id", userID).Str("name", displayName).Msg("participant joined")

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.enqueue(newEnvelope("error", errorPayload{Message: "invalid answer payload"}))
				continue
			}
			err := h.flow.Submit(userID, displayName, payload.Sequence, payload.Generation)
			switch {
			case err == nil:
				c.enqueue(newEnvelope("answerAccepted", nil))
			case errors.Is(err, domain.ErrInvalidSequence):
				c.enqueue(newEnvelope("error", errorPayload{Message: err.Error()}))
			default:
				// Duplicate and stale-round submissions are dropped
				// silently; the flow already logged them.
			}
		default:
			c.enqueue(newEnvelope("error", errorPayload{Message: "unsupported message type"}))
		}
	}

	c.close()
	<-writerDone
	log.Info().Str("participant_id", userID).Msg("participant left")
}
