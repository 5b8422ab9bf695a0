package http

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"fff-console/internal/round"
)

// envelope is the wire frame for every outbound websocket message.
type envelope struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	SentAt  time.Time `json:"sentAt"`
	Payload any       `json:"payload,omitempty"`
}

func newEnvelope(msgType string, payload any) envelope {
	return envelope{
		ID:      uuid.NewString(),
		Type:    msgType,
		SentAt:  time.Now().UTC(),
		Payload: payload,
	}
}

// phasePayload wraps a coordinator phase message for the wire.
type phasePayload struct {
	Tag  round.PhaseTag `json:"tag"`
	Data any            `json:"data,omitempty"`
}

// Hub tracks connected participant websockets and fans coordinator
// broadcasts out to them. It implements round.Broadcaster; every call is
// best-effort per connection, so one slow or dead client never stalls the
// round.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartQuestion opens the round for all connected clients.
func (h *Hub) StartQuestion(msg round.StartQuestionMessage) error {
	h.broadcast(newEnvelope("startQuestion", msg))
	return nil
}

// EndQuestion tells clients the round is closed for answers.
func (h *Hub) EndQuestion() error {
	h.broadcast(newEnvelope("endQuestion", nil))
	return nil
}

// BroadcastPhase relays a tagged phase message to all clients.
func (h *Hub) BroadcastPhase(tag round.PhaseTag, payload any) error {
	h.broadcast(newEnvelope("phase", phasePayload{Tag: tag, Data: payload}))
	return nil
}

func (h *Hub) broadcast(env envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(env)
	}
}

// client is one participant connection with a dedicated writer goroutine, so
// concurrent broadcasts never interleave writes on the socket.
type client struct {
	id   string
	name string

	mu     sync.Mutex
	closed bool
	send   chan envelope
}

func newClient(id, name string) *client {
	return &client{id: id, name: name, send: make(chan envelope, 32)}
}

// enqueue delivers without blocking; when the buffer is full the oldest
// message is dropped so a stalled client only loses display updates.
// Broadcasts racing a disconnect land on the closed flag, not a closed
// channel.
func (c *client) enqueue(env envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- env:
	default:
		select {
		case dropped := <-c.send:
			log.Debug().Str("participant_id", c.id).Str("type", dropped.Type).Msg("dropped stale message for slow client")
		default:
		}
		select {
		case c.send <- env:
		default:
		}
	}
}

// close stops the writer goroutine; safe against in-flight broadcasts.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
