package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Dipanshuofficial/Flow/internal/api/service"
	"github.com/rs/zerolog"
)

const (
	MsgState        = "state"
	MsgNotification = "notification"
	MsgExportPhase  = "export.phase"
)

// outgoingMsg is the envelope sent to the canvas.
type outgoingMsg struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans session events out to every connected canvas.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	resync     chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu        sync.Mutex
	lastState []byte

	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		resync:     make(chan *Client, 16),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub event loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug().Str("clientId", client.id).Int("total", len(h.clients)).Msg("Canvas connected")
			h.sendLatest(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug().Str("clientId", client.id).Int("total", len(h.clients)).Msg("Canvas disconnected")
			}

		case client := <-h.resync:
			if h.clients[client] {
				h.sendLatest(client)
			}

		case payload := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// client buffer full, drop it
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// enqueue hands a client to the event loop unless the hub has stopped.
func (h *Hub) enqueue(ch chan *Client, client *Client) bool {
	select {
	case ch <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) sendLatest(client *Client) {
	h.mu.Lock()
	latest := h.lastState
	h.mu.Unlock()
	if latest == nil {
		return
	}
	select {
	case client.send <- latest:
	default:
	}
}

// PublishState pushes the graph to every canvas. It never blocks the caller,
// which runs inside a graph mutation.
func (h *Hub) PublishState(st service.GraphState) {
	payload, ok := h.envelope(MsgState, st)
	if !ok {
		return
	}
	h.mu.Lock()
	h.lastState = payload
	h.mu.Unlock()
	h.publish(payload)
}

func (h *Hub) PublishPhase(phase service.Phase) {
	if payload, ok := h.envelope(MsgExportPhase, map[string]service.Phase{"phase": phase}); ok {
		h.publish(payload)
	}
}

// Notify implements service.Notifier by forwarding notifications as toasts.
func (h *Hub) Notify(_ context.Context, n service.Notification) {
	if payload, ok := h.envelope(MsgNotification, n); ok {
		h.publish(payload)
	}
}

func (h *Hub) publish(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn().Msg("Broadcast queue full, dropping message")
	}
}

func (h *Hub) envelope(kind string, v any) ([]byte, bool) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Str("type", kind).Msg("Failed to marshal payload")
		return nil, false
	}
	data, err := json.Marshal(outgoingMsg{Type: kind, Payload: body})
	if err != nil {
		h.logger.Error().Err(err).Str("type", kind).Msg("Failed to marshal envelope")
		return nil, false
	}
	return data, true
}
