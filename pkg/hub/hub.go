package hub

import (
	"context"
	"log/slog"
	"sync"
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Name for logging
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Last message per sticky type, replayed to new clients
	sticky     map[string]bool
	last       map[string]Message
	stickyKeys []string

	mu      sync.RWMutex
	running bool
	done    chan struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithSticky marks event types whose latest message is replayed to every
// client that connects later, e.g. "mute" or "settings".
func WithSticky(types ...string) Option {
	return func(h *Hub) {
		for _, t := range types {
			if !h.sticky[t] {
				h.sticky[t] = true
				h.stickyKeys = append(h.stickyKeys, t)
			}
		}
	}
}

// New creates a new Hub
func New(name string, opts ...Option) *Hub {
	h := &Hub{
		name:       name,
		logger:     slog.Default(),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sticky:     make(map[string]bool),
		last:       make(map[string]Message),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "hub", "hub", name)
	return h
}

// Run starts the hub's main loop and returns when ctx is done. Run must
// be called once, in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.running = false
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			for _, t := range h.stickyKeys {
				if msg, ok := h.last[t]; ok {
					client.send <- msg
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client connected", "client", client.ID, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", "client", client.ID, "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			if h.sticky[message.Type] {
				h.last[message.Type] = message
			}
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full, drop it.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow client", "client", client.ID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", msg.Type)
	}
}

// Publish encodes and broadcasts an event.
func (h *Hub) Publish(eventType string, data any) error {
	msg, err := Encode(Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
