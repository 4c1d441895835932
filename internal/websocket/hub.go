// Package websocket serves the live view channel. A Hub tracks the open
// connections so that they can be counted and closed on shutdown; a Client
// answers the messages of one connection.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"csvpulse/internal/infrastructure"
)

// ErrHubClosed is returned by Serve once the hub has stopped.
var ErrHubClosed = errors.New("websocket hub closed")

// HubStats reports connection counters
type HubStats struct {
	Active int   `json:"active"`
	Total  int64 `json:"total"`
}

// Hub maintains the set of active clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}

	mu               sync.RWMutex
	totalConnections int64
	onChange         func(active int)
	logger           *slog.Logger
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithObserver registers a callback invoked with the number of open
// connections after every change.
func WithObserver(fn func(active int)) HubOption {
	return func(h *Hub) { h.onChange = fn }
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			count := len(h.clients)
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()

			h.logger.Info("Hub shutting down", slog.Int("closed_clients", count))
			h.notify(0)
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("session_id", client.sessionID))
			h.notify(count)

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			delete(h.clients, client)
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				h.logger.Info("Client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
				h.notify(count)
			}
		}
	}
}

// Serve registers client, runs it and unregisters it when it returns.
func (h *Hub) Serve(ctx context.Context, client *Client) error {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
		client.conn.Close()
		return ErrHubClosed
	case <-ctx.Done():
		client.conn.Close()
		return ctx.Err()
	}

	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()
	return client.Serve(ctx)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns connection counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{Active: len(h.clients), Total: h.totalConnections}
}

func (h *Hub) notify(active int) {
	if h.onChange != nil {
		h.onChange(active)
	}
}
