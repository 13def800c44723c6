// Package notifications provides real-time delivery of visitor events to
// connected clients.
package notifications

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"gatehouse/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// ErrHubClosed is returned by Register after Shutdown.
var ErrHubClosed = errors.New("hub is shutting down")

// Hub maps room name -> set of Clients. A connection is a member of its
// user room and its society room for as long as it stays open.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]map[*Client]struct{}
	perUser    map[uint]int
	totalConns int
	closed     bool
	logger     *observability.HubLogger
	// wired counts live Redis subscribers delivering into this hub.
	wired atomic.Int32
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	h := &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		perUser: make(map[uint]int),
	}
	h.logger = observability.NewHubLogger(h.Name())
	return h
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "visitor hub" }

// Register a connection for userID in society. The client joins
// user_<id> and society_<society>. Returns an error if limits are exceeded.
func (h *Hub) Register(userID uint, society string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		return nil, errors.New("server connection limit reached")
	}
	if h.perUser[userID] >= maxConnsPerUser {
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	client.Society = society
	client.Rooms = []string{UserRoom(userID), SocietyRoom(society)}
	for _, room := range client.Rooms {
		m, ok := h.rooms[room]
		if !ok {
			m = make(map[*Client]struct{})
			h.rooms[room] = m
		}
		m[client] = struct{}{}
	}
	h.perUser[userID]++
	h.totalConns++
	observability.WebSocketConnections.Inc()
	h.logger.Joined(context.Background(), userID, client.Rooms)

	return client, nil
}

// UnregisterClient removes the client from every room it joined. Calling it
// twice for the same client is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := false
	for _, room := range client.Rooms {
		m, ok := h.rooms[room]
		if !ok {
			continue
		}
		if _, exists := m[client]; exists {
			delete(m, client)
			removed = true
		}
		if len(m) == 0 {
			delete(h.rooms, room)
		}
	}
	if !removed {
		return
	}

	h.totalConns--
	h.perUser[client.UserID]--
	if h.perUser[client.UserID] <= 0 {
		delete(h.perUser, client.UserID)
	}
	observability.WebSocketConnections.Dec()
	h.logger.Left(context.Background(), client.UserID, "unregistered")
}

// Deliver sends data to every connection currently in room and reports
// how many clients it was offered to.
func (h *Hub) Deliver(room string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.rooms[room]
	for c := range clients {
		c.TrySend(data)
	}
	return len(clients)
}

// Members returns the number of connections in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// StartWiring connects the Notifier to this hub: frames published on any
// instance are delivered to the matching local room.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	stopped, err := n.StartRoomSubscriber(ctx, func(room, payload string) {
		h.Deliver(room, []byte(payload))
	})
	if err != nil || stopped == nil {
		return err
	}
	h.wired.Add(1)
	go func() {
		<-stopped
		h.wired.Add(-1)
	}()
	return nil
}

// Wired reports whether a Redis subscriber is feeding this hub. Until it is,
// frames published to Redis never come back to local connections.
func (h *Hub) Wired() bool {
	return h.wired.Load() > 0
}

// Shutdown gracefully closes all websocket connections.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	seen := make(map[*Client]struct{})
	for _, clients := range h.rooms {
		for client := range clients {
			if _, done := seen[client]; done {
				continue
			}
			seen[client] = struct{}{}
			if client.Conn == nil {
				continue
			}
			_ = client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
			if err := client.Conn.Close(); err != nil {
				h.logger.Failed(context.Background(), client.UserID, "close", err)
			}
		}
	}
	observability.WebSocketConnections.Sub(float64(h.totalConns))
	h.rooms = make(map[string]map[*Client]struct{})
	h.perUser = make(map[uint]int)
	h.totalConns = 0
	h.logger.Stopped(context.Background(), len(seen))

	return nil
}
