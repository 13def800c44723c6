package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gatehouse/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxMessageSize = 4096
	sendBuffer     = 256
)

// EventMessagesDropped tells a slow client that frames were discarded and
// it should re-read its notifications.
const EventMessagesDropped = "messages_dropped"

// WSHub is the part of a hub a Client needs.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Inbound is a frame a client sent. Payload is left raw for the handler.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FrameHandler reacts to one inbound frame.
type FrameHandler func(*Client, Inbound)

// Client is one websocket connection and its queue of outbound frames.
// Membership is fixed at Register; clients cannot join other rooms.
type Client struct {
	Hub     WSHub
	Conn    *websocket.Conn
	UserID  uint
	Society string
	Rooms   []string

	// Send is drained by the write loop. Use TrySend to enqueue.
	Send chan []byte

	dropped   atomic.Int64
	closeSend sync.Once
	log       *observability.HubLogger
}

// NewClient creates a Client for userID. Register is the usual way in.
func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		log:    observability.NewHubLogger(hub.Name()),
	}
}

// Serve runs the connection until the peer goes away or the hub closes it,
// passing every well-formed inbound frame to handle. The client has left
// the hub when Serve returns.
func (c *Client) Serve(handle FrameHandler) {
	go c.writeLoop()
	c.readLoop(handle)
}

func (c *Client) readLoop(handle FrameHandler) {
	defer func() {
		c.leave()
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Failed(context.Background(), c.UserID, "read", err)
			}
			return
		}
		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
			continue
		}
		if handle != nil {
			handle(c, in)
		}
	}
}

// leave takes the client out of the hub and closes Send so the write loop
// stops now instead of at its next ping. Deliver holds the hub lock while
// offering frames, so nothing is sent on Send once UnregisterClient returns.
func (c *Client) leave() {
	c.Hub.UnregisterClient(c)
	c.closeSend.Do(func() { close(c.Send) })
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Failed(context.Background(), c.UserID, "write", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a frame without blocking. When the buffer is full the
// frame is dropped and a messages_dropped notice is queued if it fits.
func (c *Client) TrySend(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- frame:
		return
	default:
	}

	total := c.dropped.Add(1)
	observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
	c.log.Failed(context.Background(), c.UserID, "send", errors.New("send buffer full"))

	notice, err := EncodeMessage(EventMessagesDropped, map[string]interface{}{
		"reason":  "buffer_full",
		"dropped": total,
	})
	if err != nil {
		return
	}
	select {
	case c.Send <- notice:
	default:
	}
}

// Dropped returns how many frames this client has lost to backpressure.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}
