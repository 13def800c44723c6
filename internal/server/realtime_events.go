package server

import (
	"time"

	"gatehouse/internal/notifications"
)

// Events the socket endpoint emits itself. Visitor events come from the
// service layer through the fanout.
const (
	EventConnected = "connected"
	EventPong      = "pong"
)

// welcomeFrame tells a fresh connection which rooms it joined.
func welcomeFrame(client *notifications.Client) []byte {
	frame, err := notifications.EncodeMessage(EventConnected, map[string]interface{}{
		"user_id": client.UserID,
		"society": client.Society,
		"rooms":   client.Rooms,
	})
	if err != nil {
		return nil
	}
	return frame
}

// handleClientFrame answers keepalive pings. Clients cannot join or leave
// rooms; membership is fixed by their scope.
func handleClientFrame(client *notifications.Client, in notifications.Inbound) {
	if in.Type != "ping" {
		return
	}
	frame, err := notifications.EncodeMessage(EventPong, map[string]interface{}{
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err == nil {
		client.TrySend(frame)
	}
}
