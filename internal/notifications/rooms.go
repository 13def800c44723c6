package notifications

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	userRoomPrefix    = "user_"
	societyRoomPrefix = "society_"
)

// UserRoom is the private room every connection of a user joins.
func UserRoom(userID uint) string {
	return fmt.Sprintf("%s%d", userRoomPrefix, userID)
}

// SocietyRoom is the tenant-wide room shared by everyone in a society.
func SocietyRoom(society string) string {
	return societyRoomPrefix + society
}

// RoomChannel is the Redis channel a room is relayed on between instances.
func RoomChannel(room string) string {
	return "rooms:" + room
}

func roomFromChannel(channel string) (string, bool) {
	room, ok := strings.CutPrefix(channel, "rooms:")
	return room, ok && room != ""
}

// Message is the envelope every realtime frame is sent in.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// EncodeMessage serializes an event and payload into a frame.
func EncodeMessage(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(Message{Type: event, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal %s message: %w", event, err)
	}
	return data, nil
}
