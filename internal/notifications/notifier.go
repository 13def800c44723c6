package notifications

import (
	"context"
	"runtime/debug"

	"gatehouse/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Notifier relays room frames through Redis so every instance delivers to
// its own connections.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether frames go through Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishRoom sends a frame to every instance's subscribers of room.
func (n *Notifier) PublishRoom(ctx context.Context, room, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, RoomChannel(room), payload).Err()
}

// StartRoomSubscriber subscribes to pattern `rooms:*` and calls onMessage
// for each incoming frame with the room name it was published to. The
// returned channel is closed when the subscriber stops. Both results are nil
// when Redis is not configured.
func (n *Notifier) StartRoomSubscriber(
	ctx context.Context, onMessage func(room string, payload string),
) (<-chan struct{}, error) {
	if !n.Enabled() {
		return nil, nil
	}
	sub := n.rdb.PSubscribe(ctx, RoomChannel("*"))
	// Wait for the subscription to be confirmed so publishes issued right
	// after wiring are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	ch := sub.Channel()
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				room, valid := roomFromChannel(msg.Channel)
				if !valid {
					observability.GlobalLogger.Warn("invalid room channel", "channel", msg.Channel)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.Error("panic in room subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(room, msg.Payload)
				}()
			}
		}
	}()

	return stopped, nil
}
