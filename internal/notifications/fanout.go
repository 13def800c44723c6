package notifications

import (
	"context"
	"fmt"
)

// Fanout delivers events to rooms. With Redis configured frames go out
// through the Notifier and come back to every wired instance's hub; without
// it, or while this instance's hub is not wired, they also go straight to
// the local hub.
type Fanout struct {
	hub      *Hub
	notifier *Notifier
}

// NewFanout builds a Fanout over hub and an optional notifier.
func NewFanout(hub *Hub, notifier *Notifier) *Fanout {
	return &Fanout{hub: hub, notifier: notifier}
}

// Broadcast encodes {type, payload} and delivers it to room. Nobody being
// connected is not an error.
func (f *Fanout) Broadcast(ctx context.Context, room, event string, payload interface{}) error {
	data, err := EncodeMessage(event, payload)
	if err != nil {
		return err
	}

	if !f.notifier.Enabled() {
		f.deliverLocal(room, data)
		return nil
	}

	err = f.notifier.PublishRoom(ctx, room, string(data))
	// Without a live subscriber the publish never comes back to this
	// instance, so local connections are served directly.
	if err != nil || !f.hubWired() {
		f.deliverLocal(room, data)
	}
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, room, err)
	}
	return nil
}

func (f *Fanout) hubWired() bool {
	return f.hub != nil && f.hub.Wired()
}

func (f *Fanout) deliverLocal(room string, data []byte) {
	if f.hub != nil {
		f.hub.Deliver(room, data)
	}
}
