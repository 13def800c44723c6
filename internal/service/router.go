package service

import (
	"context"
	"log/slog"

	"gatehouse/internal/models"
	"gatehouse/internal/notifications"
	"gatehouse/internal/observability"
	"gatehouse/internal/repository"
)

// Realtime event names.
const (
	EventNewVisitorPending       = "new_visitor_pending"
	EventVisitorPermissionUpdate = "visitor_permission_update"
	EventVisitorUpdate           = "visitor_update"
	EventNotification            = "notification"
)

// Broadcaster delivers an event to everyone currently joined to a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, payload interface{}) error
}

// Router persists inbox notifications and fans out realtime events.
// Broadcasts are at-most-once: a failure is counted and logged, never
// returned.
type Router struct {
	notes repository.NotificationRepository
	bc    Broadcaster
}

// NewRouter builds a Router. bc may be nil when no transport is wired.
func NewRouter(notes repository.NotificationRepository, bc Broadcaster) *Router {
	return &Router{notes: notes, bc: bc}
}

// Persist writes an unread notification for its recipient.
func (r *Router) Persist(ctx context.Context, n *models.NotificationRecord) error {
	n.IsRead = false
	if n.Type == "" {
		n.Type = models.NotificationGeneral
	}
	return r.notes.Create(ctx, n)
}

// Broadcast sends event to room.
func (r *Router) Broadcast(ctx context.Context, room, event string, payload interface{}) {
	if r.bc == nil {
		observability.Broadcasts.WithLabelValues(event, "skipped").Inc()
		return
	}
	if err := r.bc.Broadcast(ctx, room, event, payload); err != nil {
		observability.Broadcasts.WithLabelValues(event, "error").Inc()
		observability.GlobalLogger.WarnContext(ctx, "broadcast failed",
			slog.String("room", room),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	observability.Broadcasts.WithLabelValues(event, "ok").Inc()
}

// NotifyUser persists n and pushes it to the recipient's private room.
func (r *Router) NotifyUser(ctx context.Context, n *models.NotificationRecord) error {
	if err := r.Persist(ctx, n); err != nil {
		return err
	}
	r.Broadcast(ctx, notifications.UserRoom(n.UserID), EventNotification, n)
	return nil
}
