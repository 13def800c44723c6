// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger for components that run outside a request.
type Logger struct {
	*slog.Logger
}

// GlobalLogger starts as a plain JSON logger. The middleware package swaps
// in its context-aware logger at init so engine logs carry request ids.
var GlobalLogger = &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stdout, nil))}

// SetGlobalLogger replaces the background logger. nil is ignored.
func SetGlobalLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = &Logger{Logger: l}
	}
}

// HubLogger logs realtime connection events for one hub.
type HubLogger struct {
	hub string
}

// NewHubLogger returns a logger that tags every line with hub.
func NewHubLogger(hub string) *HubLogger {
	return &HubLogger{hub: hub}
}

func (l *HubLogger) with(userID uint) *slog.Logger {
	return GlobalLogger.With(slog.String("hub", l.hub), slog.Uint64("user_id", uint64(userID)))
}

// Joined logs a connection and the rooms it was placed in.
func (l *HubLogger) Joined(ctx context.Context, userID uint, rooms []string) {
	l.with(userID).InfoContext(ctx, "websocket joined", slog.Any("rooms", rooms))
}

// Left logs a connection leaving all of its rooms.
func (l *HubLogger) Left(ctx context.Context, userID uint, reason string) {
	l.with(userID).InfoContext(ctx, "websocket left", slog.String("reason", reason))
}

// Failed logs a read, write or close error on a connection.
func (l *HubLogger) Failed(ctx context.Context, userID uint, op string, err error) {
	l.with(userID).WarnContext(ctx, "websocket "+op+" failed", slog.String("error", err.Error()))
}

// Stopped logs hub shutdown with the number of connections it closed.
func (l *HubLogger) Stopped(ctx context.Context, closed int) {
	GlobalLogger.InfoContext(ctx, "websocket hub stopped", slog.String("hub", l.hub), slog.Int("closed", closed))
}
