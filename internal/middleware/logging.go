package middleware

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"gatehouse/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Logger is the request-scoped structured logger. UseLogger keeps it and
// observability.GlobalLogger pointing at the same handler.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
	SocietyKey   contextKey = "society"
)

// localKeys maps fiber locals onto the context keys the log handler reads.
var localKeys = []struct {
	local string
	key   contextKey
}{
	{"requestid", RequestIDKey},
	{"userID", UserIDKey},
	{"traceID", TraceIDKey},
	{"society", SocietyKey},
}

// ctxHandler stamps every record with the request identifiers in ctx.
type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, lk := range localKeys {
		switch v := ctx.Value(lk.key).(type) {
		case string:
			if v != "" {
				r.AddAttrs(slog.String(string(lk.key), v))
			}
		case uint:
			r.AddAttrs(slog.Uint64(string(lk.key), uint64(v)))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	UseLogger(NewLogger(os.Getenv("APP_ENV")))
}

// UseLogger installs l for request logging and for the background
// components that log through observability.GlobalLogger.
func UseLogger(l *slog.Logger) {
	Logger = l
	observability.SetGlobalLogger(l)
}

// NewLogger builds the context-aware logger: JSON in production and
// staging, text elsewhere.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(&ctxHandler{handler})
}

// ContextMiddleware copies request ID, user ID and trace ID from Fiber locals
// into the request context so service-layer logs carry them.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(WithRequestValues(c, c.UserContext()))
		return c.Next()
	}
}

// WithRequestValues returns ctx enriched with whatever identifiers the
// request has accumulated so far. Auth calls it again once the user and
// society are known.
func WithRequestValues(c *fiber.Ctx, ctx context.Context) context.Context {
	for _, lk := range localKeys {
		switch v := c.Locals(lk.local).(type) {
		case string, uint:
			ctx = context.WithValue(ctx, lk.key, v)
		}
	}
	return ctx
}

// StructuredLogger logs one line per request. Server errors log at error,
// rejected requests at warn and the rest at info.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("route", c.Route().Path),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}

		level, msg := slog.LevelInfo, "request"
		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			level, msg = slog.LevelError, "request failed"
		case status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		}
		Logger.LogAttrs(c.UserContext(), level, msg, attrs...)
		return err
	}
}
