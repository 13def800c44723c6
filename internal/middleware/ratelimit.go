package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// Limit is a fixed-window budget for one named endpoint.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	Policy FailPolicy
}

// Budgets applied to the gate endpoints.
var (
	LimitVerifyQR = Limit{Name: "verify_qr", Max: 30, Window: time.Minute}
	LimitLogVisit = Limit{Name: "log_visitor", Max: 60, Window: time.Minute}
	LimitWSTicket = Limit{Name: "ws_ticket", Max: 10, Window: time.Minute}
)

// Decision is the outcome of counting one request.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

var errNoStore = errors.New("rate limit store unavailable")

// Limiter counts requests per (limit, subject) in Redis. Development and
// test environments are never limited.
type Limiter struct {
	rdb     *redis.Client
	enforce bool
}

// NewLimiter returns a limiter over rdb that enforces budgets only when env
// is neither development nor test.
func NewLimiter(rdb *redis.Client, env string) *Limiter {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "development", "dev", "test":
		return &Limiter{rdb: rdb}
	}
	return &Limiter{rdb: rdb, enforce: true}
}

// Allow counts one request by subject against lim.
func (l *Limiter) Allow(ctx context.Context, lim Limit, subject string) (Decision, error) {
	if l == nil || !l.enforce {
		return Decision{Allowed: true, Remaining: lim.Max}, nil
	}
	if l.rdb == nil {
		return Decision{}, errNoStore
	}

	key := fmt.Sprintf("rl:%s:%s", lim.Name, subject)
	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if cnt == 1 {
		l.rdb.Expire(ctx, key, lim.Window)
	}

	d := Decision{Allowed: cnt <= int64(lim.Max), Remaining: max(lim.Max-int(cnt), 0)}
	if !d.Allowed {
		if ttl, err := l.rdb.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
			d.RetryAfter = ttl
		} else {
			d.RetryAfter = lim.Window
		}
	}
	return d, nil
}

// Handler enforces lim, keyed by the authenticated user or else the client IP.
func (l *Limiter) Handler(lim Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		subject := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok {
			subject = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		d, err := l.Allow(ctx, lim, subject)
		if err != nil {
			if lim.Policy == FailClosed {
				Logger.WarnContext(ctx, "rate limit store unavailable, failing closed",
					"limit", lim.Name, "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"success": false,
					"message": "rate limit unavailable",
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(lim.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(d.RetryAfter.Round(time.Second).Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
