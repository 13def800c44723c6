package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scanLimit = Limit{Name: "verify_qr", Max: 2, Window: time.Minute}

func TestLimiter_BypassedOutsideProduction(t *testing.T) {
	for _, env := range []string{"", "test", "development"} {
		t.Run(env, func(t *testing.T) {
			d, err := NewLimiter(nil, env).Allow(context.Background(), scanLimit, "user:1")
			assert.NoError(t, err)
			assert.True(t, d.Allowed)
		})
	}
}

func TestLimiter_NilRedisInProduction(t *testing.T) {
	_, err := NewLimiter(nil, "production").Allow(context.Background(), scanLimit, "user:1")
	assert.ErrorIs(t, err, errNoStore)
}

func TestLimiter_CountsWithinWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	l := NewLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "production")
	ctx := context.Background()

	for want := 1; want >= 0; want-- {
		d, err := l.Allow(ctx, scanLimit, "user:7")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, want, d.Remaining)
	}
	d, err := l.Allow(ctx, scanLimit, "user:7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	// Another guard has their own budget.
	d, err = l.Allow(ctx, scanLimit, "user:8")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	mr.FastForward(2 * time.Minute)
	d, err = l.Allow(ctx, scanLimit, "user:7")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiterHandler(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("FailOpen with nil redis in production", func(t *testing.T) {
		app := fiber.New()
		app.Get("/test", NewLimiter(nil, "production").Handler(Limit{Name: "t", Max: 1, Window: time.Minute}), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailClosed with nil redis in production", func(t *testing.T) {
		app := fiber.New()
		lim := Limit{Name: "t", Max: 1, Window: time.Minute, Policy: FailClosed}
		app.Get("/sensitive", NewLimiter(nil, "production").Handler(lim), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/sensitive", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Limit exceeded", func(t *testing.T) {
		mr := miniredis.RunT(t)
		l := NewLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "production")

		app := fiber.New()
		app.Post("/scan", func(c *fiber.Ctx) error {
			c.Locals("userID", uint(3))
			return c.Next()
		}, l.Handler(Limit{Name: "verify_qr", Max: 1, Window: time.Minute}), ok)

		first, err := app.Test(httptest.NewRequest(http.MethodPost, "/scan", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, first.StatusCode)
		assert.Equal(t, "1", first.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", first.Header.Get("X-RateLimit-Remaining"))
		assert.True(t, mr.Exists("rl:verify_qr:user:3"))

		second, err := app.Test(httptest.NewRequest(http.MethodPost, "/scan", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
		assert.Equal(t, "60", second.Header.Get(fiber.HeaderRetryAfter))
	})
}
