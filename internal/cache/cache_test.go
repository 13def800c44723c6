package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_LoadsOnceThenServesFromRedis(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()
	loads := 0
	load := func(dest *cachedUser) func() error {
		return func() error {
			loads++
			*dest = cachedUser{ID: 4, Name: "Priya"}
			return nil
		}
	}

	var first cachedUser
	require.NoError(t, Aside(ctx, UserKey(4), &first, UserTTL, load(&first)))
	assert.True(t, mr.Exists(UserKey(4)))

	var second cachedUser
	require.NoError(t, Aside(ctx, UserKey(4), &second, UserTTL, load(&second)))
	assert.Equal(t, 1, loads)
	assert.Equal(t, "Priya", second.Name)

	InvalidateUser(ctx, 4)
	assert.False(t, mr.Exists(UserKey(4)))
}

func TestAside_LoadErrorIsNotCached(t *testing.T) {
	mr := useMiniredis(t)
	boom := errors.New("boom")

	var u cachedUser
	err := Aside(context.Background(), UserKey(9), &u, UserTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(UserKey(9)))
}

func TestAside_WithoutRedis(t *testing.T) {
	SetClient(nil)
	called := false
	var u cachedUser
	require.NoError(t, Aside(context.Background(), UserKey(1), &u, UserTTL, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:3", UserKey(3))
	assert.Equal(t, "ws_ticket:abc", WSTicketKey("abc"))
	assert.Equal(t, "blacklist:j1", BlacklistKey("j1"))
}

func TestParseAddr(t *testing.T) {
	opts, err := ParseAddr("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = ParseAddr("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = ParseAddr("  ")
	assert.Error(t, err)
	_, err = ParseAddr("redis://cache:6379/notadb")
	assert.Error(t, err)
}

func TestConnectAndInit(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	_ = c.Close()

	_, err = Connect(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)

	InitRedis(mr.Addr())
	t.Cleanup(func() { SetClient(nil) })
	require.NotNil(t, GetClient())

	InitRedis("127.0.0.1:1")
	assert.Nil(t, GetClient())
}
