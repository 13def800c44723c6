package notifications

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishRoom(context.Background(), "user_1", "payload"))
	stopped, err := n.StartRoomSubscriber(context.Background(), func(string, string) {
		t.Fatal("no messages expected")
	})
	assert.NoError(t, err)
	assert.Nil(t, stopped)
}

func TestRoomNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "user_15", UserRoom(15))
	assert.Equal(t, "society_GreenValley", SocietyRoom("GreenValley"))
	assert.Equal(t, "rooms:user_15", RoomChannel(UserRoom(15)))

	room, ok := roomFromChannel("rooms:society_GreenValley")
	assert.True(t, ok)
	assert.Equal(t, "society_GreenValley", room)

	_, ok = roomFromChannel("notifications:user:1")
	assert.False(t, ok)
	_, ok = roomFromChannel("rooms:")
	assert.False(t, ok)
}

func TestNotifier_RoomSubscriberStopsOnCancel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	rooms := make(chan string, 4)
	stopped, err := n.StartRoomSubscriber(ctx, func(room string, _ string) {
		atomic.AddInt32(&received, 1)
		rooms <- room
	})
	require.NoError(t, err)

	require.NoError(t, n.PublishRoom(context.Background(), "society_GreenValley", "before-cancel"))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "society_GreenValley", <-rooms)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}

	require.NoError(t, n.PublishRoom(context.Background(), "society_GreenValley", "after-cancel"))
	assert.Never(t, func() bool {
		return atomic.LoadInt32(&received) > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_SubscriberRecoversFromPanic(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	_, err = n.StartRoomSubscriber(ctx, func(_ string, payload string) {
		atomic.AddInt32(&calls, 1)
		if payload == "boom" {
			panic("handler failed")
		}
	})
	require.NoError(t, err)

	require.NoError(t, n.PublishRoom(ctx, "user_1", "boom"))
	require.NoError(t, n.PublishRoom(ctx, "user_1", "fine"))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 10*time.Millisecond)
}
