package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"murmur/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case msg := <-c.Send:
		var env map[string]any
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestNotifier_LocalDelivery(t *testing.T) {
	h := NewHub()
	c, err := h.Register(nil)
	require.NoError(t, err)

	n := NewNotifier(nil, h, 8)
	n.Start()
	t.Cleanup(func() { _ = n.Stop(context.Background()) })
	assert.False(t, n.Distributed())

	n.Emit(EventNewTweet, map[string]any{"id": 1, "content": "hi"})

	env := receive(t, c)
	assert.Equal(t, EventNewTweet, env["type"])
	assert.Equal(t, "hi", env["payload"].(map[string]any)["content"])
	ts, err := time.Parse(time.RFC3339, env["timestamp"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestNotifier_DropsWhenQueueFull(t *testing.T) {
	h := NewHub()
	n := NewNotifier(nil, h, 1)

	before := testutil.ToFloat64(observability.RealtimeEventsDropped.WithLabelValues(EventTweetLiked))
	n.Emit(EventTweetLiked, 1)
	n.Emit(EventTweetLiked, 2)
	after := testutil.ToFloat64(observability.RealtimeEventsDropped.WithLabelValues(EventTweetLiked))

	assert.Equal(t, 1.0, after-before)
}

func TestNotifier_StopDrainsQueue(t *testing.T) {
	h := NewHub()
	c, err := h.Register(nil)
	require.NoError(t, err)

	n := NewNotifier(nil, h, 8)
	n.Emit(EventUserFollowed, 1)
	n.Emit(EventUserUnfollowed, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Stop(ctx))

	assert.Equal(t, EventUserFollowed, receive(t, c)["type"])
	assert.Equal(t, EventUserUnfollowed, receive(t, c)["type"])

	// Emitting after Stop is a counted no-op.
	assert.NotPanics(t, func() { n.Emit(EventNewTweet, nil) })
}

func TestNotifier_RedisFanOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return rdb
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hubA, hubB := NewHub(), NewHub()
	clientA, err := hubA.Register(nil)
	require.NoError(t, err)
	clientB, err := hubB.Register(nil)
	require.NoError(t, err)

	notifierA := NewNotifier(newClient(), hubA, 8)
	notifierB := NewNotifier(newClient(), hubB, 8)
	require.NoError(t, hubA.StartWiring(ctx, notifierA))
	require.NoError(t, hubB.StartWiring(ctx, notifierB))
	notifierA.Start()
	t.Cleanup(func() { _ = notifierA.Stop(context.Background()) })

	notifierA.Emit(EventTweetCommented, map[string]any{"id": 9})

	assert.Equal(t, EventTweetCommented, receive(t, clientA)["type"])
	assert.Equal(t, EventTweetCommented, receive(t, clientB)["type"])
}

func TestNotifier_DeliversLocallyWhenWiringFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHub()
	c, err := h.Register(nil)
	require.NoError(t, err)
	n := NewNotifier(rdb, h, 8)

	mr.Close()
	require.Error(t, h.StartWiring(ctx, n))
	assert.False(t, n.Wired())

	// Redis comes back, but nothing subscribed on behalf of this hub.
	require.NoError(t, mr.Restart())
	n.Start()
	t.Cleanup(func() { _ = n.Stop(context.Background()) })

	n.Emit(EventNewTweet, map[string]any{"id": 1})
	assert.Equal(t, EventNewTweet, receive(t, c)["type"])
}

func TestNotifier_RetryWiringResumesFanOut(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = rdb.Close() })
		return rdb
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hubA, hubB := NewHub(), NewHub()
	clientA, err := hubA.Register(nil)
	require.NoError(t, err)
	notifierA := NewNotifier(newClient(), hubA, 8)
	notifierB := NewNotifier(newClient(), hubB, 8)

	mr.Close()
	require.Error(t, hubA.StartWiring(ctx, notifierA))
	hubA.RetryWiring(ctx, notifierA, 20*time.Millisecond)
	require.NoError(t, mr.Restart())

	require.Eventually(t, notifierA.Wired, 3*time.Second, 20*time.Millisecond)

	// An event from another instance now reaches this hub through Redis.
	notifierB.Start()
	t.Cleanup(func() { _ = notifierB.Stop(context.Background()) })
	notifierB.Emit(EventUserFollowed, map[string]any{"followerId": 1})
	assert.Equal(t, EventUserFollowed, receive(t, clientA)["type"])
}

func TestNotifier_WiredSkipsDirectDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHub()
	c, err := h.Register(nil)
	require.NoError(t, err)
	n := NewNotifier(rdb, h, 8)
	require.NoError(t, h.StartWiring(ctx, n))
	require.True(t, n.Wired())
	n.Start()
	t.Cleanup(func() { _ = n.Stop(context.Background()) })

	n.Emit(EventTweetLiked, map[string]any{"id": 2})
	assert.Equal(t, EventTweetLiked, receive(t, c)["type"])

	select {
	case extra := <-c.Send:
		t.Fatalf("event delivered twice: %s", extra)
	case <-time.After(200 * time.Millisecond):
	}
}
