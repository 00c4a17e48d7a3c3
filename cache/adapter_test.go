package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sevenday/challenge/server/cache/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespacedCache_PrefixesKeys(t *testing.T) {
	raw, err := NewCache(CacheConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	c := &namespaced{Cache: raw, prefix: "challenge:"}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "profile:name:u1", "Ada", 0))
	v, err := raw.Get(ctx, "challenge:profile:name:u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", v)

	require.NoError(t, c.PushCapped(ctx, "inbox:u1", "n1", 5, 0))
	items, err := raw.LRange(ctx, "challenge:inbox:u1", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, items)

	require.NoError(t, c.Del(ctx, "profile:name:u1", "inbox:u1"))
	_, err = c.Get(ctx, "profile:name:u1")
	assert.True(t, IsNotFound(err))
	items, err = c.LRange(ctx, "inbox:u1", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPubSub_NamespaceStrippedOnReceive(t *testing.T) {
	ps, err := NewPubSub(CacheConfig{KeyPrefix: "challenge:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "leaderboard")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "leaderboard", "refresh"))
	select {
	case msg := <-ch:
		assert.Equal(t, "leaderboard", msg.Channel)
		assert.Equal(t, "refresh", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
}

func TestPubSub_NamespacesAreIsolated(t *testing.T) {
	a, err := NewPubSub(CacheConfig{KeyPrefix: "a:"})
	require.NoError(t, err)
	ctx := context.Background()

	ch, cancel, err := a.Subscribe(ctx, "x")
	require.NoError(t, err)
	defer cancel()
	inner := a.(*pubsubAdapter[*local.LocalMessage]).backend
	require.NoError(t, inner.Publish(ctx, "b:x", "other"))
	require.NoError(t, inner.Publish(ctx, "a:x", "mine"))

	select {
	case msg := <-ch:
		assert.Equal(t, "mine", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
}

func TestNewCache_ClosesCleanly(t *testing.T) {
	c, err := NewCache(CacheConfig{KeyPrefix: "challenge:"})
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
