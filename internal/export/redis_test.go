package export

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisPusher(t *testing.T, mr *miniredis.Miniredis, cfg RedisConfig, iface string) Pusher {
	t.Helper()

	p, err := NewPusher(testLog(), PushConfig{
		Endpoint: "redis://" + mr.Addr(),
		Redis:    cfg,
	}, iface)
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close() })

	return p
}

func TestRedisPusher_ListMode(t *testing.T) {
	mr := miniredis.RunT(t)
	p := newRedisPusher(t, mr, RedisConfig{Mode: RedisModeList, Key: "ts:eth0"}, "eth0")

	ctx := context.Background()
	require.NoError(t, p.Push(ctx, []byte("a v=1 1\n")))
	require.NoError(t, p.Push(ctx, []byte("b v=2 2\n")))
	require.NoError(t, p.Push(ctx, nil))

	list, err := mr.List("ts:eth0")
	require.NoError(t, err)
	assert.Equal(t, []string{"a v=1 1\n", "b v=2 2\n"}, list)
	assert.False(t, mr.Exists("tsexporter:eth0"))
}

func TestRedisPusher_StreamMode(t *testing.T) {
	mr := miniredis.RunT(t)
	p := newRedisPusher(t, mr, RedisConfig{}, "eth1")

	ctx := context.Background()
	require.NoError(t, p.Push(ctx, []byte("a v=1 1\n")))
	require.NoError(t, p.Push(ctx, []byte("b v=2 2\n")))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	entries, err := client.XRange(ctx, "tsexporter:eth1", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "eth1", entries[0].Values["interface"])
	assert.Equal(t, "a v=1 1\n", entries[0].Values["payload"])
	assert.Equal(t, "b v=2 2\n", entries[1].Values["payload"])
}

func TestRedisPusher_StreamMaxLen(t *testing.T) {
	mr := miniredis.RunT(t)
	p := newRedisPusher(t, mr, RedisConfig{Key: "ts", MaxLen: 2}, "eth0")

	ctx := context.Background()
	for _, blob := range []string{"a\n", "b\n", "c\n"} {
		require.NoError(t, p.Push(ctx, []byte(blob)))
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	entries, err := client.XRange(ctx, "ts", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "b\n", entries[0].Values["payload"])
	assert.Equal(t, "c\n", entries[1].Values["payload"])
}

func TestRedisPusher_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	p := newRedisPusher(t, mr, RedisConfig{Mode: RedisModeList}, "eth0")

	mr.Close()

	err := p.Push(context.Background(), []byte("lost\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis list tsexporter:eth0")
}
