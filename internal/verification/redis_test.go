package verification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return server, client
}

func TestRedisStore(t *testing.T) {
	storeContract(t, func(clock *fakeClock) Store {
		_, client := newTestRedis(t)
		return NewRedisStore(client).WithClock(clock.Now)
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	server, client := newTestRedis(t)
	store := NewRedisStore(client)

	code, err := store.Issue(context.Background(), "a@b.edu", "sub-7")
	require.NoError(t, err)

	require.True(t, server.Exists("verification:a@b.edu"))
	require.Equal(t, code, server.HGet("verification:a@b.edu", "code"))
	require.Equal(t, "sub-7", server.HGet("verification:a@b.edu", "subject_id"))
	require.Equal(t, CodeTTL+redisExpiredGrace, server.TTL("verification:a@b.edu"))
}

func TestRedisStore_ConsumeDeletesKey(t *testing.T) {
	server, client := newTestRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()

	code, err := store.Issue(ctx, "a@b.edu", "sub-1")
	require.NoError(t, err)

	result, err := store.Consume(ctx, "a@b.edu", code)
	require.NoError(t, err)
	require.Equal(t, Valid, result.Outcome)
	require.False(t, server.Exists("verification:a@b.edu"))
}

func TestRedisStore_UnavailableServer(t *testing.T) {
	server, client := newTestRedis(t)
	store := NewRedisStore(client)
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := store.Issue(ctx, "a@b.edu", "sub-1")
	require.Error(t, err)

	_, err = store.Peek(ctx, "a@b.edu", "123456")
	require.Error(t, err)
}
