package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollsite/backend/internal/testutil"
)

func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("save and load", func(t *testing.T) {
		s := New(time.Hour)
		s.Set(AuthUserIDKey, "7")
		require.NoError(t, store.Save(ctx, s))

		got, err := store.Load(ctx, s.ID)
		require.NoError(t, err)
		v, ok := got.Get(AuthUserIDKey)
		assert.True(t, ok)
		assert.Equal(t, "7", v)
		assert.False(t, got.IsNew())
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("delete", func(t *testing.T) {
		s := New(time.Hour)
		require.NoError(t, store.Save(ctx, s))
		require.NoError(t, store.Delete(ctx, s.ID))
		_, err := store.Load(ctx, s.ID)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("expired session is not saved", func(t *testing.T) {
		s := New(time.Hour)
		s.Expiry = time.Now().Add(-time.Second)
		require.NoError(t, store.Save(ctx, s))
		_, err := store.Load(ctx, s.ID)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("loaded values are a copy", func(t *testing.T) {
		s := New(time.Hour)
		s.Set("k", "v")
		require.NoError(t, store.Save(ctx, s))
		s.Set("k", "changed")

		got, err := store.Load(ctx, s.ID)
		require.NoError(t, err)
		v, _ := got.Get("k")
		assert.Equal(t, "v", v)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore(time.Minute))
}

func TestRedisStore(t *testing.T) {
	addr := testutil.RedisAddr(t)
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	runStoreSuite(t, NewRedisStore(client))
}
