package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/pkg/cache"
	"github.com/mashawir/ridebot/pkg/logger"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := cache.NewRedisClient(context.Background(), cache.Config{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close(client) })
	return NewRedisStore(client, ttl, logger.NewNop()), mr
}

func TestStores_RoundTrip(t *testing.T) {
	redisStore, _ := newRedisStore(t, time.Hour)
	stores := map[string]Store{
		"memory": NewMemoryStore(time.Hour),
		"redis":  redisStore,
	}

	pickup := ride.NewPointLocation(21.42, 39.82)
	states := []State{
		AwaitingPickup(),
		AwaitingDestination(pickup),
		AwaitingFormResponse(FormAds),
		AwaitingPaymentProof(12, payment.MethodSTC),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := store.Get(ctx, 1)
			require.NoError(t, err)
			assert.True(t, got.IsIdle())

			for _, st := range states {
				require.NoError(t, store.Set(ctx, 1, st))
				got, err := store.Get(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, st, got)
			}

			require.NoError(t, store.Set(ctx, 1, Idle()))
			got, err = store.Get(ctx, 1)
			require.NoError(t, err)
			assert.True(t, got.IsIdle())

			require.NoError(t, store.Set(ctx, 1, AwaitingPickup()))
			require.NoError(t, store.Clear(ctx, 1))
			got, err = store.Get(ctx, 1)
			require.NoError(t, err)
			assert.True(t, got.IsIdle())
		})
	}
}

func TestRedisStore_Expires(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, 5, AwaitingPickup()))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, got.IsIdle())
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	require.NoError(t, mr.Set("session:9", "{not json"))

	got, err := store.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, got.IsIdle())
	assert.False(t, mr.Exists("session:9"))
}

func TestMemoryStore_Expires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, 3, AwaitingFormResponse(FormAds)))
	clock = clock.Add(30 * time.Second)
	got, err := store.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingFormResponse, got.Step)

	clock = clock.Add(time.Minute)
	got, err = store.Get(ctx, 3)
	require.NoError(t, err)
	assert.True(t, got.IsIdle())
}
