package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mashawir/ridebot/pkg/cache"
	"github.com/mashawir/ridebot/pkg/logger"
)

const keyPrefix = "session:"

// RedisStore keeps sessions as JSON values with a TTL so abandoned dialogs expire
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, logger: log}
}

func (r *RedisStore) Get(ctx context.Context, userID int64) (State, error) {
	raw, err := cache.Get(ctx, r.client, key(userID))
	if errors.Is(err, cache.ErrMiss) {
		return Idle(), nil
	}
	if err != nil {
		return Idle(), err
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		// a corrupt entry must not wedge the user in a dialog
		r.logger.Warn("Discarding unreadable session", logger.UserID(userID), logger.Err(err))
		_ = cache.Delete(ctx, r.client, key(userID))
		return Idle(), nil
	}
	return st, nil
}

func (r *RedisStore) Set(ctx context.Context, userID int64, state State) error {
	if state.IsIdle() {
		return r.Clear(ctx, userID)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return cache.SetWithExpiry(ctx, r.client, key(userID), data, r.ttl)
}

func (r *RedisStore) Clear(ctx context.Context, userID int64) error {
	return cache.Delete(ctx, r.client, key(userID))
}

func key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}
