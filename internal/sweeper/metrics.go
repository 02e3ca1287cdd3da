package sweeper

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/mashawir/ridebot/pkg/cache"
	"github.com/mashawir/ridebot/pkg/database"
	"github.com/mashawir/ridebot/pkg/monitoring"
)

// PoolStatsJob reports connection pool gauges to New Relic. Either pool may be nil.
type PoolStatsJob struct {
	db    *sql.DB
	redis *redis.Client
	nr    *monitoring.NewRelicApp
}

func NewPoolStatsJob(db *sql.DB, redisClient *redis.Client, nr *monitoring.NewRelicApp) *PoolStatsJob {
	return &PoolStatsJob{db: db, redis: redisClient, nr: nr}
}

func (j *PoolStatsJob) Name() string { return "pool_stats" }

func (j *PoolStatsJob) Run(context.Context) (int, error) {
	n := 0
	if j.db != nil {
		j.nr.RecordDatabasePoolStats(database.PoolStats(j.db))
		n++
	}
	if j.redis != nil {
		j.nr.RecordRedisPoolStats(cache.GetClientStats(j.redis))
		n++
	}
	return n, nil
}
