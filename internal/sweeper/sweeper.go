// Package sweeper runs the periodic background jobs: scheduled broadcasts and subscription expiry.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mashawir/ridebot/pkg/cache"
	"github.com/mashawir/ridebot/pkg/logger"
	"github.com/mashawir/ridebot/pkg/monitoring"
)

const (
	DefaultInterval = 600 * time.Second
	runTimeout      = time.Minute
)

// Job is one unit of periodic work. Run reports how many items it processed.
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// Locker keeps two replicas from running the same job iteration
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker takes a short lived SET NX lock per job iteration
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return cache.SetNX(ctx, l.client, key, time.Now().Unix(), ttl)
}

type entry struct {
	job      Job
	interval time.Duration
}

// Sweeper schedules each job on its own ticker
type Sweeper struct {
	entries []entry
	locker  Locker
	nr      *monitoring.NewRelicApp
	logger  *logger.Logger
}

func New(nr *monitoring.NewRelicApp, log *logger.Logger) *Sweeper {
	return &Sweeper{nr: nr, logger: log}
}

// WithLocker enables per iteration locking
func (s *Sweeper) WithLocker(l Locker) *Sweeper {
	s.locker = l
	return s
}

// Add registers a job. A non-positive interval falls back to DefaultInterval.
func (s *Sweeper) Add(job Job, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s.entries = append(s.entries, entry{job: job, interval: interval})
	return s
}

// Run starts every job and blocks until ctx is cancelled and all jobs have returned
func (s *Sweeper) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, e entry) {
	s.logger.Info("Sweeper job started",
		logger.String("job", e.job.Name()),
		logger.Duration("interval", e.interval),
	)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.runOnce(ctx, e)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper job stopped", logger.String("job", e.job.Name()))
			return
		case <-ticker.C:
			s.runOnce(ctx, e)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context, e entry) {
	name := e.job.Name()
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	if s.locker != nil {
		ok, err := s.locker.Acquire(runCtx, fmt.Sprintf("sweeper:%s", name), e.interval/2)
		if err != nil {
			s.logger.Warn("Sweeper lock unavailable, running anyway", logger.String("job", name), logger.Err(err))
		} else if !ok {
			s.logger.Debug("Sweeper iteration held by another instance", logger.String("job", name))
			return
		}
	}

	n, err := e.job.Run(runCtx)
	if err != nil {
		s.logger.Error("Sweeper iteration failed", logger.String("job", name), logger.Err(err))
		return
	}
	if n > 0 {
		s.logger.Info("Sweeper iteration done", logger.String("job", name), logger.Int("processed", n))
	}
	s.nr.RecordSweep(name, n)
}
