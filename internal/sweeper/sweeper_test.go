package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/internal/bot"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/service/moderation"
	"github.com/mashawir/ridebot/internal/service/subscriptions"
	"github.com/mashawir/ridebot/internal/storage/memory"
	"github.com/mashawir/ridebot/pkg/logger"
)

type sent struct {
	ChatID   int64
	Text     string
	Keyboard *bot.Keyboard
}

type fakeMessenger struct {
	mu     sync.Mutex
	sent   []sent
	failOn map[int64]bool
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string, kb *bot.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[chatID] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.sent = append(f.sent, sent{ChatID: chatID, Text: text, Keyboard: kb})
	return nil
}

func (f *fakeMessenger) Edit(context.Context, int64, int, string, *bot.Keyboard) error { return nil }
func (f *fakeMessenger) SendPhoto(context.Context, int64, string, string, *bot.Keyboard) error { return nil }
func (f *fakeMessenger) Delete(context.Context, int64, int) error { return nil }
func (f *fakeMessenger) Ban(context.Context, int64, int64) error { return nil }
func (f *fakeMessenger) AnswerCallback(context.Context, string, string) error { return nil }

func TestBroadcastJob(t *testing.T) {
	ctx := context.Background()
	t0 := time.Now()
	store := memory.New()
	mod := moderation.NewService(store.Moderation, moderation.DefaultConfig(), nil, logger.NewNop())

	_, err := mod.Schedule(ctx, -900, "Daily reminder", 24, 7, 1000)
	require.NoError(t, err)
	blocked, err := mod.Schedule(ctx, -901, "Blocked chat", 24, 7, 1000)
	require.NoError(t, err)

	msg := &fakeMessenger{failOn: map[int64]bool{-901: true}}
	job := NewBroadcastJob(mod, msg, logger.NewNop())
	job.now = func() time.Time { return t0.Add(time.Hour) }

	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, msg.sent, 1)
	assert.Equal(t, int64(-900), msg.sent[0].ChatID)
	assert.Equal(t, "Daily reminder", msg.sent[0].Text)

	due, err := mod.Due(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, blocked.ID, due[0].ID)

	// the stamped message comes back after its interval
	due, err = mod.Due(ctx, t0.Add(26*time.Hour))
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestExpiryJob(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Now()

	_, err := store.Subscriptions.Replace(ctx, &subscription.Subscription{
		UserID: 20, Plan: subscription.PlanWeekly,
		StartDate: now.AddDate(0, 0, -8), EndDate: now.AddDate(0, 0, -1),
	})
	require.NoError(t, err)
	_, err = store.Subscriptions.Replace(ctx, &subscription.Subscription{
		UserID: 21, Plan: subscription.PlanMonthly,
		StartDate: now, EndDate: now.AddDate(0, 0, 30),
	})
	require.NoError(t, err)

	subs := subscriptions.NewService(store.Subscriptions, subscriptions.Config{ApprovalDays: 30}, logger.NewNop())
	msg := &fakeMessenger{}
	job := NewExpiryJob(subs, msg, "https://t.me/mashawir_admin", logger.NewNop())

	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, msg.sent, 1)
	assert.Equal(t, int64(20), msg.sent[0].ChatID)
	assert.Equal(t, bot.ExpiredText, msg.sent[0].Text)
	require.NotNil(t, msg.sent[0].Keyboard)
	assert.Equal(t, "https://t.me/mashawir_admin", msg.sent[0].Keyboard.Rows[0][0].URL)

	subscribed, err := subs.IsSubscribed(ctx, 20)
	require.NoError(t, err)
	assert.False(t, subscribed)
	subscribed, err = subs.IsSubscribed(ctx, 21)
	require.NoError(t, err)
	assert.True(t, subscribed)

	// nothing left to expire
	n, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, msg.sent, 1)
}

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) (int, error) {
	j.runs.Add(1)
	return 1, j.err
}

func TestSweeper_RunsAtStartAndStops(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "success"},
		{name: "failing job keeps running", err: errors.New("database is down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &countingJob{err: tt.err}
			ctx, cancel := context.WithCancel(context.Background())

			done := make(chan struct{})
			go func() {
				New(nil, logger.NewNop()).Add(job, 10*time.Millisecond).Run(ctx)
				close(done)
			}()

			require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
			cancel()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("sweeper did not stop")
			}
		})
	}
}

func TestSweeper_LockHeldElsewhere(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, mr.Set("sweeper:counting", "other-instance"))

	job := &countingJob{}
	s := New(nil, logger.NewNop()).WithLocker(NewRedisLocker(client)).Add(job, time.Minute)

	s.runOnce(context.Background(), s.entries[0])
	assert.Zero(t, job.runs.Load())

	mr.Del("sweeper:counting")
	s.runOnce(context.Background(), s.entries[0])
	assert.Equal(t, int32(1), job.runs.Load())
	assert.True(t, mr.Exists("sweeper:counting"))
}

func TestPoolStatsJob(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	n, err := NewPoolStatsJob(nil, client, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = NewPoolStatsJob(nil, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
