package moderation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/internal/storage/memory"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
)

func newTestService(t *testing.T, words ...string) *Service {
	t.Helper()
	store := memory.New(memory.WithBannedWords(words...))
	svc := NewService(store.Moderation, DefaultConfig(), nil, logger.NewNop())
	require.NoError(t, svc.Reload(context.Background()))
	return svc
}

func TestService_Check(t *testing.T) {
	svc := newTestService(t, "مسيار")

	tests := []struct {
		name    string
		text    string
		flagged bool
	}{
		{name: "clean", text: "anyone going to the airport?", flagged: false},
		{name: "banned word", text: "ابحث عن مسيار", flagged: true},
		{name: "link", text: "check HTTPS://example.com", flagged: true},
		{name: "telegram link", text: "join t.me/somegroup", flagged: true},
		{name: "promo word", text: "سيارة للبيع", flagged: true},
		{name: "empty", text: "", flagged: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.flagged, svc.Check(tt.text).Flagged)
		})
	}
}

// TestService_AddRemoveWord tests that the cache follows the store
func TestService_AddRemoveWord(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.False(t, svc.Check("buy cheapstuff now").Flagged)

	word, err := svc.AddWord(ctx, "  CheapStuff ", 1)
	require.NoError(t, err)
	assert.Equal(t, "cheapstuff", word)
	assert.True(t, svc.Check("buy CHEAPSTUFF now").Flagged)

	_, err = svc.AddWord(ctx, "cheapstuff", 1)
	assert.ErrorIs(t, err, apperrors.ErrBannedWordExists)

	_, err = svc.RemoveWord(ctx, "cheapstuff")
	require.NoError(t, err)
	assert.False(t, svc.Check("buy cheapstuff now").Flagged)
	assert.Empty(t, svc.Words())

	_, err = svc.RemoveWord(ctx, "cheapstuff")
	assert.ErrorIs(t, err, apperrors.ErrBannedWordNotFound)
}

// TestService_WarnBansOnceAtLimit tests that only the third warning asks for a ban
func TestService_WarnBansOnceAtLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var bans []int
	for i := 1; i <= 5; i++ {
		res, err := svc.Warn(ctx, 42, "banned word", nil)
		require.NoError(t, err)
		assert.Equal(t, i, res.Count)
		if res.Ban {
			bans = append(bans, i)
		}
	}
	assert.Equal(t, []int{3}, bans)
}

func TestService_WarnBanRetriedAfterRelease(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := svc.Warn(ctx, 42, "spam", nil)
		require.NoError(t, err)
	}
	svc.ReleaseBan(42)

	res, err := svc.Warn(ctx, 42, "spam", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
	assert.True(t, res.Ban)

	res, err = svc.Warn(ctx, 42, "spam", nil)
	require.NoError(t, err)
	assert.False(t, res.Ban)
}

func TestService_WarnConcurrentClaimsOneBan(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		bans atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Warn(ctx, 42, "spam", nil)
			if assert.NoError(t, err) && res.Ban {
				bans.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), bans.Load())
}

func TestService_WarnWindow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	_, err := svc.Warn(ctx, 7, "spam", nil)
	require.NoError(t, err)
	_, err = svc.Warn(ctx, 7, "spam", nil)
	require.NoError(t, err)

	clock = clock.AddDate(0, 0, 31)
	res, err := svc.Warn(ctx, 7, "spam", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.False(t, res.Ban)
}

func TestService_ScheduleAndDue(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	_, err := svc.Schedule(ctx, -100, "hello", 0, 1, 1)
	assert.Error(t, err)
	_, err = svc.Schedule(ctx, -100, "   ", 2, 1, 1)
	assert.Error(t, err)

	b, err := svc.Schedule(ctx, -100, "Daily reminder", 6, 2, 1)
	require.NoError(t, err)

	due, err := svc.Due(ctx, start)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, b.ID, due[0].ID)

	require.NoError(t, svc.MarkSent(ctx, b.ID, start))

	due, err = svc.Due(ctx, start.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = svc.Due(ctx, start.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Len(t, due, 1)

	due, err = svc.Due(ctx, start.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due, "expired after duration")
}
