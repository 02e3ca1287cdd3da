package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/domain/user"
	"github.com/mashawir/ridebot/internal/storage/memory"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
)

func testConfig() Config {
	return Config{WeeklyPrice: 50, WeeklyDays: 7, MonthlyPrice: 150, MonthlyDays: 30, ApprovalDays: 30, Currency: "SAR"}
}

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Users.Upsert(context.Background(), &user.User{ID: 20, FirstName: "Omar"}))

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store.Subscriptions, testConfig(), logger.NewNop())
	svc.now = func() time.Time { return clock }
	return svc, &clock
}

func TestService_IsSubscribed(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	ok, err := svc.IsSubscribed(ctx, 20)
	require.NoError(t, err)
	assert.False(t, ok)

	sub, err := svc.Subscribe(ctx, 20, 7, nil, "cash", nil)
	require.NoError(t, err)
	assert.Equal(t, subscription.PlanWeekly, sub.Plan)
	assert.Equal(t, clock.AddDate(0, 0, 7), sub.EndDate)

	ok, err = svc.IsSubscribed(ctx, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	*clock = clock.AddDate(0, 0, 8)
	ok, err = svc.IsSubscribed(ctx, 20)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestService_SubscribeReplaces tests that renewing leaves one active row, the newest
func TestService_SubscribeReplaces(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, 20, 7, nil, "cash", nil)
	require.NoError(t, err)
	newest, err := svc.Subscribe(ctx, 20, 30, nil, "bank", nil)
	require.NoError(t, err)

	active, err := svc.Active(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, newest.ID, active.ID)
	assert.Equal(t, subscription.PlanMonthly, active.Plan)

	count, err := svc.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_Expire(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Subscribe(ctx, 20, 7, nil, "cash", nil)
	require.NoError(t, err)

	expired, err := svc.Expire(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)

	*clock = clock.AddDate(0, 0, 7)
	expired, err = svc.Expire(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, int64(20), expired[0].UserID)

	expired, err = svc.Expire(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestService_Offer(t *testing.T) {
	svc, _ := newTestService(t)

	offer, err := svc.Offer(subscription.PlanMonthly)
	require.NoError(t, err)
	assert.Equal(t, 150.0, offer.Price)
	assert.Equal(t, 30, offer.Days)

	_, err = svc.Offer(subscription.Plan("yearly"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidPlan)

	_, err = svc.Subscribe(context.Background(), 20, 0, nil, "cash", nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeBadRequest))
}
