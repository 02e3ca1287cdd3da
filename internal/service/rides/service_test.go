package rides

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/internal/activity"
	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/internal/domain/user"
	"github.com/mashawir/ridebot/internal/service/pricing"
	"github.com/mashawir/ridebot/internal/storage/memory"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
)

const (
	clientID  int64 = 10
	captainID int64 = 20
)

func newTestService(t *testing.T) (*Service, *memory.Store, *activity.Recorder) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Users.Upsert(ctx, &user.User{ID: clientID, FirstName: "Sara", Role: user.RoleClient}))
	require.NoError(t, store.Users.Upsert(ctx, &user.User{ID: captainID, FirstName: "Omar", Role: user.RoleCaptain}))

	rec := &activity.Recorder{}
	prices := pricing.NewService(pricing.Config{BaseFare: 10, PerKMRate: 2, Currency: "SAR"})
	return NewService(store.Rides, store.Ratings, prices, rec, logger.NewNop()), store, rec
}

// TestService_RequestRoundTrip tests that a created ride reads back as pending and unassigned
func TestService_RequestRoundTrip(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	created, err := svc.Request(ctx, clientID, ride.Location{Description: "A"}, ride.Location{Description: "B"})
	require.NoError(t, err)
	assert.Nil(t, created.Price)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Pickup.Description)
	assert.Equal(t, "B", got.Destination.Description)
	assert.Equal(t, ride.StatusPending, got.Status)
	assert.Nil(t, got.CaptainID)
	assert.Equal(t, []activity.Kind{activity.RideCreated}, rec.Kinds())
}

// TestService_RequestPinnedGetsEstimate tests fare estimation from coordinates
func TestService_RequestPinnedGetsEstimate(t *testing.T) {
	svc, _, _ := newTestService(t)

	pickup := ride.NewPointLocation(21.4225, 39.8262)
	dest := ride.NewPointLocation(21.5433, 39.1728)
	created, err := svc.Request(context.Background(), clientID, pickup, dest)
	require.NoError(t, err)
	require.NotNil(t, created.Price)
	assert.Greater(t, *created.Price, 100.0)
}

func TestService_RequestEmptyLocation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Request(context.Background(), clientID, ride.Location{}, ride.Location{Description: "B"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidLocation)
}

// TestService_FullLifecycle tests accept, start, complete and rate
func TestService_FullLifecycle(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()

	created, err := svc.Request(ctx, clientID, ride.Location{Description: "Gate 3"}, ride.Location{Description: "Terminal B"})
	require.NoError(t, err)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	accepted, err := svc.Accept(ctx, created.ID, captainID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusAccepted, accepted.Status)
	assert.Equal(t, "Omar", accepted.CaptainName)

	_, err = svc.Rate(ctx, created.ID, clientID, captainID, 5)
	assert.ErrorIs(t, err, apperrors.ErrRideUnavailable)

	_, err = svc.Start(ctx, created.ID, captainID)
	require.NoError(t, err)
	done, err := svc.Complete(ctx, created.ID, captainID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusCompleted, done.Status)

	avg, err := svc.Rate(ctx, created.ID, clientID, captainID, 4)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, avg, 1e-9)

	captain, err := store.Users.GetByID(ctx, captainID)
	require.NoError(t, err)
	assert.Equal(t, 1, captain.TotalRides)

	assert.Equal(t, []activity.Kind{
		activity.RideCreated, activity.RideAccepted, activity.RideStarted, activity.RideCompleted,
	}, rec.Kinds())
}

func TestService_WrongEdges(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Request(ctx, clientID, ride.Location{Description: "A"}, ride.Location{Description: "B"})
	require.NoError(t, err)

	_, err = svc.Start(ctx, created.ID, captainID)
	assert.ErrorIs(t, err, apperrors.ErrRideUnavailable)
	_, err = svc.Complete(ctx, created.ID, captainID)
	assert.ErrorIs(t, err, apperrors.ErrRideUnavailable)
	_, err = svc.Accept(ctx, 999, captainID)
	assert.ErrorIs(t, err, apperrors.ErrRideNotFound)

	cancelled, err := svc.Cancel(ctx, created.ID, clientID)
	require.NoError(t, err)
	assert.Equal(t, ride.StatusCancelled, cancelled.Status)
	_, err = svc.Accept(ctx, created.ID, captainID)
	assert.ErrorIs(t, err, apperrors.ErrRideUnavailable)
}

func TestService_RateRejectsOutsiders(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Request(ctx, clientID, ride.Location{Description: "A"}, ride.Location{Description: "B"})
	require.NoError(t, err)
	_, err = svc.Accept(ctx, created.ID, captainID)
	require.NoError(t, err)
	_, err = svc.Start(ctx, created.ID, captainID)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, created.ID, captainID)
	require.NoError(t, err)

	_, err = svc.Rate(ctx, created.ID, 999, captainID, 5)
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
	_, err = svc.Rate(ctx, created.ID, clientID, clientID, 5)
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
	_, err = svc.Rate(ctx, created.ID, clientID, captainID, 9)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRating)
}

func TestService_RateOncePerRide(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Request(ctx, clientID, ride.Location{Description: "A"}, ride.Location{Description: "B"})
	require.NoError(t, err)
	_, err = svc.Accept(ctx, created.ID, captainID)
	require.NoError(t, err)
	_, err = svc.Start(ctx, created.ID, captainID)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, created.ID, captainID)
	require.NoError(t, err)

	avg, err := svc.Rate(ctx, created.ID, clientID, captainID, 5)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, avg, 1e-9)

	for range 2 {
		_, err = svc.Rate(ctx, created.ID, clientID, captainID, 1)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyRated)
	}

	captain, err := store.Users.GetByID(ctx, captainID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, captain.Rating, 1e-9)

	_, err = svc.Rate(ctx, created.ID, captainID, clientID, 4)
	assert.NoError(t, err)
}
