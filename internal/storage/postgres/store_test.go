package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mashawir/ridebot/internal/domain/moderation"
	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/rating"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/domain/user"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

func TestUserRepo_Upsert(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(int64(10), "sara", "Sara", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Users.Upsert(context.Background(), &user.User{ID: 10, Username: "sara", FirstName: "Sara"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("FROM users WHERE user_id").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := store.Users.GetByID(context.Background(), 10)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUserRepo_SetRole(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("UPDATE users SET user_type").
		WithArgs(int64(10), "captain").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET user_type").
		WithArgs(int64(11), "captain").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := store.Users.SetRole(context.Background(), 10, user.RoleCaptain)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.Users.SetRole(context.Background(), 11, user.RoleCaptain)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRatingRepo_Add(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ratings").
		WithArgs(int64(1), int64(10), int64(20), 4, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("UPDATE users").
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(4.5))
	mock.ExpectCommit()

	avg, err := store.Ratings.Add(context.Background(), &rating.Rating{RideID: 1, RaterID: 10, RatedID: 20, Stars: 4})
	require.NoError(t, err)
	assert.InDelta(t, 4.5, avg, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepo_Add_Duplicate(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ratings").
		WithArgs(int64(1), int64(10), int64(20), 1, nil).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := store.Ratings.Add(context.Background(), &rating.Rating{RideID: 1, RaterID: 10, RatedID: 20, Stars: 1})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyRated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingRepo_Add_OutOfRange(t *testing.T) {
	store, mock := newMock(t)

	_, err := store.Ratings.Add(context.Background(), &rating.Rating{RideID: 1, RaterID: 10, RatedID: 20, Stars: 6})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepo_Replace(t *testing.T) {
	store, mock := newMock(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscriptions SET is_active = FALSE").
		WithArgs(int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO subscriptions").
		WithArgs(int64(20), "captain_weekly", start, end, nil, "cash", nil).
		WillReturnRows(sqlmock.NewRows([]string{"subscription_id"}).AddRow(int64(5)))
	mock.ExpectCommit()

	id, err := store.Subscriptions.Replace(context.Background(), &subscription.Subscription{
		UserID: 20, Plan: subscription.PlanWeekly, StartDate: start, EndDate: end, PaymentMethod: "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepo_Replace_RollsBack(t *testing.T) {
	store, mock := newMock(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subscriptions SET is_active = FALSE").
		WithArgs(int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO subscriptions").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := store.Subscriptions.Replace(context.Background(), &subscription.Subscription{
		UserID: 20, Plan: subscription.PlanWeekly, StartDate: start, EndDate: start.AddDate(0, 0, 7),
	})
	assert.True(t, apperrors.IsStorage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepo_DeactivateExpired(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectExec("UPDATE subscriptions SET is_active = FALSE WHERE is_active AND end_date").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.Subscriptions.DeactivateExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPaymentRepo_CreatePayment(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(int64(9), "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows([]string{"payment_id"}).AddRow(int64(33)))
	mock.ExpectCommit()

	id, err := store.Payments.CreatePayment(context.Background(), &payment.Payment{
		UserID: 20, Type: payment.TypeSubscription, Amount: 50, Method: payment.MethodBank,
		Status: payment.StatusPending, ProofFileID: "file-1",
	}, 9, payment.RequestCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(33), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_CreatePayment_RequestClosed(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(int64(9), "completed").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectQuery("FROM payment_requests").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{
			"request_id", "user_id", "payment_type", "amount", "description", "status",
			"ride_id", "subscription_days", "created_at", "first_name", "username",
		}).AddRow(int64(9), int64(20), "subscription_payment", 50.0, "", "completed", nil, 7, now, "Omar", ""))

	_, err := store.Payments.CreatePayment(context.Background(), &payment.Payment{
		UserID: 20, Type: payment.TypeSubscription, Amount: 50, Method: payment.MethodBank, Status: payment.StatusPending,
	}, 9, payment.RequestCompleted)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotOpen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_RecordPayment_RideAlreadyPaid(t *testing.T) {
	store, mock := newMock(t)
	rideID := int64(7)

	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(int64(10), rideID, nil, "ride_payment", 25.0, "SAR", "cash", "completed", "cash-1", nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"payment_id"}))

	_, err := store.Payments.RecordPayment(context.Background(), &payment.Payment{
		UserID: 10, RideID: &rideID, Type: payment.TypeRide, Amount: 25, Currency: "SAR",
		Method: payment.MethodCash, Status: payment.StatusCompleted, TransactionID: "cash-1",
	})
	assert.ErrorIs(t, err, apperrors.ErrRideAlreadyPaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_CreatePayment_RideAlreadyPaid(t *testing.T) {
	store, mock := newMock(t)
	rideID := int64(7)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payment_requests SET status").
		WithArgs(int64(9), "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := store.Payments.CreatePayment(context.Background(), &payment.Payment{
		UserID: 10, RideID: &rideID, Type: payment.TypeRide, Amount: 25, Method: payment.MethodBank,
		Status: payment.StatusPending, ProofFileID: "file-1",
	}, 9, payment.RequestCompleted)
	assert.ErrorIs(t, err, apperrors.ErrRideAlreadyPaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_RidePaid(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	paid, err := store.Payments.RidePaid(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, paid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_SetStatus(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		exists   bool
		wantErr  error
	}{
		{name: "pending payment", affected: 1},
		{name: "already decided", affected: 0, exists: true, wantErr: apperrors.ErrPaymentNotPending},
		{name: "unknown payment", affected: 0, exists: false, wantErr: apperrors.ErrPaymentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMock(t)

			mock.ExpectExec("UPDATE payments SET payment_status").
				WithArgs(int64(33), "pending", "completed").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.affected == 0 {
				mock.ExpectQuery("SELECT EXISTS").
					WithArgs(int64(33)).
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))
			}

			err := store.Payments.SetStatus(context.Background(), 33, payment.StatusPending, payment.StatusCompleted)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPaymentRepo_Revenue(t *testing.T) {
	store, mock := newMock(t)
	since := time.Now().AddDate(0, 0, -30)

	mock.ExpectQuery("FROM payments").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"payment_type", "payment_method", "payment_status", "count", "sum"}).
			AddRow("ride_payment", "cash", "completed", 2, 60.0).
			AddRow("subscription_payment", "bank", "completed", 1, 50.0).
			AddRow("subscription_payment", "stc", "pending", 1, 150.0).
			AddRow("ride_payment", "cash", "failed", 1, 30.0))

	rev, err := store.Payments.Revenue(context.Background(), since)
	require.NoError(t, err)
	assert.InDelta(t, 110.0, rev.Completed, 1e-9)
	assert.Equal(t, 3, rev.CompletedCount)
	assert.InDelta(t, 150.0, rev.Pending, 1e-9)
	assert.InDelta(t, 60.0, rev.ByType[payment.TypeRide], 1e-9)
	assert.InDelta(t, 50.0, rev.ByMethod[payment.MethodBank], 1e-9)
}

func TestModerationRepo_AddBannedWord_Duplicate(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("INSERT INTO banned_words").
		WithArgs("spam", int64(1)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.Moderation.AddBannedWord(context.Background(), "spam", 1)
	assert.ErrorIs(t, err, apperrors.ErrBannedWordExists)
}

func TestModerationRepo_RemoveBannedWord_Missing(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec("DELETE FROM banned_words").
		WithArgs("spam").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Moderation.RemoveBannedWord(context.Background(), "spam")
	assert.ErrorIs(t, err, apperrors.ErrBannedWordNotFound)
}

func TestModerationRepo_ListDueBroadcasts(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now()
	sent := now.Add(-7 * time.Hour)

	mock.ExpectQuery("FROM scheduled_messages").
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "chat_id", "message_text", "interval_hours", "duration_days",
			"created_by", "is_active", "last_sent", "created_at",
		}).
			AddRow(int64(1), int64(-100), "hello", 6, 2, int64(1), true, nil, now.Add(-time.Hour)).
			AddRow(int64(2), int64(-100), "again", 6, 2, int64(1), true, sent, now.Add(-8*time.Hour)))

	due, err := store.Moderation.ListDueBroadcasts(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Nil(t, due[0].LastSent)
	require.NotNil(t, due[1].LastSent)
	assert.True(t, due[1].IsDue(now))
	assert.IsType(t, &moderation.Broadcast{}, due[0])
}

func TestStatsRepo_Overview(t *testing.T) {
	store, mock := newMock(t)
	now := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	dayStart := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT").
		WithArgs(dayStart, now).
		WillReturnRows(sqlmock.NewRows([]string{
			"users", "clients", "captains", "rides", "pending", "active", "completed", "cancelled",
			"today", "subs", "pending_payments", "revenue",
		}).AddRow(10, 7, 3, 20, 2, 1, 15, 2, 4, 2, 1, 350.0))

	o, err := store.Stats.Overview(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 10, o.TotalUsers)
	assert.Equal(t, 15, o.CompletedRides)
	assert.InDelta(t, 350.0, o.CompletedRevenue, 1e-9)
}
