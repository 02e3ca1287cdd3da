// Package postgres implements the domain repositories on lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/mashawir/ridebot/internal/domain/moderation"
	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/rating"
	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/internal/domain/stats"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/domain/user"
)

const uniqueViolation = "23505"

var (
	_ user.Repository         = (*UserRepo)(nil)
	_ ride.Repository         = (*RideRepo)(nil)
	_ rating.Repository       = (*RatingRepo)(nil)
	_ subscription.Repository = (*SubscriptionRepo)(nil)
	_ payment.Repository      = (*PaymentRepo)(nil)
	_ moderation.Repository   = (*ModerationRepo)(nil)
	_ stats.Repository        = (*StatsRepo)(nil)
)

// Store bundles every repository over one connection pool
type Store struct {
	Users         *UserRepo
	Rides         *RideRepo
	Ratings       *RatingRepo
	Subscriptions *SubscriptionRepo
	Payments      *PaymentRepo
	Moderation    *ModerationRepo
	Stats         *StatsRepo
}

// New creates all repositories
func New(db *sql.DB) *Store {
	return &Store{
		Users:         NewUserRepo(db),
		Rides:         NewRideRepo(db),
		Ratings:       NewRatingRepo(db),
		Subscriptions: NewSubscriptionRepo(db),
		Payments:      NewPaymentRepo(db),
		Moderation:    NewModerationRepo(db),
		Stats:         NewStatsRepo(db),
	}
}

// withTx runs fn inside a transaction, committing only when fn succeeds
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func float64Ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

type scanner interface {
	Scan(dest ...interface{}) error
}
