package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/mashawir/ridebot/internal/domain/stats"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

type StatsRepo struct {
	db *sql.DB
}

func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Overview counts users, rides, subscriptions and payments in one round trip
func (r *StatsRepo) Overview(ctx context.Context, now time.Time) (*stats.Overview, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var o stats.Overview
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE user_type = 'client'),
			(SELECT COUNT(*) FROM users WHERE user_type = 'captain'),
			(SELECT COUNT(*) FROM rides),
			(SELECT COUNT(*) FROM rides WHERE status = 'pending'),
			(SELECT COUNT(*) FROM rides WHERE status IN ('accepted', 'in_progress')),
			(SELECT COUNT(*) FROM rides WHERE status = 'completed'),
			(SELECT COUNT(*) FROM rides WHERE status = 'cancelled'),
			(SELECT COUNT(*) FROM rides WHERE created_at >= $1),
			(SELECT COUNT(*) FROM subscriptions WHERE is_active AND end_date > $2),
			(SELECT COUNT(*) FROM payments WHERE payment_status = 'pending'),
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE payment_status = 'completed')
	`, dayStart, now).Scan(
		&o.TotalUsers, &o.Clients, &o.Captains,
		&o.TotalRides, &o.PendingRides, &o.ActiveRides, &o.CompletedRides, &o.CancelledRides, &o.RidesToday,
		&o.ActiveSubscriptions, &o.PendingPayments, &o.CompletedRevenue,
	)
	if err != nil {
		return nil, apperrors.Storage("stats overview", err)
	}
	return &o, nil
}
