package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mashawir/ridebot/internal/domain/subscription"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

const subscriptionSelect = `
	SELECT s.subscription_id, s.user_id, s.subscription_type, s.start_date, s.end_date, s.is_active,
		s.payment_amount, COALESCE(s.payment_method, ''), s.created_by,
		COALESCE(u.username, ''), COALESCE(u.first_name, '')
	FROM subscriptions s
	LEFT JOIN users u ON u.user_id = s.user_id`

type SubscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// Replace deactivates the user's current rows and inserts the new one atomically
func (r *SubscriptionRepo) Replace(ctx context.Context, s *subscription.Subscription) (int64, error) {
	var id int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET is_active = FALSE WHERE user_id = $1 AND is_active`, s.UserID); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO subscriptions (
				user_id, subscription_type, start_date, end_date, is_active,
				payment_amount, payment_method, created_by
			) VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7)
			RETURNING subscription_id
		`, s.UserID, string(s.Plan), s.StartDate, s.EndDate,
			nullFloat64(s.PaymentAmount), nullString(s.PaymentMethod), nullInt64(s.CreatedBy),
		).Scan(&id)
	})
	if err != nil {
		return 0, apperrors.Storage("replace subscription", err)
	}
	return id, nil
}

func (r *SubscriptionRepo) GetActive(ctx context.Context, userID int64, now time.Time) (*subscription.Subscription, error) {
	row := r.db.QueryRowContext(ctx, subscriptionSelect+`
		WHERE s.user_id = $1 AND s.is_active AND s.end_date > $2
		ORDER BY s.end_date DESC LIMIT 1
	`, userID, now)
	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, apperrors.Storage("get subscription", err)
	}
	return s, nil
}

func (r *SubscriptionRepo) ListExpired(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, subscriptionSelect+`
		WHERE s.is_active AND s.end_date <= $1
		ORDER BY s.end_date
	`, now)
	if err != nil {
		return nil, apperrors.Storage("list expired subscriptions", err)
	}
	defer rows.Close()

	var subs []*subscription.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, apperrors.Storage("scan subscription", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("list expired subscriptions", err)
	}
	return subs, nil
}

func (r *SubscriptionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET is_active = FALSE WHERE is_active AND end_date <= $1`, now)
	if err != nil {
		return 0, apperrors.Storage("deactivate subscriptions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Storage("deactivate subscriptions", err)
	}
	return n, nil
}

func (r *SubscriptionRepo) CountActive(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE is_active AND end_date > $1`, now).Scan(&n)
	if err != nil {
		return 0, apperrors.Storage("count subscriptions", err)
	}
	return n, nil
}

func scanSubscription(sc scanner) (*subscription.Subscription, error) {
	var (
		s         subscription.Subscription
		plan      string
		amount    sql.NullFloat64
		createdBy sql.NullInt64
	)
	if err := sc.Scan(&s.ID, &s.UserID, &plan, &s.StartDate, &s.EndDate, &s.IsActive,
		&amount, &s.PaymentMethod, &createdBy, &s.Username, &s.FirstName); err != nil {
		return nil, err
	}
	s.Plan = subscription.Plan(plan)
	s.PaymentAmount = float64Ptr(amount)
	s.CreatedBy = int64Ptr(createdBy)
	return &s, nil
}
