package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mashawir/ridebot/internal/domain/payment"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

const requestSelect = `
	SELECT pr.request_id, pr.user_id, pr.payment_type, pr.amount, COALESCE(pr.description, ''),
		pr.status, pr.ride_id, pr.subscription_days, pr.created_at,
		COALESCE(u.first_name, ''), COALESCE(u.username, '')
	FROM payment_requests pr
	LEFT JOIN users u ON u.user_id = pr.user_id`

const paymentSelect = `
	SELECT p.payment_id, p.user_id, p.ride_id, p.subscription_id, p.payment_type, p.amount,
		p.currency, p.payment_method, p.payment_status, COALESCE(p.transaction_id, ''),
		COALESCE(p.payment_proof_url, ''), COALESCE(p.notes, ''), p.created_at, p.updated_at,
		COALESCE(u.first_name, ''), COALESCE(u.username, '')
	FROM payments p
	LEFT JOIN users u ON u.user_id = p.user_id`

// paymentInsert writes no row when the ride already has a pending or completed payment
const paymentInsert = `
	INSERT INTO payments (
		user_id, ride_id, subscription_id, payment_type, amount, currency,
		payment_method, payment_status, transaction_id, payment_proof_url, notes
	)
	SELECT $1::bigint, $2::bigint, $3::bigint, $4::text, $5::float8, $6::text,
		$7::text, $8::text, $9::text, $10::text, $11::text
	WHERE $2::bigint IS NULL OR NOT EXISTS (
		SELECT 1 FROM payments WHERE ride_id = $2::bigint AND payment_status IN ('pending', 'completed')
	)
	RETURNING payment_id`

type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

func (r *PaymentRepo) CreateRequest(ctx context.Context, req *payment.Request) (int64, error) {
	var days sql.NullInt64
	if req.SubscriptionDays != nil {
		days = sql.NullInt64{Int64: int64(*req.SubscriptionDays), Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO payment_requests (user_id, payment_type, amount, description, status, ride_id, subscription_days)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6)
		RETURNING request_id
	`, req.UserID, string(req.Type), req.Amount, nullString(req.Description), nullInt64(req.RideID), days).Scan(&id)
	if err != nil {
		return 0, apperrors.Storage("create payment request", err)
	}
	return id, nil
}

func (r *PaymentRepo) GetRequest(ctx context.Context, id int64) (*payment.Request, error) {
	var (
		req          payment.Request
		typ, status  string
		rideID, days sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, requestSelect+` WHERE pr.request_id = $1`, id).Scan(
		&req.ID, &req.UserID, &typ, &req.Amount, &req.Description,
		&status, &rideID, &days, &req.CreatedAt, &req.FirstName, &req.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrPaymentRequestNotFound
	}
	if err != nil {
		return nil, apperrors.Storage("get payment request", err)
	}

	req.Type = payment.Type(typ)
	req.Status = payment.RequestStatus(status)
	req.RideID = int64Ptr(rideID)
	if days.Valid {
		d := int(days.Int64)
		req.SubscriptionDays = &d
	}
	return &req, nil
}

func (r *PaymentRepo) SetRequestStatus(ctx context.Context, id int64, status payment.RequestStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payment_requests SET status = $2 WHERE request_id = $1`, id, string(status))
	if err != nil {
		return apperrors.Storage("set payment request status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Storage("set payment request status", err)
	}
	if n == 0 {
		return apperrors.ErrPaymentRequestNotFound
	}
	return nil
}

// CreatePayment closes the open request and inserts the payment in one transaction
func (r *PaymentRepo) CreatePayment(ctx context.Context, p *payment.Payment, requestID int64, requestStatus payment.RequestStatus) (int64, error) {
	errNotOpen := errors.New("request not open")

	var id int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE payment_requests SET status = $2
			WHERE request_id = $1 AND status IN ('pending', 'awaiting_proof')
		`, requestID, string(requestStatus))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errNotOpen
		}

		return insertPayment(ctx, tx, p).Scan(&id)
	})
	if alreadyPaid(err) {
		return 0, apperrors.ErrRideAlreadyPaid
	}
	if errors.Is(err, errNotOpen) {
		if _, getErr := r.GetRequest(ctx, requestID); getErr != nil {
			return 0, getErr
		}
		return 0, apperrors.ErrRequestNotOpen
	}
	if err != nil {
		return 0, apperrors.Storage("create payment", err)
	}
	return id, nil
}

func (r *PaymentRepo) RecordPayment(ctx context.Context, p *payment.Payment) (int64, error) {
	var id int64
	err := insertPayment(ctx, r.db, p).Scan(&id)
	if alreadyPaid(err) {
		return 0, apperrors.ErrRideAlreadyPaid
	}
	if err != nil {
		return 0, apperrors.Storage("record payment", err)
	}
	return id, nil
}

func (r *PaymentRepo) RidePaid(ctx context.Context, rideID int64) (bool, error) {
	var paid bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM payments WHERE ride_id = $1 AND payment_status IN ('pending', 'completed'))
	`, rideID).Scan(&paid)
	if err != nil {
		return false, apperrors.Storage("check ride payment", err)
	}
	return paid, nil
}

func (r *PaymentRepo) GetPayment(ctx context.Context, id int64) (*payment.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, paymentSelect+` WHERE p.payment_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrPaymentNotFound
	}
	if err != nil {
		return nil, apperrors.Storage("get payment", err)
	}
	return p, nil
}

// SetStatus only writes when the payment is still in the from status
func (r *PaymentRepo) SetStatus(ctx context.Context, id int64, from, to payment.Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET payment_status = $3, updated_at = NOW()
		WHERE payment_id = $1 AND payment_status = $2
	`, id, string(from), string(to))
	if err != nil {
		return apperrors.Storage("set payment status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Storage("set payment status", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE payment_id = $1)`, id).Scan(&exists); err != nil {
		return apperrors.Storage("classify payment", err)
	}
	if !exists {
		return apperrors.ErrPaymentNotFound
	}
	return apperrors.ErrPaymentNotPending
}

func (r *PaymentRepo) LinkSubscription(ctx context.Context, paymentID, subscriptionID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET subscription_id = $2, updated_at = NOW() WHERE payment_id = $1`,
		paymentID, subscriptionID)
	if err != nil {
		return apperrors.Storage("link subscription", err)
	}
	return nil
}

func (r *PaymentRepo) ListPending(ctx context.Context, limit int) ([]*payment.Payment, error) {
	return r.list(ctx, "list pending payments",
		paymentSelect+` WHERE p.payment_status = 'pending' ORDER BY p.created_at, p.payment_id LIMIT $1`, limit)
}

func (r *PaymentRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*payment.Payment, error) {
	return r.list(ctx, "list user payments",
		paymentSelect+` WHERE p.user_id = $1 ORDER BY p.created_at DESC, p.payment_id DESC LIMIT $2`, userID, limit)
}

// Revenue groups payments created since the given time
func (r *PaymentRepo) Revenue(ctx context.Context, since time.Time) (*payment.Revenue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT payment_type, payment_method, payment_status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments
		WHERE created_at >= $1
		GROUP BY payment_type, payment_method, payment_status
	`, since)
	if err != nil {
		return nil, apperrors.Storage("revenue report", err)
	}
	defer rows.Close()

	rev := &payment.Revenue{
		Since:    since,
		ByType:   make(map[payment.Type]float64),
		ByMethod: make(map[payment.Method]float64),
	}
	for rows.Next() {
		var (
			typ, method, status string
			count               int
			sum                 float64
		)
		if err := rows.Scan(&typ, &method, &status, &count, &sum); err != nil {
			return nil, apperrors.Storage("revenue report", err)
		}
		switch payment.Status(status) {
		case payment.StatusCompleted:
			rev.Completed += sum
			rev.CompletedCount += count
			rev.ByType[payment.Type(typ)] += sum
			rev.ByMethod[payment.Method(method)] += sum
		case payment.StatusPending:
			rev.Pending += sum
			rev.PendingCount += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("revenue report", err)
	}
	return rev, nil
}

func (r *PaymentRepo) list(ctx context.Context, op, query string, args ...interface{}) ([]*payment.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage(op, err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, apperrors.Storage(op, err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(op, err)
	}
	return payments, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func insertPayment(ctx context.Context, q queryRower, p *payment.Payment) *sql.Row {
	currency := p.Currency
	if currency == "" {
		currency = payment.DefaultCurrency
	}
	return q.QueryRowContext(ctx, paymentInsert,
		p.UserID, nullInt64(p.RideID), nullInt64(p.SubscriptionID), string(p.Type), p.Amount, currency,
		string(p.Method), string(p.Status), nullString(p.TransactionID), nullString(p.ProofFileID), nullString(p.Notes))
}

// alreadyPaid covers the guarded insert returning nothing and the partial
// unique index catching a concurrent writer
func alreadyPaid(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err)
}

func scanPayment(s scanner) (*payment.Payment, error) {
	var (
		p                   payment.Payment
		rideID, subID       sql.NullInt64
		typ, method, status string
	)
	if err := s.Scan(&p.ID, &p.UserID, &rideID, &subID, &typ, &p.Amount,
		&p.Currency, &method, &status, &p.TransactionID,
		&p.ProofFileID, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
		&p.FirstName, &p.Username); err != nil {
		return nil, err
	}
	p.RideID = int64Ptr(rideID)
	p.SubscriptionID = int64Ptr(subID)
	p.Type = payment.Type(typ)
	p.Method = payment.Method(method)
	p.Status = payment.Status(status)
	return &p, nil
}
