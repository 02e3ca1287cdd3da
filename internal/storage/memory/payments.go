package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mashawir/ridebot/internal/domain/payment"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

type PaymentRepo struct {
	s *state
}

func (r *PaymentRepo) CreateRequest(_ context.Context, req *payment.Request) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *req
	cp.ID = r.s.next()
	cp.Status = payment.RequestPending
	cp.CreatedAt = r.s.now()
	r.s.requests[cp.ID] = &cp
	return cp.ID, nil
}

func (r *PaymentRepo) GetRequest(_ context.Context, id int64) (*payment.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, apperrors.ErrPaymentRequestNotFound
	}
	cp := *req
	cp.FirstName = r.s.firstName(req.UserID)
	cp.Username = r.s.username(req.UserID)
	return &cp, nil
}

func (r *PaymentRepo) SetRequestStatus(_ context.Context, id int64, status payment.RequestStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok {
		return apperrors.ErrPaymentRequestNotFound
	}
	req.Status = status
	return nil
}

func (r *PaymentRepo) CreatePayment(_ context.Context, p *payment.Payment, requestID int64, requestStatus payment.RequestStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[requestID]
	if !ok {
		return 0, apperrors.ErrPaymentRequestNotFound
	}
	if !req.IsOpen() {
		return 0, apperrors.ErrRequestNotOpen
	}
	if p.RideID != nil && r.ridePaid(*p.RideID) {
		return 0, apperrors.ErrRideAlreadyPaid
	}
	req.Status = requestStatus
	return r.insert(p), nil
}

func (r *PaymentRepo) RecordPayment(_ context.Context, p *payment.Payment) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.RideID != nil && r.ridePaid(*p.RideID) {
		return 0, apperrors.ErrRideAlreadyPaid
	}
	return r.insert(p), nil
}

func (r *PaymentRepo) RidePaid(_ context.Context, rideID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.ridePaid(rideID), nil
}

// ridePaid expects the lock held
func (r *PaymentRepo) ridePaid(rideID int64) bool {
	for _, p := range r.s.payments {
		if p.RideID != nil && *p.RideID == rideID &&
			(p.Status == payment.StatusPending || p.Status == payment.StatusCompleted) {
			return true
		}
	}
	return false
}

func (r *PaymentRepo) GetPayment(_ context.Context, id int64) (*payment.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.payments[id]
	if !ok {
		return nil, apperrors.ErrPaymentNotFound
	}
	return r.view(p), nil
}

func (r *PaymentRepo) SetStatus(_ context.Context, id int64, from, to payment.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.payments[id]
	if !ok {
		return apperrors.ErrPaymentNotFound
	}
	if p.Status != from {
		return apperrors.ErrPaymentNotPending
	}
	p.Status = to
	p.UpdatedAt = r.s.now()
	return nil
}

func (r *PaymentRepo) LinkSubscription(_ context.Context, paymentID, subscriptionID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p, ok := r.s.payments[paymentID]; ok {
		id := subscriptionID
		p.SubscriptionID = &id
		p.UpdatedAt = r.s.now()
	}
	return nil
}

func (r *PaymentRepo) ListPending(_ context.Context, limit int) ([]*payment.Payment, error) {
	out := r.filter(func(p *payment.Payment) bool { return p.Status == payment.StatusPending })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return truncate(out, limit), nil
}

func (r *PaymentRepo) ListByUser(_ context.Context, userID int64, limit int) ([]*payment.Payment, error) {
	out := r.filter(func(p *payment.Payment) bool { return p.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return truncate(out, limit), nil
}

func (r *PaymentRepo) Revenue(_ context.Context, since time.Time) (*payment.Revenue, error) {
	rev := &payment.Revenue{
		Since:    since,
		ByType:   make(map[payment.Type]float64),
		ByMethod: make(map[payment.Method]float64),
	}
	for _, p := range r.filter(func(p *payment.Payment) bool { return !p.CreatedAt.Before(since) }) {
		switch p.Status {
		case payment.StatusCompleted:
			rev.Completed += p.Amount
			rev.CompletedCount++
			rev.ByType[p.Type] += p.Amount
			rev.ByMethod[p.Method] += p.Amount
		case payment.StatusPending:
			rev.Pending += p.Amount
			rev.PendingCount++
		}
	}
	return rev, nil
}

func (r *PaymentRepo) insert(p *payment.Payment) int64 {
	cp := *p
	cp.ID = r.s.next()
	if cp.Currency == "" {
		cp.Currency = payment.DefaultCurrency
	}
	now := r.s.now()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.s.payments[cp.ID] = &cp
	return cp.ID
}

func (r *PaymentRepo) filter(keep func(p *payment.Payment) bool) []*payment.Payment {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*payment.Payment
	for _, p := range r.s.payments {
		if keep(p) {
			out = append(out, r.view(p))
		}
	}
	return out
}

func (r *PaymentRepo) view(p *payment.Payment) *payment.Payment {
	cp := *p
	cp.FirstName = r.s.firstName(p.UserID)
	cp.Username = r.s.username(p.UserID)
	return &cp
}

func truncate(out []*payment.Payment, limit int) []*payment.Payment {
	if limit > 0 && len(out) > limit {
		return out[:limit]
	}
	return out
}
