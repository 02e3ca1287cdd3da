package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mashawir/ridebot/internal/activity"
	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/service/pricing"
	"github.com/mashawir/ridebot/internal/service/subscriptions"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
	"github.com/mashawir/ridebot/pkg/monitoring"
)

const PendingListLimit = 20

// Outcome describes what a payment step produced
type Outcome struct {
	Request       *payment.Request
	Payment       *payment.Payment
	Subscription  *subscription.Subscription
	AwaitingProof bool
}

// Service handles manual payment requests, proofs and administrator decisions
type Service struct {
	payments payment.Repository
	rides    ride.Repository
	subs     *subscriptions.Service
	pricing  *pricing.Service
	feed     activity.Publisher
	nr       *monitoring.NewRelicApp
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a new payment service
func NewService(payments payment.Repository, rides ride.Repository, subs *subscriptions.Service,
	prices *pricing.Service, feed activity.Publisher, nr *monitoring.NewRelicApp, log *logger.Logger) *Service {
	return &Service{
		payments: payments,
		rides:    rides,
		subs:     subs,
		pricing:  prices,
		feed:     feed,
		nr:       nr,
		logger:   log,
		now:      time.Now,
	}
}

// RequestSubscription opens a payment request for a plan
func (s *Service) RequestSubscription(ctx context.Context, userID int64, plan subscription.Plan) (*payment.Request, error) {
	offer, err := s.subs.Offer(plan)
	if err != nil {
		return nil, err
	}
	days := offer.Days
	req := &payment.Request{
		UserID:           userID,
		Type:             payment.TypeSubscription,
		Amount:           offer.Price,
		Description:      fmt.Sprintf("Captain subscription, %d days", days),
		Status:           payment.RequestPending,
		SubscriptionDays: &days,
	}
	return s.createRequest(ctx, req)
}

// RequestRide opens a payment request for a completed ride of the client
func (s *Service) RequestRide(ctx context.Context, userID, rideID int64) (*payment.Request, error) {
	rd, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if rd.ClientID != userID {
		return nil, apperrors.ErrNotParticipant
	}
	if rd.Status != ride.StatusCompleted {
		return nil, apperrors.ErrRideUnavailable
	}
	paid, err := s.payments.RidePaid(ctx, rd.ID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, apperrors.ErrRideAlreadyPaid
	}

	id := rd.ID
	req := &payment.Request{
		UserID:      userID,
		Type:        payment.TypeRide,
		Amount:      s.pricing.RideFare(rd.Price),
		Description: fmt.Sprintf("Ride #%d", rd.ID),
		Status:      payment.RequestPending,
		RideID:      &id,
	}
	return s.createRequest(ctx, req)
}

func (s *Service) createRequest(ctx context.Context, req *payment.Request) (*payment.Request, error) {
	if req.Amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	id, err := s.payments.CreateRequest(ctx, req)
	if err != nil {
		s.logger.Error("Failed to create payment request", logger.UserID(req.UserID), logger.Err(err))
		return nil, err
	}
	req.ID = id
	req.CreatedAt = s.now()
	s.logger.Info("Payment request created",
		logger.Int64("request_id", id),
		logger.UserID(req.UserID),
		logger.String("type", string(req.Type)),
		logger.Float64("amount", req.Amount),
	)
	return req, nil
}

// ChooseMethod settles cash on the spot; digital methods move the request to awaiting proof
func (s *Service) ChooseMethod(ctx context.Context, userID, requestID int64, method payment.Method) (*Outcome, error) {
	if !method.IsValid() {
		return nil, apperrors.ErrInvalidPaymentMethod
	}
	req, err := s.openRequest(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	if method.NeedsProof() {
		if err := s.payments.SetRequestStatus(ctx, req.ID, payment.RequestAwaitingProof); err != nil {
			return nil, err
		}
		req.Status = payment.RequestAwaitingProof
		return &Outcome{Request: req, AwaitingProof: true}, nil
	}

	p := &payment.Payment{
		UserID:        req.UserID,
		RideID:        req.RideID,
		Type:          req.Type,
		Amount:        req.Amount,
		Currency:      s.subs.Currency(),
		Method:        payment.MethodCash,
		Status:        payment.StatusCompleted,
		TransactionID: "cash-" + uuid.NewString(),
		Notes:         req.Description,
	}
	if p.ID, err = s.payments.CreatePayment(ctx, p, req.ID, payment.RequestCompleted); err != nil {
		return nil, err
	}
	req.Status = payment.RequestCompleted

	out := &Outcome{Request: req, Payment: p}
	if req.Type == payment.TypeSubscription && req.SubscriptionDays != nil {
		out.Subscription, err = s.activate(ctx, p, *req.SubscriptionDays, nil)
		if err != nil {
			return nil, err
		}
	}
	s.record(ctx, activity.PaymentCompleted, p)
	return out, nil
}

// SubmitProof records a pending digital payment carrying the proof image
func (s *Service) SubmitProof(ctx context.Context, userID, requestID int64, method payment.Method, fileID string) (*Outcome, error) {
	if !method.NeedsProof() {
		return nil, apperrors.ErrInvalidPaymentMethod
	}
	req, err := s.openRequest(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	p := &payment.Payment{
		UserID:      req.UserID,
		RideID:      req.RideID,
		Type:        req.Type,
		Amount:      req.Amount,
		Currency:    s.subs.Currency(),
		Method:      method,
		Status:      payment.StatusPending,
		ProofFileID: fileID,
		Notes:       req.Description,
	}
	if p.ID, err = s.payments.CreatePayment(ctx, p, req.ID, payment.RequestCompleted); err != nil {
		return nil, err
	}
	req.Status = payment.RequestCompleted
	p.FirstName, p.Username = req.FirstName, req.Username

	s.record(ctx, activity.PaymentSubmitted, p)
	return &Outcome{Request: req, Payment: p}, nil
}

// RecordCash lets the captain of a completed ride confirm the client paid in cash
func (s *Service) RecordCash(ctx context.Context, captainID, rideID int64) (*payment.Payment, error) {
	rd, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !rd.IsCaptain(captainID) {
		return nil, apperrors.ErrNotParticipant
	}
	if rd.Status != ride.StatusCompleted {
		return nil, apperrors.ErrRideUnavailable
	}

	id := rd.ID
	p := &payment.Payment{
		UserID:        rd.ClientID,
		RideID:        &id,
		Type:          payment.TypeRide,
		Amount:        s.pricing.RideFare(rd.Price),
		Currency:      s.subs.Currency(),
		Method:        payment.MethodCash,
		Status:        payment.StatusCompleted,
		TransactionID: "cash-" + uuid.NewString(),
		Notes:         fmt.Sprintf("Cash confirmed by captain %d", captainID),
	}
	if p.ID, err = s.payments.RecordPayment(ctx, p); err != nil {
		s.logger.Error("Failed to record cash payment", logger.RideID(rideID), logger.Err(err))
		return nil, err
	}
	s.record(ctx, activity.PaymentCompleted, p)
	return p, nil
}

// Approve completes a pending payment; subscription payments activate a subscription
func (s *Service) Approve(ctx context.Context, paymentID, adminID int64) (*Outcome, error) {
	if err := s.payments.SetStatus(ctx, paymentID, payment.StatusPending, payment.StatusCompleted); err != nil {
		return nil, err
	}
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Payment: p}
	if p.Type == payment.TypeSubscription {
		by := adminID
		out.Subscription, err = s.activate(ctx, p, s.subs.ApprovalDays(), &by)
		if err != nil {
			// back to pending so the approval can be retried
			if rbErr := s.payments.SetStatus(ctx, paymentID, payment.StatusCompleted, payment.StatusPending); rbErr != nil {
				s.logger.Error("Failed to reopen payment after activation failure",
					logger.Int64("payment_id", paymentID),
					logger.Err(rbErr),
				)
			}
			s.logger.Error("Subscription activation failed, payment left pending",
				logger.Int64("payment_id", paymentID),
				logger.Err(err),
			)
			return nil, err
		}
	}

	s.logger.Info("Payment approved",
		logger.Int64("payment_id", paymentID),
		logger.Int64("admin_id", adminID),
	)
	s.record(ctx, activity.PaymentCompleted, p)
	return out, nil
}

// Reject marks a pending payment failed
func (s *Service) Reject(ctx context.Context, paymentID, adminID int64) (*payment.Payment, error) {
	if err := s.payments.SetStatus(ctx, paymentID, payment.StatusPending, payment.StatusFailed); err != nil {
		return nil, err
	}
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Payment rejected",
		logger.Int64("payment_id", paymentID),
		logger.Int64("admin_id", adminID),
	)
	s.record(ctx, activity.PaymentRejected, p)
	return p, nil
}

func (s *Service) Pending(ctx context.Context) ([]*payment.Payment, error) {
	return s.payments.ListPending(ctx, PendingListLimit)
}

func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*payment.Payment, error) {
	return s.payments.ListByUser(ctx, userID, limit)
}

// Revenue reports payments created in the last days
func (s *Service) Revenue(ctx context.Context, days int) (*payment.Revenue, error) {
	if days <= 0 {
		return nil, apperrors.BadRequest("Days must be positive", nil)
	}
	return s.payments.Revenue(ctx, s.now().AddDate(0, 0, -days))
}

func (s *Service) openRequest(ctx context.Context, userID, requestID int64) (*payment.Request, error) {
	req, err := s.payments.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, apperrors.ErrNotOwner
	}
	if !req.IsOpen() {
		return nil, apperrors.ErrRequestNotOpen
	}
	return req, nil
}

func (s *Service) activate(ctx context.Context, p *payment.Payment, days int, by *int64) (*subscription.Subscription, error) {
	amount := p.Amount
	sub, err := s.subs.Subscribe(ctx, p.UserID, days, &amount, string(p.Method), by)
	if err != nil {
		return nil, err
	}
	p.SubscriptionID = &sub.ID
	if err := s.payments.LinkSubscription(ctx, p.ID, sub.ID); err != nil {
		s.logger.Warn("Failed to link subscription to payment",
			logger.Int64("payment_id", p.ID),
			logger.Int64("subscription_id", sub.ID),
			logger.Err(err),
		)
	}
	if s.feed != nil {
		s.feed.Publish(ctx, activity.Event{Kind: activity.SubscriptionActivated, UserID: p.UserID, Amount: p.Amount})
	}
	return sub, nil
}

func (s *Service) record(ctx context.Context, kind activity.Kind, p *payment.Payment) {
	if s.nr != nil {
		s.nr.RecordPaymentProcessed(p.Amount, string(p.Method), string(p.Status))
	}
	if s.feed == nil {
		return
	}
	e := activity.Event{Kind: kind, UserID: p.UserID, Amount: p.Amount, Status: string(p.Status), Detail: string(p.Method)}
	if p.RideID != nil {
		e.RideID = *p.RideID
	}
	s.feed.Publish(ctx, e)
}
