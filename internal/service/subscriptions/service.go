package subscriptions

import (
	"context"
	"time"

	"github.com/mashawir/ridebot/internal/domain/subscription"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
)

// Config holds plan prices and lengths
type Config struct {
	WeeklyPrice  float64
	WeeklyDays   int
	MonthlyPrice float64
	MonthlyDays  int
	Currency     string

	// ApprovalDays is granted when an administrator approves a subscription payment
	ApprovalDays int
}

// PlanOffer is a purchasable plan
type PlanOffer struct {
	Plan  subscription.Plan `json:"plan"`
	Days  int               `json:"days"`
	Price float64           `json:"price"`
}

// Service gates captain features behind a live subscription
type Service struct {
	repo   subscription.Repository
	config Config
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates a new subscription service
func NewService(repo subscription.Repository, config Config, log *logger.Logger) *Service {
	return &Service{repo: repo, config: config, logger: log, now: time.Now}
}

// Plans returns the purchasable plans in display order
func (s *Service) Plans() []PlanOffer {
	return []PlanOffer{
		{Plan: subscription.PlanWeekly, Days: s.config.WeeklyDays, Price: s.config.WeeklyPrice},
		{Plan: subscription.PlanMonthly, Days: s.config.MonthlyDays, Price: s.config.MonthlyPrice},
	}
}

// Offer looks up a plan by name
func (s *Service) Offer(plan subscription.Plan) (PlanOffer, error) {
	for _, o := range s.Plans() {
		if o.Plan == plan {
			return o, nil
		}
	}
	return PlanOffer{}, apperrors.ErrInvalidPlan
}

// ApprovalDays is the length granted on manual approval
func (s *Service) ApprovalDays() int {
	return s.config.ApprovalDays
}

func (s *Service) Currency() string {
	return s.config.Currency
}

// Subscribe replaces any active subscription of the user with a new one of the given length
func (s *Service) Subscribe(ctx context.Context, userID int64, days int, amount *float64, method string, createdBy *int64) (*subscription.Subscription, error) {
	if days <= 0 {
		return nil, apperrors.BadRequest("Subscription length must be positive", nil)
	}

	start := s.now()
	sub := &subscription.Subscription{
		UserID:        userID,
		Plan:          subscription.PlanForDays(days),
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, days),
		IsActive:      true,
		PaymentAmount: amount,
		PaymentMethod: method,
		CreatedBy:     createdBy,
	}

	id, err := s.repo.Replace(ctx, sub)
	if err != nil {
		s.logger.Error("Failed to create subscription",
			logger.UserID(userID),
			logger.Int("days", days),
			logger.Err(err),
		)
		return nil, err
	}
	sub.ID = id

	s.logger.Info("Subscription activated",
		logger.Int64("subscription_id", id),
		logger.UserID(userID),
		logger.String("plan", string(sub.Plan)),
		logger.Int("days", days),
	)
	return sub, nil
}

// IsSubscribed requires an active row whose end date is still ahead
func (s *Service) IsSubscribed(ctx context.Context, userID int64) (bool, error) {
	_, err := s.Active(ctx, userID)
	if apperrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Active returns the live subscription of the user
func (s *Service) Active(ctx context.Context, userID int64) (*subscription.Subscription, error) {
	sub, err := s.repo.GetActive(ctx, userID, s.now())
	if err != nil {
		if !apperrors.IsNotFound(err) {
			s.logger.Error("Failed to read subscription", logger.UserID(userID), logger.Err(err))
		}
		return nil, err
	}
	if !sub.IsLive(s.now()) {
		return nil, apperrors.ErrSubscriptionNotFound
	}
	return sub, nil
}

// Expire lists expired subscriptions and then deactivates them. The listed rows are
// returned so their owners can be told to renew.
func (s *Service) Expire(ctx context.Context) ([]*subscription.Subscription, error) {
	now := s.now()
	expired, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	n, err := s.repo.DeactivateExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Expired subscriptions deactivated",
		logger.Int("listed", len(expired)),
		logger.Int64("deactivated", n),
	)
	return expired, nil
}

func (s *Service) CountActive(ctx context.Context) (int, error) {
	return s.repo.CountActive(ctx, s.now())
}
