package subscription

import (
	"context"
	"time"
)

// Plan represents a captain subscription plan
type Plan string

const (
	PlanWeekly  Plan = "captain_weekly"
	PlanMonthly Plan = "captain_monthly"
)

// Subscription grants a captain access to ride listings until EndDate
type Subscription struct {
	ID            int64     `json:"subscription_id"`
	UserID        int64     `json:"user_id"`
	Plan          Plan      `json:"subscription_type"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	IsActive      bool      `json:"is_active"`
	PaymentAmount *float64  `json:"payment_amount,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	CreatedBy     *int64    `json:"created_by,omitempty"`

	// Filled by joins with users
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Repository defines subscription persistence
type Repository interface {
	// Replace deactivates the user's active subscriptions and inserts s in one transaction
	Replace(ctx context.Context, s *Subscription) (int64, error)

	// GetActive returns the newest subscription that is active and unexpired at now
	GetActive(ctx context.Context, userID int64, now time.Time) (*Subscription, error)

	// ListExpired returns active subscriptions whose end date is at or before now
	ListExpired(ctx context.Context, now time.Time) ([]*Subscription, error)

	// DeactivateExpired flips is_active off for expired rows and returns the count
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)

	// CountActive counts live subscriptions
	CountActive(ctx context.Context, now time.Time) (int, error)
}

// IsValid validates the plan
func (p Plan) IsValid() bool {
	return p == PlanWeekly || p == PlanMonthly
}

// PlanForDays picks the plan label for a subscription length
func PlanForDays(days int) Plan {
	if days <= 7 {
		return PlanWeekly
	}
	return PlanMonthly
}

// IsLive re-validates the end date even when the active flag is set
func (s *Subscription) IsLive(now time.Time) bool {
	return s.IsActive && s.EndDate.After(now)
}

// DaysLeft returns whole days remaining, rounded up
func (s *Subscription) DaysLeft(now time.Time) int {
	if !s.IsLive(now) {
		return 0
	}
	left := s.EndDate.Sub(now)
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) > 0 {
		days++
	}
	return days
}
