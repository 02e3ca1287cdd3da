package stats

import (
	"context"
	"time"
)

// Overview is the admin dashboard summary
type Overview struct {
	TotalUsers          int     `json:"total_users"`
	Clients             int     `json:"clients"`
	Captains            int     `json:"captains"`
	TotalRides          int     `json:"total_rides"`
	PendingRides        int     `json:"pending_rides"`
	ActiveRides         int     `json:"active_rides"`
	CompletedRides      int     `json:"completed_rides"`
	CancelledRides      int     `json:"cancelled_rides"`
	RidesToday          int     `json:"rides_today"`
	ActiveSubscriptions int     `json:"active_subscriptions"`
	PendingPayments     int     `json:"pending_payments"`
	CompletedRevenue    float64 `json:"completed_revenue"`
}

type Repository interface {
	Overview(ctx context.Context, now time.Time) (*Overview, error)
}
