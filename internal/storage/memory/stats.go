package memory

import (
	"context"
	"time"

	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/internal/domain/stats"
	"github.com/mashawir/ridebot/internal/domain/user"
)

type StatsRepo struct {
	s *state
}

func (r *StatsRepo) Overview(_ context.Context, now time.Time) (*stats.Overview, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	o := &stats.Overview{TotalUsers: len(r.s.users), TotalRides: len(r.s.rides)}
	for _, u := range r.s.users {
		switch u.Role {
		case user.RoleClient:
			o.Clients++
		case user.RoleCaptain:
			o.Captains++
		}
	}
	for _, rd := range r.s.rides {
		switch rd.Status {
		case ride.StatusPending:
			o.PendingRides++
		case ride.StatusAccepted, ride.StatusInProgress:
			o.ActiveRides++
		case ride.StatusCompleted:
			o.CompletedRides++
		case ride.StatusCancelled:
			o.CancelledRides++
		}
		if !rd.CreatedAt.Before(dayStart) {
			o.RidesToday++
		}
	}
	o.ActiveSubscriptions = r.s.countActiveSubs(now)
	for _, p := range r.s.payments {
		switch p.Status {
		case payment.StatusPending:
			o.PendingPayments++
		case payment.StatusCompleted:
			o.CompletedRevenue += p.Amount
		}
	}
	return o, nil
}
