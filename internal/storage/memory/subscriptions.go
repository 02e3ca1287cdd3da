package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mashawir/ridebot/internal/domain/subscription"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

type SubscriptionRepo struct {
	s *state
}

func (r *SubscriptionRepo) Replace(_ context.Context, sub *subscription.Subscription) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.subs {
		if existing.UserID == sub.UserID {
			existing.IsActive = false
		}
	}

	cp := *sub
	cp.ID = r.s.next()
	cp.IsActive = true
	r.s.subs = append(r.s.subs, &cp)
	return cp.ID, nil
}

func (r *SubscriptionRepo) GetActive(_ context.Context, userID int64, now time.Time) (*subscription.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var best *subscription.Subscription
	for _, sub := range r.s.subs {
		if sub.UserID == userID && sub.IsLive(now) && (best == nil || sub.EndDate.After(best.EndDate)) {
			best = sub
		}
	}
	if best == nil {
		return nil, apperrors.ErrSubscriptionNotFound
	}
	return r.view(best), nil
}

func (r *SubscriptionRepo) ListExpired(_ context.Context, now time.Time) ([]*subscription.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*subscription.Subscription
	for _, sub := range r.s.subs {
		if sub.IsActive && !sub.EndDate.After(now) {
			out = append(out, r.view(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *SubscriptionRepo) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, sub := range r.s.subs {
		if sub.IsActive && !sub.EndDate.After(now) {
			sub.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r *SubscriptionRepo) CountActive(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.countActiveSubs(now), nil
}

func (s *state) countActiveSubs(now time.Time) int {
	n := 0
	for _, sub := range s.subs {
		if sub.IsLive(now) {
			n++
		}
	}
	return n
}

func (r *SubscriptionRepo) view(sub *subscription.Subscription) *subscription.Subscription {
	cp := *sub
	cp.FirstName = r.s.firstName(sub.UserID)
	cp.Username = r.s.username(sub.UserID)
	return &cp
}
