// Package memory is a mutex guarded store with the same conditional update
// semantics as the Postgres repositories. It backs local runs and tests.
package memory

import (
	"sync"
	"time"

	"github.com/mashawir/ridebot/internal/domain/moderation"
	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/rating"
	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/internal/domain/stats"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/domain/user"
)

type state struct {
	mu  sync.Mutex
	now func() time.Time

	users      map[int64]*user.User
	rides      map[int64]*ride.Ride
	ratings    []*rating.Rating
	subs       []*subscription.Subscription
	requests   map[int64]*payment.Request
	payments   map[int64]*payment.Payment
	words      map[string]*moderation.BannedWord
	warnings   []*moderation.Warning
	broadcasts map[int64]*moderation.Broadcast

	seq int64
}

var (
	_ user.Repository         = (*UserRepo)(nil)
	_ ride.Repository         = (*RideRepo)(nil)
	_ rating.Repository       = (*RatingRepo)(nil)
	_ subscription.Repository = (*SubscriptionRepo)(nil)
	_ payment.Repository      = (*PaymentRepo)(nil)
	_ moderation.Repository   = (*ModerationRepo)(nil)
	_ stats.Repository        = (*StatsRepo)(nil)
)

// Store bundles the repositories sharing one state
type Store struct {
	Users         *UserRepo
	Rides         *RideRepo
	Ratings       *RatingRepo
	Subscriptions *SubscriptionRepo
	Payments      *PaymentRepo
	Moderation    *ModerationRepo
	Stats         *StatsRepo
}

type Option func(*state)

// WithClock overrides the wall clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *state) { s.now = now }
}

// WithBannedWords seeds the banned word table
func WithBannedWords(words ...string) Option {
	return func(s *state) {
		for _, w := range words {
			s.words[w] = &moderation.BannedWord{ID: s.next(), Word: w, CreatedAt: s.now()}
		}
	}
}

func New(opts ...Option) *Store {
	s := &state{
		now:        time.Now,
		users:      make(map[int64]*user.User),
		rides:      make(map[int64]*ride.Ride),
		requests:   make(map[int64]*payment.Request),
		payments:   make(map[int64]*payment.Payment),
		words:      make(map[string]*moderation.BannedWord),
		broadcasts: make(map[int64]*moderation.Broadcast),
	}
	for _, opt := range opts {
		opt(s)
	}

	return &Store{
		Users:         &UserRepo{s},
		Rides:         &RideRepo{s},
		Ratings:       &RatingRepo{s},
		Subscriptions: &SubscriptionRepo{s},
		Payments:      &PaymentRepo{s},
		Moderation:    &ModerationRepo{s},
		Stats:         &StatsRepo{s},
	}
}

// next returns a store wide increasing id. Callers hold mu or own s exclusively.
func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func (s *state) firstName(id int64) string {
	if u, ok := s.users[id]; ok {
		return u.FirstName
	}
	return ""
}

func (s *state) username(id int64) string {
	if u, ok := s.users[id]; ok {
		return u.Username
	}
	return ""
}
