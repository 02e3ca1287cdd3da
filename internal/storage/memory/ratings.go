package memory

import (
	"context"

	"github.com/mashawir/ridebot/internal/domain/rating"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

type RatingRepo struct {
	s *state
}

func (r *RatingRepo) Add(_ context.Context, rt *rating.Rating) (float64, error) {
	if err := rt.Validate(); err != nil {
		return 0, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[rt.RatedID]
	if !ok {
		return 0, apperrors.ErrUserNotFound
	}

	for _, existing := range r.s.ratings {
		if existing.RideID == rt.RideID && existing.RaterID == rt.RaterID {
			return 0, apperrors.ErrAlreadyRated
		}
	}

	cp := *rt
	cp.ID = r.s.next()
	cp.CreatedAt = r.s.now()
	r.s.ratings = append(r.s.ratings, &cp)

	var sum, n int
	for _, existing := range r.s.ratings {
		if existing.RatedID == rt.RatedID {
			sum += existing.Stars
			n++
		}
	}
	u.Rating = float64(sum) / float64(n)
	return u.Rating, nil
}
