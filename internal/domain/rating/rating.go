package rating

import (
	"context"
	"time"

	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

const (
	MinStars = 1
	MaxStars = 5
)

// Rating is an immutable review left for a user after a ride
type Rating struct {
	ID        int64     `json:"rating_id"`
	RideID    int64     `json:"ride_id"`
	RaterID   int64     `json:"rater_id"`
	RatedID   int64     `json:"rated_id"`
	Stars     int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository appends ratings and maintains the rated user's average
type Repository interface {
	// Add stores the rating and returns the recomputed average of the rated user
	Add(ctx context.Context, r *Rating) (float64, error)
}

// Validate checks the star range
func (r *Rating) Validate() error {
	if r.Stars < MinStars || r.Stars > MaxStars {
		return apperrors.ErrInvalidRating
	}
	return nil
}
