package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mashawir/ridebot/internal/domain/rating"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

type RatingRepo struct {
	db *sql.DB
}

func NewRatingRepo(db *sql.DB) *RatingRepo {
	return &RatingRepo{db: db}
}

// Add inserts the rating and refreshes the rated user's mean in the same transaction
func (r *RatingRepo) Add(ctx context.Context, rt *rating.Rating) (float64, error) {
	if err := rt.Validate(); err != nil {
		return 0, err
	}

	var avg float64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ratings (ride_id, rater_id, rated_id, rating, comment)
			VALUES ($1, $2, $3, $4, $5)
		`, rt.RideID, rt.RaterID, rt.RatedID, rt.Stars, nullString(rt.Comment)); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, `
			UPDATE users
			SET rating = (SELECT AVG(rating)::float8 FROM ratings WHERE rated_id = $1), updated_at = NOW()
			WHERE user_id = $1
			RETURNING rating
		`, rt.RatedID).Scan(&avg)
	})
	if isUniqueViolation(err) {
		return 0, apperrors.ErrAlreadyRated
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.ErrUserNotFound
	}
	if err != nil {
		return 0, apperrors.Storage("add rating", err)
	}
	return avg, nil
}
