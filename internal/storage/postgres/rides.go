package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/mashawir/ridebot/internal/domain/ride"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

const rideSelect = `
	SELECT r.ride_id, r.client_id, r.captain_id,
		r.pickup_location, r.pickup_latitude, r.pickup_longitude,
		r.destination_location, r.destination_latitude, r.destination_longitude,
		r.ride_type, r.status, r.price, r.passenger_count, COALESCE(r.notes, ''),
		r.created_at, r.updated_at,
		COALESCE(c.first_name, ''), COALESCE(k.first_name, '')
	FROM rides r
	LEFT JOIN users c ON c.user_id = r.client_id
	LEFT JOIN users k ON k.user_id = r.captain_id`

// RideRepo persists rides. Status changes are conditional updates keyed on the pre-state.
type RideRepo struct {
	db *sql.DB
}

func NewRideRepo(db *sql.DB) *RideRepo {
	return &RideRepo{db: db}
}

func (r *RideRepo) Create(ctx context.Context, rd *ride.Ride) (int64, error) {
	rideType := rd.Type
	if rideType == "" {
		rideType = ride.TypeRequest
	}
	passengers := rd.PassengerCount
	if passengers <= 0 {
		passengers = 1
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO rides (
			client_id, pickup_location, pickup_latitude, pickup_longitude,
			destination_location, destination_latitude, destination_longitude,
			ride_type, status, price, passenger_count, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9, $10, $11)
		RETURNING ride_id
	`, rd.ClientID,
		rd.Pickup.Description, nullFloat64(rd.Pickup.Latitude), nullFloat64(rd.Pickup.Longitude),
		rd.Destination.Description, nullFloat64(rd.Destination.Latitude), nullFloat64(rd.Destination.Longitude),
		string(rideType), nullFloat64(rd.Price), passengers, nullString(rd.Notes),
	).Scan(&id)
	if err != nil {
		return 0, apperrors.Storage("create ride", err)
	}
	return id, nil
}

func (r *RideRepo) GetByID(ctx context.Context, id int64) (*ride.Ride, error) {
	rd, err := scanRide(r.db.QueryRowContext(ctx, rideSelect+` WHERE r.ride_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrRideNotFound
	}
	if err != nil {
		return nil, apperrors.Storage("get ride", err)
	}
	return rd, nil
}

func (r *RideRepo) ListPending(ctx context.Context, limit int) ([]*ride.Ride, error) {
	return r.list(ctx, "list pending rides",
		rideSelect+` WHERE r.status = 'pending' ORDER BY r.created_at DESC, r.ride_id DESC LIMIT $1`, limit)
}

func (r *RideRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*ride.Ride, error) {
	return r.list(ctx, "list user rides",
		rideSelect+` WHERE r.client_id = $1 OR r.captain_id = $1 ORDER BY r.created_at DESC, r.ride_id DESC LIMIT $2`,
		userID, limit)
}

func (r *RideRepo) ListActiveByCaptain(ctx context.Context, captainID int64) ([]*ride.Ride, error) {
	return r.list(ctx, "list captain rides",
		rideSelect+` WHERE r.captain_id = $1 AND r.status = ANY($2) ORDER BY r.created_at DESC`,
		captainID, pq.Array(statusStrings(ride.ActiveStatuses())))
}

func (r *RideRepo) ListActive(ctx context.Context, limit int) ([]*ride.Ride, error) {
	return r.list(ctx, "list active rides",
		rideSelect+` WHERE r.status = ANY($1) ORDER BY r.updated_at DESC LIMIT $2`,
		pq.Array(statusStrings(ride.ActiveStatuses())), limit)
}

func (r *RideRepo) ListRecent(ctx context.Context, limit int) ([]*ride.Ride, error) {
	return r.list(ctx, "list recent rides",
		rideSelect+` ORDER BY r.created_at DESC, r.ride_id DESC LIMIT $1`, limit)
}

// Accept assigns the captain to a pending ride
func (r *RideRepo) Accept(ctx context.Context, rideID, captainID int64) error {
	return r.transition(ctx, "accept ride", `
		UPDATE rides SET captain_id = $2, status = 'accepted', updated_at = NOW()
		WHERE ride_id = $1 AND status = 'pending'
	`, rideID, captainID)
}

// Start moves an accepted ride of this captain into progress
func (r *RideRepo) Start(ctx context.Context, rideID, captainID int64) error {
	return r.transition(ctx, "start ride", `
		UPDATE rides SET status = 'in_progress', updated_at = NOW()
		WHERE ride_id = $1 AND status = 'accepted' AND captain_id = $2
	`, rideID, captainID)
}

// Complete finishes the ride and counts it for both parties in one transaction
func (r *RideRepo) Complete(ctx context.Context, rideID, captainID int64) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var clientID int64
		err := tx.QueryRowContext(ctx, `
			UPDATE rides SET status = 'completed', updated_at = NOW()
			WHERE ride_id = $1 AND status = 'in_progress' AND captain_id = $2
			RETURNING client_id
		`, rideID, captainID).Scan(&clientID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET total_rides = total_rides + 1, updated_at = NOW() WHERE user_id IN ($1, $2)`,
			clientID, captainID)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return r.classify(ctx, rideID)
	}
	if err != nil {
		return apperrors.Storage("complete ride", err)
	}
	return nil
}

// Cancel is allowed to either party while the ride is pending or accepted
func (r *RideRepo) Cancel(ctx context.Context, rideID, userID int64) error {
	return r.transition(ctx, "cancel ride", `
		UPDATE rides SET status = 'cancelled', updated_at = NOW()
		WHERE ride_id = $1 AND status = ANY($3) AND (client_id = $2 OR captain_id = $2)
	`, rideID, userID, pq.Array(statusStrings(ride.CancellableStatuses())))
}

func (r *RideRepo) transition(ctx context.Context, op, query string, rideID int64, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, append([]interface{}{rideID}, args...)...)
	if err != nil {
		return apperrors.Storage(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Storage(op, err)
	}
	if n == 0 {
		return r.classify(ctx, rideID)
	}
	return nil
}

// classify tells a missing ride from one whose precondition failed. It never writes.
func (r *RideRepo) classify(ctx context.Context, rideID int64) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE ride_id = $1)`, rideID).Scan(&exists)
	if err != nil {
		return apperrors.Storage("classify ride", err)
	}
	if !exists {
		return apperrors.ErrRideNotFound
	}
	return apperrors.ErrRideUnavailable
}

func (r *RideRepo) list(ctx context.Context, op, query string, args ...interface{}) ([]*ride.Ride, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage(op, err)
	}
	defer rows.Close()

	var rides []*ride.Ride
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, apperrors.Storage(op, err)
		}
		rides = append(rides, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(op, err)
	}
	return rides, nil
}

func scanRide(s scanner) (*ride.Ride, error) {
	var (
		rd               ride.Ride
		captainID        sql.NullInt64
		pickLat, pickLng sql.NullFloat64
		destLat, destLng sql.NullFloat64
		price            sql.NullFloat64
		rideType, status string
	)
	err := s.Scan(&rd.ID, &rd.ClientID, &captainID,
		&rd.Pickup.Description, &pickLat, &pickLng,
		&rd.Destination.Description, &destLat, &destLng,
		&rideType, &status, &price, &rd.PassengerCount, &rd.Notes,
		&rd.CreatedAt, &rd.UpdatedAt,
		&rd.ClientName, &rd.CaptainName)
	if err != nil {
		return nil, err
	}

	rd.CaptainID = int64Ptr(captainID)
	rd.Pickup.Latitude, rd.Pickup.Longitude = float64Ptr(pickLat), float64Ptr(pickLng)
	rd.Destination.Latitude, rd.Destination.Longitude = float64Ptr(destLat), float64Ptr(destLng)
	rd.Price = float64Ptr(price)
	rd.Type = ride.Type(rideType)
	rd.Status = ride.Status(status)
	return &rd, nil
}

func statusStrings(statuses []ride.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
