package memory

import (
	"context"
	"sort"

	"github.com/mashawir/ridebot/internal/domain/ride"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

type RideRepo struct {
	s *state
}

func (r *RideRepo) Create(_ context.Context, rd *ride.Ride) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *rd
	cp.ID = r.s.next()
	cp.CaptainID = nil
	cp.Status = ride.StatusPending
	if cp.Type == "" {
		cp.Type = ride.TypeRequest
	}
	if cp.PassengerCount <= 0 {
		cp.PassengerCount = 1
	}
	now := r.s.now()
	cp.CreatedAt, cp.UpdatedAt = now, now
	r.s.rides[cp.ID] = &cp
	return cp.ID, nil
}

func (r *RideRepo) GetByID(_ context.Context, id int64) (*ride.Ride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rd, ok := r.s.rides[id]
	if !ok {
		return nil, apperrors.ErrRideNotFound
	}
	return r.view(rd), nil
}

func (r *RideRepo) ListPending(_ context.Context, limit int) ([]*ride.Ride, error) {
	return r.filter(limit, func(rd *ride.Ride) bool { return rd.Status == ride.StatusPending }), nil
}

func (r *RideRepo) ListByUser(_ context.Context, userID int64, limit int) ([]*ride.Ride, error) {
	return r.filter(limit, func(rd *ride.Ride) bool { return rd.IsParticipant(userID) }), nil
}

func (r *RideRepo) ListActiveByCaptain(_ context.Context, captainID int64) ([]*ride.Ride, error) {
	return r.filter(0, func(rd *ride.Ride) bool {
		return rd.IsCaptain(captainID) && isActive(rd.Status)
	}), nil
}

func (r *RideRepo) ListActive(_ context.Context, limit int) ([]*ride.Ride, error) {
	return r.filter(limit, func(rd *ride.Ride) bool { return isActive(rd.Status) }), nil
}

func (r *RideRepo) ListRecent(_ context.Context, limit int) ([]*ride.Ride, error) {
	return r.filter(limit, func(*ride.Ride) bool { return true }), nil
}

func (r *RideRepo) Accept(_ context.Context, rideID, captainID int64) error {
	return r.transition(rideID, func(rd *ride.Ride) bool {
		if rd.Status != ride.StatusPending {
			return false
		}
		id := captainID
		rd.CaptainID = &id
		rd.Status = ride.StatusAccepted
		return true
	})
}

func (r *RideRepo) Start(_ context.Context, rideID, captainID int64) error {
	return r.transition(rideID, func(rd *ride.Ride) bool {
		if rd.Status != ride.StatusAccepted || !rd.IsCaptain(captainID) {
			return false
		}
		rd.Status = ride.StatusInProgress
		return true
	})
}

// Complete also counts the ride for both parties
func (r *RideRepo) Complete(_ context.Context, rideID, captainID int64) error {
	return r.transition(rideID, func(rd *ride.Ride) bool {
		if rd.Status != ride.StatusInProgress || !rd.IsCaptain(captainID) {
			return false
		}
		rd.Status = ride.StatusCompleted
		for _, id := range []int64{rd.ClientID, captainID} {
			if u, ok := r.s.users[id]; ok {
				u.TotalRides++
			}
		}
		return true
	})
}

func (r *RideRepo) Cancel(_ context.Context, rideID, userID int64) error {
	return r.transition(rideID, func(rd *ride.Ride) bool {
		if !ride.CanTransition(rd.Status, ride.StatusCancelled) || !rd.IsParticipant(userID) {
			return false
		}
		rd.Status = ride.StatusCancelled
		return true
	})
}

// transition applies apply under the lock; apply returns false when the precondition fails
func (r *RideRepo) transition(rideID int64, apply func(rd *ride.Ride) bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rd, ok := r.s.rides[rideID]
	if !ok {
		return apperrors.ErrRideNotFound
	}
	if !apply(rd) {
		return apperrors.ErrRideUnavailable
	}
	rd.UpdatedAt = r.s.now()
	return nil
}

func (r *RideRepo) filter(limit int, keep func(rd *ride.Ride) bool) []*ride.Ride {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*ride.Ride
	for _, rd := range r.s.rides {
		if keep(rd) {
			out = append(out, r.view(rd))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// view copies the ride and fills the joined names
func (r *RideRepo) view(rd *ride.Ride) *ride.Ride {
	cp := *rd
	if rd.CaptainID != nil {
		id := *rd.CaptainID
		cp.CaptainID = &id
		cp.CaptainName = r.s.firstName(id)
	}
	cp.ClientName = r.s.firstName(rd.ClientID)
	return &cp
}

func isActive(s ride.Status) bool {
	for _, a := range ride.ActiveStatuses() {
		if s == a {
			return true
		}
	}
	return false
}
