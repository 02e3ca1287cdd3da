package memory

import (
	"context"
	"sort"

	"github.com/mashawir/ridebot/internal/domain/user"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

type UserRepo struct {
	s *state
}

func (r *UserRepo) Upsert(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	existing, ok := r.s.users[u.ID]
	if !ok {
		cp := *u
		cp.Rating, cp.TotalRides = 0, 0
		cp.CreatedAt, cp.UpdatedAt = now, now
		r.s.users[u.ID] = &cp
		return nil
	}

	existing.Username = u.Username
	existing.FirstName = u.FirstName
	existing.LastName = u.LastName
	if u.Role != user.RoleUnset {
		existing.Role = u.Role
	}
	existing.UpdatedAt = now
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) SetRole(_ context.Context, id int64, role user.Role) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return false, nil
	}
	u.Role = role
	u.UpdatedAt = r.s.now()
	return true, nil
}

func (r *UserRepo) ListRecent(_ context.Context, limit int) ([]*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
