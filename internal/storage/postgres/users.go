package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mashawir/ridebot/internal/domain/user"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

const userColumns = `user_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
	COALESCE(user_type, ''), rating, total_rides, created_at, updated_at`

// UserRepo persists Telegram users
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Upsert keeps the stored role when u carries no role
func (r *UserRepo) Upsert(ctx context.Context, u *user.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name, user_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			user_type = COALESCE(EXCLUDED.user_type, users.user_type),
			updated_at = NOW()
	`, u.ID, nullString(u.Username), nullString(u.FirstName), nullString(u.LastName), nullString(string(u.Role)))
	if err != nil {
		return apperrors.Storage("upsert user", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.Storage("get user", err)
	}
	return u, nil
}

func (r *UserRepo) SetRole(ctx context.Context, id int64, role user.Role) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET user_type = $2, updated_at = NOW() WHERE user_id = $1`,
		id, nullString(string(role)))
	if err != nil {
		return false, apperrors.Storage("set user role", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Storage("set user role", err)
	}
	return n > 0, nil
}

func (r *UserRepo) ListRecent(ctx context.Context, limit int) ([]*user.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.Storage("list users", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.Storage("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("list users", err)
	}
	return users, nil
}

func scanUser(s scanner) (*user.User, error) {
	var u user.User
	var role string
	if err := s.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &role,
		&u.Rating, &u.TotalRides, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = user.Role(role)
	return &u, nil
}
