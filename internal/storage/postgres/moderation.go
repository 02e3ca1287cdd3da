package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/mashawir/ridebot/internal/domain/moderation"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

// ModerationRepo stores banned words, warnings and scheduled broadcasts
type ModerationRepo struct {
	db *sql.DB
}

func NewModerationRepo(db *sql.DB) *ModerationRepo {
	return &ModerationRepo{db: db}
}

func (r *ModerationRepo) ListBannedWords(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT word FROM banned_words ORDER BY word`)
	if err != nil {
		return nil, apperrors.Storage("list banned words", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, apperrors.Storage("list banned words", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("list banned words", err)
	}
	return words, nil
}

func (r *ModerationRepo) AddBannedWord(ctx context.Context, word string, addedBy int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO banned_words (word, added_by) VALUES ($1, $2)`, word, addedBy)
	if isUniqueViolation(err) {
		return apperrors.ErrBannedWordExists
	}
	if err != nil {
		return apperrors.Storage("add banned word", err)
	}
	return nil
}

func (r *ModerationRepo) RemoveBannedWord(ctx context.Context, word string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM banned_words WHERE word = $1`, word)
	if err != nil {
		return apperrors.Storage("remove banned word", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Storage("remove banned word", err)
	}
	if n == 0 {
		return apperrors.ErrBannedWordNotFound
	}
	return nil
}

func (r *ModerationRepo) AddWarning(ctx context.Context, w *moderation.Warning) error {
	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_warnings (user_id, reason, warned_by, created_at) VALUES ($1, $2, $3, $4)`,
		w.UserID, nullString(w.Reason), nullInt64(w.WarnedBy), createdAt)
	if err != nil {
		return apperrors.Storage("add warning", err)
	}
	return nil
}

func (r *ModerationRepo) CountWarnings(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_warnings WHERE user_id = $1 AND created_at >= $2`, userID, since).Scan(&n)
	if err != nil {
		return 0, apperrors.Storage("count warnings", err)
	}
	return n, nil
}

func (r *ModerationRepo) CreateBroadcast(ctx context.Context, b *moderation.Broadcast) (int64, error) {
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO scheduled_messages (chat_id, message_text, interval_hours, duration_days, created_by, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		RETURNING id
	`, b.ChatID, b.Text, b.IntervalHours, b.DurationDays, b.CreatedBy, createdAt).Scan(&id)
	if err != nil {
		return 0, apperrors.Storage("create broadcast", err)
	}
	return id, nil
}

// ListDueBroadcasts mirrors Broadcast.IsDue in SQL
func (r *ModerationRepo) ListDueBroadcasts(ctx context.Context, now time.Time) ([]*moderation.Broadcast, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, message_text, interval_hours, duration_days, created_by, is_active, last_sent, created_at
		FROM scheduled_messages
		WHERE is_active
			AND $1 < created_at + duration_days * INTERVAL '1 day'
			AND (last_sent IS NULL OR last_sent + interval_hours * INTERVAL '1 hour' <= $1)
		ORDER BY id
	`, now)
	if err != nil {
		return nil, apperrors.Storage("list due broadcasts", err)
	}
	defer rows.Close()

	var due []*moderation.Broadcast
	for rows.Next() {
		var (
			b        moderation.Broadcast
			lastSent sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.ChatID, &b.Text, &b.IntervalHours, &b.DurationDays,
			&b.CreatedBy, &b.IsActive, &lastSent, &b.CreatedAt); err != nil {
			return nil, apperrors.Storage("list due broadcasts", err)
		}
		b.LastSent = timePtr(lastSent)
		due = append(due, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("list due broadcasts", err)
	}
	return due, nil
}

func (r *ModerationRepo) MarkBroadcastSent(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_messages SET last_sent = $2 WHERE id = $1`, id, at); err != nil {
		return apperrors.Storage("mark broadcast sent", err)
	}
	return nil
}
