package moderation

import (
	"context"
	"time"
)

// DefaultBannedWords seeds an empty banned word table
var DefaultBannedWords = []string{"زواج", "مسيار", "جنس", "سكس", "عري", "إباحي"}

type BannedWord struct {
	ID        int64     `json:"id"`
	Word      string    `json:"word"`
	AddedBy   *int64    `json:"added_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Warning struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Reason    string    `json:"reason"`
	WarnedBy  *int64    `json:"warned_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Broadcast is a message repeated to a chat every IntervalHours for DurationDays
type Broadcast struct {
	ID            int64      `json:"id"`
	ChatID        int64      `json:"chat_id"`
	Text          string     `json:"message_text"`
	IntervalHours int        `json:"interval_hours"`
	DurationDays  int        `json:"duration_days"`
	CreatedBy     int64      `json:"created_by"`
	IsActive      bool       `json:"is_active"`
	LastSent      *time.Time `json:"last_sent,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Repository interface {
	ListBannedWords(ctx context.Context) ([]string, error)
	AddBannedWord(ctx context.Context, word string, addedBy int64) error
	RemoveBannedWord(ctx context.Context, word string) error

	AddWarning(ctx context.Context, w *Warning) error
	CountWarnings(ctx context.Context, userID int64, since time.Time) (int, error)

	CreateBroadcast(ctx context.Context, b *Broadcast) (int64, error)
	ListDueBroadcasts(ctx context.Context, now time.Time) ([]*Broadcast, error)
	MarkBroadcastSent(ctx context.Context, id int64, at time.Time) error
}

// ExpiresAt is the end of the broadcast window
func (b *Broadcast) ExpiresAt() time.Time {
	return b.CreatedAt.Add(time.Duration(b.DurationDays) * 24 * time.Hour)
}

// IsDue reports whether the broadcast should be sent at now
func (b *Broadcast) IsDue(now time.Time) bool {
	if !b.IsActive || !now.Before(b.ExpiresAt()) {
		return false
	}
	if b.LastSent == nil {
		return true
	}
	return !b.LastSent.Add(time.Duration(b.IntervalHours) * time.Hour).After(now)
}
