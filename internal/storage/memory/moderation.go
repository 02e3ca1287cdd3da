package memory

import (
	"context"
	"sort"
	"time"

	"github.com/mashawir/ridebot/internal/domain/moderation"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

type ModerationRepo struct {
	s *state
}

func (r *ModerationRepo) ListBannedWords(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	words := make([]string, 0, len(r.s.words))
	for w := range r.s.words {
		words = append(words, w)
	}
	sort.Strings(words)
	return words, nil
}

func (r *ModerationRepo) AddBannedWord(_ context.Context, word string, addedBy int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.words[word]; ok {
		return apperrors.ErrBannedWordExists
	}
	by := addedBy
	r.s.words[word] = &moderation.BannedWord{ID: r.s.next(), Word: word, AddedBy: &by, CreatedAt: r.s.now()}
	return nil
}

func (r *ModerationRepo) RemoveBannedWord(_ context.Context, word string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.words[word]; !ok {
		return apperrors.ErrBannedWordNotFound
	}
	delete(r.s.words, word)
	return nil
}

func (r *ModerationRepo) AddWarning(_ context.Context, w *moderation.Warning) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *w
	cp.ID = r.s.next()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.s.now()
	}
	r.s.warnings = append(r.s.warnings, &cp)
	return nil
}

func (r *ModerationRepo) CountWarnings(_ context.Context, userID int64, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, w := range r.s.warnings {
		if w.UserID == userID && !w.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *ModerationRepo) CreateBroadcast(_ context.Context, b *moderation.Broadcast) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *b
	cp.ID = r.s.next()
	cp.IsActive = true
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.s.now()
	}
	r.s.broadcasts[cp.ID] = &cp
	return cp.ID, nil
}

func (r *ModerationRepo) ListDueBroadcasts(_ context.Context, now time.Time) ([]*moderation.Broadcast, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var due []*moderation.Broadcast
	for _, b := range r.s.broadcasts {
		if b.IsDue(now) {
			cp := *b
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (r *ModerationRepo) MarkBroadcastSent(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if b, ok := r.s.broadcasts[id]; ok {
		sent := at
		b.LastSent = &sent
	}
	return nil
}
