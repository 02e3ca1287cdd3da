// Package moderation filters group messages and schedules broadcasts.
package moderation

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mashawir/ridebot/internal/domain/moderation"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
	"github.com/mashawir/ridebot/pkg/monitoring"
)

var promoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`للبيع`),
	regexp.MustCompile(`للايجار`),
	regexp.MustCompile(`اعلان`),
	regexp.MustCompile(`اعلانات`),
	regexp.MustCompile(`خصم`),
	regexp.MustCompile(`عرض`),
	regexp.MustCompile(`تخفيض`),
	regexp.MustCompile(`مجانا`),
	regexp.MustCompile(`www\.`),
	regexp.MustCompile(`http`),
	regexp.MustCompile(`bit\.ly`),
	regexp.MustCompile(`t\.me`),
}

type Config struct {
	WarnLimit  int
	WarnWindow time.Duration
}

func DefaultConfig() Config {
	return Config{WarnLimit: 3, WarnWindow: 30 * 24 * time.Hour}
}

// Verdict is the result of checking a message
type Verdict struct {
	Flagged bool
	Match   string
}

// WarnResult reports the warning count inside the window and whether this warning bans
type WarnResult struct {
	Count int
	Ban   bool
}

// Service owns the banned word cache. Reload must run before Check sees stored words.
type Service struct {
	repo   moderation.Repository
	config Config
	nr     *monitoring.NewRelicApp
	logger *logger.Logger
	now    func() time.Time

	mu    sync.RWMutex
	words []string

	banMu  sync.Mutex
	banned map[int64]struct{}
}

func NewService(repo moderation.Repository, config Config, nr *monitoring.NewRelicApp, log *logger.Logger) *Service {
	if config.WarnLimit <= 0 {
		config.WarnLimit = DefaultConfig().WarnLimit
	}
	if config.WarnWindow <= 0 {
		config.WarnWindow = DefaultConfig().WarnWindow
	}
	return &Service{
		repo:   repo,
		config: config,
		nr:     nr,
		logger: log,
		now:    time.Now,
		banned: make(map[int64]struct{}),
	}
}

// Reload replaces the cache with the stored word list
func (s *Service) Reload(ctx context.Context) error {
	words, err := s.repo.ListBannedWords(ctx)
	if err != nil {
		s.logger.Error("Failed to load banned words", logger.Err(err))
		return err
	}
	for i := range words {
		words[i] = strings.ToLower(words[i])
	}

	s.mu.Lock()
	s.words = words
	s.mu.Unlock()

	s.logger.Info("Banned words loaded", logger.Int("count", len(words)))
	return nil
}

func (s *Service) Words() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.words...)
}

func (s *Service) AddWord(ctx context.Context, word string, adminID int64) (string, error) {
	word = normalize(word)
	if word == "" {
		return "", apperrors.BadRequest("Word is empty", nil)
	}
	if err := s.repo.AddBannedWord(ctx, word, adminID); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.words = append(s.words, word)
	s.mu.Unlock()

	s.logger.Info("Banned word added", logger.String("word", word), logger.Int64("admin_id", adminID))
	return word, nil
}

func (s *Service) RemoveWord(ctx context.Context, word string) (string, error) {
	word = normalize(word)
	if err := s.repo.RemoveBannedWord(ctx, word); err != nil {
		return "", err
	}

	s.mu.Lock()
	kept := s.words[:0]
	for _, w := range s.words {
		if w != word {
			kept = append(kept, w)
		}
	}
	s.words = kept
	s.mu.Unlock()

	s.logger.Info("Banned word removed", logger.String("word", word))
	return word, nil
}

// Check flags text containing a banned word or a promotional pattern
func (s *Service) Check(text string) Verdict {
	lower := strings.ToLower(text)
	if lower == "" {
		return Verdict{}
	}

	s.mu.RLock()
	for _, w := range s.words {
		if strings.Contains(lower, w) {
			s.mu.RUnlock()
			return Verdict{Flagged: true, Match: w}
		}
	}
	s.mu.RUnlock()

	for _, re := range promoPatterns {
		if re.MatchString(lower) {
			return Verdict{Flagged: true, Match: re.String()}
		}
	}
	return Verdict{}
}

// Warn records a warning. Ban is set once the count reaches the limit and no
// other warning has claimed the ban yet; ReleaseBan hands it back after a failed ban.
func (s *Service) Warn(ctx context.Context, userID int64, reason string, warnedBy *int64) (*WarnResult, error) {
	now := s.now()
	err := s.repo.AddWarning(ctx, &moderation.Warning{
		UserID:    userID,
		Reason:    reason,
		WarnedBy:  warnedBy,
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Error("Failed to record warning", logger.UserID(userID), logger.Err(err))
		return nil, err
	}

	count, err := s.repo.CountWarnings(ctx, userID, now.Add(-s.config.WarnWindow))
	if err != nil {
		return nil, err
	}

	res := &WarnResult{Count: count}
	if count >= s.config.WarnLimit {
		res.Ban = s.claimBan(userID)
	}
	action := "warn"
	if res.Ban {
		action = "ban"
	}
	if s.nr != nil {
		s.nr.RecordModerationAction(action, userID)
	}
	s.logger.Info("User warned",
		logger.UserID(userID),
		logger.Int("count", count),
		logger.Bool("ban", res.Ban),
	)
	return res, nil
}

func (s *Service) claimBan(userID int64) bool {
	s.banMu.Lock()
	defer s.banMu.Unlock()
	if _, ok := s.banned[userID]; ok {
		return false
	}
	s.banned[userID] = struct{}{}
	return true
}

// ReleaseBan lets the next warning of the user try the ban again
func (s *Service) ReleaseBan(userID int64) {
	s.banMu.Lock()
	defer s.banMu.Unlock()
	delete(s.banned, userID)
}

func (s *Service) WarnLimit() int {
	return s.config.WarnLimit
}

// Schedule stores a broadcast repeated every intervalHours for durationDays
func (s *Service) Schedule(ctx context.Context, chatID int64, text string, intervalHours, durationDays int, createdBy int64) (*moderation.Broadcast, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.BadRequest("Broadcast text is empty", nil)
	}
	if intervalHours <= 0 || durationDays <= 0 {
		return nil, apperrors.BadRequest("Interval and duration must be positive", nil)
	}

	b := &moderation.Broadcast{
		ChatID:        chatID,
		Text:          text,
		IntervalHours: intervalHours,
		DurationDays:  durationDays,
		CreatedBy:     createdBy,
		IsActive:      true,
		CreatedAt:     s.now(),
	}
	id, err := s.repo.CreateBroadcast(ctx, b)
	if err != nil {
		return nil, err
	}
	b.ID = id

	s.logger.Info("Broadcast scheduled",
		logger.Int64("broadcast_id", id),
		logger.Int64("chat_id", chatID),
		logger.Int("interval_hours", intervalHours),
		logger.Int("duration_days", durationDays),
	)
	return b, nil
}

func (s *Service) Due(ctx context.Context, now time.Time) ([]*moderation.Broadcast, error) {
	return s.repo.ListDueBroadcasts(ctx, now)
}

func (s *Service) MarkSent(ctx context.Context, id int64, at time.Time) error {
	return s.repo.MarkBroadcastSent(ctx, id, at)
}

func normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
