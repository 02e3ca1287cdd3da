package sweeper

import (
	"context"
	"time"

	"github.com/mashawir/ridebot/internal/bot"
	"github.com/mashawir/ridebot/internal/domain/moderation"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/pkg/logger"
)

// BroadcastSource lists and stamps scheduled messages
type BroadcastSource interface {
	Due(ctx context.Context, now time.Time) ([]*moderation.Broadcast, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
}

// BroadcastJob sends every due broadcast and stamps it. A failed send is not stamped
// so the message goes out on a later tick.
type BroadcastJob struct {
	source    BroadcastSource
	messenger bot.Messenger
	logger    *logger.Logger
	now       func() time.Time
}

func NewBroadcastJob(source BroadcastSource, messenger bot.Messenger, log *logger.Logger) *BroadcastJob {
	return &BroadcastJob{source: source, messenger: messenger, logger: log, now: time.Now}
}

func (j *BroadcastJob) Name() string { return "broadcasts" }

func (j *BroadcastJob) Run(ctx context.Context) (int, error) {
	now := j.now()
	due, err := j.source.Due(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, b := range due {
		if err := j.messenger.Send(ctx, b.ChatID, b.Text, nil); err != nil {
			j.logger.Warn("Failed to send scheduled message",
				logger.Int64("broadcast_id", b.ID),
				logger.Int64("chat_id", b.ChatID),
				logger.Err(err),
			)
			continue
		}
		if err := j.source.MarkSent(ctx, b.ID, now); err != nil {
			j.logger.Error("Failed to stamp scheduled message",
				logger.Int64("broadcast_id", b.ID),
				logger.Err(err),
			)
			continue
		}
		sent++
	}
	return sent, nil
}

// SubscriptionExpirer deactivates expired subscriptions and returns them
type SubscriptionExpirer interface {
	Expire(ctx context.Context) ([]*subscription.Subscription, error)
}

// ExpiryJob deactivates expired subscriptions and asks their owners to renew
type ExpiryJob struct {
	subs      SubscriptionExpirer
	messenger bot.Messenger
	renewURL  string
	logger    *logger.Logger
}

func NewExpiryJob(subs SubscriptionExpirer, messenger bot.Messenger, renewURL string, log *logger.Logger) *ExpiryJob {
	return &ExpiryJob{subs: subs, messenger: messenger, renewURL: renewURL, logger: log}
}

func (j *ExpiryJob) Name() string { return "subscription_expiry" }

func (j *ExpiryJob) Run(ctx context.Context) (int, error) {
	expired, err := j.subs.Expire(ctx)
	if err != nil {
		return 0, err
	}

	kb := bot.ExpiredKeyboard(j.renewURL)
	for _, s := range expired {
		if err := j.messenger.Send(ctx, s.UserID, bot.ExpiredText, kb); err != nil {
			j.logger.Warn("Failed to notify expired subscriber",
				logger.UserID(s.UserID),
				logger.Err(err),
			)
		}
	}
	return len(expired), nil
}
