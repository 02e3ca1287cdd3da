package bot

import (
	"context"
	"fmt"

	"github.com/mashawir/ridebot/internal/activity"
	"github.com/mashawir/ridebot/pkg/logger"
)

// moderate deletes flagged group messages, warns the sender and bans at the warning limit
func (c *Controller) moderate(ctx context.Context, ev *Event) error {
	if ev.Text == "" || c.isAdmin(ev.From.ID) {
		return nil
	}
	verdict := c.moderation.Check(ev.Text)
	if !verdict.Flagged {
		return nil
	}

	if err := c.msg.Delete(ctx, ev.ChatID, ev.MessageID); err != nil {
		c.logger.Warn("Failed to delete flagged message",
			logger.Int64("chat_id", ev.ChatID),
			logger.Int("message_id", ev.MessageID),
			logger.Err(err),
		)
	}

	res, err := c.moderation.Warn(ctx, ev.From.ID, "banned content: "+verdict.Match, nil)
	if err != nil {
		return err
	}
	name := displayName(ev.From)
	limit := c.moderation.WarnLimit()

	switch {
	case res.Ban:
		if err := c.msg.Ban(ctx, ev.ChatID, ev.From.ID); err != nil {
			c.logger.Error("Failed to ban user",
				logger.Int64("chat_id", ev.ChatID),
				logger.UserID(ev.From.ID),
				logger.Err(err),
			)
			c.moderation.ReleaseBan(ev.From.ID)
			return nil
		}
		c.notify(ctx, ev.ChatID, fmt.Sprintf("%s was removed from the group after %d warnings.", name, res.Count), nil)
		if c.feed != nil {
			c.feed.Publish(ctx, activity.Event{Kind: activity.UserBanned, UserID: ev.From.ID, Detail: verdict.Match})
		}
	case res.Count < limit:
		c.notify(ctx, ev.ChatID, fmt.Sprintf("%s, your message was removed for breaking the group rules. Warning %d of %d.",
			name, res.Count, limit), nil)
	}
	return nil
}
