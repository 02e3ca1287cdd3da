package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/mashawir/ridebot/pkg/errors"
)

const (
	adminListLimit     = 10
	defaultRevenueDays = 30
)

var errUsage = errors.New("usage")

type adminCommand struct {
	usage string
	run   func(ctx context.Context, ev *Event, args []string) error
}

func (c *Controller) adminCommands() map[string]adminCommand {
	return map[string]adminCommand{
		"/addword":    {usage: "/addword <word>", run: c.cmdAddWord},
		"/removeword": {usage: "/removeword <word>", run: c.cmdRemoveWord},
		"/words":      {usage: "/words", run: c.cmdWords},
		"/schedule":   {usage: "/schedule <chat_id> <interval_hours> <days> <text>", run: c.cmdSchedule},
		"/addsub":     {usage: "/addsub <user_id> <days>", run: c.cmdAddSub},
		"/checksub":   {usage: "/checksub <user_id>", run: c.cmdCheckSub},
		"/stats":      {usage: "/stats", run: c.cmdStats},
		"/rides":      {usage: "/rides", run: c.cmdRides},
		"/users":      {usage: "/users", run: c.cmdUsers},
		"/finduser":   {usage: "/finduser <user_id>", run: c.cmdFindUser},
		"/live":       {usage: "/live", run: c.cmdLive},
		"/revenue":    {usage: "/revenue [days]", run: c.cmdRevenue},
		"/approve":    {usage: "/approve <payment_id>", run: c.cmdApprove},
		"/reject":     {usage: "/reject <payment_id>", run: c.cmdReject},
		"/pending":    {usage: "/pending", run: c.cmdPending},
	}
}

func intArg(args []string, i int) (int64, error) {
	if i >= len(args) {
		return 0, errUsage
	}
	v, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, errUsage
	}
	return v, nil
}

func positiveArg(args []string, i int) (int, error) {
	v, err := intArg(args, i)
	if err != nil || v <= 0 {
		return 0, errUsage
	}
	return int(v), nil
}

func (c *Controller) cmdAddWord(ctx context.Context, ev *Event, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	word, err := c.moderation.AddWord(ctx, strings.Join(args, " "), ev.From.ID)
	switch {
	case errors.Is(err, apperrors.ErrBannedWordExists):
		c.notify(ctx, ev.ChatID, "That word is already banned.", nil)
		return nil
	case err != nil:
		return err
	}
	c.notify(ctx, ev.ChatID, fmt.Sprintf("Added %q to the banned words.", word), nil)
	return nil
}

func (c *Controller) cmdRemoveWord(ctx context.Context, ev *Event, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	word, err := c.moderation.RemoveWord(ctx, strings.Join(args, " "))
	switch {
	case errors.Is(err, apperrors.ErrBannedWordNotFound):
		c.notify(ctx, ev.ChatID, "That word is not in the banned list.", nil)
		return nil
	case err != nil:
		return err
	}
	c.notify(ctx, ev.ChatID, fmt.Sprintf("Removed %q from the banned words.", word), nil)
	return nil
}

func (c *Controller) cmdWords(ctx context.Context, ev *Event, _ []string) error {
	words := c.moderation.Words()
	if len(words) == 0 {
		c.notify(ctx, ev.ChatID, "The banned word list is empty.", nil)
		return nil
	}
	c.notify(ctx, ev.ChatID, fmt.Sprintf("Banned words (%d):\n%s", len(words), strings.Join(words, ", ")), nil)
	return nil
}

func (c *Controller) cmdSchedule(ctx context.Context, ev *Event, args []string) error {
	if len(args) < 4 {
		return errUsage
	}
	chatID, err := intArg(args, 0)
	if err != nil {
		return err
	}
	interval, err := positiveArg(args, 1)
	if err != nil {
		return err
	}
	days, err := positiveArg(args, 2)
	if err != nil {
		return err
	}

	b, err := c.moderation.Schedule(ctx, chatID, strings.Join(args[3:], " "), interval, days, ev.From.ID)
	if err != nil {
		return err
	}
	c.notify(ctx, ev.ChatID, fmt.Sprintf("Broadcast #%d scheduled for chat %d every %d hours for %d days.",
		b.ID, chatID, interval, days), nil)
	return nil
}

func (c *Controller) cmdAddSub(ctx context.Context, ev *Event, args []string) error {
	userID, err := intArg(args, 0)
	if err != nil {
		return err
	}
	days, err := positiveArg(args, 1)
	if err != nil {
		return err
	}

	if _, err := c.users.GetByID(ctx, userID); err != nil {
		if apperrors.IsNotFound(err) {
			c.notify(ctx, ev.ChatID, fmt.Sprintf("User %d has not started the bot yet.", userID), nil)
			return nil
		}
		return err
	}

	adminID := ev.From.ID
	sub, err := c.subs.Subscribe(ctx, userID, days, nil, "admin", &adminID)
	if err != nil {
		return err
	}
	c.notify(ctx, ev.ChatID, fmt.Sprintf("Subscription for user %d is active until %s.", userID, date(sub.EndDate)), nil)
	c.notify(ctx, userID, fmt.Sprintf("Your captain subscription is active until %s.", date(sub.EndDate)), nil)
	return nil
}

func (c *Controller) cmdCheckSub(ctx context.Context, ev *Event, args []string) error {
	userID, err := intArg(args, 0)
	if err != nil {
		return err
	}
	sub, err := c.subs.Active(ctx, userID)
	if apperrors.IsNotFound(err) {
		c.notify(ctx, ev.ChatID, fmt.Sprintf("User %d has no active subscription.", userID), nil)
		return nil
	}
	if err != nil {
		return err
	}
	c.notify(ctx, ev.ChatID, fmt.Sprintf("User %d: %s plan until %s (%d days left).",
		userID, planName(sub.Plan), date(sub.EndDate), sub.DaysLeft(c.now())), nil)
	return nil
}

func (c *Controller) cmdStats(ctx context.Context, ev *Event, _ []string) error {
	o, err := c.stats.Overview(ctx, c.now())
	if err != nil {
		return err
	}
	c.notify(ctx, ev.ChatID, overviewText(o, c.cfg.Currency), nil)
	return nil
}

func (c *Controller) cmdRides(ctx context.Context, ev *Event, _ []string) error {
	list, err := c.rides.Recent(ctx, adminListLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		c.notify(ctx, ev.ChatID, "No rides yet.", nil)
		return nil
	}
	c.notify(ctx, ev.ChatID, rideListText("Latest rides:", list), nil)
	return nil
}

func (c *Controller) cmdLive(ctx context.Context, ev *Event, _ []string) error {
	list, err := c.rides.Active(ctx, adminListLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		c.notify(ctx, ev.ChatID, "No rides are in progress.", nil)
		return nil
	}
	var b strings.Builder
	b.WriteString("Live rides:\n\n")
	for _, rd := range list {
		fmt.Fprintf(&b, "%s\n   Client: %s, captain: %s\n", rideLine(rd), rd.ClientName, rd.CaptainName)
	}
	c.notify(ctx, ev.ChatID, b.String(), nil)
	return nil
}

func (c *Controller) cmdUsers(ctx context.Context, ev *Event, _ []string) error {
	list, err := c.users.ListRecent(ctx, adminListLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		c.notify(ctx, ev.ChatID, "No users yet.", nil)
		return nil
	}
	var b strings.Builder
	b.WriteString("Latest users:\n\n")
	for _, u := range list {
		role := string(u.Role)
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(&b, "%s [%d] %s\n", u.DisplayName(), u.ID, role)
	}
	c.notify(ctx, ev.ChatID, b.String(), nil)
	return nil
}

func (c *Controller) cmdFindUser(ctx context.Context, ev *Event, args []string) error {
	userID, err := intArg(args, 0)
	if err != nil {
		return err
	}
	u, err := c.users.GetByID(ctx, userID)
	if apperrors.IsNotFound(err) {
		c.notify(ctx, ev.ChatID, fmt.Sprintf("User %d not found.", userID), nil)
		return nil
	}
	if err != nil {
		return err
	}

	text := userText(u)
	if sub, err := c.subs.Active(ctx, userID); err == nil {
		text += fmt.Sprintf("\nSubscription until %s", date(sub.EndDate))
	}
	c.notify(ctx, ev.ChatID, text, nil)
	return nil
}

func (c *Controller) cmdRevenue(ctx context.Context, ev *Event, args []string) error {
	days := defaultRevenueDays
	if len(args) > 0 {
		v, err := positiveArg(args, 0)
		if err != nil {
			return err
		}
		days = v
	}
	r, err := c.payments.Revenue(ctx, days)
	if err != nil {
		return err
	}
	c.notify(ctx, ev.ChatID, revenueText(r, days, c.cfg.Currency), nil)
	return nil
}

func (c *Controller) cmdApprove(ctx context.Context, ev *Event, args []string) error {
	id, err := intArg(args, 0)
	if err != nil {
		return err
	}
	return c.approve(ctx, ev, id)
}

func (c *Controller) cmdReject(ctx context.Context, ev *Event, args []string) error {
	id, err := intArg(args, 0)
	if err != nil {
		return err
	}
	return c.reject(ctx, ev, id)
}

func (c *Controller) cmdPending(ctx context.Context, ev *Event, _ []string) error {
	list, err := c.payments.Pending(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		c.notify(ctx, ev.ChatID, "No payments are waiting for review.", nil)
		return nil
	}
	for _, p := range list {
		c.notify(ctx, ev.ChatID, paymentLine(p), reviewKeyboard(p.ID))
	}
	return nil
}
