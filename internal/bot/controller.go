package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/mashawir/ridebot/internal/activity"
	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/stats"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/domain/user"
	"github.com/mashawir/ridebot/internal/service/moderation"
	"github.com/mashawir/ridebot/internal/service/payments"
	"github.com/mashawir/ridebot/internal/service/rides"
	"github.com/mashawir/ridebot/internal/service/subscriptions"
	"github.com/mashawir/ridebot/internal/session"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
	"github.com/mashawir/ridebot/pkg/monitoring"
)

type Config struct {
	AdminUserID int64
	AdminChatID int64
	SupportURL  string
	RenewURL    string
	Currency    string
}

// Deps are the collaborators of the controller
type Deps struct {
	Messenger     Messenger
	Sessions      session.Store
	Users         user.Repository
	Stats         stats.Repository
	Rides         *rides.Service
	Subscriptions *subscriptions.Service
	Payments      *payments.Service
	Moderation    *moderation.Service
	Feed          activity.Publisher
	NewRelic      *monitoring.NewRelicApp
	Logger        *logger.Logger
}

// Controller handles one chat event at a time per call; it is safe for concurrent use
type Controller struct {
	cfg        Config
	msg        Messenger
	sessions   session.Store
	users      user.Repository
	stats      stats.Repository
	rides      *rides.Service
	subs       *subscriptions.Service
	payments   *payments.Service
	moderation *moderation.Service
	feed       activity.Publisher
	nr         *monitoring.NewRelicApp
	logger     *logger.Logger

	router *Router
	admin  map[string]adminCommand
	now    func() time.Time
}

func New(cfg Config, d Deps) *Controller {
	if cfg.Currency == "" {
		cfg.Currency = payment.DefaultCurrency
	}
	c := &Controller{
		cfg:        cfg,
		msg:        d.Messenger,
		sessions:   d.Sessions,
		users:      d.Users,
		stats:      d.Stats,
		rides:      d.Rides,
		subs:       d.Subscriptions,
		payments:   d.Payments,
		moderation: d.Moderation,
		feed:       d.Feed,
		nr:         d.NewRelic,
		logger:     d.Logger,
		now:        time.Now,
	}
	c.router = c.routes()
	c.admin = c.adminCommands()
	return c
}

func (c *Controller) routes() *Router {
	r := NewRouter()
	r.Exact(cbMainMenu, c.showMainMenu)
	r.Exact(cbClientMenu, c.chooseClient)
	r.Exact(cbCaptainMenu, c.chooseCaptain)
	r.Exact(cbSubscribe, c.showPlans)
	r.Exact(cbWarning, c.showNotice)
	r.Exact(cbAds, c.showAds)
	r.Exact(cbAdsInquiry, c.startAdsInquiry)
	r.Exact(cbRequestRide, c.startRideRequest)
	r.Exact(cbMyRides, c.showMyRides)
	r.Exact(cbViewRides, c.showPendingRides)
	r.Exact(cbCaptainRides, c.showCaptainRides)
	r.Exact(cbPlanWeekly, c.choosePlan(subscription.PlanWeekly))
	r.Exact(cbPlanMonthly, c.choosePlan(subscription.PlanMonthly))

	r.Prefix(prefixAcceptRide, 1, c.acceptRide)
	r.Prefix(prefixStartRide, 1, c.startRide)
	r.Prefix(prefixCompleteRide, 1, c.completeRide)
	r.Prefix(prefixCancelRide, 1, c.cancelRide)
	r.Prefix(prefixRate, 3, c.rateRide)
	r.Prefix(prefixPayRide, 1, c.payRide)
	r.Prefix(prefixCashPaid, 1, c.recordCash)
	for _, m := range payment.Methods() {
		r.Prefix(prefixPaymentMethod+string(m)+"_", 1, c.chooseMethod(m))
	}
	r.Prefix(prefixApprovePayment, 1, c.approvePayment)
	r.Prefix(prefixRejectPayment, 1, c.rejectPayment)
	return r
}

// Handle processes one event. Panics and errors end here; the user sees a catalogued message.
func (c *Controller) Handle(ctx context.Context, ev *Event) {
	start := c.now()
	txn := c.nr.StartTransaction("telegram/" + string(ev.Kind))
	defer txn.End()
	defer func() {
		if r := recover(); r != nil {
			txn.NoticeError(fmt.Errorf("panic: %v", r))
			c.logger.Error("Recovered from panic while handling event",
				logger.String("kind", string(ev.Kind)),
				logger.UserID(ev.From.ID),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())),
			)
			c.reply(ctx, ev, msgApology, nil)
		}
		c.nr.RecordUpdateLatency(string(ev.Kind), time.Since(start))
	}()

	if err := c.dispatch(ctx, ev); err != nil {
		c.fail(ctx, ev, err)
	}
}

func (c *Controller) dispatch(ctx context.Context, ev *Event) error {
	switch ev.Kind {
	case KindCallback:
		if ev.CallbackID != "" {
			if err := c.msg.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
				c.logger.Debug("Failed to answer callback", logger.Err(err))
			}
		}
		fn, ids, err := c.router.Match(ev.Data)
		if err != nil {
			return err
		}
		return fn(ctx, ev, ids)
	case KindCommand:
		return c.onCommand(ctx, ev)
	}

	if ev.IsGroup() {
		return c.moderate(ctx, ev)
	}
	if ev.ChatType == ChatChannel {
		return nil
	}

	switch ev.Kind {
	case KindText:
		return c.onText(ctx, ev)
	case KindLocation:
		return c.onLocation(ctx, ev)
	case KindPhoto:
		return c.onPhoto(ctx, ev)
	}
	return nil
}

// fail maps an error to the message shown to the user
func (c *Controller) fail(ctx context.Context, ev *Event, err error) {
	fields := []logger.Field{
		logger.String("kind", string(ev.Kind)),
		logger.UserID(ev.From.ID),
		logger.String("data", ev.Data),
		logger.Err(err),
	}

	text := msgApology
	switch {
	case errors.Is(err, ErrUnknownCallback), errors.Is(err, ErrMalformedCallback):
		text = msgStaleButton
	case errors.Is(err, errUsage):
		return
	case errors.Is(err, apperrors.ErrRideUnavailable), errors.Is(err, apperrors.ErrRideNotFound):
		text = msgUnavailable
	case errors.Is(err, apperrors.ErrNotParticipant), errors.Is(err, apperrors.ErrNotOwner):
		text = msgNotYours
	case errors.Is(err, apperrors.ErrAlreadyRated):
		text = msgAlreadyRated
	case errors.Is(err, apperrors.ErrRideAlreadyPaid):
		text = msgAlreadyPaid
	case errors.Is(err, apperrors.ErrRequestNotOpen):
		text = "This payment request is already closed."
	case errors.Is(err, apperrors.ErrPaymentNotPending):
		text = "This payment was already reviewed."
	case errors.Is(err, apperrors.ErrPaymentNotFound), errors.Is(err, apperrors.ErrPaymentRequestNotFound):
		text = "Payment not found."
	case errors.Is(err, apperrors.ErrInvalidRating):
		text = msgStaleButton
	case apperrors.HasCode(err, apperrors.CodeBadRequest):
		text = apperrors.GetAppError(err).Message
	}

	if apperrors.IsStorage(err) || text == msgApology {
		c.logger.Error("Failed to handle event", fields...)
	} else {
		c.logger.Debug("Event rejected", fields...)
	}
	c.reply(ctx, ev, text, nil)
}

// reply edits the message behind a callback, or sends a new message otherwise
func (c *Controller) reply(ctx context.Context, ev *Event, text string, kb *Keyboard) {
	if ev.Kind == KindCallback && ev.MessageID != 0 {
		err := c.msg.Edit(ctx, ev.ChatID, ev.MessageID, clip(text), kb)
		if err == nil {
			return
		}
		c.logger.Debug("Edit failed, sending instead", logger.Err(err))
	}
	c.notify(ctx, ev.ChatID, text, kb)
}

// notify sends a message; delivery failures are logged and never propagate
func (c *Controller) notify(ctx context.Context, chatID int64, text string, kb *Keyboard) {
	if chatID == 0 {
		return
	}
	if err := c.msg.Send(ctx, chatID, clip(text), kb); err != nil {
		c.logger.Warn("Failed to deliver message",
			logger.Int64("chat_id", chatID),
			logger.Err(err),
		)
	}
}

func (c *Controller) notifyAdmin(ctx context.Context, text string, kb *Keyboard) {
	c.notify(ctx, c.cfg.AdminChatID, text, kb)
}

func (c *Controller) isAdmin(userID int64) bool {
	return c.cfg.AdminUserID != 0 && userID == c.cfg.AdminUserID
}

// remember stores the sender profile; role is kept when unset
func (c *Controller) remember(ctx context.Context, from Sender, role user.Role) error {
	return c.users.Upsert(ctx, &user.User{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Role:      role,
	})
}

func (c *Controller) setRole(ctx context.Context, from Sender, role user.Role) error {
	changed, err := c.users.SetRole(ctx, from.ID, role)
	if err != nil {
		return err
	}
	if !changed {
		return c.remember(ctx, from, role)
	}
	return nil
}

func displayName(s Sender) string {
	u := user.User{FirstName: s.FirstName, LastName: s.LastName, Username: s.Username}
	return u.DisplayName()
}

func (c *Controller) start(ctx context.Context, ev *Event) error {
	if err := c.remember(ctx, ev.From, user.RoleUnset); err != nil {
		return err
	}
	if !ev.IsGroup() {
		if err := c.sessions.Clear(ctx, ev.From.ID); err != nil {
			c.logger.Warn("Failed to clear session", logger.UserID(ev.From.ID), logger.Err(err))
		}
	}
	c.notify(ctx, ev.ChatID, msgWelcome, mainMenu(c.cfg.SupportURL))
	return nil
}

func (c *Controller) onCommand(ctx context.Context, ev *Event) error {
	name, args := ev.Command()
	switch name {
	case "/start", "/menu":
		return c.start(ctx, ev)
	}

	cmd, ok := c.admin[name]
	if !ok {
		if !ev.IsGroup() {
			c.notify(ctx, ev.ChatID, msgUseMenu, nil)
		}
		return nil
	}
	if !c.isAdmin(ev.From.ID) {
		c.notify(ctx, ev.ChatID, msgAdminOnly, nil)
		return nil
	}

	err := cmd.run(ctx, ev, args)
	if errors.Is(err, errUsage) {
		c.notify(ctx, ev.ChatID, "Usage: "+cmd.usage, nil)
	}
	return err
}

func (c *Controller) showMainMenu(ctx context.Context, ev *Event, _ []int64) error {
	if err := c.sessions.Clear(ctx, ev.From.ID); err != nil {
		return err
	}
	c.reply(ctx, ev, msgWelcome, mainMenu(c.cfg.SupportURL))
	return nil
}

func (c *Controller) showNotice(ctx context.Context, ev *Event, _ []int64) error {
	c.reply(ctx, ev, msgSafety, NewKeyboard().Row(backToMain()))
	return nil
}

func (c *Controller) senderLine(s Sender) string {
	handle := ""
	if s.Username != "" {
		handle = " @" + s.Username
	}
	return fmt.Sprintf("%s%s [%d]", displayName(s), handle, s.ID)
}
