package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/domain/user"
	"github.com/mashawir/ridebot/internal/service/payments"
	"github.com/mashawir/ridebot/internal/session"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
)

func (c *Controller) showPlans(ctx context.Context, ev *Event, _ []int64) error {
	active, err := c.subs.Active(ctx, ev.From.ID)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	offers := c.subs.Plans()
	c.reply(ctx, ev, plansText(offers, active, c.now(), c.cfg.Currency), plansKeyboard(offers))
	return nil
}

func (c *Controller) choosePlan(plan subscription.Plan) CallbackFunc {
	return func(ctx context.Context, ev *Event, _ []int64) error {
		if err := c.remember(ctx, ev.From, user.RoleUnset); err != nil {
			return err
		}
		req, err := c.payments.RequestSubscription(ctx, ev.From.ID, plan)
		if err != nil {
			return err
		}
		c.reply(ctx, ev, paymentRequestText(req, c.cfg.Currency), methodKeyboard(req.ID))
		return nil
	}
}

func (c *Controller) payRide(ctx context.Context, ev *Event, ids []int64) error {
	req, err := c.payments.RequestRide(ctx, ev.From.ID, ids[0])
	if err != nil {
		return err
	}
	c.reply(ctx, ev, paymentRequestText(req, c.cfg.Currency), methodKeyboard(req.ID))
	return nil
}

func (c *Controller) chooseMethod(method payment.Method) CallbackFunc {
	return func(ctx context.Context, ev *Event, ids []int64) error {
		out, err := c.payments.ChooseMethod(ctx, ev.From.ID, ids[0], method)
		if err != nil {
			return err
		}

		if out.AwaitingProof {
			if err := c.sessions.Set(ctx, ev.From.ID, session.AwaitingPaymentProof(out.Request.ID, method)); err != nil {
				return err
			}
			c.reply(ctx, ev, fmt.Sprintf("Transfer %s using %s, then send a photo of the receipt here.",
				money(out.Request.Amount, c.cfg.Currency), methodLabels[method]), nil)
			return nil
		}

		text := fmt.Sprintf("Cash payment of %s recorded.", money(out.Payment.Amount, out.Payment.Currency))
		if out.Subscription != nil {
			text += fmt.Sprintf("\nYour subscription is active until %s.", date(out.Subscription.EndDate))
		}
		c.reply(ctx, ev, text, NewKeyboard().Row(backToMain()))
		c.notifyAdmin(ctx, "Cash payment received\n\n"+proofCaption(out.Payment, out.Request.ID), nil)
		return nil
	}
}

func (c *Controller) onPhoto(ctx context.Context, ev *Event) error {
	st, err := c.sessions.Get(ctx, ev.From.ID)
	if err != nil {
		return err
	}
	if st.Step != session.StepAwaitingPaymentProof {
		c.notify(ctx, ev.ChatID, msgUseMenu, nil)
		return nil
	}

	out, err := c.payments.SubmitProof(ctx, ev.From.ID, st.RequestID, st.Method, ev.PhotoID)
	if err != nil {
		if errors.Is(err, apperrors.ErrRequestNotOpen) || apperrors.IsNotFound(err) {
			_ = c.sessions.Clear(ctx, ev.From.ID)
		}
		return err
	}
	if err := c.sessions.Clear(ctx, ev.From.ID); err != nil {
		c.logger.Warn("Failed to clear session", logger.UserID(ev.From.ID), logger.Err(err))
	}

	if c.cfg.AdminChatID != 0 {
		caption := proofCaption(out.Payment, st.RequestID)
		if err := c.msg.SendPhoto(ctx, c.cfg.AdminChatID, ev.PhotoID, caption, reviewKeyboard(out.Payment.ID)); err != nil {
			c.logger.Error("Failed to forward payment proof",
				logger.Int64("payment_id", out.Payment.ID),
				logger.Err(err),
			)
		}
	}
	c.notify(ctx, ev.ChatID, msgProofReceived, NewKeyboard().Row(backToMain()))
	return nil
}

func (c *Controller) recordCash(ctx context.Context, ev *Event, ids []int64) error {
	p, err := c.payments.RecordCash(ctx, ev.From.ID, ids[0])
	if err != nil {
		return err
	}
	c.reply(ctx, ev, fmt.Sprintf("Cash payment of %s recorded for ride #%d.", money(p.Amount, p.Currency), ids[0]),
		NewKeyboard().Row(Button{Text: "Back", Data: cbCaptainMenu}))
	c.notifyAdmin(ctx, fmt.Sprintf("Captain %s confirmed a cash payment of %s for ride #%d.",
		c.senderLine(ev.From), money(p.Amount, p.Currency), ids[0]), nil)
	return nil
}

func (c *Controller) approvePayment(ctx context.Context, ev *Event, ids []int64) error {
	if !c.isAdmin(ev.From.ID) {
		return apperrors.ErrNotParticipant
	}
	return c.approve(ctx, ev, ids[0])
}

func (c *Controller) rejectPayment(ctx context.Context, ev *Event, ids []int64) error {
	if !c.isAdmin(ev.From.ID) {
		return apperrors.ErrNotParticipant
	}
	return c.reject(ctx, ev, ids[0])
}

// approve answers in a new message because review buttons sit under a photo
func (c *Controller) approve(ctx context.Context, ev *Event, paymentID int64) error {
	out, err := c.payments.Approve(ctx, paymentID, ev.From.ID)
	if err != nil {
		return err
	}
	c.notify(ctx, ev.ChatID, fmt.Sprintf("Payment #%d approved.", paymentID), nil)
	c.notify(ctx, out.Payment.UserID, approvedText(out), nil)
	return nil
}

func (c *Controller) reject(ctx context.Context, ev *Event, paymentID int64) error {
	p, err := c.payments.Reject(ctx, paymentID, ev.From.ID)
	if err != nil {
		return err
	}
	c.notify(ctx, ev.ChatID, fmt.Sprintf("Payment #%d rejected.", paymentID), nil)
	c.notify(ctx, p.UserID, fmt.Sprintf("Your payment #%d was rejected. Contact the administration if you think this is a mistake.", paymentID), nil)
	return nil
}

func approvedText(out *payments.Outcome) string {
	text := fmt.Sprintf("Your payment #%d was approved.", out.Payment.ID)
	if out.Subscription != nil {
		text += fmt.Sprintf(" Your subscription is active until %s.", date(out.Subscription.EndDate))
	}
	return text
}

func (c *Controller) showAds(ctx context.Context, ev *Event, _ []int64) error {
	kb := NewKeyboard().
		Row(Button{Text: "Send an inquiry", Data: cbAdsInquiry}).
		Row(backToMain())
	c.reply(ctx, ev, msgAds, kb)
	return nil
}

func (c *Controller) startAdsInquiry(ctx context.Context, ev *Event, _ []int64) error {
	if err := c.sessions.Set(ctx, ev.From.ID, session.AwaitingFormResponse(session.FormAds)); err != nil {
		return err
	}
	c.reply(ctx, ev, msgAdsInquiry, nil)
	return nil
}

func (c *Controller) onForm(ctx context.Context, ev *Event, st session.State) error {
	c.notifyAdmin(ctx, fmt.Sprintf("New %s inquiry from %s:\n\n%s", st.Form, c.senderLine(ev.From), ev.Text), nil)
	if err := c.sessions.Clear(ctx, ev.From.ID); err != nil {
		return err
	}
	c.notify(ctx, ev.ChatID, msgAdsReceived, NewKeyboard().Row(backToMain()))
	return nil
}
