package bot

import (
	"context"
	"fmt"

	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/internal/domain/user"
	"github.com/mashawir/ridebot/internal/session"
	"github.com/mashawir/ridebot/pkg/logger"
)

func (c *Controller) chooseClient(ctx context.Context, ev *Event, _ []int64) error {
	if err := c.setRole(ctx, ev.From, user.RoleClient); err != nil {
		return err
	}
	c.reply(ctx, ev, msgClientMenu, clientMenu())
	return nil
}

func (c *Controller) chooseCaptain(ctx context.Context, ev *Event, _ []int64) error {
	if err := c.setRole(ctx, ev.From, user.RoleCaptain); err != nil {
		return err
	}
	c.reply(ctx, ev, msgCaptainMenu, captainMenu())
	return nil
}

func (c *Controller) startRideRequest(ctx context.Context, ev *Event, _ []int64) error {
	if err := c.remember(ctx, ev.From, user.RoleUnset); err != nil {
		return err
	}
	if err := c.sessions.Set(ctx, ev.From.ID, session.AwaitingPickup()); err != nil {
		return err
	}
	c.reply(ctx, ev, msgAskPickup, nil)
	return nil
}

func (c *Controller) onText(ctx context.Context, ev *Event) error {
	st, err := c.sessions.Get(ctx, ev.From.ID)
	if err != nil {
		return err
	}

	switch st.Step {
	case session.StepAwaitingPickup, session.StepAwaitingDestination:
		loc, err := ride.NewTextLocation(ev.Text)
		if err != nil {
			c.notify(ctx, ev.ChatID, placePrompt(st), nil)
			return nil
		}
		return c.onPlace(ctx, ev, st, loc)
	case session.StepAwaitingFormResponse:
		return c.onForm(ctx, ev, st)
	case session.StepAwaitingPaymentProof:
		c.notify(ctx, ev.ChatID, msgSendProof, nil)
		return nil
	}
	c.notify(ctx, ev.ChatID, msgUseMenu, nil)
	return nil
}

func (c *Controller) onLocation(ctx context.Context, ev *Event) error {
	st, err := c.sessions.Get(ctx, ev.From.ID)
	if err != nil {
		return err
	}

	switch st.Step {
	case session.StepAwaitingPickup, session.StepAwaitingDestination:
		return c.onPlace(ctx, ev, st, ride.NewPointLocation(ev.Latitude, ev.Longitude))
	case session.StepAwaitingPaymentProof:
		c.notify(ctx, ev.ChatID, msgSendProof, nil)
		return nil
	}
	c.notify(ctx, ev.ChatID, msgUseMenu, nil)
	return nil
}

// placePrompt asks again for whichever place the dialog is waiting on
func placePrompt(st session.State) string {
	if st.Step == session.StepAwaitingDestination && st.Pickup != nil {
		return fmt.Sprintf(msgAskDest, st.Pickup.Description)
	}
	return msgAskPickup
}

// onPlace advances the ride dialog by one step
func (c *Controller) onPlace(ctx context.Context, ev *Event, st session.State, loc ride.Location) error {
	if st.Step == session.StepAwaitingPickup || st.Pickup == nil {
		if err := c.sessions.Set(ctx, ev.From.ID, session.AwaitingDestination(loc)); err != nil {
			return err
		}
		c.notify(ctx, ev.ChatID, fmt.Sprintf(msgAskDest, loc.Description), nil)
		return nil
	}

	rd, err := c.rides.Request(ctx, ev.From.ID, *st.Pickup, loc)
	if err != nil {
		// the dialog stays on the destination step so the user can retry
		c.logger.Warn("Ride creation failed", logger.UserID(ev.From.ID), logger.Err(err))
		c.notify(ctx, ev.ChatID, msgRideFailed, nil)
		return nil
	}
	if err := c.sessions.Clear(ctx, ev.From.ID); err != nil {
		c.logger.Warn("Failed to clear session", logger.UserID(ev.From.ID), logger.Err(err))
	}
	c.notify(ctx, ev.ChatID, rideCreatedText(rd, c.cfg.Currency), clientMenu())
	return nil
}

func (c *Controller) showMyRides(ctx context.Context, ev *Event, _ []int64) error {
	list, err := c.rides.History(ctx, ev.From.ID)
	if err != nil {
		return err
	}
	back := Button{Text: "Back", Data: cbClientMenu}
	if len(list) == 0 {
		c.reply(ctx, ev, msgNoHistory, NewKeyboard().Row(back))
		return nil
	}

	kb := NewKeyboard()
	for _, rd := range list {
		if rd.ClientID == ev.From.ID && (rd.Status == ride.StatusPending || rd.Status == ride.StatusAccepted) {
			kb.Row(Button{Text: fmt.Sprintf("Cancel ride #%d", rd.ID), Data: Payload(prefixCancelRide, rd.ID)})
		}
	}
	kb.Row(back)
	c.reply(ctx, ev, rideListText("Your rides:", list), kb)
	return nil
}

func (c *Controller) cancelRide(ctx context.Context, ev *Event, ids []int64) error {
	rd, err := c.rides.Cancel(ctx, ids[0], ev.From.ID)
	if err != nil {
		return err
	}
	c.reply(ctx, ev, fmt.Sprintf("Ride #%d was cancelled.", rd.ID), NewKeyboard().Row(backToMain()))

	text := fmt.Sprintf("Ride #%d was cancelled by %s.", rd.ID, displayName(ev.From))
	switch {
	case rd.IsCaptain(ev.From.ID):
		c.notify(ctx, rd.ClientID, text, nil)
	case rd.CaptainID != nil:
		c.notify(ctx, *rd.CaptainID, text, nil)
	}
	return nil
}

// captainGate shows the paywall and reports false when the captain has no live subscription
func (c *Controller) captainGate(ctx context.Context, ev *Event) (bool, error) {
	ok, err := c.subs.IsSubscribed(ctx, ev.From.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		c.reply(ctx, ev, msgPaywall, paywallKeyboard())
	}
	return ok, nil
}

func (c *Controller) showPendingRides(ctx context.Context, ev *Event, _ []int64) error {
	if ok, err := c.captainGate(ctx, ev); !ok || err != nil {
		return err
	}

	list, err := c.rides.Pending(ctx)
	if err != nil {
		return err
	}
	nav := []Button{{Text: "Refresh", Data: cbViewRides}, {Text: "Back", Data: cbCaptainMenu}}
	if len(list) == 0 {
		c.reply(ctx, ev, msgNoRides, NewKeyboard().Row(nav...))
		return nil
	}

	kb := NewKeyboard()
	for _, rd := range list {
		kb.Row(Button{
			Text: fmt.Sprintf("Accept #%d from %s", rd.ID, label(rd.Pickup.Description, 20)),
			Data: Payload(prefixAcceptRide, rd.ID),
		})
	}
	kb.Row(nav...)
	c.reply(ctx, ev, pendingRidesText(list, c.cfg.Currency), kb)
	return nil
}

func (c *Controller) acceptRide(ctx context.Context, ev *Event, ids []int64) error {
	if ok, err := c.captainGate(ctx, ev); !ok || err != nil {
		return err
	}

	rd, err := c.rides.Accept(ctx, ids[0], ev.From.ID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("Ride #%d accepted.\n\nFrom: %s\nTo: %s\nClient: %s",
		rd.ID, rd.Pickup.Description, rd.Destination.Description, rd.ClientName)
	kb := NewKeyboard().
		Row(Button{Text: "Start ride", Data: Payload(prefixStartRide, rd.ID)}).
		Row(Button{Text: "Cancel ride", Data: Payload(prefixCancelRide, rd.ID)})
	c.reply(ctx, ev, text, kb)

	captain := rd.CaptainName
	if captain == "" {
		captain = displayName(ev.From)
	}
	c.notify(ctx, rd.ClientID, fmt.Sprintf("Captain %s accepted your ride #%d and will contact you soon.", captain, rd.ID), nil)
	return nil
}

func (c *Controller) startRide(ctx context.Context, ev *Event, ids []int64) error {
	rd, err := c.rides.Start(ctx, ids[0], ev.From.ID)
	if err != nil {
		return err
	}
	kb := NewKeyboard().Row(Button{Text: "Complete ride", Data: Payload(prefixCompleteRide, rd.ID)})
	c.reply(ctx, ev, fmt.Sprintf("Ride #%d started.", rd.ID), kb)
	c.notify(ctx, rd.ClientID, fmt.Sprintf("Your ride #%d has started.", rd.ID), nil)
	return nil
}

func (c *Controller) completeRide(ctx context.Context, ev *Event, ids []int64) error {
	rd, err := c.rides.Complete(ctx, ids[0], ev.From.ID)
	if err != nil {
		return err
	}
	kb := NewKeyboard().
		Row(Button{Text: "Client paid cash", Data: Payload(prefixCashPaid, rd.ID)}).
		Row(Button{Text: "Back", Data: cbCaptainMenu})
	c.reply(ctx, ev, fmt.Sprintf("Ride #%d completed. Thank you.", rd.ID), kb)
	c.notify(ctx, rd.ClientID, fmt.Sprintf("Your ride #%d is complete. Please rate your captain:", rd.ID), rateKeyboard(rd))
	return nil
}

func (c *Controller) showCaptainRides(ctx context.Context, ev *Event, _ []int64) error {
	list, err := c.rides.ActiveForCaptain(ctx, ev.From.ID)
	if err != nil {
		return err
	}
	back := Button{Text: "Back", Data: cbCaptainMenu}
	if len(list) == 0 {
		c.reply(ctx, ev, msgNoActive, NewKeyboard().Row(back))
		return nil
	}

	kb := NewKeyboard()
	for _, rd := range list {
		switch rd.Status {
		case ride.StatusAccepted:
			kb.Row(
				Button{Text: fmt.Sprintf("Start #%d", rd.ID), Data: Payload(prefixStartRide, rd.ID)},
				Button{Text: fmt.Sprintf("Cancel #%d", rd.ID), Data: Payload(prefixCancelRide, rd.ID)},
			)
		case ride.StatusInProgress:
			kb.Row(Button{Text: fmt.Sprintf("Complete #%d", rd.ID), Data: Payload(prefixCompleteRide, rd.ID)})
		}
	}
	kb.Row(back)
	c.reply(ctx, ev, rideListText("Your active rides:", list), kb)
	return nil
}

func (c *Controller) rateRide(ctx context.Context, ev *Event, ids []int64) error {
	stars, rideID, ratedID := ids[0], ids[1], ids[2]
	avg, err := c.rides.Rate(ctx, rideID, ev.From.ID, ratedID, int(stars))
	if err != nil {
		return err
	}
	kb := NewKeyboard().Row(Button{Text: "Pay for this ride", Data: Payload(prefixPayRide, rideID)})
	c.reply(ctx, ev, fmt.Sprintf("Thanks for rating ride #%d. The captain's rating is now %.2f.", rideID, avg), kb)
	return nil
}
