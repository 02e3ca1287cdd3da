package bot

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/internal/domain/stats"
	"github.com/mashawir/ridebot/internal/domain/subscription"
	"github.com/mashawir/ridebot/internal/domain/user"
	"github.com/mashawir/ridebot/internal/service/subscriptions"
)

// Exact callback payloads
const (
	cbClientMenu   = "client_button"
	cbCaptainMenu  = "captain_button"
	cbSubscribe    = "subscribe_button"
	cbWarning      = "warning_button"
	cbAds          = "ads_button"
	cbAdsInquiry   = "ads_inquiry"
	cbMainMenu     = "main_menu"
	cbRequestRide  = "request_ride"
	cbMyRides      = "my_rides"
	cbViewRides    = "view_rides"
	cbCaptainRides = "captain_rides"
	cbPlanWeekly   = "sub_plan_weekly"
	cbPlanMonthly  = "sub_plan_monthly"
)

// Callback prefixes followed by numeric ids
const (
	prefixAcceptRide     = "accept_ride_"
	prefixStartRide      = "start_ride_"
	prefixCompleteRide   = "complete_ride_"
	prefixCancelRide     = "cancel_ride_"
	prefixRate           = "rate_"
	prefixPayRide        = "pay_ride_"
	prefixCashPaid       = "cash_paid_"
	prefixPaymentMethod  = "payment_method_"
	prefixApprovePayment = "approve_payment_"
	prefixRejectPayment  = "reject_payment_"
)

const (
	msgWelcome       = "Welcome to Mashawir, daily rides around Makkah.\n\nChoose your account type to continue:"
	msgClientMenu    = "Welcome, client.\n\nRequest a ride or review your previous rides:"
	msgCaptainMenu   = "Welcome, captain.\n\nBrowse available rides or review your rides:"
	msgAskPickup     = "Send your pickup point.\n\nShare a location from the attachment menu or type the place name."
	msgAskDest       = "Pickup saved: %s\n\nNow send the destination."
	msgRideFailed    = "We could not create your ride. Please send the destination again."
	msgNoRides       = "No rides are available right now."
	msgNoHistory     = "You have no rides yet."
	msgNoActive      = "You have no active rides."
	msgUnavailable   = "Sorry, this ride is no longer available."
	msgNotYours      = "This action is not available to you."
	msgApology       = "Sorry, something went wrong while handling your request. Please try again or contact the administration."
	msgStaleButton   = "This button is no longer valid. Use /start to open the menu."
	msgUseMenu       = "Use /start to open the menu."
	msgSendProof     = "Please send a photo of the transfer receipt."
	msgAdminOnly     = "This command is for administrators only."
	msgAdsInquiry    = "Tell us about the ad you want to run and how to reach you. Your next message goes to the administration."
	msgAdsReceived   = "Thanks, your inquiry was sent to the administration."
	msgProofReceived = "Your receipt was received and is waiting for review."
	msgAlreadyRated  = "You already rated this ride."
	msgAlreadyPaid   = "This ride is already paid."
	msgPaywall       = "Browsing rides requires an active captain subscription.\n\nSubscribe to start accepting rides."

	msgSafety = "Important notice\n\n" +
		"- Check the ride details before accepting\n" +
		"- Contact the administration if anything goes wrong\n" +
		"- Your safety comes first\n" +
		"- Confirm the identity of the other party\n\n" +
		"Mashawir administration"

	msgAds = "Advertising packages\n\n" +
		"- Basic: 50 SAR per week\n" +
		"- Advanced: 150 SAR per month\n" +
		"- Premium: 400 SAR per 3 months"
)

var statusLabels = map[ride.Status]string{
	ride.StatusPending:    "waiting for a captain",
	ride.StatusAccepted:   "accepted",
	ride.StatusInProgress: "in progress",
	ride.StatusCompleted:  "completed",
	ride.StatusCancelled:  "cancelled",
}

var methodLabels = map[payment.Method]string{
	payment.MethodCash:  "Cash",
	payment.MethodBank:  "Bank transfer",
	payment.MethodSTC:   "STC Pay",
	payment.MethodURPay: "urpay",
	payment.MethodMada:  "mada",
}

func mainMenu(supportURL string) *Keyboard {
	kb := NewKeyboard().
		Row(Button{Text: "I am a client", Data: cbClientMenu}).
		Row(Button{Text: "I am a captain", Data: cbCaptainMenu}).
		Row(Button{Text: "Subscription", Data: cbSubscribe}, Button{Text: "Notice", Data: cbWarning})
	if supportURL != "" {
		kb.Row(Button{Text: "Contact the administration", URL: supportURL})
	}
	return kb.Row(Button{Text: "Advertising packages", Data: cbAds})
}

func clientMenu() *Keyboard {
	return NewKeyboard().
		Row(Button{Text: "Request a ride", Data: cbRequestRide}).
		Row(Button{Text: "My rides", Data: cbMyRides}).
		Row(backToMain())
}

func captainMenu() *Keyboard {
	return NewKeyboard().
		Row(Button{Text: "Available rides", Data: cbViewRides}).
		Row(Button{Text: "My captain rides", Data: cbCaptainRides}).
		Row(backToMain())
}

func backToMain() Button {
	return Button{Text: "Main menu", Data: cbMainMenu}
}

func paywallKeyboard() *Keyboard {
	return NewKeyboard().
		Row(Button{Text: "Subscribe", Data: cbSubscribe}).
		Row(Button{Text: "Back", Data: cbCaptainMenu})
}

func label(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func money(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func date(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func rideCreatedText(rd *ride.Ride, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ride request created.\n\nRide number: %d\nFrom: %s\nTo: %s\n",
		rd.ID, rd.Pickup.Description, rd.Destination.Description)
	if km, ok := rd.DistanceKM(); ok {
		fmt.Fprintf(&b, "Distance: %.1f km\n", km)
	}
	if rd.Price != nil {
		fmt.Fprintf(&b, "Estimated fare: %s\n", money(*rd.Price, currency))
	}
	b.WriteString("\nYou will be notified when a captain accepts the ride.")
	return b.String()
}

func pendingRidesText(rides []*ride.Ride, currency string) string {
	var b strings.Builder
	b.WriteString("Available rides:\n\n")
	for _, rd := range rides {
		fmt.Fprintf(&b, "#%d From: %s\n   To: %s\n", rd.ID, rd.Pickup.Description, rd.Destination.Description)
		if rd.Price != nil {
			fmt.Fprintf(&b, "   Fare: %s\n", money(*rd.Price, currency))
		}
		if rd.ClientName != "" {
			fmt.Fprintf(&b, "   Client: %s\n", rd.ClientName)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func rideLine(rd *ride.Ride) string {
	return fmt.Sprintf("#%d %s -> %s (%s)", rd.ID,
		label(rd.Pickup.Description, 30), label(rd.Destination.Description, 30), statusLabels[rd.Status])
}

func rideListText(title string, rides []*ride.Ride) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	for _, rd := range rides {
		b.WriteString(rideLine(rd))
		b.WriteString("\n")
	}
	return b.String()
}

func rateKeyboard(rd *ride.Ride) *Keyboard {
	kb := NewKeyboard()
	row := make([]Button, 0, 5)
	for stars := int64(1); stars <= 5; stars++ {
		row = append(row, Button{
			Text: strings.Repeat("*", int(stars)),
			Data: Payload(prefixRate, stars, rd.ID, *rd.CaptainID),
		})
	}
	kb.Row(row...)
	return kb.Row(Button{Text: "Pay for this ride", Data: Payload(prefixPayRide, rd.ID)})
}

func methodKeyboard(requestID int64) *Keyboard {
	kb := NewKeyboard()
	for _, m := range payment.Methods() {
		kb.Row(Button{Text: methodLabels[m], Data: Payload(prefixPaymentMethod+string(m)+"_", requestID)})
	}
	return kb.Row(backToMain())
}

func plansText(offers []subscriptions.PlanOffer, active *subscription.Subscription, now time.Time, currency string) string {
	var b strings.Builder
	b.WriteString("Captain subscription\n\n")
	if active != nil {
		fmt.Fprintf(&b, "Your subscription is active until %s (%d days left).\n\n", date(active.EndDate), active.DaysLeft(now))
	}
	b.WriteString("A subscription lets you browse and accept ride requests.\n\n")
	for _, o := range offers {
		fmt.Fprintf(&b, "- %s: %s for %d days\n", planName(o.Plan), money(o.Price, currency), o.Days)
	}
	return b.String()
}

func plansKeyboard(offers []subscriptions.PlanOffer) *Keyboard {
	kb := NewKeyboard()
	for _, o := range offers {
		data := cbPlanWeekly
		if o.Plan == subscription.PlanMonthly {
			data = cbPlanMonthly
		}
		kb.Row(Button{Text: planName(o.Plan), Data: data})
	}
	return kb.Row(backToMain())
}

func planName(p subscription.Plan) string {
	if p == subscription.PlanMonthly {
		return "Monthly"
	}
	return "Weekly"
}

func paymentRequestText(req *payment.Request, currency string) string {
	return fmt.Sprintf("Payment request #%d\n%s\nAmount: %s\n\nChoose a payment method:",
		req.ID, req.Description, money(req.Amount, currency))
}

func proofCaption(p *payment.Payment, requestID int64) string {
	who := p.FirstName
	if p.Username != "" {
		who += " (@" + p.Username + ")"
	}
	return fmt.Sprintf("Payment #%d for request #%d\nUser: %s [%d]\nType: %s\nMethod: %s\nAmount: %s",
		p.ID, requestID, who, p.UserID, p.Type, methodLabels[p.Method], money(p.Amount, p.Currency))
}

func reviewKeyboard(paymentID int64) *Keyboard {
	return NewKeyboard().Row(
		Button{Text: "Approve", Data: Payload(prefixApprovePayment, paymentID)},
		Button{Text: "Reject", Data: Payload(prefixRejectPayment, paymentID)},
	)
}

func expiredKeyboard(renewURL string) *Keyboard {
	if renewURL == "" {
		return nil
	}
	return NewKeyboard().Row(Button{Text: "Renew your subscription", URL: renewURL})
}

// ExpiredText is sent to users whose subscription was deactivated
const ExpiredText = "Your subscription has expired.\n\nYou can no longer browse available rides. Contact the administration to renew."

// ExpiredKeyboard is the renewal call to action sent with ExpiredText
func ExpiredKeyboard(renewURL string) *Keyboard {
	return expiredKeyboard(renewURL)
}

func overviewText(o *stats.Overview, currency string) string {
	return fmt.Sprintf("Statistics\n\n"+
		"Users: %d (clients %d, captains %d)\n"+
		"Rides: %d (today %d)\n"+
		"Pending: %d, active: %d, completed: %d, cancelled: %d\n"+
		"Active subscriptions: %d\n"+
		"Pending payments: %d\n"+
		"Revenue: %s",
		o.TotalUsers, o.Clients, o.Captains,
		o.TotalRides, o.RidesToday,
		o.PendingRides, o.ActiveRides, o.CompletedRides, o.CancelledRides,
		o.ActiveSubscriptions, o.PendingPayments, money(o.CompletedRevenue, currency))
}

func revenueText(r *payment.Revenue, days int, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Revenue for the last %d days\n\n", days)
	fmt.Fprintf(&b, "Completed: %s (%d payments)\n", money(r.Completed, currency), r.CompletedCount)
	fmt.Fprintf(&b, "Pending: %s (%d payments)\n", money(r.Pending, currency), r.PendingCount)
	for _, t := range []payment.Type{payment.TypeSubscription, payment.TypeRide} {
		if v, ok := r.ByType[t]; ok {
			fmt.Fprintf(&b, "%s: %s\n", t, money(v, currency))
		}
	}
	for _, m := range payment.Methods() {
		if v, ok := r.ByMethod[m]; ok {
			fmt.Fprintf(&b, "%s: %s\n", methodLabels[m], money(v, currency))
		}
	}
	return b.String()
}

func userText(u *user.User) string {
	role := string(u.Role)
	if role == "" {
		role = "not chosen"
	}
	handle := ""
	if u.Username != "" {
		handle = " @" + u.Username
	}
	return fmt.Sprintf("%s%s [%d]\nRole: %s\nRating: %.2f\nRides: %d\nJoined: %s",
		u.DisplayName(), handle, u.ID, role, u.Rating, u.TotalRides, date(u.CreatedAt))
}

func paymentLine(p *payment.Payment) string {
	return fmt.Sprintf("#%d %s [%d] %s %s via %s", p.ID, p.FirstName, p.UserID, p.Type,
		money(p.Amount, p.Currency), methodLabels[p.Method])
}

// maxMessageLen is the Telegram text limit in UTF-16 code units
const maxMessageLen = 4096

const clipMarker = "\n…"

// clip shortens text to one Telegram message. The cut moves back to a line
// break when one sits in the second half of what fits.
func clip(text string) string {
	if utf16Len(text) <= maxMessageLen {
		return text
	}
	budget := maxMessageLen - utf16Len(clipMarker)
	cut, n := 0, 0
	for i, r := range text {
		w := utf16.RuneLen(r)
		if n+w > budget {
			cut = i
			break
		}
		n += w
	}
	head := text[:cut]
	if nl := strings.LastIndexByte(head, '\n'); nl > len(head)/2 {
		head = head[:nl]
	}
	return head + clipMarker
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
