// Package activity publishes ride and payment events to dashboards and New Relic.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/mashawir/ridebot/pkg/logger"
	"github.com/mashawir/ridebot/pkg/monitoring"
	"github.com/mashawir/ridebot/pkg/websocket"
)

// DashboardType is the websocket client type that receives every event
const DashboardType = "admin"

type Kind string

const (
	RideCreated           Kind = "ride_created"
	RideAccepted          Kind = "ride_accepted"
	RideStarted           Kind = "ride_started"
	RideCompleted         Kind = "ride_completed"
	RideCancelled         Kind = "ride_cancelled"
	PaymentCompleted      Kind = "payment_completed"
	PaymentSubmitted      Kind = "payment_submitted"
	PaymentRejected       Kind = "payment_rejected"
	SubscriptionActivated Kind = "subscription_activated"
	UserBanned            Kind = "user_banned"
)

type Event struct {
	Kind   Kind      `json:"kind"`
	RideID int64     `json:"ride_id,omitempty"`
	UserID int64     `json:"user_id,omitempty"`
	Amount float64   `json:"amount,omitempty"`
	Status string    `json:"status,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher accepts activity events. Implementations never block the caller on delivery.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Feed fans events out to the websocket hub and New Relic
type Feed struct {
	hub    *websocket.Hub
	nr     *monitoring.NewRelicApp
	logger *logger.Logger
}

func NewFeed(hub *websocket.Hub, nr *monitoring.NewRelicApp, log *logger.Logger) *Feed {
	return &Feed{hub: hub, nr: nr, logger: log}
}

func (f *Feed) Publish(_ context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	if f.hub != nil {
		msg := websocket.Message{Type: string(e.Kind), Data: e}
		f.hub.BroadcastToType(DashboardType, msg)
		if e.RideID != 0 {
			f.hub.BroadcastToRide(e.RideID, msg)
		}
	}

	if e.RideID != 0 {
		f.nr.RecordRideEvent(e.RideID, string(e.Kind), e.Status)
	} else {
		f.nr.RecordCustomEvent("BotActivity", map[string]interface{}{
			"kind":    string(e.Kind),
			"user_id": e.UserID,
			"amount":  e.Amount,
			"status":  e.Status,
		})
	}

	f.logger.Debug("Activity published",
		logger.String("kind", string(e.Kind)),
		logger.RideID(e.RideID),
		logger.UserID(e.UserID),
	)
}

// Recorder keeps published events in memory, for tests
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Kinds returns the kinds of all recorded events in order
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}
