// Package session keeps the per-user dialog state of the bot.
package session

import (
	"context"

	"github.com/mashawir/ridebot/internal/domain/payment"
	"github.com/mashawir/ridebot/internal/domain/ride"
)

// Step tags the variant held by State
type Step string

const (
	StepIdle                 Step = "idle"
	StepAwaitingPickup       Step = "awaiting_pickup"
	StepAwaitingDestination  Step = "awaiting_destination"
	StepAwaitingFormResponse Step = "awaiting_form_response"
	StepAwaitingPaymentProof Step = "awaiting_payment_proof"
)

// FormAds collects an advertising inquiry
const FormAds = "ads"

// State is a tagged dialog state. Only the fields of the current Step are set.
type State struct {
	Step      Step           `json:"step"`
	Pickup    *ride.Location `json:"pickup,omitempty"`
	Form      string         `json:"form,omitempty"`
	RequestID int64          `json:"request_id,omitempty"`
	Method    payment.Method `json:"method,omitempty"`
}

func Idle() State {
	return State{Step: StepIdle}
}

func AwaitingPickup() State {
	return State{Step: StepAwaitingPickup}
}

func AwaitingDestination(pickup ride.Location) State {
	return State{Step: StepAwaitingDestination, Pickup: &pickup}
}

func AwaitingFormResponse(form string) State {
	return State{Step: StepAwaitingFormResponse, Form: form}
}

func AwaitingPaymentProof(requestID int64, method payment.Method) State {
	return State{Step: StepAwaitingPaymentProof, RequestID: requestID, Method: method}
}

// IsIdle treats the zero value as idle
func (s State) IsIdle() bool {
	return s.Step == "" || s.Step == StepIdle
}

// Store persists one State per user. A missing entry reads as Idle.
type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, userID int64, state State) error
	Clear(ctx context.Context, userID int64) error
}
