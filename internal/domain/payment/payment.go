package payment

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type Method string

const (
	MethodCash  Method = "cash"
	MethodBank  Method = "bank"
	MethodSTC   Method = "stc"
	MethodURPay Method = "urpay"
	MethodMada  Method = "mada"
)

type Type string

const (
	TypeRide         Type = "ride_payment"
	TypeSubscription Type = "subscription_payment"
)

// RequestStatus tracks the proof collection sub-state of a payment request
type RequestStatus string

const (
	RequestPending       RequestStatus = "pending"
	RequestAwaitingProof RequestStatus = "awaiting_proof"
	RequestCompleted     RequestStatus = "completed"
	RequestCancelled     RequestStatus = "cancelled"
)

const DefaultCurrency = "SAR"

// Request records an intent to pay before any money moves
type Request struct {
	ID               int64         `json:"request_id"`
	UserID           int64         `json:"user_id"`
	Type             Type          `json:"payment_type"`
	Amount           float64       `json:"amount"`
	Description      string        `json:"description"`
	Status           RequestStatus `json:"status"`
	RideID           *int64        `json:"ride_id,omitempty"`
	SubscriptionDays *int          `json:"subscription_days,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`

	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Payment is the durable financial record
type Payment struct {
	ID             int64     `json:"payment_id"`
	UserID         int64     `json:"user_id"`
	RideID         *int64    `json:"ride_id,omitempty"`
	SubscriptionID *int64    `json:"subscription_id,omitempty"`
	Type           Type      `json:"payment_type"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Method         Method    `json:"payment_method"`
	Status         Status    `json:"payment_status"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	ProofFileID    string    `json:"payment_proof_url,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Revenue aggregates payments created since a point in time
type Revenue struct {
	Since          time.Time          `json:"since"`
	Completed      float64            `json:"completed"`
	CompletedCount int                `json:"completed_count"`
	Pending        float64            `json:"pending"`
	PendingCount   int                `json:"pending_count"`
	ByType         map[Type]float64   `json:"by_type"`
	ByMethod       map[Method]float64 `json:"by_method"`
}

type Repository interface {
	CreateRequest(ctx context.Context, req *Request) (int64, error)
	GetRequest(ctx context.Context, id int64) (*Request, error)
	SetRequestStatus(ctx context.Context, id int64, status RequestStatus) error

	// CreatePayment inserts p and moves request requestID to requestStatus in one transaction.
	// The request must still be pending or awaiting proof.
	CreatePayment(ctx context.Context, p *Payment, requestID int64, requestStatus RequestStatus) (int64, error)

	// RecordPayment inserts a payment that has no preceding request.
	// Both inserts refuse a ride payment when the ride already has a pending or completed one.
	RecordPayment(ctx context.Context, p *Payment) (int64, error)

	// RidePaid reports whether the ride has a pending or completed payment
	RidePaid(ctx context.Context, rideID int64) (bool, error)

	GetPayment(ctx context.Context, id int64) (*Payment, error)

	// SetStatus is a conditional write from one payment status to another
	SetStatus(ctx context.Context, id int64, from, to Status) error

	// LinkSubscription stores the subscription activated by a payment
	LinkSubscription(ctx context.Context, paymentID, subscriptionID int64) error

	ListPending(ctx context.Context, limit int) ([]*Payment, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Payment, error)
	Revenue(ctx context.Context, since time.Time) (*Revenue, error)
}

// Methods returns every supported payment method in display order
func Methods() []Method {
	return []Method{MethodCash, MethodBank, MethodSTC, MethodURPay, MethodMada}
}

// IsValid validates the payment method
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodBank, MethodSTC, MethodURPay, MethodMada:
		return true
	}
	return false
}

// NeedsProof reports whether an administrator has to confirm the transfer
func (m Method) NeedsProof() bool {
	return m.IsValid() && m != MethodCash
}

// IsOpen reports whether the request can still be paid
func (r *Request) IsOpen() bool {
	return r.Status == RequestPending || r.Status == RequestAwaitingProof
}
