package ride

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/geo"
)

// Status represents ride status
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Type tells whether a client asked for a ride or a captain offered one
type Type string

const (
	TypeRequest Type = "request"
	TypeOffer   Type = "offer"
)

// Location is a free text place, optionally pinned to coordinates
type Location struct {
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// Ride represents a ride request and its progress
type Ride struct {
	ID             int64     `json:"ride_id"`
	ClientID       int64     `json:"client_id"`
	CaptainID      *int64    `json:"captain_id,omitempty"`
	Pickup         Location  `json:"pickup"`
	Destination    Location  `json:"destination"`
	Type           Type      `json:"ride_type"`
	Status         Status    `json:"status"`
	Price          *float64  `json:"price,omitempty"`
	PassengerCount int       `json:"passenger_count"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Filled by joins with users
	ClientName  string `json:"client_name,omitempty"`
	CaptainName string `json:"captain_name,omitempty"`
}

// Repository interface. Every transition is a single conditional write keyed on the
// expected pre-state; a failed precondition returns ErrRideUnavailable.
type Repository interface {
	Create(ctx context.Context, ride *Ride) (int64, error)
	GetByID(ctx context.Context, id int64) (*Ride, error)
	ListPending(ctx context.Context, limit int) ([]*Ride, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Ride, error)
	ListActiveByCaptain(ctx context.Context, captainID int64) ([]*Ride, error)
	ListActive(ctx context.Context, limit int) ([]*Ride, error)
	ListRecent(ctx context.Context, limit int) ([]*Ride, error)
	Accept(ctx context.Context, rideID, captainID int64) error
	Start(ctx context.Context, rideID, captainID int64) error
	Complete(ctx context.Context, rideID, captainID int64) error
	Cancel(ctx context.Context, rideID, userID int64) error
}

var transitions = map[Status]map[Status]struct{}{
	StatusPending:    {StatusAccepted: {}, StatusCancelled: {}},
	StatusAccepted:   {StatusInProgress: {}, StatusCancelled: {}},
	StatusInProgress: {StatusCompleted: {}},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// CanTransition returns whether a ride may move from one status to another
func CanTransition(from, to Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// CancellableStatuses lists the states a ride can be cancelled from
func CancellableStatuses() []Status {
	return []Status{StatusPending, StatusAccepted}
}

// ActiveStatuses lists the states of a ride that is being worked on
func ActiveStatuses() []Status {
	return []Status{StatusAccepted, StatusInProgress}
}

// IsValid validates the status
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves this status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// NewTextLocation creates a location from a free text description
func NewTextLocation(text string) (Location, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Location{}, apperrors.ErrInvalidLocation
	}
	return Location{Description: text}, nil
}

// NewPointLocation creates a location from shared coordinates
func NewPointLocation(lat, lng float64) Location {
	return Location{
		Description: fmt.Sprintf("Location (%.4f, %.4f)", lat, lng),
		Latitude:    &lat,
		Longitude:   &lng,
	}
}

// HasCoordinates reports whether the location is pinned
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// DistanceTo returns the haversine distance in km when both ends are pinned
func (l Location) DistanceTo(other Location) (float64, bool) {
	if !l.HasCoordinates() || !other.HasCoordinates() {
		return 0, false
	}
	return geo.Distance(*l.Latitude, *l.Longitude, *other.Latitude, *other.Longitude), true
}

// DistanceKM returns the trip distance when pickup and destination are pinned
func (r *Ride) DistanceKM() (float64, bool) {
	return r.Pickup.DistanceTo(r.Destination)
}

// IsParticipant reports whether the user is the client or the captain
func (r *Ride) IsParticipant(userID int64) bool {
	if r.ClientID == userID {
		return true
	}
	return r.CaptainID != nil && *r.CaptainID == userID
}

// IsCaptain reports whether the user is the assigned captain
func (r *Ride) IsCaptain(userID int64) bool {
	return r.CaptainID != nil && *r.CaptainID == userID
}
