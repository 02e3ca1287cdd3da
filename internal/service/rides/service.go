package rides

import (
	"context"

	"go.uber.org/zap"

	"github.com/mashawir/ridebot/internal/activity"
	"github.com/mashawir/ridebot/internal/domain/rating"
	"github.com/mashawir/ridebot/internal/domain/ride"
	"github.com/mashawir/ridebot/internal/service/pricing"
	apperrors "github.com/mashawir/ridebot/pkg/errors"
	"github.com/mashawir/ridebot/pkg/logger"
)

const (
	// PendingListLimit is how many open rides a captain sees at once
	PendingListLimit = 5
	HistoryLimit     = 10
)

// Service runs the ride lifecycle on top of the conditional updates of the repository
type Service struct {
	rides   ride.Repository
	ratings rating.Repository
	pricing *pricing.Service
	feed    activity.Publisher
	logger  *logger.Logger
}

// NewService creates a new ride service
func NewService(rides ride.Repository, ratings rating.Repository, pricing *pricing.Service, feed activity.Publisher, log *logger.Logger) *Service {
	return &Service{
		rides:   rides,
		ratings: ratings,
		pricing: pricing,
		feed:    feed,
		logger:  log,
	}
}

// Request creates a pending ride. Pinned endpoints get a distance and a fare estimate.
func (s *Service) Request(ctx context.Context, clientID int64, pickup, destination ride.Location) (*ride.Ride, error) {
	if pickup.Description == "" || destination.Description == "" {
		return nil, apperrors.ErrInvalidLocation
	}

	rd := &ride.Ride{
		ClientID:       clientID,
		Pickup:         pickup,
		Destination:    destination,
		Type:           ride.TypeRequest,
		Status:         ride.StatusPending,
		PassengerCount: 1,
	}
	km, pinned := rd.DistanceKM()
	if pinned && s.pricing != nil {
		fare := s.pricing.EstimateFare(km)
		rd.Price = &fare.Total
	}

	id, err := s.rides.Create(ctx, rd)
	if err != nil {
		s.logFailure("Failed to create ride", err, logger.Int64("client_id", clientID))
		return nil, err
	}
	rd.ID = id

	s.logger.Info("Ride requested",
		logger.RideID(id),
		logger.Int64("client_id", clientID),
		logger.Bool("pinned", pinned),
		logger.Float64("distance_km", km),
	)
	s.publish(ctx, activity.RideCreated, rd, clientID)
	return rd, nil
}

// Accept assigns the captain. Exactly one of several racing captains succeeds.
func (s *Service) Accept(ctx context.Context, rideID, captainID int64) (*ride.Ride, error) {
	return s.transition(ctx, rideID, captainID, activity.RideAccepted, s.rides.Accept)
}

func (s *Service) Start(ctx context.Context, rideID, captainID int64) (*ride.Ride, error) {
	return s.transition(ctx, rideID, captainID, activity.RideStarted, s.rides.Start)
}

func (s *Service) Complete(ctx context.Context, rideID, captainID int64) (*ride.Ride, error) {
	return s.transition(ctx, rideID, captainID, activity.RideCompleted, s.rides.Complete)
}

// Cancel is open to the client and the assigned captain
func (s *Service) Cancel(ctx context.Context, rideID, userID int64) (*ride.Ride, error) {
	return s.transition(ctx, rideID, userID, activity.RideCancelled, s.rides.Cancel)
}

// transition runs one conditional write and re-reads the ride for rendering
func (s *Service) transition(ctx context.Context, rideID, actorID int64, kind activity.Kind,
	write func(ctx context.Context, rideID, actorID int64) error) (*ride.Ride, error) {
	if err := write(ctx, rideID, actorID); err != nil {
		s.logFailure("Ride transition rejected", err,
			logger.String("transition", string(kind)),
			logger.RideID(rideID),
			logger.Int64("actor_id", actorID),
		)
		return nil, err
	}

	rd, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		s.logger.Warn("Ride re-read failed after transition",
			logger.RideID(rideID),
			logger.Err(err),
		)
		return nil, err
	}

	s.logger.Info("Ride transition applied",
		logger.String("transition", string(kind)),
		logger.RideID(rideID),
		logger.Int64("actor_id", actorID),
	)
	s.publish(ctx, kind, rd, actorID)
	return rd, nil
}

// Rate stores a review of the other participant of a completed ride
func (s *Service) Rate(ctx context.Context, rideID, raterID, ratedID int64, stars int) (float64, error) {
	r := &rating.Rating{RideID: rideID, RaterID: raterID, RatedID: ratedID, Stars: stars}
	if err := r.Validate(); err != nil {
		return 0, err
	}

	rd, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return 0, err
	}
	if rd.Status != ride.StatusCompleted {
		return 0, apperrors.ErrRideUnavailable
	}
	if raterID == ratedID || !rd.IsParticipant(raterID) || !rd.IsParticipant(ratedID) {
		return 0, apperrors.ErrNotParticipant
	}

	avg, err := s.ratings.Add(ctx, r)
	if err != nil {
		s.logFailure("Failed to add rating", err, logger.RideID(rideID))
		return 0, err
	}
	s.logger.Info("Rating recorded",
		logger.RideID(rideID),
		logger.Int64("rated_id", ratedID),
		logger.Int("stars", stars),
		logger.Float64("average", avg),
	)
	return avg, nil
}

func (s *Service) Get(ctx context.Context, rideID int64) (*ride.Ride, error) {
	return s.rides.GetByID(ctx, rideID)
}

// Pending lists the newest open rides
func (s *Service) Pending(ctx context.Context) ([]*ride.Ride, error) {
	return s.rides.ListPending(ctx, PendingListLimit)
}

func (s *Service) History(ctx context.Context, userID int64) ([]*ride.Ride, error) {
	return s.rides.ListByUser(ctx, userID, HistoryLimit)
}

func (s *Service) ActiveForCaptain(ctx context.Context, captainID int64) ([]*ride.Ride, error) {
	return s.rides.ListActiveByCaptain(ctx, captainID)
}

func (s *Service) Recent(ctx context.Context, limit int) ([]*ride.Ride, error) {
	return s.rides.ListRecent(ctx, limit)
}

func (s *Service) Active(ctx context.Context, limit int) ([]*ride.Ride, error) {
	return s.rides.ListActive(ctx, limit)
}

func (s *Service) publish(ctx context.Context, kind activity.Kind, rd *ride.Ride, actorID int64) {
	if s.feed == nil {
		return
	}
	e := activity.Event{Kind: kind, RideID: rd.ID, UserID: actorID, Status: string(rd.Status)}
	if rd.Price != nil {
		e.Amount = *rd.Price
	}
	s.feed.Publish(ctx, e)
}

// logFailure logs storage errors loudly and expected precondition failures quietly
func (s *Service) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, logger.Err(err))
	if apperrors.IsStorage(err) {
		s.logger.Error(msg, fields...)
		return
	}
	s.logger.Debug(msg, fields...)
}
