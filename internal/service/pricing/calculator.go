package pricing

import (
	"math"
)

// Service handles fare estimation for rides with pinned endpoints
type Service struct {
	config Config
}

// Config holds pricing configuration
type Config struct {
	BaseFare    float64
	PerKMRate   float64
	MinimumFare float64
	Currency    string

	// FlatFare is charged for rides whose endpoints carry no coordinates
	FlatFare float64
}

// FareBreakdown represents the breakdown of an estimated fare
type FareBreakdown struct {
	DistanceKM   float64 `json:"distance_km"`
	BaseFare     float64 `json:"base_fare"`
	DistanceFare float64 `json:"distance_fare"`
	Total        float64 `json:"total"`
	Currency     string  `json:"currency"`
}

// NewService creates a new pricing service
func NewService(config Config) *Service {
	if config.Currency == "" {
		config.Currency = "SAR"
	}
	return &Service{config: config}
}

// EstimateFare returns base + per_km * km, never below the minimum fare
func (s *Service) EstimateFare(distanceKM float64) *FareBreakdown {
	if distanceKM < 0 {
		distanceKM = 0
	}
	distanceFare := distanceKM * s.config.PerKMRate
	total := s.config.BaseFare + distanceFare
	if total < s.config.MinimumFare {
		total = s.config.MinimumFare
	}

	return &FareBreakdown{
		DistanceKM:   round2(distanceKM),
		BaseFare:     s.config.BaseFare,
		DistanceFare: round2(distanceFare),
		Total:        math.Ceil(total),
		Currency:     s.config.Currency,
	}
}

// RideFare returns the stored estimate of a ride, or the flat fare when it has none
func (s *Service) RideFare(price *float64) float64 {
	if price != nil && *price > 0 {
		return *price
	}
	return s.config.FlatFare
}

// Currency returns the configured currency code
func (s *Service) Currency() string {
	return s.config.Currency
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
