package service

import (
	"context"
	"errors"
	"log/slog"

	"repricer-api/internal/model"
	"repricer-api/internal/repository"
	"repricer-api/pkg/apierror"
)

// ListingService exposes listing reads and the monitoring-config write. All
// other listing mutations flow through the synchronizer or the scheduler.
type ListingService struct {
	listings   repository.ListingRepository
	strategies repository.StrategyRepository
	events     repository.EventRepository
	logger     *slog.Logger
}

// NewListingService constructs the listing service.
func NewListingService(listings repository.ListingRepository, strategies repository.StrategyRepository, events repository.EventRepository, logger *slog.Logger) *ListingService {
	return &ListingService{listings: listings, strategies: strategies, events: events, logger: logger}
}

// List returns the user's listings.
func (s *ListingService) List(ctx context.Context, userID string) ([]model.Listing, error) {
	return s.listings.ListByUser(ctx, userID)
}

// Get returns one of the user's listings.
func (s *ListingService) Get(ctx context.Context, userID, id string) (*model.Listing, error) {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound("listing not found")
		}
		return nil, err
	}
	if l.UserID != userID {
		return nil, apierror.NotFound("listing not found")
	}
	return l, nil
}

// MonitoringConfigInput is the user-owned reduction configuration of one
// listing. Prices are cents.
type MonitoringConfigInput struct {
	MinimumPrice        int64  `json:"minimum_price_cents"`
	StrategyID          string `json:"strategy_id"`
	EnableAutoReduction bool   `json:"enable_auto_reduction"`
}

// UpdateMonitoringConfig validates and writes the listing's reduction
// configuration. The referenced strategy must exist and belong to the user.
func (s *ListingService) UpdateMonitoringConfig(ctx context.Context, userID, id string, in MonitoringConfigInput) (*model.Listing, error) {
	l, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.StrategyID != "" {
		strategy, err := s.strategies.GetByID(ctx, in.StrategyID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apierror.Validation("strategy not found")
			}
			return nil, err
		}
		if strategy.UserID != userID {
			return nil, apierror.Validation("strategy not found")
		}
	}

	l.MinimumPrice = in.MinimumPrice
	l.StrategyID = in.StrategyID
	l.EnableAutoReduction = in.EnableAutoReduction
	if err := l.ValidateMonitoringConfig(); err != nil {
		return nil, apierror.Validation(err.Error())
	}

	if err := s.listings.UpdateMonitoringConfig(ctx, l); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apierror.Conflict("listing was modified concurrently, reload and retry")
		}
		return nil, err
	}

	l.Version++
	return l, nil
}

// History pages through a listing's price reduction events, newest first.
func (s *ListingService) History(ctx context.Context, userID, id string, limit, offset int) ([]model.PriceReductionEvent, int64, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.events.ListByListing(ctx, id, limit, offset)
}
