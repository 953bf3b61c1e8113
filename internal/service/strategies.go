package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"repricer-api/internal/model"
	"repricer-api/internal/repository"
	"repricer-api/pkg/apierror"
	"repricer-api/pkg/uid"
)

// StrategyService owns strategy CRUD and the referential rule that a strategy
// in use cannot be deleted.
type StrategyService struct {
	strategies repository.StrategyRepository
	listings   repository.ListingRepository
	logger     *slog.Logger
}

// NewStrategyService constructs the strategy service.
func NewStrategyService(strategies repository.StrategyRepository, listings repository.ListingRepository, logger *slog.Logger) *StrategyService {
	return &StrategyService{strategies: strategies, listings: listings, logger: logger}
}

// StrategyInput is the user-settable part of a strategy.
type StrategyInput struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Magnitude    int64  `json:"magnitude"`
	IntervalDays int    `json:"interval_days"`
	Active       *bool  `json:"active,omitempty"`
}

// Create validates and stores a new strategy.
func (s *StrategyService) Create(ctx context.Context, userID string, in StrategyInput) (*model.Strategy, error) {
	now := time.Now().UTC()
	strategy := &model.Strategy{
		ID:           uid.NewPrefixed("str"),
		UserID:       userID,
		Name:         in.Name,
		Kind:         model.StrategyKind(in.Kind),
		Magnitude:    in.Magnitude,
		IntervalDays: in.IntervalDays,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Active != nil {
		strategy.Active = *in.Active
	}
	if err := strategy.Validate(); err != nil {
		return nil, apierror.Validation(err.Error())
	}

	if err := s.strategies.Create(ctx, strategy); err != nil {
		return nil, err
	}
	s.logger.Info("strategy created", "strategy_id", strategy.ID, "user_id", userID, "kind", strategy.Kind)
	return strategy, nil
}

// Get returns one of the user's strategies.
func (s *StrategyService) Get(ctx context.Context, userID, id string) (*model.Strategy, error) {
	strategy, err := s.strategies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound("strategy not found")
		}
		return nil, err
	}
	if strategy.UserID != userID {
		return nil, apierror.NotFound("strategy not found")
	}
	return strategy, nil
}

// List returns the user's strategies.
func (s *StrategyService) List(ctx context.Context, userID string) ([]model.Strategy, error) {
	return s.strategies.ListByUser(ctx, userID)
}

// Update rewrites a strategy's configuration. Listings referencing it pick up
// the change on the next cycle.
func (s *StrategyService) Update(ctx context.Context, userID, id string, in StrategyInput) (*model.Strategy, error) {
	strategy, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	strategy.Name = in.Name
	strategy.Kind = model.StrategyKind(in.Kind)
	strategy.Magnitude = in.Magnitude
	strategy.IntervalDays = in.IntervalDays
	if in.Active != nil {
		strategy.Active = *in.Active
	}
	strategy.UpdatedAt = time.Now().UTC()

	if err := strategy.Validate(); err != nil {
		return nil, apierror.Validation(err.Error())
	}
	if err := s.strategies.Update(ctx, strategy); err != nil {
		return nil, err
	}
	return strategy, nil
}

// Delete removes a strategy unless listings still reference it.
func (s *StrategyService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	n, err := s.listings.CountByStrategy(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apierror.Conflict(fmt.Sprintf("strategy is assigned to %d listings", n))
	}

	return s.strategies.Delete(ctx, userID, id)
}
