package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"repricer-api/internal/marketplace"
	"repricer-api/internal/metrics"
	"repricer-api/internal/model"
	"repricer-api/internal/pricing"
	"repricer-api/internal/repository"
	"repricer-api/pkg/apierror"
	"repricer-api/pkg/uid"
)

// CycleStats summarizes one reduction cycle.
type CycleStats struct {
	Processed int64 `json:"processed"`
	Reduced   int64 `json:"reduced"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

// ReductionScheduler runs the periodic reduction cycle: select candidates,
// evaluate their strategies, and push accepted cuts to the marketplace. Each
// listing is fenced with an optimistic-concurrency claim so overlapping
// cycles, or multiple scheduler instances, reduce a listing at most once.
type ReductionScheduler struct {
	listings   repository.ListingRepository
	strategies repository.StrategyRepository
	settings   repository.SettingsRepository
	events     repository.EventRepository
	market     MarketplaceInventory
	logger     *slog.Logger
	workers    int
}

// NewReductionScheduler constructs the scheduler.
func NewReductionScheduler(
	listings repository.ListingRepository,
	strategies repository.StrategyRepository,
	settings repository.SettingsRepository,
	events repository.EventRepository,
	market MarketplaceInventory,
	workers int,
	logger *slog.Logger,
) *ReductionScheduler {
	if workers < 1 {
		workers = 1
	}
	return &ReductionScheduler{
		listings:   listings,
		strategies: strategies,
		settings:   settings,
		events:     events,
		market:     market,
		logger:     logger,
		workers:    workers,
	}
}

// cycleCache holds per-cycle lookups. Vacation flags and strategies are read
// once per cycle, so a user flipping vacation mid-cycle takes effect on the
// next cycle.
type cycleCache struct {
	mu         sync.Mutex
	vacation   map[string]bool
	strategies map[string]*model.Strategy
}

func (s *ReductionScheduler) onVacation(ctx context.Context, c *cycleCache, userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.vacation[userID]; ok {
		return v, nil
	}
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	c.vacation[userID] = settings.VacationMode
	return settings.VacationMode, nil
}

func (s *ReductionScheduler) strategy(ctx context.Context, c *cycleCache, id string) (*model.Strategy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.strategies[id]; ok {
		return st, nil
	}
	st, err := s.strategies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.strategies[id] = st
	return st, nil
}

// RunCycle executes one full reduction cycle over every eligible listing.
// Individual listing failures are absorbed into the stats; the cycle itself
// fails only when candidate selection fails.
func (s *ReductionScheduler) RunCycle(ctx context.Context, now time.Time) (*CycleStats, error) {
	start := time.Now()
	defer func() {
		metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	candidates, err := s.listings.ListAutoReductionCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}

	cache := &cycleCache{
		vacation:   make(map[string]bool),
		strategies: make(map[string]*model.Strategy),
	}

	var stats CycleStats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range candidates {
		l := candidates[i]
		g.Go(func() error {
			atomic.AddInt64(&stats.Processed, 1)
			switch outcome := s.processListing(gctx, cache, &l, now); outcome {
			case outcomeReduced:
				atomic.AddInt64(&stats.Reduced, 1)
			case outcomeSkipped:
				atomic.AddInt64(&stats.Skipped, 1)
			default:
				atomic.AddInt64(&stats.Failed, 1)
			}
			return nil
		})
	}
	g.Wait()

	s.logger.Info("reduction cycle complete",
		"processed", stats.Processed,
		"reduced", stats.Reduced,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"elapsed", time.Since(start),
	)
	return &stats, nil
}

type cycleOutcome int

const (
	outcomeReduced cycleOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func (s *ReductionScheduler) processListing(ctx context.Context, cache *cycleCache, l *model.Listing, now time.Time) cycleOutcome {
	vacation, err := s.onVacation(ctx, cache, l.UserID)
	if err != nil {
		s.logger.Error("vacation lookup failed", "user_id", l.UserID, "error", err)
		return outcomeFailed
	}
	if vacation {
		metrics.ReductionsTotal.WithLabelValues("skipped").Inc()
		return outcomeSkipped
	}

	strategy, err := s.strategy(ctx, cache, l.StrategyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("listing references missing strategy",
				"listing_id", l.ID, "strategy_id", l.StrategyID)
			metrics.ReductionsTotal.WithLabelValues("skipped").Inc()
			return outcomeSkipped
		}
		return outcomeFailed
	}
	if !strategy.Active {
		metrics.ReductionsTotal.WithLabelValues("skipped").Inc()
		return outcomeSkipped
	}

	if now.Before(l.NextPriceReduction(strategy.IntervalDays)) {
		metrics.ReductionsTotal.WithLabelValues("skipped").Inc()
		return outcomeSkipped
	}

	event, _, err := s.reduce(ctx, l, strategy, now, model.TriggerScheduled)
	if err != nil {
		switch {
		case apierror.HasCode(err, apierror.CodeConflict):
			metrics.ReductionsTotal.WithLabelValues("conflict").Inc()
			return outcomeSkipped
		case apierror.HasCode(err, apierror.CodeAuthExpired):
			metrics.ReductionsTotal.WithLabelValues("auth_expired").Inc()
		case apierror.HasCode(err, apierror.CodeMarketplaceRejected):
			metrics.ReductionsTotal.WithLabelValues("rejected").Inc()
		case apierror.HasCode(err, apierror.CodeTransient):
			metrics.ReductionsTotal.WithLabelValues("transient").Inc()
		default:
			metrics.ReductionsTotal.WithLabelValues("failed").Inc()
		}
		s.logger.Warn("reduction failed", "listing_id", l.ID, "error", err)
		return outcomeFailed
	}
	if event == nil {
		// The strategy declined: at floor, no usable signal, or no change.
		metrics.ReductionsTotal.WithLabelValues("skipped").Inc()
		return outcomeSkipped
	}

	metrics.ReductionsTotal.WithLabelValues("reduced").Inc()
	return outcomeReduced
}

// reduce performs the claim, marketplace write, commit and history append for
// one accepted computation. A nil event with nil error means the strategy
// declined; the returned result carries the reason.
func (s *ReductionScheduler) reduce(ctx context.Context, l *model.Listing, strategy *model.Strategy, now time.Time, trigger model.ReductionTrigger) (*model.PriceReductionEvent, *pricing.Result, error) {
	result, err := pricing.ComputeNextPrice(l, strategy, now)
	if err != nil {
		return nil, nil, err
	}
	if !result.Applied {
		return nil, &result, nil
	}
	if result.Warning != "" {
		s.logger.Warn("pricing warning", "listing_id", l.ID, "warning", result.Warning)
	}

	// The claim fences out concurrent reducers before the marketplace write;
	// losing it means another worker already owns this version.
	claimed, err := s.listings.ClaimReduction(ctx, l.ID, l.Version)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, apierror.Conflict("listing was modified concurrently")
		}
		return nil, nil, err
	}

	if err := s.market.UpdatePrice(ctx, l.UserID, l.MarketplaceItemID, result.NewPrice); err != nil {
		if serr := s.listings.SetSyncStatus(ctx, l.ID, model.SyncError); serr != nil {
			s.logger.Error("failed to record sync error", "listing_id", l.ID, "error", serr)
		}
		return nil, nil, classifyMarketplaceError(err)
	}

	if err := s.listings.CommitReduction(ctx, l.ID, result.NewPrice, claimed, now); err != nil {
		return nil, nil, err
	}

	event := &model.PriceReductionEvent{
		ID:         uid.NewPrefixed("evt"),
		ListingID:  l.ID,
		UserID:     l.UserID,
		OldPrice:   l.CurrentPrice,
		NewPrice:   result.NewPrice,
		StrategyID: strategy.ID,
		Trigger:    trigger,
		Reason:     string(strategy.Kind),
		CreatedAt:  now,
	}
	if err := s.events.Append(ctx, event); err != nil {
		// The price change is live; a history gap is logged, not rolled back.
		s.logger.Error("failed to append reduction event", "listing_id", l.ID, "error", err)
	}

	s.logger.Info("price reduced",
		"listing_id", l.ID,
		"old_price", l.CurrentPrice,
		"new_price", result.NewPrice,
		"strategy", strategy.ID,
		"trigger", trigger,
	)
	return event, &result, nil
}

// classifyMarketplaceError maps transport failures onto the service taxonomy:
// upstream 4xx is a business rejection, 429/5xx and network errors are
// transient, and auth failures surface as expired connections.
func classifyMarketplaceError(err error) error {
	if apierror.HasCode(err, apierror.CodeAuthExpired) {
		return err
	}

	var apiErr *marketplace.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsAuthError():
			return apierror.AuthExpired("")
		case apiErr.IsRetryable():
			return apierror.Transient(err.Error())
		default:
			return apierror.MarketplaceRejected(err.Error())
		}
	}
	return apierror.Transient(err.Error())
}

// ReduceNow applies the listing's strategy once, immediately. The interval
// gate does not apply to an explicit user action; the floor and strategy
// validity still do. Vacation mode blocks scheduled cycles only.
func (s *ReductionScheduler) ReduceNow(ctx context.Context, userID, listingID string) (*model.PriceReductionEvent, *pricing.Result, error) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apierror.NotFound("listing not found")
		}
		return nil, nil, err
	}
	if l.UserID != userID {
		return nil, nil, apierror.NotFound("listing not found")
	}
	if l.Status != model.ListingActive {
		return nil, nil, apierror.Validation("listing is not active")
	}
	if l.StrategyID == "" {
		return nil, nil, apierror.Validation("listing has no strategy assigned")
	}

	strategy, err := s.strategies.GetByID(ctx, l.StrategyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apierror.Validation("assigned strategy no longer exists")
		}
		return nil, nil, err
	}

	now := time.Now().UTC()
	return s.reduce(ctx, l, strategy, now, model.TriggerManual)
}

// Preview computes what the next cycle would do to a listing without writing
// anything.
func (s *ReductionScheduler) Preview(ctx context.Context, userID, listingID string) (*pricing.Result, error) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound("listing not found")
		}
		return nil, err
	}
	if l.UserID != userID {
		return nil, apierror.NotFound("listing not found")
	}
	if l.StrategyID == "" {
		return nil, apierror.Validation("listing has no strategy assigned")
	}

	strategy, err := s.strategies.GetByID(ctx, l.StrategyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.Validation("assigned strategy no longer exists")
		}
		return nil, err
	}

	result, err := pricing.ComputeNextPrice(l, strategy, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &result, nil
}
