package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repricer-api/internal/marketplace"
	"repricer-api/internal/model"
	"repricer-api/pkg/apierror"
)

func newScheduler(store *testStore, market *fakeMarket) *ReductionScheduler {
	return NewReductionScheduler(store.listings, store.strategies, store.settings, store.events, market, 4, testLogger())
}

func TestRunCycleReducesDueListing(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "fifteen", Kind: model.KindFixedPercentage, Magnitude: 15, IntervalDays: 7,
	})
	// 15% of 10000 would land at 8500, below the 9000 floor, so the cut
	// clamps to the floor and still applies.
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 9000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
		LastPriceReduction: daysAgo(8),
	})

	stats, err := sched.RunCycle(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(1), stats.Reduced)

	assert.Equal(t, int64(9000), market.priceUpdates["item-1"])

	got, err := store.listings.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), got.CurrentPrice)
	assert.Equal(t, model.SyncSynced, got.SyncStatus)

	events, total, err := store.events.ListByListing(ctx, l.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(10000), events[0].OldPrice)
	assert.Equal(t, int64(9000), events[0].NewPrice)
	assert.Equal(t, model.TriggerScheduled, events[0].Trigger)
}

func TestRunCycleSkipsNotDueListing(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
		LastPriceReduction: daysAgo(2),
	})

	stats, err := sched.RunCycle(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Equal(t, int64(0), stats.Reduced)
	assert.Empty(t, market.priceUpdates)
}

func TestRunCycleVacationGate(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
		LastPriceReduction: daysAgo(10),
	})

	require.NoError(t, store.settings.SetVacation(ctx, "u1", true))

	stats, err := sched.RunCycle(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Empty(t, market.priceUpdates)

	// Listing configuration is untouched by the pause.
	got, err := store.listings.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.EnableAutoReduction)
	assert.Equal(t, strategy.ID, got.StrategyID)

	// Turning vacation off resumes reductions on the next cycle.
	require.NoError(t, store.settings.SetVacation(ctx, "u1", false))
	stats, err = sched.RunCycle(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Reduced)
}

func TestRunCycleInactiveStrategySkips(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "paused", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	strategy.Active = false
	require.NoError(t, store.strategies.Update(ctx, strategy))

	mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
		LastPriceReduction: daysAgo(10),
	})

	stats, err := sched.RunCycle(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Empty(t, market.priceUpdates)
}

func TestRunCycleAtFloorCountsSkipped(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 5000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
		LastPriceReduction: daysAgo(10), // due, but already at the floor
	})

	stats, err := sched.RunCycle(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(1), stats.Skipped)
	assert.Equal(t, int64(0), stats.Reduced)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Empty(t, market.priceUpdates)

	got, err := store.listings.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), got.CurrentPrice)

	_, total, err := store.events.ListByListing(ctx, l.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestReduceSingleFlight(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
		LastPriceReduction: daysAgo(10),
	})

	// Two reducers holding the same version snapshot race; the claim must
	// admit exactly one of them.
	snapshots := make([]*model.Listing, 2)
	for i := range snapshots {
		got, err := store.listings.GetByID(ctx, l.ID)
		require.NoError(t, err)
		snapshots[i] = got
	}

	now := time.Now().UTC()
	events := make([]*model.PriceReductionEvent, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range snapshots {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			events[i], _, errs[i] = sched.reduce(ctx, snapshots[i], strategy, now, model.TriggerScheduled)
		}(i)
	}
	wg.Wait()

	committed := 0
	for i := range events {
		if events[i] != nil {
			require.NoError(t, errs[i])
			committed++
		} else {
			assert.True(t, apierror.HasCode(errs[i], apierror.CodeConflict))
		}
	}
	assert.Equal(t, 1, committed)

	got, err := store.listings.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), got.CurrentPrice, "price must step down exactly once")

	_, total, err := store.events.ListByListing(ctx, l.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestRunCycleMarketplaceRejection(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	market.updateErr = &marketplace.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "price below category minimum"}
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
		LastPriceReduction: daysAgo(10),
	})

	stats, err := sched.RunCycle(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)

	// Local price must not move when the marketplace refused the write.
	got, err := store.listings.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.CurrentPrice)
	assert.Equal(t, model.SyncError, got.SyncStatus)

	_, total, err := store.events.ListByListing(ctx, l.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestRunCycleConcurrentWriterLoses(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
		LastPriceReduction: daysAgo(10),
	})

	// While the marketplace write is in flight, a config update bumps the
	// version; the commit must then lose its version check.
	market.onUpdate = func() {
		cur, err := store.listings.GetByID(ctx, l.ID)
		require.NoError(t, err)
		cur.MinimumPrice = 6000
		require.NoError(t, store.listings.UpdateMonitoringConfig(ctx, cur))
	}

	stats, err := sched.RunCycle(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(0), stats.Reduced)

	got, err := store.listings.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.CurrentPrice, "price must not commit after losing the version race")

	_, total, err := store.events.ListByListing(ctx, l.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestReduceNowBypassesInterval(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
		LastPriceReduction: daysAgo(1), // not due for the scheduler
	})

	event, result, err := sched.ReduceNow(ctx, "u1", l.ID)
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, int64(9000), event.NewPrice)
	assert.Equal(t, model.TriggerManual, event.Trigger)
	assert.True(t, result.Applied)
	assert.Equal(t, int64(9000), market.priceUpdates["item-1"])
}

func TestReduceNowAtFloorDeclines(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 5000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
	})

	event, result, err := sched.ReduceNow(ctx, "u1", l.ID)
	require.NoError(t, err)
	assert.Nil(t, event)
	assert.False(t, result.Applied)
	assert.NotEmpty(t, result.Reason)
	assert.Empty(t, market.priceUpdates)
}

func TestReduceNowWrongOwner(t *testing.T) {
	store := newTestStore(t)
	sched := newScheduler(store, newFakeMarket())

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedPercentage, Magnitude: 10, IntervalDays: 7,
	})
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
	})

	_, _, err := sched.ReduceNow(context.Background(), "intruder", l.ID)
	assert.True(t, apierror.HasCode(err, "NOT_FOUND"))
}

func TestPreviewIsReadOnly(t *testing.T) {
	store := newTestStore(t)
	market := newFakeMarket()
	sched := newScheduler(store, market)
	ctx := context.Background()

	strategy := mustCreateStrategy(t, store, &model.Strategy{
		UserID: "u1", Name: "weekly", Kind: model.KindFixedAmount, Magnitude: 500, IntervalDays: 7,
	})
	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000, MinimumPrice: 5000,
		StrategyID: strategy.ID, EnableAutoReduction: true,
	})

	result, err := sched.Preview(ctx, "u1", l.ID)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, int64(9500), result.NewPrice)

	got, err := store.listings.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), got.CurrentPrice)
	assert.Empty(t, market.priceUpdates)

	_, total, err := store.events.ListByListing(ctx, l.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
