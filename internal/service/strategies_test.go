package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repricer-api/internal/model"
	"repricer-api/pkg/apierror"
)

func newStrategies(store *testStore) *StrategyService {
	return NewStrategyService(store.strategies, store.listings, testLogger())
}

func TestStrategyCRUD(t *testing.T) {
	store := newTestStore(t)
	svc := newStrategies(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", StrategyInput{
		Name: "weekly 10%", Kind: "fixed_percentage", Magnitude: 10, IntervalDays: 7,
	})
	require.NoError(t, err)
	assert.True(t, created.Active)

	got, err := svc.Get(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "weekly 10%", got.Name)

	_, err = svc.Get(ctx, "someone-else", created.ID)
	assert.True(t, apierror.HasCode(err, "NOT_FOUND"))

	inactive := false
	updated, err := svc.Update(ctx, "u1", created.ID, StrategyInput{
		Name: "weekly 15%", Kind: "fixed_percentage", Magnitude: 15, IntervalDays: 7, Active: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), updated.Magnitude)
	assert.False(t, updated.Active)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, "u1", created.ID))
	_, err = svc.Get(ctx, "u1", created.ID)
	assert.Error(t, err)
}

func TestStrategyValidationRejected(t *testing.T) {
	store := newTestStore(t)
	svc := newStrategies(store)
	ctx := context.Background()

	cases := []StrategyInput{
		{Name: "", Kind: "fixed_percentage", Magnitude: 10, IntervalDays: 7},
		{Name: "x", Kind: "fixed_percentage", Magnitude: 70, IntervalDays: 7},
		{Name: "x", Kind: "fixed_amount", Magnitude: 50, IntervalDays: 7},
		{Name: "x", Kind: "fixed_percentage", Magnitude: 10, IntervalDays: 0},
		{Name: "x", Kind: "no_such_kind", Magnitude: 10, IntervalDays: 7},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, "u1", in)
		assert.Truef(t, apierror.HasCode(err, apierror.CodeValidation), "input %+v should be rejected", in)
	}
}

func TestStrategyDeleteInUseRejected(t *testing.T) {
	store := newTestStore(t)
	svc := newStrategies(store)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", StrategyInput{
		Name: "in use", Kind: "fixed_percentage", Magnitude: 10, IntervalDays: 7,
	})
	require.NoError(t, err)

	mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 1000, OriginalPrice: 1000, MinimumPrice: 500,
		StrategyID: created.ID, EnableAutoReduction: true,
	})

	err = svc.Delete(ctx, "u1", created.ID)
	assert.True(t, apierror.HasCode(err, apierror.CodeConflict))

	// Still there.
	_, err = svc.Get(ctx, "u1", created.ID)
	assert.NoError(t, err)
}

func TestListingMonitoringConfig(t *testing.T) {
	store := newTestStore(t)
	strategies := newStrategies(store)
	listings := NewListingService(store.listings, store.strategies, store.events, testLogger())
	ctx := context.Background()

	strategy, err := strategies.Create(ctx, "u1", StrategyInput{
		Name: "weekly", Kind: "fixed_percentage", Magnitude: 10, IntervalDays: 7,
	})
	require.NoError(t, err)

	l := mustCreateListing(t, store, &model.Listing{
		UserID: "u1", MarketplaceItemID: "item-1",
		CurrentPrice: 10000, OriginalPrice: 10000,
	})

	// Enabling without a floor is rejected.
	_, err = listings.UpdateMonitoringConfig(ctx, "u1", l.ID, MonitoringConfigInput{
		StrategyID: strategy.ID, EnableAutoReduction: true,
	})
	assert.True(t, apierror.HasCode(err, apierror.CodeValidation))

	// Floor above the original price is rejected.
	_, err = listings.UpdateMonitoringConfig(ctx, "u1", l.ID, MonitoringConfigInput{
		MinimumPrice: 20000, StrategyID: strategy.ID, EnableAutoReduction: true,
	})
	assert.True(t, apierror.HasCode(err, apierror.CodeValidation))

	// Referencing another user's strategy is rejected.
	foreign, err := strategies.Create(ctx, "u2", StrategyInput{
		Name: "theirs", Kind: "fixed_percentage", Magnitude: 10, IntervalDays: 7,
	})
	require.NoError(t, err)
	_, err = listings.UpdateMonitoringConfig(ctx, "u1", l.ID, MonitoringConfigInput{
		MinimumPrice: 8000, StrategyID: foreign.ID, EnableAutoReduction: true,
	})
	assert.True(t, apierror.HasCode(err, apierror.CodeValidation))

	updated, err := listings.UpdateMonitoringConfig(ctx, "u1", l.ID, MonitoringConfigInput{
		MinimumPrice: 8000, StrategyID: strategy.ID, EnableAutoReduction: true,
	})
	require.NoError(t, err)
	assert.True(t, updated.EnableAutoReduction)
	assert.Equal(t, int64(8000), updated.MinimumPrice)
}
