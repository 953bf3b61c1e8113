package service

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"repricer-api/internal/marketplace"
	"repricer-api/internal/model"
	"repricer-api/internal/repository"
)

// testStore bundles sqlite-backed repositories over one temp database.
type testStore struct {
	db         *sql.DB
	listings   *repository.SQLiteListingRepository
	strategies *repository.SQLiteStrategyRepository
	settings   *repository.SQLiteSettingsRepository
	events     *repository.SQLiteEventRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &testStore{
		db:         db,
		listings:   repository.NewSQLiteListingRepository(db),
		strategies: repository.NewSQLiteStrategyRepository(db),
		settings:   repository.NewSQLiteSettingsRepository(db),
		events:     repository.NewSQLiteEventRepository(db),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeMarket is an in-memory MarketplaceInventory.
type fakeMarket struct {
	mu        sync.Mutex
	inventory []marketplace.SellerListing

	priceUpdates map[string]int64
	updateErr    error
	onUpdate     func()

	created    []marketplace.CreateListingRequest
	nextItemID string

	ended []string
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{priceUpdates: make(map[string]int64), nextItemID: "item-new"}
}

func (f *fakeMarket) GetAllSellerListings(ctx context.Context, userID string) ([]marketplace.SellerListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]marketplace.SellerListing, len(f.inventory))
	copy(out, f.inventory)
	return out, nil
}

func (f *fakeMarket) CreateListing(ctx context.Context, userID string, req marketplace.CreateListingRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return f.nextItemID, nil
}

func (f *fakeMarket) UpdatePrice(ctx context.Context, userID, itemID string, price int64) error {
	f.mu.Lock()
	onUpdate := f.onUpdate
	updateErr := f.updateErr
	f.mu.Unlock()

	if onUpdate != nil {
		onUpdate()
	}
	if updateErr != nil {
		return updateErr
	}

	f.mu.Lock()
	f.priceUpdates[itemID] = price
	f.mu.Unlock()
	return nil
}

func (f *fakeMarket) EndListing(ctx context.Context, userID, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, itemID)
	return nil
}

// fakeCatalog serves one canned product.
type fakeCatalog struct {
	product *marketplace.Product
	calls   int
}

func (f *fakeCatalog) GetProduct(ctx context.Context, catalogID string) (*marketplace.Product, error) {
	f.calls++
	return f.product, nil
}

func mustCreateStrategy(t *testing.T, store *testStore, s *model.Strategy) *model.Strategy {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	if s.ID == "" {
		s.ID = "str_" + s.Name
	}
	if s.IntervalDays == 0 {
		s.IntervalDays = 7
	}
	s.Active = true
	s.CreatedAt = now
	s.UpdatedAt = now
	require.NoError(t, store.strategies.Create(context.Background(), s))
	return s
}

func mustCreateListing(t *testing.T, store *testStore, l *model.Listing) *model.Listing {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	if l.ID == "" {
		l.ID = "lst_" + l.MarketplaceItemID
	}
	if l.Status == "" {
		l.Status = model.ListingActive
	}
	if l.SyncStatus == "" {
		l.SyncStatus = model.SyncSynced
	}
	if l.Version == 0 {
		l.Version = 1
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now.AddDate(0, 0, -30)
	}
	l.UpdatedAt = now
	require.NoError(t, store.listings.Create(context.Background(), l))
	return l
}

func daysAgo(n int) *time.Time {
	t := time.Now().UTC().Truncate(time.Second).AddDate(0, 0, -n)
	return &t
}
