package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"repricer-api/internal/marketplace"
	"repricer-api/internal/metrics"
	"repricer-api/internal/model"
	"repricer-api/internal/repository"
	"repricer-api/pkg/apierror"
	"repricer-api/pkg/sku"
	"repricer-api/pkg/uid"
)

// MarketplaceInventory is the slice of the marketplace client the sync and
// reduction services depend on.
type MarketplaceInventory interface {
	GetAllSellerListings(ctx context.Context, userID string) ([]marketplace.SellerListing, error)
	CreateListing(ctx context.Context, userID string, req marketplace.CreateListingRequest) (string, error)
	UpdatePrice(ctx context.Context, userID, itemID string, price int64) error
	EndListing(ctx context.Context, userID, itemID string) error
}

// CatalogSource resolves catalog product records.
type CatalogSource interface {
	GetProduct(ctx context.Context, catalogID string) (*marketplace.Product, error)
}

// SyncStats summarizes one reconciliation pass.
type SyncStats struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Closed   int `json:"closed"`
	Errors   int `json:"errors"`
}

// Synchronizer reconciles the local listing store against the marketplace.
// The marketplace is authoritative for price, title, quantity, status and
// market signals; strategy assignment, floor and the enable flag are local
// and never written by reconciliation.
type Synchronizer struct {
	listings repository.ListingRepository
	settings repository.SettingsRepository
	market   MarketplaceInventory
	catalog  CatalogSource
	logger   *slog.Logger
}

// NewSynchronizer constructs the sync service.
func NewSynchronizer(listings repository.ListingRepository, settings repository.SettingsRepository, market MarketplaceInventory, catalog CatalogSource, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		listings: listings,
		settings: settings,
		market:   market,
		catalog:  catalog,
		logger:   logger,
	}
}

// Reconcile pulls the user's full marketplace inventory and converges the
// local store: unknown items are imported, known items get their
// marketplace-owned fields refreshed, and local items missing from the
// marketplace are marked ended. Running twice in a row yields no additional
// changes.
func (s *Synchronizer) Reconcile(ctx context.Context, userID string) (*SyncStats, error) {
	remote, err := s.market.GetAllSellerListings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch marketplace inventory: %w", err)
	}

	local, err := s.listings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	byItemID := make(map[string]*model.Listing, len(local))
	for i := range local {
		if local[i].MarketplaceItemID != "" {
			byItemID[local[i].MarketplaceItemID] = &local[i]
		}
	}

	stats := &SyncStats{}
	now := time.Now().UTC()
	seen := make(map[string]bool, len(remote))

	for _, rl := range remote {
		seen[rl.ItemID] = true

		existing, ok := byItemID[rl.ItemID]
		if !ok {
			if err := s.importListing(ctx, userID, rl, now); err != nil {
				s.logger.Error("import failed", "user_id", userID, "item_id", rl.ItemID, "error", err)
				metrics.ReconcileTotal.WithLabelValues("error").Inc()
				stats.Errors++
				continue
			}
			metrics.ReconcileTotal.WithLabelValues("imported").Inc()
			stats.Imported++
			continue
		}

		if rl.Status == "ended" {
			if existing.Status != model.ListingEnded {
				if err := s.listings.MarkEnded(ctx, existing.ID); err != nil {
					stats.Errors++
					continue
				}
				metrics.ReconcileTotal.WithLabelValues("closed").Inc()
				stats.Closed++
			}
			continue
		}

		changed := existing.Title != rl.Title ||
			existing.CurrentPrice != rl.Price ||
			existing.QuantityAvailable != rl.Quantity ||
			existing.MarketAveragePrice != rl.MarketAverage ||
			existing.MarketLowestPrice != rl.MarketLowest ||
			existing.MarketCompetitorCount != rl.CompetitorCount
		if !changed {
			continue
		}

		existing.Title = rl.Title
		existing.CurrentPrice = rl.Price
		existing.QuantityAvailable = rl.Quantity
		existing.MarketAveragePrice = rl.MarketAverage
		existing.MarketLowestPrice = rl.MarketLowest
		existing.MarketCompetitorCount = rl.CompetitorCount
		existing.LastSyncedAt = &now
		existing.SyncStatus = model.SyncSynced

		if err := s.listings.UpdateMarketplaceFields(ctx, existing); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// A reduction claimed the row mid-reconcile; the next pass
				// converges it.
				s.logger.Debug("reconcile lost version race", "listing_id", existing.ID)
				continue
			}
			metrics.ReconcileTotal.WithLabelValues("error").Inc()
			stats.Errors++
			continue
		}
		metrics.ReconcileTotal.WithLabelValues("updated").Inc()
		stats.Updated++
	}

	// Local listings the marketplace no longer reports are closed, not
	// deleted; their price history stays queryable.
	for itemID, l := range byItemID {
		if seen[itemID] || l.Status == model.ListingEnded {
			continue
		}
		if err := s.listings.MarkEnded(ctx, l.ID); err != nil {
			stats.Errors++
			continue
		}
		metrics.ReconcileTotal.WithLabelValues("closed").Inc()
		stats.Closed++
	}

	if err := s.settings.SetLastReconciled(ctx, userID, now); err != nil {
		s.logger.Error("failed to stamp reconciliation", "user_id", userID, "error", err)
	}

	s.logger.Info("reconciliation complete",
		"user_id", userID,
		"imported", stats.Imported,
		"updated", stats.Updated,
		"closed", stats.Closed,
		"errors", stats.Errors,
	)
	return stats, nil
}

func (s *Synchronizer) importListing(ctx context.Context, userID string, rl marketplace.SellerListing, now time.Time) error {
	status := model.ListingActive
	if rl.Status == "ended" {
		status = model.ListingEnded
	}

	return s.listings.Create(ctx, &model.Listing{
		ID:                    uid.NewPrefixed("lst"),
		UserID:                userID,
		MarketplaceItemID:     rl.ItemID,
		SKU:                   rl.SKU,
		Title:                 rl.Title,
		CurrentPrice:          rl.Price,
		OriginalPrice:         rl.Price,
		Status:                status,
		QuantityAvailable:     rl.Quantity,
		MarketAveragePrice:    rl.MarketAverage,
		MarketLowestPrice:     rl.MarketLowest,
		MarketCompetitorCount: rl.CompetitorCount,
		LastSyncedAt:          &now,
		SyncStatus:            model.SyncSynced,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
}

// CreateFromCatalogInput are the caller-supplied parts of a catalog-driven
// listing. Prices are cents.
type CreateFromCatalogInput struct {
	CatalogID string `json:"catalog_id"`
	Price     int64  `json:"price_cents"`
	Quantity  int    `json:"quantity"`
}

// CreateFromCatalog publishes a new marketplace listing from a catalog
// product. The SKU is derived deterministically from owner and content, so
// repeating the call for the same product returns the existing listing
// instead of publishing a duplicate.
func (s *Synchronizer) CreateFromCatalog(ctx context.Context, userID string, in CreateFromCatalogInput) (*model.Listing, error) {
	if in.CatalogID == "" {
		return nil, apierror.Validation("catalog_id is required")
	}
	if in.Price <= 0 {
		return nil, apierror.Validation("price must be positive")
	}

	product, err := s.catalog.GetProduct(ctx, in.CatalogID)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog product: %w", err)
	}

	listingSKU := sku.Generate(userID, in.CatalogID, product.Title+"\x00"+product.Description)

	if existing, err := s.listings.GetBySKU(ctx, userID, listingSKU); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	itemID, err := s.market.CreateListing(ctx, userID, marketplace.CreateListingRequest{
		SKU:         listingSKU,
		Title:       product.Title,
		Description: product.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		ImageURLs:   product.ImageURLs(),
		Attributes:  product.Attributes,
	})
	if err != nil {
		return nil, fmt.Errorf("publish listing: %w", err)
	}

	now := time.Now().UTC()
	l := &model.Listing{
		ID:                uid.NewPrefixed("lst"),
		UserID:            userID,
		MarketplaceItemID: itemID,
		SKU:               listingSKU,
		Title:             product.Title,
		CurrentPrice:      in.Price,
		OriginalPrice:     in.Price,
		Status:            model.ListingActive,
		QuantityAvailable: in.Quantity,
		LastSyncedAt:      &now,
		SyncStatus:        model.SyncSynced,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return nil, err
	}

	s.logger.Info("catalog listing published",
		"user_id", userID, "catalog_id", in.CatalogID, "item_id", itemID, "sku", listingSKU)
	return l, nil
}
