package pricing

import (
	"testing"
	"time"

	"repricer-api/internal/model"
)

func listing(current, floor int64) *model.Listing {
	return &model.Listing{
		ID:           "lst-1",
		CurrentPrice: current,
		MinimumPrice: floor,
		Status:       model.ListingActive,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func strat(kind model.StrategyKind, magnitude int64, interval int) *model.Strategy {
	return &model.Strategy{
		ID:           "str-1",
		Name:         "test",
		Kind:         kind,
		Magnitude:    magnitude,
		IntervalDays: interval,
		Active:       true,
	}
}

func TestFixedPercentage(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		current   int64
		floor     int64
		magnitude int64
		wantPrice int64
		applied   bool
		reason    string
	}{
		// 15% off $100.00 computes $85.00, clamped to the $90.00 floor.
		{"clamped to floor", 10000, 9000, 15, 9000, true, ""},
		{"plain cut", 10000, 1000, 10, 9000, true, ""},
		{"already at floor", 9000, 9000, 15, 0, false, ReasonAtFloor},
		{"below floor somehow", 8500, 9000, 15, 0, false, ReasonAtFloor},
		// 1% of 49 cents rounds half-up: 49 * 0.99 = 48.51 -> 49, no change.
		{"rounds to no change", 49, 1, 1, 0, false, ReasonNoChange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ComputeNextPrice(listing(tt.current, tt.floor), strat(model.KindFixedPercentage, tt.magnitude, 7), now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Applied != tt.applied {
				t.Errorf("Applied = %v, want %v (reason=%q)", res.Applied, tt.applied, res.Reason)
			}
			if res.Applied && res.NewPrice != tt.wantPrice {
				t.Errorf("NewPrice = %d, want %d", res.NewPrice, tt.wantPrice)
			}
			if !res.Applied && tt.reason != "" && res.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", res.Reason, tt.reason)
			}
		})
	}
}

func TestFixedPercentageRounding(t *testing.T) {
	now := time.Now()
	// 15% off $33.33 = $28.3305, half-up to $28.33.
	res, err := ComputeNextPrice(listing(3333, 100), strat(model.KindFixedPercentage, 15, 7), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NewPrice != 2833 {
		t.Errorf("NewPrice = %d, want 2833", res.NewPrice)
	}
	// 5% off $10.30 = $9.785, half-up to $9.79.
	res, err = ComputeNextPrice(listing(1030, 100), strat(model.KindFixedPercentage, 5, 7), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NewPrice != 979 {
		t.Errorf("NewPrice = %d, want 979", res.NewPrice)
	}
}

func TestFixedAmount(t *testing.T) {
	now := time.Now()

	res, err := ComputeNextPrice(listing(10000, 9000), strat(model.KindFixedAmount, 500, 7), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied || res.NewPrice != 9500 {
		t.Errorf("got %+v, want applied price 9500", res)
	}

	// $20 cut clamps to the floor.
	res, err = ComputeNextPrice(listing(10000, 9000), strat(model.KindFixedAmount, 2000, 7), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied || res.NewPrice != 9000 {
		t.Errorf("got %+v, want clamped price 9000", res)
	}
}

func TestMarketBased(t *testing.T) {
	now := time.Now()

	t.Run("average below current", func(t *testing.T) {
		l := listing(10000, 1000)
		l.MarketAveragePrice = 9500
		l.MarketCompetitorCount = 8
		res, err := ComputeNextPrice(l, strat(model.KindMarketBased, 0, 7), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Applied || res.NewPrice != 9500 {
			t.Errorf("got %+v, want applied price 9500", res)
		}
		if res.Warning != "" {
			t.Errorf("unexpected warning %q", res.Warning)
		}
	})

	t.Run("average above current is a no-op", func(t *testing.T) {
		l := listing(10000, 1000)
		l.MarketAveragePrice = 10500
		l.MarketCompetitorCount = 8
		res, err := ComputeNextPrice(l, strat(model.KindMarketBased, 0, 7), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Applied {
			t.Errorf("Applied = true, want false (got %+v)", res)
		}
		if res.Reason != ReasonAboveMarket {
			t.Errorf("Reason = %q, want %q", res.Reason, ReasonAboveMarket)
		}
	})

	t.Run("missing signal skips", func(t *testing.T) {
		res, err := ComputeNextPrice(listing(10000, 1000), strat(model.KindMarketBased, 0, 7), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Applied || res.Reason != ReasonNoSignal {
			t.Errorf("got %+v, want skip with %q", res, ReasonNoSignal)
		}
	})

	t.Run("low confidence warns but computes", func(t *testing.T) {
		l := listing(10000, 1000)
		l.MarketAveragePrice = 9000
		l.MarketCompetitorCount = 2
		res, err := ComputeNextPrice(l, strat(model.KindMarketBased, 0, 7), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Applied || res.NewPrice != 9000 {
			t.Errorf("got %+v, want applied price 9000", res)
		}
		if res.Warning == "" {
			t.Error("expected a low-confidence warning")
		}
	})

	t.Run("average clamped to floor", func(t *testing.T) {
		l := listing(10000, 9200)
		l.MarketAveragePrice = 9000
		l.MarketCompetitorCount = 10
		res, err := ComputeNextPrice(l, strat(model.KindMarketBased, 0, 7), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Applied || res.NewPrice != 9200 {
			t.Errorf("got %+v, want floor 9200", res)
		}
	})
}

func TestTimeBased(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("scales with elapsed intervals", func(t *testing.T) {
		l := listing(10000, 1000)
		l.CreatedAt = created
		// 3 whole 7-day intervals elapsed: 5% * 3 = 15% cut.
		now := created.AddDate(0, 0, 22)
		res, err := ComputeNextPrice(l, strat(model.KindTimeBased, 5, 7), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Applied || res.NewPrice != 8500 {
			t.Errorf("got %+v, want applied price 8500", res)
		}
	})

	t.Run("caps the single-step cut", func(t *testing.T) {
		l := listing(10000, 1000)
		l.CreatedAt = created
		// 20 intervals * 10% would be 200%; capped at 50%.
		now := created.AddDate(0, 0, 140)
		res, err := ComputeNextPrice(l, strat(model.KindTimeBased, 10, 7), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Applied || res.NewPrice != 5000 {
			t.Errorf("got %+v, want capped price 5000", res)
		}
	})

	t.Run("no interval elapsed", func(t *testing.T) {
		l := listing(10000, 1000)
		l.CreatedAt = created
		res, err := ComputeNextPrice(l, strat(model.KindTimeBased, 5, 7), created.AddDate(0, 0, 3))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Applied || res.Reason != ReasonNotYetElapsed {
			t.Errorf("got %+v, want skip with %q", res, ReasonNotYetElapsed)
		}
	})
}

func TestMalformedStrategy(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		s    *model.Strategy
	}{
		{"unknown kind", strat("bogus", 10, 7)},
		{"percentage too large", strat(model.KindFixedPercentage, 80, 7)},
		{"percentage zero", strat(model.KindFixedPercentage, 0, 7)},
		{"interval out of range", strat(model.KindFixedPercentage, 10, 0)},
		{"amount too small", strat(model.KindFixedAmount, 50, 7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ComputeNextPrice(listing(10000, 1000), tt.s, now); err == nil {
				t.Error("expected error for malformed strategy")
			}
		})
	}
}

// TestPurity runs the same computation repeatedly and checks the floor
// invariant across a grid of inputs.
func TestPurity(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, current := range []int64{100, 999, 4999, 10000, 99999} {
		for _, floor := range []int64{0, 50, 4999, 9000} {
			l := listing(current, floor)
			s := strat(model.KindFixedPercentage, 15, 7)

			first, err := ComputeNextPrice(l, s, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			second, err := ComputeNextPrice(l, s, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if first != second {
				t.Errorf("same inputs produced different results: %+v vs %+v", first, second)
			}
			if first.Applied && first.NewPrice < floor {
				t.Errorf("price %d fell below floor %d", first.NewPrice, floor)
			}
			if first.Applied && first.NewPrice >= current {
				t.Errorf("applied reduction did not lower price: %d >= %d", first.NewPrice, current)
			}
		}
	}
}
