package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fakeTokens is a TokenSource returning canned tokens.
type fakeTokens struct {
	token     string
	refreshed string
	refreshes atomic.Int64
}

func (f *fakeTokens) Token(ctx context.Context, userID string) (string, error) {
	return f.token, nil
}

func (f *fakeTokens) ForceRefresh(ctx context.Context, userID string) (string, error) {
	f.refreshes.Add(1)
	return f.refreshed, nil
}

func TestGetAllSellerListingsPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/seller/listings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var resp SellerListingsResponse
		switch r.URL.Query().Get("cursor") {
		case "":
			resp = SellerListingsResponse{
				Listings: []SellerListing{{ItemID: "item-1", Price: 1000}, {ItemID: "item-2", Price: 2000}},
				Cursor:   "page2",
			}
		case "page2":
			resp = SellerListingsResponse{
				Listings: []SellerListing{{ItemID: "item-3", Price: 3000}},
			}
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := NewClient(server.URL, &fakeTokens{token: "tok"})

	listings, err := c.GetAllSellerListings(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetAllSellerListings: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("got %d listings, want 3", len(listings))
	}
	if listings[2].ItemID != "item-3" {
		t.Errorf("last listing = %s, want item-3", listings[2].ItemID)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(SellerListingsResponse{})
	}))
	defer server.Close()

	c := NewClient(server.URL, &fakeTokens{token: "tok"},
		WithRetries(3, time.Millisecond))

	if _, err := c.GetSellerListings(context.Background(), "u1", GetSellerListingsOptions{}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := NewClient(server.URL, &fakeTokens{token: "tok"},
		WithRetries(3, time.Millisecond))

	err := c.UpdatePrice(context.Background(), "u1", "item-1", 900)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !asAPIError(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("err = %v, want 422 APIError", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1 (4xx must not retry)", attempts.Load())
	}
}

func TestUnauthorizedForcesSingleRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(SellerListingsResponse{})
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "stale", refreshed: "fresh"}
	c := NewClient(server.URL, tokens, WithRetries(3, time.Millisecond))

	if _, err := c.GetSellerListings(context.Background(), "u1", GetSellerListingsOptions{}); err != nil {
		t.Fatalf("expected success after forced refresh, got %v", err)
	}
	if tokens.refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want 1", tokens.refreshes.Load())
	}
}

func TestUnauthorizedTwiceFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &fakeTokens{token: "stale", refreshed: "still-stale"}
	c := NewClient(server.URL, tokens, WithRetries(3, time.Millisecond))

	err := c.UpdatePrice(context.Background(), "u1", "item-1", 900)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !asAPIError(err, &apiErr) || !apiErr.IsAuthError() {
		t.Fatalf("err = %v, want 401 APIError", err)
	}
	if tokens.refreshes.Load() != 1 {
		t.Errorf("refreshes = %d, want exactly 1", tokens.refreshes.Load())
	}
}

func TestUpdatePriceRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/seller/listings/item-1/price" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}

		var body UpdatePriceRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Price != 8500 {
			t.Errorf("price = %d, want 8500", body.Price)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := NewClient(server.URL, &fakeTokens{token: "tok"})
	if err := c.UpdatePrice(context.Background(), "u1", "item-1", 8500); err != nil {
		t.Fatalf("UpdatePrice: %v", err)
	}
}

func TestCatalogImageOrdering(t *testing.T) {
	p := &Product{
		Images: []ProductImage{
			{URL: "small", Width: 100, Height: 100},
			{URL: "large", Width: 1600, Height: 1200},
			{URL: "medium", Width: 800, Height: 600},
			{Width: 3000, Height: 3000}, // no URL, dropped
		},
	}

	got := p.ImageURLs()
	want := []string{"large", "medium", "small"}
	if len(got) != len(want) {
		t.Fatalf("ImageURLs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ImageURLs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGetProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/cat-42" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "k" {
			t.Errorf("api key header = %q", got)
		}
		fmt.Fprint(w, `{"catalog_id":"cat-42","title":"Widget","attributes":{"brand":"Acme"}}`)
	}))
	defer server.Close()

	c := NewCatalogClient(server.URL, "k")
	p, err := c.GetProduct(context.Background(), "cat-42")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if p.Title != "Widget" || p.Attributes["brand"] != "Acme" {
		t.Errorf("product = %+v", p)
	}
}

func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}
