package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// GetSellerListings fetches one page of the user's marketplace inventory.
func (c *Client) GetSellerListings(ctx context.Context, userID string, opts GetSellerListingsOptions) (*SellerListingsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp SellerListingsResponse
	if err := c.get(ctx, userID, "/seller/listings", query, &resp); err != nil {
		return nil, fmt.Errorf("get seller listings: %w", err)
	}

	return &resp, nil
}

// GetAllSellerListings fetches the full inventory by paginating through pages.
func (c *Client) GetAllSellerListings(ctx context.Context, userID string) ([]SellerListing, error) {
	var all []SellerListing
	opts := GetSellerListingsOptions{Limit: 200}

	for {
		resp, err := c.GetSellerListings(ctx, userID, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Listings...)

		if resp.Cursor == "" {
			break
		}
		opts.Cursor = resp.Cursor
	}

	return all, nil
}

// UpdatePrice changes the live price of a listing on the marketplace.
func (c *Client) UpdatePrice(ctx context.Context, userID, itemID string, price int64) error {
	path := "/seller/listings/" + url.PathEscape(itemID) + "/price"
	if err := c.send(ctx, userID, http.MethodPut, path, UpdatePriceRequest{Price: price}, nil); err != nil {
		return fmt.Errorf("update price %s: %w", itemID, err)
	}
	return nil
}

// CreateListing publishes a new listing and returns its marketplace item id.
func (c *Client) CreateListing(ctx context.Context, userID string, req CreateListingRequest) (string, error) {
	var resp CreateListingResponse
	if err := c.send(ctx, userID, http.MethodPost, "/seller/listings", req, &resp); err != nil {
		return "", fmt.Errorf("create listing: %w", err)
	}
	return resp.ItemID, nil
}

// EndListing ends a live listing on the marketplace.
func (c *Client) EndListing(ctx context.Context, userID, itemID string) error {
	path := "/seller/listings/" + url.PathEscape(itemID)
	if err := c.send(ctx, userID, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("end listing %s: %w", itemID, err)
	}
	return nil
}

// RevokeToken invalidates a refresh token at the marketplace authorization
// server. Best effort during disconnect; the endpoint takes the raw token,
// not a user id, so it bypasses the token source.
func (c *Client) RevokeToken(ctx context.Context, refreshToken string) error {
	if c.revokeURL == "" || refreshToken == "" {
		return nil
	}

	form := url.Values{}
	form.Set("token", refreshToken)
	form.Set("token_type_hint", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}
