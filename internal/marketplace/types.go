package marketplace

// SellerListing is one item in the seller's marketplace inventory as the
// marketplace reports it. Prices are integer cents.
type SellerListing struct {
	ItemID            string `json:"item_id"`
	SKU               string `json:"sku"`
	Title             string `json:"title"`
	Price             int64  `json:"price"`
	Quantity          int    `json:"quantity"`
	Status            string `json:"status"`
	MarketAverage     int64  `json:"market_average_price"`
	MarketLowest      int64  `json:"market_lowest_price"`
	CompetitorCount   int    `json:"competitor_count"`
}

// SellerListingsResponse is one page of the seller inventory.
type SellerListingsResponse struct {
	Listings []SellerListing `json:"listings"`
	Cursor   string          `json:"cursor"`
	Total    int             `json:"total"`
}

// GetSellerListingsOptions filters a seller inventory page.
type GetSellerListingsOptions struct {
	Limit  int
	Cursor string
	Status string
}

// UpdatePriceRequest changes a live listing's price.
type UpdatePriceRequest struct {
	Price int64 `json:"price"`
}

// CreateListingRequest publishes a new listing.
type CreateListingRequest struct {
	SKU         string            `json:"sku"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Price       int64             `json:"price"`
	Quantity    int               `json:"quantity"`
	ImageURLs   []string          `json:"image_urls,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// CreateListingResponse is the marketplace acknowledgement of a new listing.
type CreateListingResponse struct {
	ItemID string `json:"item_id"`
}
