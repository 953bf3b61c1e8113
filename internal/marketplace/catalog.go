package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// CatalogClient reads product records from the catalog provider. The catalog
// is a separate service from the seller API and authenticates with a static
// key rather than per-user OAuth.
type CatalogClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// CatalogOption configures a CatalogClient.
type CatalogOption func(*CatalogClient)

// NewCatalogClient creates a catalog client.
func NewCatalogClient(baseURL, apiKey string, opts ...CatalogOption) *CatalogClient {
	c := &CatalogClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithCatalogTimeout sets the HTTP client timeout.
func WithCatalogTimeout(d time.Duration) CatalogOption {
	return func(c *CatalogClient) {
		c.httpClient.Timeout = d
	}
}

// WithCatalogHTTPClient sets a custom HTTP client.
func WithCatalogHTTPClient(hc *http.Client) CatalogOption {
	return func(c *CatalogClient) {
		c.httpClient = hc
	}
}

// WithCatalogLogger sets the logger.
func WithCatalogLogger(logger *slog.Logger) CatalogOption {
	return func(c *CatalogClient) {
		c.logger = logger
	}
}

// ProductImage is one catalog image with its pixel dimensions.
type ProductImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Product is a catalog record used to pre-fill new listings.
type Product struct {
	CatalogID   string            `json:"catalog_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Images      []ProductImage    `json:"images"`
	Attributes  map[string]string `json:"attributes"`
}

// ImageURLs returns image URLs ordered highest resolution first.
func (p *Product) ImageURLs() []string {
	imgs := make([]ProductImage, len(p.Images))
	copy(imgs, p.Images)
	sort.SliceStable(imgs, func(i, j int) bool {
		return imgs[i].Width*imgs[i].Height > imgs[j].Width*imgs[j].Height
	})

	urls := make([]string, 0, len(imgs))
	for _, img := range imgs {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	return urls
}

// GetProduct fetches a product by catalog id.
func (c *CatalogClient) GetProduct(ctx context.Context, catalogID string) (*Product, error) {
	fullURL := c.baseURL + "/products/" + url.PathEscape(catalogID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", catalogID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	var p Product
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}

	return &p, nil
}
