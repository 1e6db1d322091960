// Package storefront fetches live product listings from a marketplace search
// API (RapidAPI-style: per-request API key and host headers). It feeds the
// retrieval index when no catalog database is configured.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/natthaphol/shopscout/retrieval"
)

const maxResponseSizeBytes = 4 << 20

type Config struct {
	URL     string        `split_words:"true" required:"true"`
	APIKey  string        `split_words:"true" required:"true"`
	Host    string        `split_words:"true"`
	Source  string        `split_words:"true" default:"amazon"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

type Client struct {
	baseURL    string
	apiKey     string
	host       string
	source     string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("storefront url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("storefront api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	source := strings.ToLower(strings.TrimSpace(cfg.Source))
	if source == "" {
		source = "amazon"
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		host:    strings.TrimSpace(cfg.Host),
		source:  source,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

type listingPayload struct {
	Products []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Price       string `json:"price"`
		URL         string `json:"url"`
	} `json:"products"`
	Error string `json:"error"`
}

// Search queries the marketplace and maps its listings onto the retrieval
// product shape. Listings without a parsable price are skipped.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]retrieval.Product, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []retrieval.Product{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	endpoint := fmt.Sprintf("%s/search?query=%s&limit=%d", c.baseURL, url.QueryEscape(q), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build storefront request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Host", c.host)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute storefront request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read storefront response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("storefront http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var payload listingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode storefront response: %w", err)
	}
	if payload.Error != "" {
		return nil, errors.New(payload.Error)
	}

	products := make([]retrieval.Product, 0, len(payload.Products))
	for _, p := range payload.Products {
		price, ok := parsePrice(p.Price)
		if !ok {
			continue
		}
		products = append(products, retrieval.Product{
			ID:          strings.TrimSpace(p.ID),
			Title:       strings.TrimSpace(p.Title),
			Description: strings.TrimSpace(p.Description),
			Category:    strings.ToLower(strings.TrimSpace(p.Category)),
			Price:       price,
			Source:      c.source,
			URL:         strings.TrimSpace(p.URL),
		})
	}
	return products, nil
}

func parsePrice(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}
