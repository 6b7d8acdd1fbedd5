// Package enrich provides best-effort vendor lookups used to give the payee
// pass extra context when a raw description identifies nothing.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Enricher looks up external context for a payee or raw description. A lookup
// failure is never fatal to the pipeline; callers log it and continue.
type Enricher interface {
	Lookup(ctx context.Context, description string) (string, error)
}

// Disabled is an Enricher that always reports no context.
type Disabled struct{}

// Lookup implements Enricher.
func (Disabled) Lookup(context.Context, string) (string, error) {
	return "", nil
}

// vendorClient queries an HTTP vendor-directory service.
type vendorClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
}

// Config holds vendor lookup configuration. An empty BaseURL disables lookups.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New creates an Enricher for the configured vendor directory, or a Disabled
// one when no directory is configured.
func New(cfg Config, logger *slog.Logger) Enricher {
	if cfg.BaseURL == "" {
		return Disabled{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &vendorClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type vendorResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Website     string `json:"website"`
}

// Lookup queries the vendor directory and renders whatever it knows as plain
// text for the inference prompt. Missing vendors return an empty string.
func (c *vendorClient) Lookup(ctx context.Context, description string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/vendors/search?q=%s", c.baseURL, url.QueryEscape(description))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vendor lookup request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("vendor lookup error (status %d): %s", resp.StatusCode, string(body))
	}

	var vendor vendorResponse
	if err := json.NewDecoder(resp.Body).Decode(&vendor); err != nil {
		return "", fmt.Errorf("failed to parse vendor response: %w", err)
	}
	if vendor.Name == "" {
		return "", nil
	}

	info := fmt.Sprintf("Vendor: %s", vendor.Name)
	if vendor.Description != "" {
		info += "\n" + vendor.Description
	}
	if vendor.Category != "" {
		info += "\nTypical category: " + vendor.Category
	}
	if vendor.Website != "" {
		info += "\nWebsite: " + vendor.Website
	}

	c.logger.Debug("vendor lookup hit", "query", description, "vendor", vendor.Name)
	return info, nil
}
