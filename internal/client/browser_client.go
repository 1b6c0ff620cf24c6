package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sitecloner/api/internal/config"
)

// PageScraper defines the interface for the browser-automation sidecar
type PageScraper interface {
	Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error)
	Scrape(ctx context.Context, req *ScrapeRequest) (*ScrapeResponse, error)
	HealthCheck(ctx context.Context) error
}

// BrowserClient implements PageScraper for the headless-browser microservice
type BrowserClient struct {
	httpClient *http.Client
	baseURL    string
}

// AnalyzeRequest asks the sidecar to inspect page structure
type AnalyzeRequest struct {
	URL      string `json:"url"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

// AnalyzeResponse summarizes the page structure
type AnalyzeResponse struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	MainColors      []string `json:"main_colors"`
	FontFamilies    []string `json:"font_families"`
	LayoutType      string   `json:"layout_type"`
	ComplexityScore float64  `json:"complexity_score"`
}

// ScrapeRequest asks the sidecar to extract page content
type ScrapeRequest struct {
	URL           string `json:"url"`
	Quality       string `json:"quality"`
	IncludeImages bool   `json:"include_images"`
	MaxDepth      int    `json:"max_depth,omitempty"`
}

// ScrapeResponse carries the extracted page content
type ScrapeResponse struct {
	HTML   string   `json:"html"`
	Text   string   `json:"text"`
	Assets []string `json:"assets"`
}

// NewBrowserClient creates a new browser sidecar client
func NewBrowserClient(cfg *config.BrowserConfig) *BrowserClient {
	return &BrowserClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// Analyze inspects the target page's structure
func (c *BrowserClient) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.post(ctx, "/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Scrape extracts content and assets from the target page
func (c *BrowserClient) Scrape(ctx context.Context, req *ScrapeRequest) (*ScrapeResponse, error) {
	var resp ScrapeResponse
	if err := c.post(ctx, "/scrape", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthCheck verifies the sidecar is reachable
func (c *BrowserClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("browser service unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// IsConfigured returns whether a sidecar URL is set
func (c *BrowserClient) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}

func (c *BrowserClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("browser service error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
