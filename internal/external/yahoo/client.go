package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/guberm/wealthsimple-trading-bot/pkg/httputil"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Yahoo blocks the default Go user agent, so every request pretends to
// be a browser.
const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// Client handles communication with Yahoo Finance. The chart and quote
// summary APIs live on the query host; the scrape fallback reads the
// public quote pages.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiURL     string
	pageURL    string
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log,
		apiURL:     "https://query1.finance.yahoo.com",
		pageURL:    "https://finance.yahoo.com",
	}
}

// fetch performs a GET with browser headers and returns the raw body
func (c *Client) fetch(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body failed: %w", err)
	}
	return body, nil
}
