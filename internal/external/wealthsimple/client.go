package wealthsimple

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/guberm/wealthsimple-trading-bot/pkg/httputil"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// APIError represents a non-success response from the trade API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wealthsimple api error %d: %s", e.StatusCode, e.Message)
}

// newAPIError captures the status and a bounded slice of the body
func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

// Client is the authenticated REST client for the trade API. Every call
// waits on an in-process pacer, carries a token from the TokenSource,
// and retries exactly once with a forced re-login when the API answers
// 401 on a request that carried a previously valid token.
type Client struct {
	baseURL string
	tokens  *TokenSource
	http    *httputil.Client
	pacer   *rate.Limiter
	logger  *logger.Logger
}

// NewClient creates a new trade API client
func NewClient(baseURL string, tokens *TokenSource, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    httpClient,
		// Undocumented API; keep request spacing polite
		pacer:  rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
		logger: log,
	}
}

// Get performs an authenticated GET and decodes the JSON body into dest
func (c *Client) Get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, nil, dest)
}

// Post performs an authenticated POST with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, dest interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, dest)
}

// Delete performs an authenticated DELETE, expecting no body back
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, dest interface{}) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, params, body, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drainBody(resp)
		c.logger.WithField("path", path).Info("Got 401, re-authenticating and retrying")

		token, err = c.tokens.ForceReauth(ctx)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, params, body, token)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusNoContent:
		return nil
	default:
		return newAPIError(resp)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "invalid JSON response"}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, params url.Values, body interface{}, token string) (*http.Response, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

// drainBody discards and closes a response body so the connection can
// be reused before a retry
func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
