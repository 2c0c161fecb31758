package wealthsimple

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/httputil"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// Observed token lifetime is ~15 minutes; refresh two minutes early so
// a request never rides an expiring token.
const (
	tokenLifetime = 15 * time.Minute
	refreshMargin = 2 * time.Minute
)

// Credentials holds the Wealthsimple login secrets
type Credentials struct {
	Email     string
	Password  string
	OTPSecret string // base32 TOTP seed, empty when 2FA is off
}

// Authenticator performs login, 2FA and token refresh against the trade
// API. Not safe for concurrent use; TokenSource serializes access.
type Authenticator struct {
	baseURL string
	creds   Credentials
	http    *httputil.Client
	logger  *logger.Logger

	accessToken  string
	refreshToken string
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(baseURL string, creds Credentials, httpClient *httputil.Client, log *logger.Logger) *Authenticator {
	return &Authenticator{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		http:    httpClient,
		logger:  log,
	}
}

// Login authenticates with email and password. A 401 on the first
// attempt with an OTP secret configured means 2FA is on; retry once
// with a fresh TOTP code. Tokens arrive in response headers with a
// JSON body fallback.
func (a *Authenticator) Login(ctx context.Context) error {
	payload := map[string]string{
		"email":    a.creds.Email,
		"password": a.creds.Password,
	}

	a.logger.WithField("email", a.creds.Email).Info("Logging in to Wealthsimple")
	resp, err := a.http.PostJSON(ctx, a.baseURL+"/auth/login", payload)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized && a.creds.OTPSecret != "" {
		drainBody(resp)

		code, err := totp.GenerateCode(a.creds.OTPSecret, time.Now())
		if err != nil {
			return fmt.Errorf("generate otp code: %w", err)
		}
		payload["otp"] = code

		a.logger.Info("2FA required, retrying with OTP")
		resp, err = a.http.PostJSON(ctx, a.baseURL+"/auth/login", payload)
		if err != nil {
			return fmt.Errorf("login request with otp: %w", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return newAPIError(resp)
	}

	a.accessToken = resp.Header.Get("X-Access-Token")
	a.refreshToken = resp.Header.Get("X-Refresh-Token")

	if a.accessToken == "" {
		var body struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			a.accessToken = body.AccessToken
			a.refreshToken = body.RefreshToken
		}
	}

	if a.accessToken == "" {
		return fmt.Errorf("login response carried no access token")
	}

	a.logger.Info("Login successful")
	return nil
}

// Refresh exchanges the refresh token for fresh tokens. Header values
// replace the stored tokens only when present.
func (a *Authenticator) Refresh(ctx context.Context) error {
	if a.refreshToken == "" {
		return fmt.Errorf("refresh: %w", contracts.ErrNotAuthenticated)
	}

	resp, err := a.http.PostJSON(ctx, a.baseURL+"/auth/refresh", map[string]string{
		"refresh_token": a.refreshToken,
	})
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return newAPIError(resp)
	}

	if v := resp.Header.Get("X-Access-Token"); v != "" {
		a.accessToken = v
	}
	if v := resp.Header.Get("X-Refresh-Token"); v != "" {
		a.refreshToken = v
	}

	a.logger.Info("Token refreshed")
	return nil
}

// AccessToken returns the current token, or ErrNotAuthenticated before
// the first successful login
func (a *Authenticator) AccessToken() (string, error) {
	if a.accessToken == "" {
		return "", contracts.ErrNotAuthenticated
	}
	return a.accessToken, nil
}

// IsAuthenticated reports whether a login has succeeded
func (a *Authenticator) IsAuthenticated() bool {
	return a.accessToken != ""
}

// TokenSource hands out valid access tokens, logging in on first use
// and refreshing proactively before expiry. Safe for concurrent use.
type TokenSource struct {
	auth   *Authenticator
	logger *logger.Logger

	mu       sync.RWMutex
	lastAuth time.Time

	now func() time.Time
}

// NewTokenSource creates a token source over the authenticator
func NewTokenSource(auth *Authenticator, log *logger.Logger) *TokenSource {
	return &TokenSource{
		auth:   auth,
		logger: log,
		now:    time.Now,
	}
}

// Token returns a valid access token, authenticating or refreshing as
// needed. When a proactive refresh fails it falls back to a full login.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.RLock()
	if ts.auth.IsAuthenticated() && !ts.needsRefresh() {
		token, err := ts.auth.AccessToken()
		ts.mu.RUnlock()
		return token, err
	}
	ts.mu.RUnlock()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	// Another caller may have authenticated while we waited for the lock
	if ts.auth.IsAuthenticated() && !ts.needsRefresh() {
		return ts.auth.AccessToken()
	}

	if !ts.auth.IsAuthenticated() {
		if err := ts.auth.Login(ctx); err != nil {
			return "", err
		}
	} else if err := ts.auth.Refresh(ctx); err != nil {
		ts.logger.WithError(err).Warn("Refresh failed, performing full re-login")
		if err := ts.auth.Login(ctx); err != nil {
			return "", err
		}
	}

	ts.lastAuth = ts.now()
	return ts.auth.AccessToken()
}

// ForceReauth performs a full login regardless of token state, used
// after the API rejects a request with 401
func (ts *TokenSource) ForceReauth(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if err := ts.auth.Login(ctx); err != nil {
		return "", err
	}
	ts.lastAuth = ts.now()
	return ts.auth.AccessToken()
}

// needsRefresh reports whether the token is inside the refresh margin.
// Callers hold at least the read lock.
func (ts *TokenSource) needsRefresh() bool {
	return ts.now().Sub(ts.lastAuth) > tokenLifetime-refreshMargin
}
