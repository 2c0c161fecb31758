package yahoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
	"github.com/guberm/wealthsimple-trading-bot/pkg/redis"
)

// ProfileService fetches market cap and sector for a symbol. Yahoo
// throttles the JSON endpoint aggressively, so a goquery scrape of the
// quote page backs it up. Fundamentals are advisory: when both paths
// fail the caller gets a zero profile, never an error.
type ProfileService struct {
	client *Client
	cache  *redis.Cache
	logger *logger.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(client *Client, cache *redis.Cache, log *logger.Logger) *ProfileService {
	return &ProfileService{
		client: client,
		cache:  cache,
		logger: log,
	}
}

// Profile returns the best-effort fundamentals for a symbol
func (s *ProfileService) Profile(ctx context.Context, symbol string) (contracts.Profile, error) {
	var cached contracts.Profile
	if found, err := s.cache.Get(ctx, redis.ProfileKey(symbol), &cached); err == nil && found {
		return cached, nil
	}

	profile, err := s.fromQuoteSummary(ctx, symbol)
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).Debug("Quote summary failed, scraping quote page")
		profile, err = s.fromQuotePage(ctx, symbol)
	}
	if err != nil {
		s.logger.WithField("symbol", symbol).Warn("Profile unavailable, proceeding without fundamentals")
		return contracts.Profile{Symbol: symbol}, nil
	}

	profile.Symbol = symbol
	if err := s.cache.Set(ctx, redis.ProfileKey(symbol), profile, redis.TTLDaily); err != nil {
		s.logger.WithError(err).Debug("Profile cache write failed")
	}
	return profile, nil
}

// fromQuoteSummary reads market cap and sector from the v10 JSON API
func (s *ProfileService) fromQuoteSummary(ctx context.Context, symbol string) (contracts.Profile, error) {
	fullURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=price,summaryProfile",
		s.client.apiURL, url.PathEscape(symbol))
	body, err := s.client.fetch(ctx, fullURL)
	if err != nil {
		return contracts.Profile{}, err
	}

	var payload struct {
		QuoteSummary struct {
			Result []struct {
				Price struct {
					MarketCap struct {
						Raw float64 `json:"raw"`
					} `json:"marketCap"`
				} `json:"price"`
				SummaryProfile struct {
					Sector string `json:"sector"`
				} `json:"summaryProfile"`
			} `json:"result"`
		} `json:"quoteSummary"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return contracts.Profile{}, fmt.Errorf("decode quote summary: %w", err)
	}
	if len(payload.QuoteSummary.Result) == 0 {
		return contracts.Profile{}, fmt.Errorf("quote summary empty for %s", symbol)
	}

	r := payload.QuoteSummary.Result[0]
	return contracts.Profile{
		MarketCap: r.Price.MarketCap.Raw,
		Sector:    r.SummaryProfile.Sector,
	}, nil
}

// fromQuotePage scrapes the public quote page statistics table
func (s *ProfileService) fromQuotePage(ctx context.Context, symbol string) (contracts.Profile, error) {
	body, err := s.client.fetch(ctx, fmt.Sprintf("%s/quote/%s", s.client.pageURL, url.PathEscape(symbol)))
	if err != nil {
		return contracts.Profile{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return contracts.Profile{}, fmt.Errorf("parse quote page: %w", err)
	}

	capText := strings.TrimSpace(doc.Find(`td[data-test="MARKET_CAP-value"]`).First().Text())
	if capText == "" {
		capText = strings.TrimSpace(doc.Find(`fin-streamer[data-field="marketCap"]`).First().Text())
	}

	// The sector renders as a link into the sector index
	sector := strings.TrimSpace(doc.Find(`a[data-test="SECTOR"]`).First().Text())
	if sector == "" {
		sector = strings.TrimSpace(doc.Find(`a[href*="/sectors/"]`).First().Text())
	}

	marketCap := parseMarketCap(capText)
	if marketCap == 0 && sector == "" {
		return contracts.Profile{}, fmt.Errorf("quote page had no profile data for %s", symbol)
	}
	return contracts.Profile{MarketCap: marketCap, Sector: sector}, nil
}

// parseMarketCap converts rendered caps like "1.23T", "456.78B", "12.5M"
// or a bare number into a float. Unknown forms parse to zero.
func parseMarketCap(text string) float64 {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if text == "" || text == "N/A" || text == "--" {
		return 0
	}

	multiplier := 1.0
	switch text[len(text)-1] {
	case 'T', 't':
		multiplier = 1e12
		text = text[:len(text)-1]
	case 'B', 'b':
		multiplier = 1e9
		text = text[:len(text)-1]
	case 'M', 'm':
		multiplier = 1e6
		text = text[:len(text)-1]
	case 'K', 'k':
		multiplier = 1e3
		text = text[:len(text)-1]
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return value * multiplier
}
