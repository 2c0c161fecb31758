package wealthsimple

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
	"github.com/guberm/wealthsimple-trading-bot/pkg/redis"
)

type stockPayload struct {
	ID              string `json:"id"`
	Symbol          string `json:"symbol"`
	Name            string `json:"name"`
	PrimaryExchange string `json:"primary_exchange"`
	Currency        string `json:"currency"`
	SecurityType    string `json:"security_type"`
	IsBuyable       *bool  `json:"is_buyable"`
}

type quotePayload struct {
	Amount    decimal.Decimal `json:"amount"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    int64           `json:"volume"`
	QuoteDate string          `json:"quote_date"`
}

type securityPayload struct {
	ID    string        `json:"id"`
	Stock stockPayload  `json:"stock"`
	Quote *quotePayload `json:"quote"`
}

// securityRecord is the cached pairing of instrument and latest quote
type securityRecord struct {
	Security contracts.Security `json:"security"`
	Quote    *contracts.Quote   `json:"quote,omitempty"`
}

// MarketDataService wraps security search and quote endpoints. Lookups
// go through a per-process map and, when Redis is on, a shared cache,
// so a pipeline run hits the search endpoint once per symbol.
type MarketDataService struct {
	client *Client
	cache  *redis.Cache
	logger *logger.Logger

	mu    sync.Mutex
	local map[string]securityRecord
}

// NewMarketDataService creates a new market data service
func NewMarketDataService(client *Client, cache *redis.Cache, log *logger.Logger) *MarketDataService {
	return &MarketDataService{
		client: client,
		cache:  cache,
		logger: log,
		local:  make(map[string]securityRecord),
	}
}

// search finds a security by symbol. The ".TO" suffix is stripped for
// the query; an exact symbol match wins, else the first result is
// taken. Returns ErrSecurityNotFound when the search comes back empty.
func (s *MarketDataService) search(ctx context.Context, symbol string) (securityRecord, error) {
	s.mu.Lock()
	if rec, ok := s.local[symbol]; ok {
		s.mu.Unlock()
		return rec, nil
	}
	s.mu.Unlock()

	var cached securityRecord
	if found, err := s.cache.Get(ctx, redis.SecurityKey(symbol), &cached); err == nil && found {
		s.remember(symbol, cached)
		return cached, nil
	}

	query := strings.TrimSuffix(symbol, ".TO")
	var envelope struct {
		Results []securityPayload `json:"results"`
	}
	if err := s.client.Get(ctx, "/securities", url.Values{"query": []string{query}}, &envelope); err != nil {
		return securityRecord{}, err
	}

	match := matchSecurity(envelope.Results, query, symbol)
	if match == nil {
		s.logger.WithField("symbol", symbol).Warn("Security not found")
		return securityRecord{}, fmt.Errorf("%w: %s", contracts.ErrSecurityNotFound, symbol)
	}

	rec := buildSecurityRecord(*match)
	s.remember(symbol, rec)
	if err := s.cache.Set(ctx, redis.SecurityKey(symbol), rec, redis.TTLShort); err != nil {
		s.logger.WithError(err).Debug("Security cache write failed")
	}
	return rec, nil
}

// matchSecurity prefers an exact symbol match over the first result
func matchSecurity(results []securityPayload, query, symbol string) *securityPayload {
	for i := range results {
		got := strings.ToUpper(results[i].Stock.Symbol)
		if got == strings.ToUpper(query) || got == strings.ToUpper(symbol) {
			return &results[i]
		}
	}
	if len(results) > 0 {
		return &results[0]
	}
	return nil
}

func buildSecurityRecord(p securityPayload) securityRecord {
	id := p.ID
	if id == "" {
		id = p.Stock.ID
	}
	currency := p.Stock.Currency
	if currency == "" {
		currency = "CAD"
	}
	buyable := true
	if p.Stock.IsBuyable != nil {
		buyable = *p.Stock.IsBuyable
	}

	rec := securityRecord{
		Security: contracts.Security{
			ID:       id,
			Symbol:   p.Stock.Symbol,
			Name:     p.Stock.Name,
			Exchange: p.Stock.PrimaryExchange,
			Currency: currency,
			Type:     contracts.SecurityType(p.Stock.SecurityType),
			Buyable:  buyable,
		},
	}
	if p.Quote != nil {
		rec.Quote = &contracts.Quote{
			SecurityID: id,
			Symbol:     p.Stock.Symbol,
			Amount:     p.Quote.Amount,
			Bid:        p.Quote.Bid,
			Ask:        p.Quote.Ask,
			High:       p.Quote.High,
			Low:        p.Quote.Low,
			Volume:     p.Quote.Volume,
			Date:       p.Quote.QuoteDate,
		}
	}
	return rec
}

func (s *MarketDataService) remember(symbol string, rec securityRecord) {
	s.mu.Lock()
	s.local[symbol] = rec
	s.mu.Unlock()
}

// SecurityByID fetches one security directly by its brokerage id
func (s *MarketDataService) SecurityByID(ctx context.Context, securityID string) (contracts.Security, error) {
	var payload securityPayload
	if err := s.client.Get(ctx, "/securities/"+securityID, nil, &payload); err != nil {
		return contracts.Security{}, err
	}
	return buildSecurityRecord(payload).Security, nil
}

// Quote returns the latest price for a symbol, zero when the symbol or
// its quote is unknown
func (s *MarketDataService) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	rec, err := s.search(ctx, symbol)
	if err != nil {
		if errors.Is(err, contracts.ErrSecurityNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	if rec.Quote == nil {
		return decimal.Zero, nil
	}
	return rec.Quote.Amount, nil
}

// ResolveSecurityID maps a symbol to its brokerage security id
func (s *MarketDataService) ResolveSecurityID(ctx context.Context, symbol string) (string, error) {
	rec, err := s.search(ctx, symbol)
	if err != nil {
		return "", err
	}
	if rec.Security.ID == "" {
		return "", fmt.Errorf("%w: %s has no id", contracts.ErrSecurityNotFound, symbol)
	}
	return rec.Security.ID, nil
}

// BulkResolve resolves many symbols, skipping the ones that fail
func (s *MarketDataService) BulkResolve(ctx context.Context, symbols []string) map[string]string {
	out := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		id, err := s.ResolveSecurityID(ctx, symbol)
		if err != nil {
			s.logger.WithField("symbol", symbol).Warn("Could not resolve security id")
			continue
		}
		out[symbol] = id
	}
	s.logger.WithFields(map[string]interface{}{
		"resolved":  len(out),
		"requested": len(symbols),
	}).Info("Securities resolved")
	return out
}

// BulkQuotes fetches quotes for many symbols, keeping only positive prices
func (s *MarketDataService) BulkQuotes(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		price, err := s.Quote(ctx, symbol)
		if err != nil {
			s.logger.WithField("symbol", symbol).Warn("Quote fetch failed")
			continue
		}
		if price.IsPositive() {
			out[symbol] = price
		}
	}
	return out
}
