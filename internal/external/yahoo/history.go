package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
	"github.com/guberm/wealthsimple-trading-bot/pkg/redis"
)

// HistoryService fetches daily OHLCV candles from the Yahoo chart API
type HistoryService struct {
	client *Client
	cache  *redis.Cache
	logger *logger.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(client *Client, cache *redis.Cache, log *logger.Logger) *HistoryService {
	return &HistoryService{
		client: client,
		cache:  cache,
		logger: log,
	}
}

// chartResponse mirrors the v8 chart payload. Price arrays use pointers
// because Yahoo emits null for days without a trade.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyCandles returns up to lookbackDays of daily candles for a symbol,
// oldest first. Days with a null or non-positive close are dropped.
func (s *HistoryService) DailyCandles(ctx context.Context, symbol string, lookbackDays int) ([]contracts.Candle, error) {
	cacheKey := redis.CandlesKey(symbol, lookbackDays)
	var cached []contracts.Candle
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found {
		return cached, nil
	}

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?range=%dd&interval=1d",
		s.client.apiURL, url.PathEscape(symbol), lookbackDays)
	body, err := s.client.fetch(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("fetch chart for %s: %w", symbol, err)
	}

	candles, err := parseChart(body)
	if err != nil {
		return nil, fmt.Errorf("parse chart for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoHistory, symbol)
	}

	if err := s.cache.Set(ctx, cacheKey, candles, redis.TTLLong); err != nil {
		s.logger.WithError(err).Debug("Candle cache write failed")
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol":  symbol,
		"days":    lookbackDays,
		"candles": len(candles),
	}).Debug("Fetched daily candles")
	return candles, nil
}

// parseChart builds candles from the chart payload
func parseChart(body []byte) ([]contracts.Candle, error) {
	var payload chartResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %s",
			payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, nil
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}
	quote := result.Indicators.Quote[0]

	candles := make([]contracts.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil || *quote.Close[i] <= 0 {
			continue
		}
		candles = append(candles, contracts.Candle{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   floatAt(quote.Open, i),
			High:   floatAt(quote.High, i),
			Low:    floatAt(quote.Low, i),
			Close:  *quote.Close[i],
			Volume: intAt(quote.Volume, i),
		})
	}
	return candles, nil
}

func floatAt(vals []*float64, i int) float64 {
	if i < len(vals) && vals[i] != nil {
		return *vals[i]
	}
	return 0
}

func intAt(vals []*int64, i int) int64 {
	if i < len(vals) && vals[i] != nil {
		return *vals[i]
	}
	return 0
}
