package wealthsimple

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// resultsEnvelope is the list wrapper every collection endpoint uses.
// Records stay raw so one malformed entry never sinks the page.
type resultsEnvelope struct {
	Results []json.RawMessage `json:"results"`
}

type moneyPayload struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (m moneyPayload) toMoney() contracts.Money {
	currency := m.Currency
	if currency == "" {
		currency = "CAD"
	}
	return contracts.Money{Amount: m.Amount, Currency: currency}
}

type accountPayload struct {
	ID             string       `json:"id"`
	AccountType    string       `json:"account_type"`
	Status         string       `json:"status"`
	BuyingPower    moneyPayload `json:"buying_power"`
	CurrentBalance moneyPayload `json:"current_balance"`
	NetDeposits    moneyPayload `json:"net_deposits"`
}

type positionPayload struct {
	ID         string          `json:"id"`
	SecurityID string          `json:"security_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	BookValue  moneyPayload    `json:"book_value"`
	EntryPrice moneyPayload    `json:"entry_price"`
	Stock      stockPayload    `json:"stock"`
	Quote      quotePayload    `json:"quote"`
}

// AccountService wraps the account endpoints
type AccountService struct {
	client *Client
	logger *logger.Logger
}

// NewAccountService creates a new account service
func NewAccountService(client *Client, log *logger.Logger) *AccountService {
	return &AccountService{client: client, logger: log}
}

// Accounts lists all brokerage accounts. Records that fail to parse are
// skipped with a warning.
func (s *AccountService) Accounts(ctx context.Context) ([]contracts.Account, error) {
	var envelope resultsEnvelope
	if err := s.client.Get(ctx, "/account/list", nil, &envelope); err != nil {
		return nil, err
	}

	accounts := make([]contracts.Account, 0, len(envelope.Results))
	for _, raw := range envelope.Results {
		var p accountPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.WithError(err).Warn("Failed to parse account record, skipping")
			continue
		}
		if p.ID == "" {
			s.logger.Warn("Account record missing id, skipping")
			continue
		}

		accounts = append(accounts, contracts.Account{
			ID:             p.ID,
			Type:           contracts.AccountType(p.AccountType),
			Status:         p.Status,
			BuyingPower:    p.BuyingPower.toMoney(),
			CurrentBalance: p.CurrentBalance.toMoney(),
			NetDeposits:    p.NetDeposits.toMoney(),
		})
	}

	s.logger.WithField("count", len(accounts)).Info("Accounts fetched")
	return accounts, nil
}

// AccountByType finds the first account of the given type
func (s *AccountService) AccountByType(ctx context.Context, accountType contracts.AccountType) (*contracts.Account, error) {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	for i := range accounts {
		if accounts[i].Type == accountType {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", contracts.ErrAccountNotFound, accountType)
}

// Positions lists holdings, optionally scoped to one account. Market
// value derives from quantity times the embedded quote.
func (s *AccountService) Positions(ctx context.Context, accountID string) ([]contracts.Position, error) {
	var params url.Values
	if accountID != "" {
		params = url.Values{"account_id": []string{accountID}}
	}

	var envelope resultsEnvelope
	if err := s.client.Get(ctx, "/account/positions", params, &envelope); err != nil {
		return nil, err
	}

	positions := make([]contracts.Position, 0, len(envelope.Results))
	for _, raw := range envelope.Results {
		var p positionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.WithError(err).Warn("Failed to parse position record, skipping")
			continue
		}
		positions = append(positions, buildPosition(p))
	}

	s.logger.WithField("count", len(positions)).Info("Positions fetched")
	return positions, nil
}

func buildPosition(p positionPayload) contracts.Position {
	securityID := p.ID
	if securityID == "" {
		securityID = p.SecurityID
	}
	currency := p.Stock.Currency
	if currency == "" {
		currency = "CAD"
	}

	currentPrice := p.Quote.Amount
	marketValue := p.Quantity.Mul(currentPrice)
	bookValue := p.BookValue.Amount
	gainLoss := marketValue.Sub(bookValue)

	gainLossPct := decimal.Zero
	if bookValue.IsPositive() {
		gainLossPct = gainLoss.Div(bookValue).Mul(decimal.NewFromInt(100))
	}

	return contracts.Position{
		SecurityID:   securityID,
		Symbol:       p.Stock.Symbol,
		Name:         p.Stock.Name,
		Quantity:     p.Quantity,
		CurrentPrice: currentPrice,
		MarketValue:  marketValue,
		BookValue:    bookValue,
		AvgPrice:     p.EntryPrice.Amount,
		GainLoss:     gainLoss,
		GainLossPct:  gainLossPct,
		Currency:     currency,
	}
}

// BuyingPower returns the cash available in one account, zero when the
// account is unknown
func (s *AccountService) BuyingPower(ctx context.Context, accountID string) (contracts.Money, error) {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return contracts.Money{}, err
	}

	for i := range accounts {
		if accounts[i].ID == accountID {
			return accounts[i].BuyingPower, nil
		}
	}

	s.logger.WithField("account_id", accountID).Warn("Account not found for buying power")
	return contracts.Money{Amount: decimal.Zero, Currency: "CAD"}, nil
}

// TotalValue returns cash plus position market values for one account
func (s *AccountService) TotalValue(ctx context.Context, accountID string, positions []contracts.Position) (decimal.Decimal, error) {
	cash, err := s.BuyingPower(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	if positions == nil {
		positions, err = s.Positions(ctx, accountID)
		if err != nil {
			return decimal.Zero, err
		}
	}

	total := cash.Amount.Add(contracts.PositionsValue(positions))
	s.logger.WithFields(map[string]interface{}{
		"cash":      cash.Amount.StringFixed(2),
		"positions": len(positions),
		"total":     total.StringFixed(2),
	}).Info("Portfolio value computed")
	return total, nil
}
