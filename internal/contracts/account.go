package contracts

import "github.com/shopspring/decimal"

// AccountType represents the brokerage account classification
type AccountType string

const (
	AccountTypeTFSA          AccountType = "ca_tfsa"
	AccountTypeRRSP          AccountType = "ca_rrsp"
	AccountTypeNonRegistered AccountType = "ca_non_registered"
)

// Money pairs an amount with its currency
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Account represents a brokerage account summary
type Account struct {
	ID             string      `json:"id"`
	Type           AccountType `json:"type"`
	Status         string      `json:"status"`
	BuyingPower    Money       `json:"buying_power"`
	CurrentBalance Money       `json:"current_balance"`
	NetDeposits    Money       `json:"net_deposits"`
}

// IsOpen reports whether the account accepts orders
func (a *Account) IsOpen() bool {
	return a.Status == "open" || a.Status == ""
}

// Position represents one holding in a brokerage account.
// Built fresh from the positions endpoint on every run, never mutated.
type Position struct {
	SecurityID   string          `json:"security_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"` // fractional shares allowed
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	BookValue    decimal.Decimal `json:"book_value"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	GainLoss     decimal.Decimal `json:"gain_loss"`
	GainLossPct  decimal.Decimal `json:"gain_loss_pct"`
	Currency     string          `json:"currency"`
}

// WholeShares returns the position quantity truncated toward zero
func (p *Position) WholeShares() int64 {
	return p.Quantity.IntPart()
}

// PositionsValue sums the market value across positions
func PositionsValue(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for i := range positions {
		total = total.Add(positions[i].MarketValue)
	}
	return total
}

// FindPosition locates a position by symbol
func FindPosition(positions []Position, symbol string) (*Position, bool) {
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i], true
		}
	}
	return nil, false
}
