package wealthsimple

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

// flexPrice tolerates the two shapes the API uses for prices: a bare
// number and a {"amount": ...} object. Null decodes to zero.
type flexPrice struct {
	decimal.Decimal
}

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		p.Decimal = decimal.Zero
		return nil
	}
	if trimmed[0] == '{' {
		var wrapped struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		p.Decimal = wrapped.Amount
		return nil
	}
	return p.Decimal.UnmarshalJSON(data)
}

type orderPayload struct {
	OrderID    string    `json:"order_id"`
	ID         string    `json:"id"`
	SecurityID string    `json:"security_id"`
	Symbol     string    `json:"symbol"`
	Quantity   int64     `json:"quantity"`
	OrderType  string    `json:"order_type"`
	Status     string    `json:"status"`
	LimitPrice flexPrice `json:"limit_price"`
	CreatedAt  string    `json:"created_at"`
	FilledAt   string    `json:"filled_at"`
}

// toOutcome maps one order record to the internal shape. Fields the
// broker echoes back blank fall back to the originating instruction
// when one is known.
func (p *orderPayload) toOutcome(req *contracts.OrderInstruction) *contracts.OrderOutcome {
	out := &contracts.OrderOutcome{
		OrderID:    p.OrderID,
		SecurityID: p.SecurityID,
		Symbol:     p.Symbol,
		Side:       sideFromOrderType(p.OrderType),
		Quantity:   p.Quantity,
		LimitPrice: p.LimitPrice.Decimal,
		Status:     contracts.OrderStatus(p.Status),
		CreatedAt:  parseOrderTime(p.CreatedAt),
	}
	if out.OrderID == "" {
		out.OrderID = p.ID
	}
	if req != nil {
		if out.SecurityID == "" {
			out.SecurityID = req.SecurityID
		}
		if out.Symbol == "" {
			out.Symbol = req.Symbol
		}
		if out.Side == "" {
			out.Side = req.Side
		}
		if out.Quantity == 0 {
			out.Quantity = req.Quantity
		}
		if !out.LimitPrice.IsPositive() {
			out.LimitPrice = req.LimitPrice
		}
	}
	if out.Status == "" {
		out.Status = contracts.OrderStatusSubmitted
	}
	return out
}

func sideFromOrderType(orderType string) contracts.OrderSide {
	switch {
	case strings.HasPrefix(orderType, "sell"):
		return contracts.OrderSideSell
	case strings.HasPrefix(orderType, "buy"):
		return contracts.OrderSideBuy
	}
	return ""
}

func parseOrderTime(raw string) time.Time {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	return time.Now()
}

// OrderService wraps the order endpoints
type OrderService struct {
	client *Client
	logger *logger.Logger
}

// NewOrderService creates a new order service
func NewOrderService(client *Client, log *logger.Logger) *OrderService {
	return &OrderService{client: client, logger: log}
}

// PlaceOrder submits one order against an account
func (s *OrderService) PlaceOrder(ctx context.Context, accountID string, order contracts.OrderInstruction) (*contracts.OrderOutcome, error) {
	s.logger.WithFields(map[string]interface{}{
		"side":     order.Side,
		"symbol":   order.Symbol,
		"quantity": order.Quantity,
		"price":    order.LimitPrice.StringFixed(2),
	}).Info("Placing order")

	payload := order.APIPayload()
	if accountID != "" {
		payload["account_id"] = accountID
	}

	var raw orderPayload
	if err := s.client.Post(ctx, "/orders", payload, &raw); err != nil {
		return nil, fmt.Errorf("place order for %s: %w", order.Symbol, err)
	}
	return raw.toOutcome(&order), nil
}

// Orders lists every order the broker reports
func (s *OrderService) Orders(ctx context.Context) ([]contracts.OrderOutcome, error) {
	var envelope struct {
		Results []orderPayload `json:"results"`
	}
	if err := s.client.Get(ctx, "/orders", nil, &envelope); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	outcomes := make([]contracts.OrderOutcome, 0, len(envelope.Results))
	for i := range envelope.Results {
		outcomes = append(outcomes, *envelope.Results[i].toOutcome(nil))
	}
	return outcomes, nil
}

// CancelOrder cancels one open order by id
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) error {
	s.logger.WithField("order_id", orderID).Info("Cancelling order")
	if err := s.client.Delete(ctx, "/orders/"+orderID); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// PendingOrders returns the orders still awaiting a fill
func (s *OrderService) PendingOrders(ctx context.Context) ([]contracts.OrderOutcome, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]contracts.OrderOutcome, 0, len(orders))
	for _, o := range orders {
		switch o.Status {
		case contracts.OrderStatusSubmitted, contracts.OrderStatusPending, "new":
			pending = append(pending, o)
		}
	}

	s.logger.WithField("count", len(pending)).Info("Pending orders fetched")
	return pending, nil
}
