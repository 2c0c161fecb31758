package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents buy or sell
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderSubType represents the brokerage order sub type
type OrderSubType string

const (
	OrderSubTypeLimit  OrderSubType = "limit"
	OrderSubTypeMarket OrderSubType = "market"
)

// OrderStatus as the brokerage reports it
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPosted    OrderStatus = "posted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusSimulated OrderStatus = "simulated" // paper broker fills
)

// OrderInstruction represents one order ready for submission, passed
// from the order synthesizer to the executor
type OrderInstruction struct {
	SecurityID  string          `json:"security_id"`
	Symbol      string          `json:"symbol"`
	Side        OrderSide       `json:"side"`
	Quantity    int64           `json:"quantity"`
	LimitPrice  decimal.Decimal `json:"limit_price"`
	SubType     OrderSubType    `json:"sub_type"`
	TimeInForce string          `json:"time_in_force"`
}

// Value returns the notional value at the limit price
func (o *OrderInstruction) Value() decimal.Decimal {
	return o.LimitPrice.Mul(decimal.NewFromInt(o.Quantity))
}

// HasPrice reports whether a usable limit price could be derived.
// Zero-priced instructions must not reach a live broker.
func (o *OrderInstruction) HasPrice() bool {
	return o.LimitPrice.IsPositive()
}

// APIPayload renders the brokerage wire format. The broker encodes the
// side in the order_type field, not a separate attribute.
func (o *OrderInstruction) APIPayload() map[string]interface{} {
	orderType := "buy_quantity"
	if o.Side == OrderSideSell {
		orderType = "sell_quantity"
	}

	subType := o.SubType
	if subType == "" {
		subType = OrderSubTypeLimit
	}
	tif := o.TimeInForce
	if tif == "" {
		tif = "day"
	}

	price, _ := o.LimitPrice.Round(2).Float64()
	return map[string]interface{}{
		"security_id":    o.SecurityID,
		"quantity":       o.Quantity,
		"order_type":     orderType,
		"order_sub_type": string(subType),
		"limit_price":    price,
		"time_in_force":  tif,
	}
}

// OrderOutcome represents the broker's response to one submission
type OrderOutcome struct {
	OrderID    string          `json:"order_id"`
	SecurityID string          `json:"security_id"`
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Quantity   int64           `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Accepted reports whether the broker took the order
func (o *OrderOutcome) Accepted() bool {
	return o.Status != OrderStatusRejected
}

// ExecutionSummary aggregates one executor's run
type ExecutionSummary struct {
	TotalOrders     int `json:"total_orders"`
	Successful      int `json:"successful"`
	Failed          int `json:"failed"`
	DailyTradesUsed int `json:"daily_trades_used"`
}
