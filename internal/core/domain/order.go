package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

func (s OrderSide) Valid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is a buy or sell intent of Quantity units of a crypto Asset priced in
// a fiat Currency. Balances move only when the order completes.
type Order struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Side         OrderSide       `json:"side"`
	Asset        Asset           `json:"asset"`
	Quantity     decimal.Decimal `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Currency     Asset           `json:"currency"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OrderTotal prices quantity at price, rounded to the currency's precision.
func OrderTotal(quantity, price decimal.Decimal, currency Asset) decimal.Decimal {
	return quantity.Mul(price).Round(currency.Scale())
}

// IsTerminal returns true once the order is completed or cancelled.
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

// Funding returns the asset and amount the order consumes on completion.
func (o *Order) Funding() (Asset, decimal.Decimal) {
	if o.Side == OrderSideBuy {
		return o.Currency, o.TotalAmount
	}
	return o.Asset, o.Quantity
}

// SettlementLegs returns the debit and credit legs booked when the order
// completes. Both legs carry the order side as their kind.
func (o *Order) SettlementLegs() (out Leg, in Leg) {
	if o.Side == OrderSideBuy {
		return Leg{Asset: o.Currency, Delta: o.TotalAmount.Neg(), Kind: KindBuy},
			Leg{Asset: o.Asset, Delta: o.Quantity, Kind: KindBuy}
	}
	return Leg{Asset: o.Asset, Delta: o.Quantity.Neg(), Kind: KindSell},
		Leg{Asset: o.Currency, Delta: o.TotalAmount, Kind: KindSell}
}
