package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalizes a side string ("buy", " SELL ") into a Side.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: side must be BUY or SELL, got %q", ErrInvalidOrderRequest, s)
}

// OrderStatus is the lifecycle state of a TradeOrder
type OrderStatus string

const (
	StatusPending  OrderStatus = "PENDING"
	StatusFilled   OrderStatus = "FILLED"
	StatusRejected OrderStatus = "REJECTED"
)

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusFilled || s == StatusRejected
}

// TradeOrder is one trade intent and its resolution
type TradeOrder struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	PortfolioID  string          `json:"portfolio_id,omitempty"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Status       OrderStatus     `json:"status"`
	RejectReason string          `json:"reject_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Transition moves a PENDING order to a terminal status. Terminal orders
// are immutable.
func (o *TradeOrder) Transition(to OrderStatus) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: order %s is %s", ErrOrderImmutable, o.ID, o.Status)
	}
	if !to.IsTerminal() {
		return fmt.Errorf("invalid transition %s -> %s", o.Status, to)
	}
	o.Status = to
	return nil
}

// PlaceOrderRequest - what client sends to trade
type PlaceOrderRequest struct {
	Symbol      string          `json:"symbol" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	Side        string          `json:"side" binding:"required"`
	PortfolioID string          `json:"portfolio_id"`
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
