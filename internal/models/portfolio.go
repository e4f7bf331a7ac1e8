package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAssetType is used when a position is opened without an explicit type.
const DefaultAssetType = "STOCK"

// Portfolio is a named container of positions owned by one user
type Portfolio struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Assets    []Asset   `json:"assets"`
	CreatedAt time.Time `json:"created_at"`
}

// Asset is one holding line within a portfolio
type Asset struct {
	ID          string          `json:"id"`
	PortfolioID string          `json:"portfolio_id"`
	Symbol      string          `json:"symbol"`
	AssetType   string          `json:"asset_type"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AssetSpec describes a quantity bought at a price, as supplied by a client.
type AssetSpec struct {
	Symbol    string          `json:"symbol" binding:"required"`
	AssetType string          `json:"asset_type"`
	Quantity  decimal.Decimal `json:"quantity"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
}

// Normalize validates the spec and returns a cleaned copy.
func (s AssetSpec) Normalize() (AssetSpec, error) {
	s.Symbol = NormalizeSymbol(s.Symbol)
	if s.Symbol == "" {
		return s, fmt.Errorf("%w: symbol is required", ErrInvalidAsset)
	}
	if !s.Quantity.IsPositive() {
		return s, fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidAsset, s.Quantity)
	}
	if s.AvgPrice.IsNegative() {
		return s, fmt.Errorf("%w: price must not be negative, got %s", ErrInvalidAsset, s.AvgPrice)
	}
	if s.AssetType == "" {
		s.AssetType = DefaultAssetType
	}
	return s, nil
}

// Merge folds qty bought at price into the position using the weighted
// average: avg = (q0*p0 + q1*p1) / (q0 + q1).
func (a Asset) Merge(qty, price decimal.Decimal) Asset {
	total := a.Quantity.Add(qty)
	if total.IsZero() {
		a.Quantity = total
		a.AvgPrice = price
		return a
	}
	cost := a.Quantity.Mul(a.AvgPrice).Add(qty.Mul(price))
	a.Quantity = total
	a.AvgPrice = cost.Div(total)
	return a
}

// Reduce removes qty from the position. The average price is unchanged.
func (a Asset) Reduce(qty decimal.Decimal) (Asset, error) {
	if qty.GreaterThan(a.Quantity) {
		return a, fmt.Errorf("%w: holding %s %s, selling %s", ErrInsufficientPosition, a.Quantity, a.Symbol, qty)
	}
	a.Quantity = a.Quantity.Sub(qty)
	return a, nil
}

// CreatePortfolioRequest - what client sends to open a portfolio
type CreatePortfolioRequest struct {
	Name   string      `json:"name" binding:"required"`
	Assets []AssetSpec `json:"assets"`
}
