// Package export writes trade orders to Parquet files for offline analysis.
package export

import (
	"fmt"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"
)

// OrderRecord is the Parquet schema for one trade order. Quantities and
// prices keep their exact decimal text.
type OrderRecord struct {
	ID           string `parquet:"id"`
	UserID       string `parquet:"user_id"`
	PortfolioID  string `parquet:"portfolio_id,optional"`
	Symbol       string `parquet:"symbol"`
	Side         string `parquet:"side"`
	Quantity     string `parquet:"quantity"`
	Price        string `parquet:"price"`
	Notional     string `parquet:"notional"`
	Status       string `parquet:"status"`
	RejectReason string `parquet:"reject_reason,optional"`
	CreatedAt    int64  `parquet:"created_at,timestamp(millisecond)"` // Unix ms
}

// Record converts an order to its on-disk form.
func Record(o models.TradeOrder) OrderRecord {
	return OrderRecord{
		ID:           o.ID,
		UserID:       o.UserID,
		PortfolioID:  o.PortfolioID,
		Symbol:       o.Symbol,
		Side:         string(o.Side),
		Quantity:     o.Quantity.String(),
		Price:        o.Price.String(),
		Notional:     o.Quantity.Mul(o.Price).String(),
		Status:       string(o.Status),
		RejectReason: o.RejectReason,
		CreatedAt:    o.CreatedAt.UnixMilli(),
	}
}

// WriteOrders writes orders to path, replacing any existing file.
func WriteOrders(path string, orders []models.TradeOrder) error {
	records := make([]OrderRecord, len(orders))
	for i, o := range orders {
		records[i] = Record(o)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadOrders reads back a file written by WriteOrders.
func ReadOrders(path string) ([]OrderRecord, error) {
	rows, err := parquet.ReadFile[OrderRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// Notional sums quantity × price over filled orders, counting sells
// negatively.
func Notional(records []OrderRecord) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, r := range records {
		if r.Status != string(models.StatusFilled) {
			continue
		}
		n, err := decimal.NewFromString(r.Notional)
		if err != nil {
			return decimal.Zero, fmt.Errorf("order %s: %w", r.ID, err)
		}
		if r.Side == string(models.SideSell) {
			n = n.Neg()
		}
		total = total.Add(n)
	}
	return total, nil
}
