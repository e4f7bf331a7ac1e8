// Package engine turns trade requests into priced, settled orders.
//
// An order is quoted before any write, inserted PENDING, settled against the
// portfolio ledger and moved to FILLED or REJECTED, all in one transaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atharvakonge/tradeshift/internal/db"
	"github.com/atharvakonge/tradeshift/internal/ledger"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/atharvakonge/tradeshift/internal/oracle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultListLimit caps ListOrders when no limit is given.
const DefaultListLimit = 50

const maxListLimit = 500

// Engine places and reads trade orders.
type Engine struct {
	db     *db.DB
	ledger *ledger.Ledger
	oracle oracle.Oracle
	log    *slog.Logger
}

// New creates an Engine.
func New(database *db.DB, l *ledger.Ledger, o oracle.Oracle, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{db: database, ledger: l, oracle: o, log: log.With("component", "engine")}
}

// PlaceOrder prices and settles one order for userID.
//
// A SELL exceeding the held quantity is stored REJECTED and returned
// together with an error matching models.ErrInsufficientPosition. Any other
// error means nothing was written.
func (e *Engine) PlaceOrder(ctx context.Context, userID string, req models.PlaceOrderRequest) (*models.TradeOrder, error) {
	if _, err := db.GetUserByID(ctx, e.db, userID); err != nil {
		return nil, err
	}

	order, err := e.validate(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	price, err := e.oracle.Quote(ctx, order.Symbol)
	if err != nil {
		if !errors.Is(err, models.ErrPriceUnavailable) {
			err = fmt.Errorf("%w: %v", models.ErrPriceUnavailable, err)
		}
		e.log.Warn("order not priced", "user_id", userID, "symbol", order.Symbol, "error", err)
		return nil, err
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s quoted at %s", models.ErrPriceUnavailable, order.Symbol, price)
	}
	order.Price = price

	if order.PortfolioID != "" {
		unlock := e.ledger.LockPosition(order.PortfolioID, order.Symbol)
		defer unlock()
	}

	var rejected error
	err = e.db.InTx(ctx, func(tx *db.Tx) error {
		// The user or the portfolio may have been deleted since validate.
		if _, err := db.GetUserByID(ctx, tx, userID); err != nil {
			return err
		}
		if order.PortfolioID != "" {
			if _, err := db.GetPortfolio(ctx, tx, order.PortfolioID); err != nil {
				return err
			}
		}
		if err := db.InsertOrder(ctx, tx, order); err != nil {
			return err
		}

		to, reason := models.StatusFilled, ""
		if order.PortfolioID != "" {
			_, err := e.ledger.Settle(ctx, tx, order.PortfolioID, order.Side, order.Symbol, order.Quantity, order.Price)
			switch {
			case errors.Is(err, models.ErrInsufficientPosition):
				to, reason, rejected = models.StatusRejected, err.Error(), err
			case err != nil:
				return err
			}
		}

		if err := db.TransitionOrder(ctx, tx, order.ID, to, reason); err != nil {
			return err
		}
		order.RejectReason = reason
		return order.Transition(to)
	})
	if err != nil {
		e.log.Error("order failed", "user_id", userID, "symbol", order.Symbol, "side", order.Side, "error", err)
		return nil, err
	}

	e.log.Info("order placed",
		"order_id", order.ID,
		"user_id", userID,
		"portfolio_id", order.PortfolioID,
		"symbol", order.Symbol,
		"side", order.Side,
		"quantity", order.Quantity.String(),
		"price", order.Price.String(),
		"status", order.Status,
	)
	if rejected != nil {
		return order, rejected
	}
	return order, nil
}

// validate builds the PENDING order for req without writing anything.
func (e *Engine) validate(ctx context.Context, userID string, req models.PlaceOrderRequest) (*models.TradeOrder, error) {
	symbol := models.NormalizeSymbol(req.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", models.ErrInvalidOrderRequest)
	}
	side, err := models.ParseSide(req.Side)
	if err != nil {
		return nil, err
	}
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive, got %s", models.ErrInvalidOrderRequest, req.Quantity)
	}
	if side == models.SideSell && req.PortfolioID == "" {
		return nil, fmt.Errorf("%w: a SELL needs a portfolio", models.ErrInvalidOrderRequest)
	}
	if req.PortfolioID != "" {
		if _, err := e.ledger.GetPortfolio(ctx, userID, req.PortfolioID); err != nil {
			return nil, err
		}
	}

	return &models.TradeOrder{
		ID:          uuid.NewString(),
		UserID:      userID,
		PortfolioID: req.PortfolioID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    req.Quantity,
		Price:       decimal.Zero,
		Status:      models.StatusPending,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}, nil
}

// GetOrder returns the order as stored. It never re-prices.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*models.TradeOrder, error) {
	return db.GetOrder(ctx, e.db, orderID)
}

// ListOrders returns the user's orders, newest first. limit <= 0 selects
// DefaultListLimit.
func (e *Engine) ListOrders(ctx context.Context, userID string, limit int) ([]models.TradeOrder, error) {
	if _, err := db.GetUserByID(ctx, e.db, userID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	return db.ListOrdersByUser(ctx, e.db, userID, limit)
}
