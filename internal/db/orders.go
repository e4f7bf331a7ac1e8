package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atharvakonge/tradeshift/internal/models"
)

const orderColumns = `id, user_id, portfolio_id, symbol, side, quantity, price, status, reject_reason, created_at`

// InsertOrder records a new order.
func InsertOrder(ctx context.Context, r Runner, o *models.TradeOrder) error {
	_, err := r.exec(ctx, `
		INSERT INTO trade_orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.UserID, nullString(o.PortfolioID), o.Symbol, string(o.Side),
		o.Quantity, o.Price, string(o.Status), o.RejectReason, o.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// TransitionOrder moves a PENDING order to a terminal status. The update is
// guarded on the current status so a terminal order is never rewritten.
func TransitionOrder(ctx context.Context, r Runner, id string, to models.OrderStatus, reason string) error {
	if !to.IsTerminal() {
		return fmt.Errorf("transition order %s: %s is not terminal", id, to)
	}
	res, err := r.exec(ctx, `
		UPDATE trade_orders SET status = ?, reject_reason = ?
		WHERE id = ? AND status = ?
	`, string(to), reason, id, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n == 1 {
		return nil
	}

	current, err := GetOrder(ctx, r, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: order %s is %s", models.ErrOrderImmutable, id, current.Status)
}

// GetOrder loads an order as stored.
func GetOrder(ctx context.Context, r Runner, id string) (*models.TradeOrder, error) {
	o, err := scanOrder(r.queryRow(ctx, `SELECT `+orderColumns+` FROM trade_orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

// ListOrdersByUser returns a user's most recent orders first.
func ListOrdersByUser(ctx context.Context, r Runner, userID string, limit int) ([]models.TradeOrder, error) {
	rows, err := r.query(ctx, `
		SELECT `+orderColumns+`
		FROM trade_orders
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.TradeOrder, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*models.TradeOrder, error) {
	var (
		o           models.TradeOrder
		portfolioID sql.NullString
		side        string
		status      string
	)
	err := s.Scan(&o.ID, &o.UserID, &portfolioID, &o.Symbol, &side,
		&o.Quantity, &o.Price, &status, &o.RejectReason, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.PortfolioID = portfolioID.String
	o.Side = models.Side(side)
	o.Status = models.OrderStatus(status)
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
