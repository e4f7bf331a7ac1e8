package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atharvakonge/tradeshift/internal/models"
)

const assetColumns = `id, portfolio_id, symbol, asset_type, quantity, avg_price, created_at, updated_at`

// InsertPortfolio stores a portfolio row. Assets are written separately.
func InsertPortfolio(ctx context.Context, r Runner, p *models.Portfolio) error {
	_, err := r.exec(ctx, `
		INSERT INTO portfolios (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.UserID, p.Name, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert portfolio: %w", err)
	}
	return nil
}

// GetPortfolio loads a portfolio and its positions.
func GetPortfolio(ctx context.Context, r Runner, id string) (*models.Portfolio, error) {
	var p models.Portfolio
	err := r.queryRow(ctx, `
		SELECT id, user_id, name, created_at FROM portfolios WHERE id = ?
	`, id).Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPortfolioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query portfolio: %w", err)
	}

	p.Assets, err = ListAssets(ctx, r, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPortfoliosByUser returns a user's portfolios with their positions,
// oldest first.
func ListPortfoliosByUser(ctx context.Context, r Runner, userID string) ([]models.Portfolio, error) {
	rows, err := r.query(ctx, `
		SELECT id, user_id, name, created_at
		FROM portfolios
		WHERE user_id = ?
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query portfolios: %w", err)
	}

	portfolios := make([]models.Portfolio, 0)
	index := make(map[string]int)
	for rows.Next() {
		var p models.Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		p.Assets = make([]models.Asset, 0)
		index[p.ID] = len(portfolios)
		portfolios = append(portfolios, p)
	}
	// Close before the next query: a single-connection pool cannot serve two
	// open result sets.
	iterErr := rows.Err()
	rows.Close()
	if err := iterErr; err != nil {
		return nil, fmt.Errorf("iterate portfolios: %w", err)
	}
	if len(portfolios) == 0 {
		return portfolios, nil
	}

	assets, err := scanAssets(r.query(ctx, `
		SELECT a.id, a.portfolio_id, a.symbol, a.asset_type, a.quantity, a.avg_price, a.created_at, a.updated_at
		FROM assets a
		JOIN portfolios p ON p.id = a.portfolio_id
		WHERE p.user_id = ?
		ORDER BY a.created_at, a.id
	`, userID))
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		if i, ok := index[a.PortfolioID]; ok {
			portfolios[i].Assets = append(portfolios[i].Assets, a)
		}
	}
	return portfolios, nil
}

// DeletePortfolio removes a portfolio and every position it holds.
func DeletePortfolio(ctx context.Context, r Runner, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM assets WHERE portfolio_id = ?`, id); err != nil {
		return fmt.Errorf("delete assets: %w", err)
	}
	res, err := r.exec(ctx, `DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete portfolio: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrPortfolioNotFound
	}
	return nil
}

// ListAssets returns the positions of one portfolio in insertion order.
func ListAssets(ctx context.Context, r Runner, portfolioID string) ([]models.Asset, error) {
	return scanAssets(r.query(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE portfolio_id = ?
		ORDER BY created_at, id
	`, portfolioID))
}

// EnsureAsset inserts an empty position for (portfolio, symbol) unless one
// exists, so the following locking read always has a row to lock.
func EnsureAsset(ctx context.Context, r Runner, a *models.Asset) error {
	_, err := r.exec(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (portfolio_id, symbol) DO NOTHING
	`, a.ID, a.PortfolioID, a.Symbol, a.AssetType, a.Quantity, a.AvgPrice, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("ensure asset: %w", err)
	}
	return nil
}

// LockAsset reads the position for (portfolio, symbol), locking the row for
// the rest of the transaction where the dialect supports it.
func LockAsset(ctx context.Context, r Runner, portfolioID, symbol string) (*models.Asset, error) {
	var a models.Asset
	err := r.queryRow(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE portfolio_id = ? AND symbol = ?`+r.forUpdate(),
		portfolioID, symbol,
	).Scan(&a.ID, &a.PortfolioID, &a.Symbol, &a.AssetType, &a.Quantity, &a.AvgPrice, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock asset: %w", err)
	}
	return &a, nil
}

// UpdateAsset writes back quantity and average price of a position.
func UpdateAsset(ctx context.Context, r Runner, a *models.Asset) error {
	_, err := r.exec(ctx, `
		UPDATE assets SET quantity = ?, avg_price = ?, updated_at = ? WHERE id = ?
	`, a.Quantity, a.AvgPrice, a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return nil
}

// DeleteAsset removes a position, e.g. once it has been sold out.
func DeleteAsset(ctx context.Context, r Runner, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

func scanAssets(rows *sql.Rows, err error) ([]models.Asset, error) {
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	assets := make([]models.Asset, 0)
	for rows.Next() {
		var a models.Asset
		err := rows.Scan(&a.ID, &a.PortfolioID, &a.Symbol, &a.AssetType, &a.Quantity, &a.AvgPrice, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
