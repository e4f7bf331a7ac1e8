// Package ledger keeps portfolios and their positions. Every position change
// goes through the weighted-average merge so a portfolio holds at most one
// position per symbol.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atharvakonge/tradeshift/internal/db"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger owns portfolio and position writes.
type Ledger struct {
	db    *db.DB
	locks *models.PositionLocks
	log   *slog.Logger
}

// New creates a Ledger. locks may be shared with other writers of the same
// database in this process.
func New(database *db.DB, locks *models.PositionLocks, log *slog.Logger) *Ledger {
	if locks == nil {
		locks = models.NewPositionLocks()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{db: database, locks: locks, log: log.With("component", "ledger")}
}

// LockPosition serializes writers of one (portfolio, symbol) position in
// this process. Callers must release it after their transaction ends.
func (l *Ledger) LockPosition(portfolioID, symbol string) (unlock func()) {
	return l.locks.Lock(portfolioID, symbol)
}

// ListPortfolios returns the user's portfolios with their positions, oldest
// first.
func (l *Ledger) ListPortfolios(ctx context.Context, userID string) ([]models.Portfolio, error) {
	if _, err := db.GetUserByID(ctx, l.db, userID); err != nil {
		return nil, err
	}
	return db.ListPortfoliosByUser(ctx, l.db, userID)
}

// CreatePortfolio opens a portfolio for the user. Initial assets sharing a
// symbol are merged into one position.
func (l *Ledger) CreatePortfolio(ctx context.Context, userID, name string, initial []models.AssetSpec) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrInvalidPortfolio)
	}
	if _, err := db.GetUserByID(ctx, l.db, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &models.Portfolio{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Assets:    make([]models.Asset, 0, len(initial)),
		CreatedAt: now,
	}

	index := make(map[string]int)
	for _, raw := range initial {
		spec, err := raw.Normalize()
		if err != nil {
			return nil, err
		}
		if i, ok := index[spec.Symbol]; ok {
			p.Assets[i] = p.Assets[i].Merge(spec.Quantity, spec.AvgPrice)
			continue
		}
		// offset keeps insertion order stable under ORDER BY created_at
		at := now.Add(time.Duration(len(p.Assets)) * time.Microsecond)
		index[spec.Symbol] = len(p.Assets)
		p.Assets = append(p.Assets, models.Asset{
			ID:          uuid.NewString(),
			PortfolioID: p.ID,
			Symbol:      spec.Symbol,
			AssetType:   spec.AssetType,
			Quantity:    spec.Quantity,
			AvgPrice:    spec.AvgPrice,
			CreatedAt:   at,
			UpdatedAt:   at,
		})
	}

	err := l.db.InTx(ctx, func(tx *db.Tx) error {
		if err := db.InsertPortfolio(ctx, tx, p); err != nil {
			return err
		}
		for i := range p.Assets {
			if err := db.EnsureAsset(ctx, tx, &p.Assets[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("portfolio created", "portfolio_id", p.ID, "user_id", userID, "assets", len(p.Assets))
	return p, nil
}

// GetPortfolio returns one of the user's portfolios. Portfolios of other
// users are reported as not found.
func (l *Ledger) GetPortfolio(ctx context.Context, userID, portfolioID string) (*models.Portfolio, error) {
	p, err := db.GetPortfolio(ctx, l.db, portfolioID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, models.ErrPortfolioNotFound
	}
	return p, nil
}

// DeletePortfolio removes one of the user's portfolios with all its
// positions. Orders that settled against it are kept.
func (l *Ledger) DeletePortfolio(ctx context.Context, userID, portfolioID string) error {
	err := l.db.InTx(ctx, func(tx *db.Tx) error {
		p, err := db.GetPortfolio(ctx, tx, portfolioID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return models.ErrPortfolioNotFound
		}
		return db.DeletePortfolio(ctx, tx, portfolioID)
	})
	if err != nil {
		return err
	}
	l.log.Info("portfolio deleted", "portfolio_id", portfolioID, "user_id", userID)
	return nil
}

// AddAsset merges spec into the portfolio's position for its symbol,
// creating the position when absent, and returns the resulting position.
func (l *Ledger) AddAsset(ctx context.Context, portfolioID string, spec models.AssetSpec) (*models.Asset, error) {
	spec, err := spec.Normalize()
	if err != nil {
		return nil, err
	}

	unlock := l.LockPosition(portfolioID, spec.Symbol)
	defer unlock()

	var pos *models.Asset
	err = l.db.InTx(ctx, func(tx *db.Tx) error {
		if _, err := db.GetPortfolio(ctx, tx, portfolioID); err != nil {
			return err
		}
		var err error
		pos, err = l.merge(ctx, tx, portfolioID, spec)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("asset added",
		"portfolio_id", portfolioID,
		"symbol", pos.Symbol,
		"quantity", pos.Quantity.String(),
		"avg_price", pos.AvgPrice.String(),
	)
	return pos, nil
}

// Settle applies a filled order to a position inside the caller's
// transaction. BUY merges at price; SELL reduces the position, deleting it at
// zero, or fails with models.ErrInsufficientPosition leaving it untouched.
// The caller holds LockPosition for (portfolioID, symbol).
func (l *Ledger) Settle(ctx context.Context, tx *db.Tx, portfolioID string, side models.Side, symbol string, qty, price decimal.Decimal) (*models.Asset, error) {
	switch side {
	case models.SideBuy:
		return l.merge(ctx, tx, portfolioID, models.AssetSpec{
			Symbol:    symbol,
			AssetType: models.DefaultAssetType,
			Quantity:  qty,
			AvgPrice:  price,
		})
	case models.SideSell:
		return l.reduce(ctx, tx, portfolioID, symbol, qty)
	}
	return nil, fmt.Errorf("%w: unknown side %q", models.ErrInvalidOrderRequest, side)
}

func (l *Ledger) merge(ctx context.Context, tx *db.Tx, portfolioID string, spec models.AssetSpec) (*models.Asset, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	empty := &models.Asset{
		ID:          uuid.NewString(),
		PortfolioID: portfolioID,
		Symbol:      spec.Symbol,
		AssetType:   spec.AssetType,
		Quantity:    decimal.Zero,
		AvgPrice:    decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.EnsureAsset(ctx, tx, empty); err != nil {
		return nil, err
	}

	pos, err := db.LockAsset(ctx, tx, portfolioID, spec.Symbol)
	if err != nil {
		return nil, err
	}

	merged := pos.Merge(spec.Quantity, spec.AvgPrice)
	merged.UpdatedAt = now
	if err := db.UpdateAsset(ctx, tx, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (l *Ledger) reduce(ctx context.Context, tx *db.Tx, portfolioID, symbol string, qty decimal.Decimal) (*models.Asset, error) {
	pos, err := db.LockAsset(ctx, tx, portfolioID, symbol)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: holding 0 %s, selling %s", models.ErrInsufficientPosition, symbol, qty)
	}
	if err != nil {
		return nil, err
	}

	reduced, err := pos.Reduce(qty)
	if err != nil {
		return nil, err
	}
	reduced.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	if reduced.Quantity.IsZero() {
		if err := db.DeleteAsset(ctx, tx, reduced.ID); err != nil {
			return nil, err
		}
		return &reduced, nil
	}
	if err := db.UpdateAsset(ctx, tx, &reduced); err != nil {
		return nil, err
	}
	return &reduced, nil
}
