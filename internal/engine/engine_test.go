package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/atharvakonge/tradeshift/internal/db"
	"github.com/atharvakonge/tradeshift/internal/ledger"
	"github.com/atharvakonge/tradeshift/internal/logging"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/atharvakonge/tradeshift/internal/oracle"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var prices = oracle.Static{
	"AAPL": d("150.25"),
	"MSFT": d("401.10"),
	"AMZN": d("180"),
}

type fixture struct {
	engine *Engine
	ledger *ledger.Ledger
	db     *db.DB
	user   *models.User
}

func setup(t *testing.T, o oracle.Oracle) *fixture {
	t.Helper()
	database := db.SetupTestDB(t)
	l := ledger.New(database, models.NewPositionLocks(), logging.Discard())
	return &fixture{
		engine: New(database, l, o, logging.Discard()),
		ledger: l,
		db:     database,
		user:   db.CreateTestUser(t, database, "trader"),
	}
}

func (f *fixture) portfolio(t *testing.T, assets ...models.AssetSpec) *models.Portfolio {
	t.Helper()
	p, err := f.ledger.CreatePortfolio(context.Background(), f.user.ID, "main", assets)
	if err != nil {
		t.Fatalf("CreatePortfolio failed: %v", err)
	}
	return p
}

func (f *fixture) position(t *testing.T, portfolioID, symbol string) *models.Asset {
	t.Helper()
	p, err := f.ledger.GetPortfolio(context.Background(), f.user.ID, portfolioID)
	if err != nil {
		t.Fatalf("GetPortfolio failed: %v", err)
	}
	for i := range p.Assets {
		if p.Assets[i].Symbol == symbol {
			return &p.Assets[i]
		}
	}
	return nil
}

func TestPlaceOrder_BuyFills(t *testing.T) {
	f := setup(t, prices)
	p := f.portfolio(t)

	order, err := f.engine.PlaceOrder(context.Background(), f.user.ID, models.PlaceOrderRequest{
		Symbol: "aapl", Quantity: d("10"), Side: "buy", PortfolioID: p.ID,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if order.Status != models.StatusFilled {
		t.Errorf("Expected FILLED, got %s", order.Status)
	}
	if !order.Price.IsPositive() || !order.Price.Equal(d("150.25")) {
		t.Errorf("Expected price 150.25, got %s", order.Price)
	}
	if order.Symbol != "AAPL" || order.Side != models.SideBuy {
		t.Errorf("Unexpected order: %+v", order)
	}

	pos := f.position(t, p.ID, "AAPL")
	if pos == nil || !pos.Quantity.Equal(d("10")) || !pos.AvgPrice.Equal(d("150.25")) {
		t.Errorf("Expected position 10 @ 150.25, got %+v", pos)
	}

	// terminal orders cannot move again
	err = db.TransitionOrder(context.Background(), f.db, order.ID, models.StatusRejected, "")
	if !errors.Is(err, models.ErrOrderImmutable) {
		t.Errorf("Expected ErrOrderImmutable, got %v", err)
	}
}

func TestPlaceOrder_BuyWithoutPortfolio(t *testing.T) {
	f := setup(t, prices)

	order, err := f.engine.PlaceOrder(context.Background(), f.user.ID, models.PlaceOrderRequest{
		Symbol: "MSFT", Quantity: d("1"), Side: "BUY",
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if order.Status != models.StatusFilled || order.PortfolioID != "" {
		t.Errorf("Unexpected order: %+v", order)
	}
	if n := db.CountRows(t, f.db, "assets"); n != 0 {
		t.Errorf("Expected no positions, got %d", n)
	}
}

func TestGetOrder(t *testing.T) {
	f := setup(t, prices)
	ctx := context.Background()

	if o, err := f.engine.GetOrder(ctx, "does-not-exist"); !errors.Is(err, models.ErrOrderNotFound) || o != nil {
		t.Errorf("Expected ErrOrderNotFound and no order, got %+v, %v", o, err)
	}

	placed, err := f.engine.PlaceOrder(ctx, f.user.ID, models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("2"), Side: "BUY"})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	first, err := f.engine.GetOrder(ctx, placed.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	second, err := f.engine.GetOrder(ctx, placed.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}

	for _, got := range []*models.TradeOrder{first, second} {
		if got.ID != placed.ID || got.Status != placed.Status || got.Symbol != placed.Symbol || got.Side != placed.Side {
			t.Errorf("Stored order differs: %+v vs %+v", got, placed)
		}
		if !got.Price.Equal(placed.Price) || !got.Quantity.Equal(placed.Quantity) {
			t.Errorf("Expected %s @ %s, got %s @ %s", placed.Quantity, placed.Price, got.Quantity, got.Price)
		}
		if !got.CreatedAt.Equal(placed.CreatedAt) {
			t.Errorf("Expected created_at %v, got %v", placed.CreatedAt, got.CreatedAt)
		}
	}
}

func TestPlaceOrder_SellExceedingPosition(t *testing.T) {
	f := setup(t, prices)
	p := f.portfolio(t, models.AssetSpec{Symbol: "AAPL", Quantity: d("5"), AvgPrice: d("100")})

	order, err := f.engine.PlaceOrder(context.Background(), f.user.ID, models.PlaceOrderRequest{
		Symbol: "AAPL", Quantity: d("6"), Side: "SELL", PortfolioID: p.ID,
	})
	if !errors.Is(err, models.ErrInsufficientPosition) {
		t.Fatalf("Expected ErrInsufficientPosition, got %v", err)
	}
	if order == nil || order.Status != models.StatusRejected || order.RejectReason == "" {
		t.Fatalf("Expected rejected order with reason, got %+v", order)
	}

	stored, err := f.engine.GetOrder(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if stored.Status != models.StatusRejected {
		t.Errorf("Expected stored status REJECTED, got %s", stored.Status)
	}

	pos := f.position(t, p.ID, "AAPL")
	if pos == nil || !pos.Quantity.Equal(d("5")) || !pos.AvgPrice.Equal(d("100")) {
		t.Errorf("Position changed: %+v", pos)
	}
}

func TestPlaceOrder_SellToZeroRemovesPosition(t *testing.T) {
	f := setup(t, prices)
	p := f.portfolio(t, models.AssetSpec{Symbol: "AAPL", Quantity: d("5"), AvgPrice: d("100")})
	ctx := context.Background()

	if _, err := f.engine.PlaceOrder(ctx, f.user.ID, models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("2"), Side: "SELL", PortfolioID: p.ID}); err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if pos := f.position(t, p.ID, "AAPL"); pos == nil || !pos.Quantity.Equal(d("3")) {
		t.Errorf("Expected 3 left, got %+v", pos)
	}

	order, err := f.engine.PlaceOrder(ctx, f.user.ID, models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("3"), Side: "SELL", PortfolioID: p.ID})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if order.Status != models.StatusFilled {
		t.Errorf("Expected FILLED, got %s", order.Status)
	}
	if pos := f.position(t, p.ID, "AAPL"); pos != nil {
		t.Errorf("Expected position removed, got %+v", pos)
	}
}

func TestPlaceOrder_InvalidRequestsWriteNothing(t *testing.T) {
	f := setup(t, prices)
	p := f.portfolio(t)

	cases := []struct {
		name string
		req  models.PlaceOrderRequest
		want error
	}{
		{"zero quantity", models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("0"), Side: "BUY"}, models.ErrInvalidOrderRequest},
		{"negative quantity", models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("-1"), Side: "BUY"}, models.ErrInvalidOrderRequest},
		{"bad side", models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("1"), Side: "HOLD"}, models.ErrInvalidOrderRequest},
		{"empty symbol", models.PlaceOrderRequest{Symbol: " ", Quantity: d("1"), Side: "BUY"}, models.ErrInvalidOrderRequest},
		{"sell without portfolio", models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("1"), Side: "SELL"}, models.ErrInvalidOrderRequest},
		{"unknown portfolio", models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("1"), Side: "BUY", PortfolioID: "nope"}, models.ErrPortfolioNotFound},
		{"unpriced symbol", models.PlaceOrderRequest{Symbol: "ZZZZ", Quantity: d("1"), Side: "BUY", PortfolioID: p.ID}, models.ErrPriceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order, err := f.engine.PlaceOrder(context.Background(), f.user.ID, tc.req)
			if !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
			if order != nil {
				t.Errorf("Expected no order, got %+v", order)
			}
		})
	}

	if n := db.CountRows(t, f.db, "trade_orders"); n != 0 {
		t.Errorf("Expected no orders written, got %d", n)
	}
	if n := db.CountRows(t, f.db, "assets"); n != 0 {
		t.Errorf("Expected no positions written, got %d", n)
	}
}

func TestPlaceOrder_UnknownUser(t *testing.T) {
	f := setup(t, prices)

	_, err := f.engine.PlaceOrder(context.Background(), "ghost", models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("1"), Side: "BUY"})
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestPlaceOrder_OtherUsersPortfolio(t *testing.T) {
	f := setup(t, prices)
	p := f.portfolio(t)
	other := db.CreateTestUser(t, f.db, "intruder")

	_, err := f.engine.PlaceOrder(context.Background(), other.ID, models.PlaceOrderRequest{
		Symbol: "AAPL", Quantity: d("1"), Side: "BUY", PortfolioID: p.ID,
	})
	if !errors.Is(err, models.ErrPortfolioNotFound) {
		t.Errorf("Expected ErrPortfolioNotFound, got %v", err)
	}
}

func TestPlaceOrder_SlowOracleTimesOut(t *testing.T) {
	slow := oracle.Func(func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		<-ctx.Done()
		return decimal.Zero, ctx.Err()
	})
	f := setup(t, oracle.WithTimeout(slow, 20*time.Millisecond))

	_, err := f.engine.PlaceOrder(context.Background(), f.user.ID, models.PlaceOrderRequest{Symbol: "AAPL", Quantity: d("1"), Side: "BUY"})
	if !errors.Is(err, models.ErrPriceUnavailable) {
		t.Errorf("Expected ErrPriceUnavailable, got %v", err)
	}
	if n := db.CountRows(t, f.db, "trade_orders"); n != 0 {
		t.Errorf("Expected no orders written, got %d", n)
	}
}

func TestPlaceOrder_ConcurrentBuys(t *testing.T) {
	f := setup(t, prices)
	p := f.portfolio(t)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.PlaceOrder(context.Background(), f.user.ID, models.PlaceOrderRequest{
				Symbol: "AMZN", Quantity: d("1"), Side: "BUY", PortfolioID: p.ID,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("PlaceOrder failed: %v", err)
		}
	}

	pos := f.position(t, p.ID, "AMZN")
	if pos == nil {
		t.Fatal("Expected an AMZN position")
	}
	if !pos.Quantity.Equal(decimal.NewFromInt(n)) || !pos.AvgPrice.Equal(d("180")) {
		t.Errorf("Expected %d @ 180, got %s @ %s", n, pos.Quantity, pos.AvgPrice)
	}
	if n := db.CountRows(t, f.db, "assets"); n != 1 {
		t.Errorf("Expected 1 position row, got %d", n)
	}
}

func TestListOrders_NewestFirst(t *testing.T) {
	f := setup(t, prices)
	ctx := context.Background()

	var ids []string
	for _, sym := range []string{"AAPL", "MSFT", "AMZN"} {
		o, err := f.engine.PlaceOrder(ctx, f.user.ID, models.PlaceOrderRequest{Symbol: sym, Quantity: d("1"), Side: "BUY"})
		if err != nil {
			t.Fatalf("PlaceOrder failed: %v", err)
		}
		ids = append(ids, o.ID)
		time.Sleep(2 * time.Millisecond)
	}

	orders, err := f.engine.ListOrders(ctx, f.user.ID, 0)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("Expected 3 orders, got %d", len(orders))
	}
	if orders[0].ID != ids[2] || orders[2].ID != ids[0] {
		t.Errorf("Expected newest first, got %s, %s, %s", orders[0].Symbol, orders[1].Symbol, orders[2].Symbol)
	}

	limited, err := f.engine.ListOrders(ctx, f.user.ID, 2)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 orders, got %d", len(limited))
	}
}

func TestPlaceOrder_PortfolioDeletedWhilePricing(t *testing.T) {
	var f *fixture
	var p *models.Portfolio
	f = setup(t, oracle.Func(func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		if err := f.ledger.DeletePortfolio(ctx, f.user.ID, p.ID); err != nil {
			t.Errorf("DeletePortfolio failed: %v", err)
		}
		return d("150.25"), nil
	}))
	p = f.portfolio(t, models.AssetSpec{Symbol: "AAPL", Quantity: d("10"), AvgPrice: d("100")})

	order, err := f.engine.PlaceOrder(context.Background(), f.user.ID, models.PlaceOrderRequest{
		Symbol: "AAPL", Quantity: d("1"), Side: "BUY", PortfolioID: p.ID,
	})
	if !errors.Is(err, models.ErrPortfolioNotFound) {
		t.Fatalf("Expected ErrPortfolioNotFound, got %v", err)
	}
	if order != nil {
		t.Errorf("Expected no order, got %+v", order)
	}
	if n := db.CountRows(t, f.db, "trade_orders"); n != 0 {
		t.Errorf("Expected no orders, got %d", n)
	}
	if n := db.CountRows(t, f.db, "assets"); n != 0 {
		t.Errorf("Expected no assets, got %d", n)
	}
}

func TestPlaceOrder_UserDeletedWhilePricing(t *testing.T) {
	var f *fixture
	f = setup(t, oracle.Func(func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		if err := db.DeleteUser(ctx, f.db, f.user.ID); err != nil {
			t.Errorf("DeleteUser failed: %v", err)
		}
		return d("150.25"), nil
	}))

	_, err := f.engine.PlaceOrder(context.Background(), f.user.ID, models.PlaceOrderRequest{
		Symbol: "AAPL", Quantity: d("1"), Side: "BUY",
	})
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("Expected ErrUserNotFound, got %v", err)
	}
	if n := db.CountRows(t, f.db, "trade_orders"); n != 0 {
		t.Errorf("Expected no orders, got %d", n)
	}
}
