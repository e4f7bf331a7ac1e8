package models

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAssetMerge_WeightedAverage(t *testing.T) {
	a := Asset{Symbol: "X", Quantity: d("10"), AvgPrice: d("100")}

	got := a.Merge(d("5"), d("130"))

	if !got.Quantity.Equal(d("15")) {
		t.Errorf("Expected quantity 15, got %s", got.Quantity)
	}
	if !got.AvgPrice.Equal(d("110")) {
		t.Errorf("Expected avg price 110, got %s", got.AvgPrice)
	}
}

func TestAssetMerge_EmptyPosition(t *testing.T) {
	got := Asset{}.Merge(d("3"), d("42.5"))

	if !got.Quantity.Equal(d("3")) || !got.AvgPrice.Equal(d("42.5")) {
		t.Errorf("Expected 3 @ 42.5, got %s @ %s", got.Quantity, got.AvgPrice)
	}
}

func TestAssetReduce(t *testing.T) {
	a := Asset{Symbol: "AAPL", Quantity: d("10"), AvgPrice: d("150")}

	got, err := a.Reduce(d("4"))
	if err != nil {
		t.Fatalf("Reduce failed: %v", err)
	}
	if !got.Quantity.Equal(d("6")) || !got.AvgPrice.Equal(d("150")) {
		t.Errorf("Expected 6 @ 150, got %s @ %s", got.Quantity, got.AvgPrice)
	}

	if _, err := a.Reduce(d("11")); !errors.Is(err, ErrInsufficientPosition) {
		t.Errorf("Expected ErrInsufficientPosition, got %v", err)
	}
}

func TestAssetSpecNormalize(t *testing.T) {
	spec, err := AssetSpec{Symbol: " msft ", Quantity: d("1"), AvgPrice: d("0")}.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if spec.Symbol != "MSFT" || spec.AssetType != DefaultAssetType {
		t.Errorf("Unexpected normalized spec: %+v", spec)
	}

	bad := []AssetSpec{
		{Symbol: "", Quantity: d("1")},
		{Symbol: "X", Quantity: d("0")},
		{Symbol: "X", Quantity: d("1"), AvgPrice: d("-1")},
	}
	for _, s := range bad {
		if _, err := s.Normalize(); !errors.Is(err, ErrInvalidAsset) {
			t.Errorf("Expected ErrInvalidAsset for %+v, got %v", s, err)
		}
	}
}

func TestOrderTransition(t *testing.T) {
	o := &TradeOrder{ID: "o1", Status: StatusPending}

	if err := o.Transition(StatusFilled); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if o.Status != StatusFilled {
		t.Errorf("Expected FILLED, got %s", o.Status)
	}

	if err := o.Transition(StatusRejected); !errors.Is(err, ErrOrderImmutable) {
		t.Errorf("Expected ErrOrderImmutable, got %v", err)
	}
	if o.Status != StatusFilled {
		t.Errorf("Terminal status changed to %s", o.Status)
	}
}

func TestParseSide(t *testing.T) {
	if s, err := ParseSide(" buy "); err != nil || s != SideBuy {
		t.Errorf("Expected BUY, got %q (%v)", s, err)
	}
	if s, err := ParseSide("SELL"); err != nil || s != SideSell {
		t.Errorf("Expected SELL, got %q (%v)", s, err)
	}
	if _, err := ParseSide("HOLD"); !errors.Is(err, ErrInvalidOrderRequest) {
		t.Errorf("Expected ErrInvalidOrderRequest, got %v", err)
	}
}

func TestPositionLocks_Serializes(t *testing.T) {
	pl := NewPositionLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := pl.Lock("p1", "AAPL")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("Race condition detected! Expected 50, got %d", counter)
	}
	if pl.Len() != 0 {
		t.Errorf("Expected lock table to be empty, got %d entries", pl.Len())
	}
}
