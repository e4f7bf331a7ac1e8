package oracle

import (
	"context"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/shopspring/decimal"
)

// Alpaca quotes the latest trade price from the Alpaca market-data API.
type Alpaca struct {
	client *marketdata.Client
}

// NewAlpaca builds a market-data client. dataURL may be empty to use the
// SDK default.
func NewAlpaca(apiKey, apiSecret, dataURL string) *Alpaca {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &Alpaca{client: marketdata.NewClient(opts)}
}

// Quote ignores ctx cancellation inside the SDK call; wrap with WithTimeout
// to bound it.
func (a *Alpaca) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := ctx.Err(); err != nil {
		return decimal.Zero, unavailable(symbol, "%v", err)
	}

	trade, err := a.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Zero, unavailable(symbol, "alpaca: %v", err)
	}
	if trade == nil {
		return decimal.Zero, unavailable(symbol, "alpaca: no trade")
	}
	return checkPrice(symbol, decimal.NewFromFloat(trade.Price))
}
