package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/shopspring/decimal"
)

const (
	alphaVantageURL = "https://www.alphavantage.co/query"
	globalQuotePath = `$["Global Quote"]["05. price"]`
)

// AlphaVantage quotes symbols with the GLOBAL_QUOTE endpoint.
type AlphaVantage struct {
	APIKey  string
	BaseURL string
	Client  *http.Client

	Attempts  int
	BaseDelay time.Duration
}

// NewAlphaVantage returns a client for the public endpoint.
func NewAlphaVantage(apiKey string) *AlphaVantage {
	return &AlphaVantage{
		APIKey:    apiKey,
		BaseURL:   alphaVantageURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
		Attempts:  3,
		BaseDelay: 200 * time.Millisecond,
	}
}

func (a *AlphaVantage) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = models.NormalizeSymbol(symbol)

	var body []byte
	err := Retry(ctx, max(a.Attempts, 1), a.BaseDelay, func() error {
		var err error
		body, err = a.fetch(ctx, symbol)
		return err
	})
	if err != nil {
		return decimal.Zero, unavailable(symbol, "alphavantage: %v", err)
	}

	price, err := parseGlobalQuote(body)
	if err != nil {
		return decimal.Zero, unavailable(symbol, "alphavantage: %v", err)
	}
	return checkPrice(symbol, price)
}

func (a *AlphaVantage) fetch(ctx context.Context, symbol string) ([]byte, error) {
	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", a.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, permanent(err)
	}
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, permanent(fmt.Errorf("status %d", resp.StatusCode))
	}
	return body, nil
}

// parseGlobalQuote extracts the price from a GLOBAL_QUOTE response. Rate
// limit notices come back as 200 with a "Note" or "Information" key.
func parseGlobalQuote(body []byte) (decimal.Decimal, error) {
	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		return decimal.Zero, fmt.Errorf("decode response: %w", err)
	}
	if m, ok := jobj.(map[string]any); ok {
		for _, key := range []string{"Note", "Information", "Error Message"} {
			if msg, ok := m[key]; ok {
				return decimal.Zero, fmt.Errorf("%s: %v", key, msg)
			}
		}
	}

	jval, err := jsonpath.Get(globalQuotePath, jobj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error parsing %q: %w", globalQuotePath, err)
	}
	// keep the first match if jsonpath returned a list
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}

	switch v := jval.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	}
	return decimal.Zero, fmt.Errorf("error parsing %q: not a price %v", globalQuotePath, jval)
}
