package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// PriceUpdate represents a stock price update
type PriceUpdate struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Change    decimal.Decimal `json:"change"` // percent since the previous update
	Timestamp time.Time       `json:"timestamp"`
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins (for development and demo)
	},
}

const writeWait = 5 * time.Second

// StreamPrices handles GET /ws/prices. Every interval it quotes each symbol
// through the oracle and pushes one PriceUpdate per symbol. The symbol list
// comes from ?symbols=A,B or the stream configuration.
func (h *Handler) StreamPrices(c *gin.Context) {
	symbols := h.Stream.Symbols
	if q := c.Query("symbols"); q != "" {
		symbols = nil
		for _, s := range strings.Split(q, ",") {
			if s = models.NormalizeSymbol(s); s != "" {
				symbols = append(symbols, s)
			}
		}
	}
	interval := h.Stream.Interval
	if interval <= 0 {
		interval = time.Second
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := h.Log.With("remote", c.Request.RemoteAddr)
	log.Info("websocket client connected", "symbols", len(symbols))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// read pump: notices the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last := make(map[string]decimal.Decimal, len(symbols))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("websocket client disconnected")
			return
		case <-ticker.C:
			for _, symbol := range symbols {
				price, err := h.Oracle.Quote(ctx, symbol)
				if err != nil {
					log.Debug("skipping unpriced symbol", "symbol", symbol, "error", err)
					continue
				}

				update := PriceUpdate{
					Symbol:    symbol,
					Price:     price,
					Change:    decimal.Zero,
					Timestamp: time.Now().UTC(),
				}
				if prev, ok := last[symbol]; ok && prev.IsPositive() {
					update.Change = price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(4)
				}
				last[symbol] = price

				// Send to client
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(update); err != nil {
					log.Info("websocket write failed", "error", err)
					return
				}
			}
		}
	}
}
