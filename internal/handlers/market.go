package handlers

import (
	"net/http"
	"time"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/gin-gonic/gin"
)

// GetPrice handles GET /api/market/price/:symbol
func (h *Handler) GetPrice(c *gin.Context) {
	symbol := models.NormalizeSymbol(c.Param("symbol"))

	price, err := h.Oracle.Quote(c.Request.Context(), symbol)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"price":     price,
		"timestamp": time.Now().UTC(),
	})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	if err := h.DB.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": h.DB.Driver()})
}
