package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/gin-gonic/gin"
)

// PlaceOrder handles POST /api/trades
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req models.PlaceOrderRequest

	// Parse JSON request body
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.Engine.PlaceOrder(c.Request.Context(), principal(c).ID, req)
	if errors.Is(err, models.ErrInsufficientPosition) && order != nil {
		// the rejected order is stored; return it with the reason
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": err.Error(),
			"order": order,
		})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Trade executed successfully",
		"order":   order,
	})
}

// GetOrder handles GET /api/trades/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.Engine.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if order.UserID != principal(c).ID {
		h.respondError(c, models.ErrOrderNotFound)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /api/trades
func (h *Handler) ListOrders(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	trades, err := h.Engine.ListOrders(c.Request.Context(), principal(c).ID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trades": trades,
		"count":  len(trades),
	})
}
