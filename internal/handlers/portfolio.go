package handlers

import (
	"net/http"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/gin-gonic/gin"
)

// ListPortfolios handles GET /api/portfolios
func (h *Handler) ListPortfolios(c *gin.Context) {
	portfolios, err := h.Ledger.ListPortfolios(c.Request.Context(), principal(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"portfolios": portfolios,
		"count":      len(portfolios),
	})
}

// CreatePortfolio handles POST /api/portfolios
func (h *Handler) CreatePortfolio(c *gin.Context) {
	var req models.CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.Ledger.CreatePortfolio(c.Request.Context(), principal(c).ID, req.Name, req.Assets)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetPortfolio handles GET /api/portfolios/:id
func (h *Handler) GetPortfolio(c *gin.Context) {
	p, err := h.Ledger.GetPortfolio(c.Request.Context(), principal(c).ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePortfolio handles DELETE /api/portfolios/:id
func (h *Handler) DeletePortfolio(c *gin.Context) {
	if err := h.Ledger.DeletePortfolio(c.Request.Context(), principal(c).ID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddAsset handles POST /api/portfolios/:id/assets
func (h *Handler) AddAsset(c *gin.Context) {
	var spec models.AssetSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	// scope to the caller before touching positions
	p, err := h.Ledger.GetPortfolio(ctx, principal(c).ID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	asset, err := h.Ledger.AddAsset(ctx, p.ID, spec)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}
