package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/atharvakonge/tradeshift/internal/config"
	"github.com/atharvakonge/tradeshift/internal/db"
	"github.com/atharvakonge/tradeshift/internal/engine"
	"github.com/atharvakonge/tradeshift/internal/ledger"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/atharvakonge/tradeshift/internal/oracle"
	"github.com/atharvakonge/tradeshift/internal/users"
	"github.com/gin-gonic/gin"
)

// Handler serves the HTTP API on top of the core services.
type Handler struct {
	DB     *db.DB
	Users  *users.Service
	Ledger *ledger.Ledger
	Engine *engine.Engine
	Oracle oracle.Oracle
	Stream config.Stream
	Log    *slog.Logger
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidOrderRequest),
		errors.Is(err, models.ErrInvalidAsset),
		errors.Is(err, models.ErrInvalidPortfolio),
		errors.Is(err, models.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrPortfolioNotFound),
		errors.Is(err, models.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUsernameTaken),
		errors.Is(err, models.ErrEmailTaken),
		errors.Is(err, models.ErrOrderImmutable):
		return http.StatusConflict
	case errors.Is(err, models.ErrInsufficientPosition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}. Unexpected errors are logged and
// hidden from the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
