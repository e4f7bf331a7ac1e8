package handlers

import (
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/gin-gonic/gin"
)

// NewRouter wires every route onto a gin engine.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if gin.Mode() == gin.DebugMode {
		router.Use(gin.Logger())
	}

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)

		secured := api.Group("", h.RequireAuth())

		secured.GET("/users/me", h.Me)
		secured.PUT("/users/me", h.UpdateMe)

		// Portfolio endpoints
		secured.GET("/portfolios", h.ListPortfolios)
		secured.POST("/portfolios", h.CreatePortfolio)
		secured.GET("/portfolios/:id", h.GetPortfolio)
		secured.DELETE("/portfolios/:id", h.DeletePortfolio)
		secured.POST("/portfolios/:id/assets", h.AddAsset)

		// Trading endpoints
		secured.POST("/trades", h.PlaceOrder)
		secured.GET("/trades", h.ListOrders)
		secured.GET("/trades/:id", h.GetOrder)

		secured.GET("/market/price/:symbol", h.GetPrice)

		// User administration
		admin := secured.Group("/admin", h.RequireRole(models.RoleAdmin))
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.DELETE("/users/:id", h.DeleteUser)
	}

	// WebSocket endpoint
	router.GET("/ws/prices", h.StreamPrices)

	// Health check
	router.GET("/health", h.Health)

	return router
}
