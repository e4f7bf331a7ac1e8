package handlers

import (
	"net/http"
	"strings"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// RequireAuth resolves the bearer token to a user and stores it on the
// context. Requests without a valid token are rejected with 401.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			return
		}

		user, err := h.Users.Resolve(c.Request.Context(), tokenString)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				h.respondError(c, err)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

// RequireRole rejects principals that lack role with 403. It runs after
// RequireAuth.
func (h *Handler) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := principal(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !user.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": models.ErrForbidden.Error()})
			return
		}
		c.Next()
	}
}

// principal returns the user set by RequireAuth.
func principal(c *gin.Context) *models.User {
	v, _ := c.Get(principalKey)
	u, _ := v.(*models.User)
	return u
}
