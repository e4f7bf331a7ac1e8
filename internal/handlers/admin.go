package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListUsers handles GET /api/admin/users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// GetUser handles GET /api/admin/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser handles DELETE /api/admin/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.Users.Delete(c.Request.Context(), principal(c).ID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
