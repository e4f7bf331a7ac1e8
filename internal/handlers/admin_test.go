package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/gin-gonic/gin"
)

func me(t *testing.T, router *gin.Engine, token string) models.User {
	t.Helper()

	w := do(t, router, http.MethodGet, "/api/users/me", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on /users/me, got %d: %s", w.Code, w.Body.String())
	}
	var u models.User
	decode(t, w, &u)
	return u
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	router := setupRouter(t)
	token := signup(t, router, "plain")
	u := me(t, router, token)

	if w := do(t, router, http.MethodGet, "/api/admin/users", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/admin/users", token, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for ROLE_USER, got %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/api/admin/users/"+u.ID, token, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 deleting as ROLE_USER, got %d", w.Code)
	}
}

func TestAdminRoutes_ManageUsers(t *testing.T) {
	h := newTestHandler(t)
	router := NewRouter(h)

	adminToken := signup(t, router, "admin")
	admin := me(t, router, adminToken)
	if _, err := h.Users.GrantRole(context.Background(), admin.ID, models.RoleAdmin); err != nil {
		t.Fatalf("GrantRole failed: %v", err)
	}

	traderToken := signup(t, router, "trader")
	trader := me(t, router, traderToken)
	createPortfolio(t, router, traderToken, gin.H{"symbol": "AAPL", "quantity": 5, "avg_price": 100})
	if w := do(t, router, http.MethodPost, "/api/trades", traderToken, gin.H{"symbol": "AAPL", "quantity": 1, "side": "BUY"}); w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 on trade, got %d: %s", w.Code, w.Body.String())
	}

	w := do(t, router, http.MethodGet, "/api/admin/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 listing users, got %d: %s", w.Code, w.Body.String())
	}
	var list struct {
		Users []models.User
		Count int
	}
	decode(t, w, &list)
	if list.Count != 2 || len(list.Users) != 2 {
		t.Errorf("Expected 2 users, got %+v", list)
	}

	w = do(t, router, http.MethodGet, "/api/admin/users/"+trader.ID, adminToken, nil)
	var got models.User
	decode(t, w, &got)
	if w.Code != http.StatusOK || got.Username != "trader" {
		t.Errorf("Expected trader, got %d %+v", w.Code, got)
	}
	if w := do(t, router, http.MethodGet, "/api/admin/users/missing", adminToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown user, got %d", w.Code)
	}

	if w := do(t, router, http.MethodDelete, "/api/admin/users/"+admin.ID, adminToken, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 deleting own account, got %d", w.Code)
	}

	// the trader has a portfolio and an order; both go with the account
	if w := do(t, router, http.MethodDelete, "/api/admin/users/"+trader.ID, adminToken, nil); w.Code != http.StatusNoContent {
		t.Fatalf("Expected 204 on delete, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodDelete, "/api/admin/users/"+trader.ID, adminToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/portfolios", traderToken, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected deleted user's token to be rejected, got %d", w.Code)
	}
}
