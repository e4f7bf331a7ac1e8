package models

import "errors"

// Domain errors. Callers inspect them with errors.Is; lower layers wrap them
// with context.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrPortfolioNotFound    = errors.New("portfolio not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidOrderRequest  = errors.New("invalid order request")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrOrderImmutable       = errors.New("order is immutable")
	ErrInsufficientPosition = errors.New("insufficient position")

	ErrInvalidAsset       = errors.New("invalid asset")
	ErrInvalidPortfolio   = errors.New("invalid portfolio")
	ErrInvalidUser        = errors.New("invalid user")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)
