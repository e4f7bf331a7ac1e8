package models

import "time"

const (
	// RoleUser is granted to every registered user.
	RoleUser = "ROLE_USER"
	// RoleAdmin may list and delete other users. It is only granted by an
	// operator, never at registration.
	RoleAdmin = "ROLE_ADMIN"
)

// User represents a user in the system
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	ContactNo    string    `json:"contact_no"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RegisterRequest - what client sends to sign up
type RegisterRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Name      string `json:"name"`
	ContactNo string `json:"contact_no"`
	Password  string `json:"password" binding:"required,min=6"`
}

// LoginRequest - credentials exchanged for a token
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest holds optional profile changes; empty fields are left
// untouched.
type UpdateProfileRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	ContactNo string `json:"contact_no"`
	Password  string `json:"password"`
}
