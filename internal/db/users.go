package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/atharvakonge/tradeshift/internal/models"
)

const userColumns = `id, username, email, name, contact_no, password_hash, created_at`

// InsertUser stores a new user and its roles. Duplicate usernames or emails
// fail with models.ErrUsernameTaken / models.ErrEmailTaken.
func InsertUser(ctx context.Context, r Runner, u *models.User) error {
	_, err := r.exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.Email, u.Name, u.ContactNo, u.PasswordHash, u.CreatedAt.UTC())
	if err != nil {
		return userWriteError(err)
	}
	for _, role := range u.Roles {
		if _, err := r.exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES (?, ?)`, u.ID, role); err != nil {
			return fmt.Errorf("insert role: %w", err)
		}
	}
	return nil
}

// UpdateUser persists the profile fields of an existing user.
func UpdateUser(ctx context.Context, r Runner, u *models.User) error {
	res, err := r.exec(ctx, `
		UPDATE users
		SET username = ?, email = ?, name = ?, contact_no = ?, password_hash = ?
		WHERE id = ?
	`, u.Username, u.Email, u.Name, u.ContactNo, u.PasswordHash, u.ID)
	if err != nil {
		return userWriteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// GetUserByID loads a user with its roles.
func GetUserByID(ctx context.Context, r Runner, id string) (*models.User, error) {
	return getUser(ctx, r, `id = ?`, id)
}

// GetUserByUsername loads a user with its roles.
func GetUserByUsername(ctx context.Context, r Runner, username string) (*models.User, error) {
	return getUser(ctx, r, `username = ?`, username)
}

// GetUserByEmail loads a user with its roles.
func GetUserByEmail(ctx context.Context, r Runner, email string) (*models.User, error) {
	return getUser(ctx, r, `email = ?`, email)
}

func getUser(ctx context.Context, r Runner, where string, arg any) (*models.User, error) {
	var u models.User
	err := r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.ContactNo, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	rows, err := r.query(ctx, `SELECT role FROM user_roles WHERE user_id = ?`, u.ID)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		u.Roles = append(u.Roles, role)
	}
	sort.Strings(u.Roles)
	return &u, rows.Err()
}

func userWriteError(err error) error {
	if col, ok := uniqueViolation(err); ok {
		switch col {
		case "email":
			return models.ErrEmailTaken
		case "username":
			return models.ErrUsernameTaken
		}
	}
	return fmt.Errorf("write user: %w", err)
}

// ListUsers returns every user with its roles, oldest first.
func ListUsers(ctx context.Context, r Runner) ([]models.User, error) {
	rows, err := r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.ContactNo, &u.PasswordHash, &u.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	// Roles are read in a second pass; SQLite runs on a single connection.
	rows, err = r.query(ctx, `SELECT user_id, role FROM user_roles`)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	roles := make(map[string][]string)
	for rows.Next() {
		var userID, role string
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles[userID] = append(roles[userID], role)
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
		sort.Strings(users[i].Roles)
	}
	return users, rows.Err()
}

// AddUserRole grants role to the user. Granting a held role is a no-op.
func AddUserRole(ctx context.Context, r Runner, userID, role string) error {
	_, err := r.exec(ctx, `
		INSERT INTO user_roles (user_id, role) VALUES (?, ?)
		ON CONFLICT (user_id, role) DO NOTHING
	`, userID, role)
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// DeleteUser removes a user together with its orders. Roles, portfolios and
// positions go with it through ON DELETE CASCADE.
func DeleteUser(ctx context.Context, r Runner, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM trade_orders WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("delete orders: %w", err)
	}
	res, err := r.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
