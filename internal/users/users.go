// Package users registers users, checks credentials and issues the bearer
// tokens that identify them on later requests.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atharvakonge/tradeshift/internal/db"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service owns users and their tokens.
type Service struct {
	db       *db.DB
	secret   []byte
	tokenTTL time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// New creates a Service signing tokens with secret.
func New(database *db.DB, secret string, tokenTTL time.Duration, log *slog.Logger) (*Service, error) {
	if secret == "" {
		return nil, errors.New("users: JWT secret is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:       database,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		log:      log.With("component", "users"),
		now:      time.Now,
	}, nil
}

// Register creates a user with the default role.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", models.ErrInvalidUser)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		ContactNo:    strings.TrimSpace(req.ContactNo),
		PasswordHash: string(hash),
		Roles:        []string{models.RoleUser},
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	err = s.db.InTx(ctx, func(tx *db.Tx) error {
		return db.InsertUser(ctx, tx, u)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Login checks credentials and returns a signed token. The login name may be
// the username or the email.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	u, err := db.GetUserByUsername(ctx, s.db, strings.TrimSpace(req.Username))
	if errors.Is(err, models.ErrUserNotFound) {
		u, err = db.GetUserByEmail(ctx, s.db, strings.ToLower(strings.TrimSpace(req.Username)))
	}
	if errors.Is(err, models.ErrUserNotFound) {
		return "", models.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return "", models.ErrInvalidCredentials
	}
	return s.IssueToken(u)
}

// IssueToken signs an HS256 token whose subject is the username.
func (s *Service) IssueToken(u *models.User) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   u.Username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// VerifyToken validates a token and returns its subject.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", models.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// Resolve turns a bearer token into the user it names.
func (s *Service) Resolve(ctx context.Context, tokenString string) (*models.User, error) {
	username, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	u, err := db.GetUserByUsername(ctx, s.db, username)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: unknown subject", models.ErrUnauthorized)
	}
	return u, err
}

// Get loads a user by id.
func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	return db.GetUserByID(ctx, s.db, userID)
}

// List returns every user, oldest first.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return db.ListUsers(ctx, s.db)
}

// Delete removes userID along with its portfolios and orders. An account
// cannot delete itself.
func (s *Service) Delete(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return fmt.Errorf("%w: cannot delete your own account", models.ErrInvalidUser)
	}
	err := s.db.InTx(ctx, func(tx *db.Tx) error {
		return db.DeleteUser(ctx, tx, userID)
	})
	if err != nil {
		return err
	}

	s.log.Info("user deleted", "user_id", userID, "by", actorID)
	return nil
}

// GrantRole adds role to the user.
func (s *Service) GrantRole(ctx context.Context, userID, role string) (*models.User, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", models.ErrInvalidUser, role)
	}

	var u *models.User
	err := s.db.InTx(ctx, func(tx *db.Tx) error {
		if _, err := db.GetUserByID(ctx, tx, userID); err != nil {
			return err
		}
		if err := db.AddUserRole(ctx, tx, userID, role); err != nil {
			return err
		}
		var err error
		u, err = db.GetUserByID(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("role granted", "user_id", userID, "role", role)
	return u, nil
}

// UpdateProfile applies the non-empty fields of req. Changing the username
// invalidates tokens issued for the old one.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	var hash string
	if req.Password != "" {
		if len(req.Password) < 6 {
			return nil, fmt.Errorf("%w: password too short", models.ErrInvalidUser)
		}
		h, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = string(h)
	}

	var u *models.User
	err := s.db.InTx(ctx, func(tx *db.Tx) error {
		var err error
		u, err = db.GetUserByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if v := strings.TrimSpace(req.Username); v != "" {
			u.Username = v
		}
		if v := strings.ToLower(strings.TrimSpace(req.Email)); v != "" {
			u.Email = v
		}
		if v := strings.TrimSpace(req.Name); v != "" {
			u.Name = v
		}
		if v := strings.TrimSpace(req.ContactNo); v != "" {
			u.ContactNo = v
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		return db.UpdateUser(ctx, tx, u)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("profile updated", "user_id", u.ID)
	return u, nil
}
