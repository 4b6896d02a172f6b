// Package services – AuthService
//
// This file implements registration, login with failed-attempt lockout, and
// JWT session tokens. Passwords are bcrypt-hashed; login failures against a
// real account are indistinguishable from a wrong email.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/adiva-ai/chat-backend/internal/domain"
	"github.com/adiva-ai/chat-backend/internal/repo"
)

const (
	// maxLoginAttempts failed logins lock the account for lockDuration.
	maxLoginAttempts = 5
	lockDuration     = 2 * time.Hour
)

// Claims is the JWT payload carried by session tokens.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService owns account lifecycle and session tokens.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// JWTSecret signs session tokens (HMAC-SHA256).
	JWTSecret []byte
	// TokenTTL is the session lifetime.
	TokenTTL time.Duration
	// BcryptCost is the hashing work factor.
	BcryptCost int
}

// Register creates an account and returns it with a fresh session token.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*domain.User, string, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return nil, "", err
	}

	u, err := repo.CreateUser(ctx, s.DB, email, string(hash), name, domain.RoleUser)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials, enforcing the failed-attempt lockout, and
// returns the account with a fresh session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if u.Locked(time.Now()) {
		span.SetAttributes(attribute.Bool("auth.locked", true))
		return nil, "", ErrAccountLocked
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		attempts, ferr := repo.RecordLoginFailure(ctx, s.DB, u.ID, maxLoginAttempts, lockDuration)
		if ferr != nil {
			return nil, "", ferr
		}
		if attempts >= maxLoginAttempts {
			return nil, "", ErrAccountLocked
		}
		return nil, "", ErrInvalidCredentials
	}

	if err := repo.RecordLoginSuccess(ctx, s.DB, u.ID); err != nil {
		return nil, "", err
	}
	// Mirror the persisted update so the returned account is not stale.
	now := time.Now().UTC()
	u.LoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// GetUser loads an account by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := repo.GetUserByID(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// ParseToken validates a session token and returns its claims.
func (s *AuthService) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.JWTSecret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// issueToken signs a session token for the user.
func (s *AuthService) issueToken(u *domain.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.JWTSecret)
}

// isUniqueViolation detects a unique-index failure across drivers by message,
// since the pure-Go sqlite driver exposes no typed error for it.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "duplicate")
}
