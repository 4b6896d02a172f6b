// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model,
// including the failed-login lockout bookkeeping.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adiva-ai/chat-backend/internal/domain"
)

// CreateUser inserts a new account row. Email is normalized to lowercase.
// A unique-index violation on email propagates as the raw gorm error;
// services translate it into their duplicate sentinel.
func CreateUser(ctx context.Context, db *gorm.DB, email, passwordHash, name, role string) (*domain.User, error) {
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail fetches an account by its lowercase email, or ErrNotFound.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID fetches an account by primary key, or ErrNotFound.
func GetUserByID(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordLoginFailure increments the failed-attempt counter and, once the
// count reaches maxAttempts, locks the account until now+lockFor. Returns
// the new attempt count.
func RecordLoginFailure(ctx context.Context, db *gorm.DB, id string, maxAttempts int, lockFor time.Duration) (int, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return 0, err
	}
	attempts := u.LoginAttempts + 1
	updates := map[string]any{
		"login_attempts": attempts,
		"updated_at":     time.Now().UTC(),
	}
	if attempts >= maxAttempts {
		updates["locked_until"] = time.Now().UTC().Add(lockFor)
	}
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(updates).Error
	return attempts, err
}

// RecordLoginSuccess clears the lockout state and stamps LastLoginAt.
func RecordLoginSuccess(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"login_attempts": 0,
			"locked_until":   nil,
			"last_login_at":  now,
			"updated_at":     now,
		}).Error
}

// CountUsers returns the total number of accounts.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&total).Error
	return total, err
}

// ListUsersPage returns a paginated slice of accounts, newest first.
func ListUsersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
