// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the GuestUsage
// ledger, which tracks per-visitor message quota for anonymous traffic.
//
// Concurrency notes:
//   - GetOrCreateGuestUsage inserts with ON CONFLICT DO NOTHING and then
//     fetches, so two concurrent first requests from the same guest cannot
//     double-create a row.
//   - ConsumeGuestQuota increments with a single conditional UPDATE and
//     checks RowsAffected, so two concurrent requests cannot both take the
//     last quota slot.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adiva-ai/chat-backend/internal/domain"
)

// GetOrCreateGuestUsage returns the usage row for guestID, creating it when
// missing. The fetched row's LastSeenAt is refreshed and its ExpiresAt is
// extended to now+window, forward only: a shorter window never pulls an
// existing expiry backwards.
func GetOrCreateGuestUsage(ctx context.Context, db *gorm.DB, guestID string, window time.Duration) (*domain.GuestUsage, error) {
	now := time.Now().UTC()
	fresh := &domain.GuestUsage{
		GuestID:    guestID,
		ChatCount:  0,
		LastSeenAt: now,
		ExpiresAt:  now.Add(window),
		CreatedAt:  now,
	}
	// Insert-if-absent; racing creators collapse onto one row.
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fresh).Error
	if err != nil {
		return nil, err
	}

	var u domain.GuestUsage
	if err := db.WithContext(ctx).Where("guest_id = ?", guestID).First(&u).Error; err != nil {
		return nil, err
	}

	updates := map[string]any{"last_seen_at": now, "updated_at": now}
	if exp := now.Add(window); exp.After(u.ExpiresAt) {
		updates["expires_at"] = exp
		u.ExpiresAt = exp
	}
	if err := db.WithContext(ctx).
		Model(&domain.GuestUsage{}).
		Where("guest_id = ?", guestID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	u.LastSeenAt = now
	return &u, nil
}

// ConsumeGuestQuota attempts to take one quota slot for guestID under the
// given ceiling. It returns true when the increment happened and false when
// the guest is already at or above maxChats. The increment and the ceiling
// check run as one UPDATE so concurrent requests cannot overshoot.
func ConsumeGuestQuota(ctx context.Context, db *gorm.DB, guestID string, maxChats int) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.GuestUsage{}).
		Where("guest_id = ? AND chat_count < ?", guestID, maxChats).
		Updates(map[string]any{
			"chat_count": gorm.Expr("chat_count + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetGuestUsage fetches the row for guestID, or ErrNotFound.
func GetGuestUsage(ctx context.Context, db *gorm.DB, guestID string) (*domain.GuestUsage, error) {
	var u domain.GuestUsage
	if err := db.WithContext(ctx).Where("guest_id = ?", guestID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteExpiredGuestUsage purges rows whose expiry has passed and returns
// the number of rows removed. Called from the background sweep.
func DeleteExpiredGuestUsage(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.GuestUsage{})
	return res.RowsAffected, res.Error
}

// CountGuestUsage returns the number of live guest rows, for analytics.
func CountGuestUsage(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.GuestUsage{}).Count(&total).Error
	return total, err
}
