// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) and the analytics summary.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/adiva-ai/chat-backend/internal/domain"
)

// ChatsStats returns aggregate metadata for a user's chats: the total number
// of rows and the maximum UpdatedAt timestamp among those rows. The HTTP
// layer derives a weak ETag from the pair.
//
// When the user has no chats, the returned count is 0 and maxUpdatedAt is nil.
func ChatsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Chat{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// UsageTotals aggregates persisted assistant token usage.
type UsageTotals struct {
	Messages         int64
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

// AssistantUsageTotals sums token counts across all assistant messages.
// Guest traffic is excluded by construction: only authed turns persist.
func AssistantUsageTotals(ctx context.Context, db *gorm.DB) (UsageTotals, error) {
	var row struct {
		Messages         int64
		PromptTokens     int64
		CompletionTokens int64
		TotalTokens      int64
	}
	err := db.WithContext(ctx).
		Raw(`SELECT COUNT(*) AS messages,
		            COALESCE(SUM(prompt_tokens), 0)     AS prompt_tokens,
		            COALESCE(SUM(completion_tokens), 0) AS completion_tokens,
		            COALESCE(SUM(total_tokens), 0)      AS total_tokens
		     FROM messages
		     WHERE role = 'assistant' AND deleted_at IS NULL`).
		Scan(&row).Error
	return UsageTotals(row), err
}

// CountAllChats returns the total number of live chats across all users.
func CountAllChats(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Chat{}).Count(&total).Error
	return total, err
}
