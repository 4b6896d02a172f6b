// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/adiva-ai/chat-backend/internal/domain"
)

// Usage carries the token counts attached to an assistant message.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CreateMessage inserts a new message row. model and usage are zero-valued
// for user turns.
func CreateMessage(ctx context.Context, db *gorm.DB, chatID, role, content, model string, usage Usage) (*domain.Message, error) {
	m := &domain.Message{
		ID:               uuid.NewString(),
		ChatID:           chatID,
		Role:             role,
		Content:          content,
		Model:            model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		CreatedAt:        time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
func ListMessages(ctx context.Context, db *gorm.DB, chatID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).Where("chat_id = ?", chatID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListRecentMessages returns the last n messages of a chat in chronological
// order. It selects the newest n rows then reverses them, so old history is
// dropped rather than the most recent turns.
func ListRecentMessages(ctx context.Context, db *gorm.DB, chatID string, n int) ([]domain.Message, error) {
	var newest []domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&newest).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ? AND deleted_at IS NULL", chatID).
		Scan(&total).Error
	return total, err
}
