// Package services – AnalyticsService
//
// This file aggregates usage counters for the analytics summary endpoint.
// All numbers come from the persistence layer; the endpoint is gated by the
// analytics feature toggle.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/adiva-ai/chat-backend/internal/repo"
)

// Summary is the analytics rollup returned to admins.
type Summary struct {
	Users             int64 `json:"users"`
	Chats             int64 `json:"chats"`
	AssistantMessages int64 `json:"assistantMessages"`
	ActiveGuests      int64 `json:"activeGuests"`
	PromptTokens      int64 `json:"promptTokens"`
	CompletionTokens  int64 `json:"completionTokens"`
	TotalTokens       int64 `json:"totalTokens"`
}

// AnalyticsService aggregates persisted usage.
type AnalyticsService struct {
	// DB is the GORM handle used for queries.
	DB *gorm.DB
	// Settings gates the feature via featureToggles.analytics.
	Settings *SettingsService
}

// Summarize builds the rollup. Returns ErrFeatureDisabled when the
// analytics toggle is off.
func (s *AnalyticsService) Summarize(ctx context.Context) (*Summary, error) {
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.FeatureToggles.Analytics {
		return nil, ErrFeatureDisabled
	}

	users, err := repo.CountUsers(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	chats, err := repo.CountAllChats(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	guests, err := repo.CountGuestUsage(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	usage, err := repo.AssistantUsageTotals(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Users:             users,
		Chats:             chats,
		AssistantMessages: usage.Messages,
		ActiveGuests:      guests,
		PromptTokens:      usage.PromptTokens,
		CompletionTokens:  usage.CompletionTokens,
		TotalTokens:       usage.TotalTokens,
	}, nil
}
