// Package services – UserSettingsService
//
// Per-user settings documents: lazy defaults, partial updates, and reset.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/adiva-ai/chat-backend/internal/domain"
	"github.com/adiva-ai/chat-backend/internal/repo"
)

// UserSettingsPatch is a partial update of a user's settings document.
// Nil fields leave the current value untouched.
type UserSettingsPatch struct {
	Theme            *string  `json:"theme"`
	Language         *string  `json:"language"`
	DefaultModel     *string  `json:"defaultModel"`
	DefaultMaxTokens *int     `json:"defaultMaxTokens"`
	Temperature      *float64 `json:"temperature"`
}

// UserSettingsService owns per-user settings documents.
type UserSettingsService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// Get returns the user's settings, installing defaults on first read.
func (s *UserSettingsService) Get(ctx context.Context, userID string) (domain.UserSettingsDoc, error) {
	row, err := repo.GetOrCreateUserSettings(ctx, s.DB, userID)
	if err != nil {
		return domain.UserSettingsDoc{}, err
	}
	return row.Settings, nil
}

// Update overlays the patch onto the stored document and persists it.
func (s *UserSettingsService) Update(ctx context.Context, userID string, patch UserSettingsPatch) (domain.UserSettingsDoc, error) {
	row, err := repo.GetOrCreateUserSettings(ctx, s.DB, userID)
	if err != nil {
		return domain.UserSettingsDoc{}, err
	}
	doc := row.Settings
	if patch.Theme != nil {
		doc.Preferences.Theme = *patch.Theme
	}
	if patch.Language != nil {
		doc.Preferences.Language = *patch.Language
	}
	if patch.DefaultModel != nil {
		doc.AISettings.DefaultModel = *patch.DefaultModel
	}
	if patch.DefaultMaxTokens != nil {
		if *patch.DefaultMaxTokens < 1 || *patch.DefaultMaxTokens > maxTokensCeiling {
			return domain.UserSettingsDoc{}, ErrInvalidSettings
		}
		doc.AISettings.DefaultMaxTokens = *patch.DefaultMaxTokens
	}
	if patch.Temperature != nil {
		if *patch.Temperature < 0 || *patch.Temperature > 2 {
			return domain.UserSettingsDoc{}, ErrInvalidSettings
		}
		doc.AISettings.Temperature = *patch.Temperature
	}
	if err := repo.SaveUserSettings(ctx, s.DB, userID, doc); err != nil {
		return domain.UserSettingsDoc{}, err
	}
	return doc, nil
}

// Reset restores the defaults for the user.
func (s *UserSettingsService) Reset(ctx context.Context, userID string) (domain.UserSettingsDoc, error) {
	doc := domain.DefaultUserSettings()
	if err := repo.SaveUserSettings(ctx, s.DB, userID, doc); err != nil {
		return domain.UserSettingsDoc{}, err
	}
	return doc, nil
}
