// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the singleton
// AdminSettings row and per-user settings documents.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adiva-ai/chat-backend/internal/domain"
)

// GetOrCreateAdminSettings returns the global settings row, installing the
// defaults on first read. Racing first reads collapse onto one row via
// ON CONFLICT DO NOTHING.
func GetOrCreateAdminSettings(ctx context.Context, db *gorm.DB) (*domain.AdminSettings, error) {
	fresh := &domain.AdminSettings{
		Key:       domain.SettingsKeyGlobal,
		Settings:  domain.DefaultSettings(),
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fresh).Error
	if err != nil {
		return nil, err
	}

	var row domain.AdminSettings
	if err := db.WithContext(ctx).
		Where("key = ?", domain.SettingsKeyGlobal).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateAdminSettings replaces the stored settings document and records who
// changed it. Returns ErrNotFound if the row is missing (callers go through
// GetOrCreateAdminSettings first).
func UpdateAdminSettings(ctx context.Context, db *gorm.DB, doc domain.SettingsDoc, updatedBy string) error {
	res := db.WithContext(ctx).
		Model(&domain.AdminSettings{}).
		Where("key = ?", domain.SettingsKeyGlobal).
		Updates(map[string]any{
			"settings":   doc,
			"updated_by": updatedBy,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetOrCreateUserSettings returns the settings document for userID,
// installing the defaults on first read.
func GetOrCreateUserSettings(ctx context.Context, db *gorm.DB, userID string) (*domain.UserSettings, error) {
	fresh := &domain.UserSettings{
		UserID:    userID,
		Settings:  domain.DefaultUserSettings(),
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fresh).Error
	if err != nil {
		return nil, err
	}

	var row domain.UserSettings
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveUserSettings replaces the stored document for userID, creating the
// row if needed (upsert on the primary key).
func SaveUserSettings(ctx context.Context, db *gorm.DB, userID string, doc domain.UserSettingsDoc) error {
	row := &domain.UserSettings{
		UserID:    userID,
		Settings:  doc,
		CreatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"settings", "updated_at"}),
		}).
		Create(row).Error
}
