package repo

import (
	"context"
	"testing"

	"github.com/adiva-ai/chat-backend/internal/domain"
)

func TestGetOrCreateAdminSettings_InstallsDefaults(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	row, err := GetOrCreateAdminSettings(ctx, db)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if row.Key != domain.SettingsKeyGlobal {
		t.Errorf("key = %q", row.Key)
	}
	if row.Settings.DefaultModel != "gpt-5-nano" || row.Settings.GuestLimits.MaxChats != 5 {
		t.Errorf("defaults not installed: %+v", row.Settings)
	}

	// Second read returns the same row, not a new one.
	again, err := GetOrCreateAdminSettings(ctx, db)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !again.CreatedAt.Equal(row.CreatedAt) {
		t.Error("second read should not recreate the row")
	}
}

func TestUpdateAdminSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := GetOrCreateAdminSettings(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	doc := domain.DefaultSettings()
	doc.MaxTokens = 4000
	doc.GuestLimits.MaxChats = 10
	if err := UpdateAdminSettings(ctx, db, doc, "admin@example.com"); err != nil {
		t.Fatalf("update: %v", err)
	}

	row, err := GetOrCreateAdminSettings(ctx, db)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if row.Settings.MaxTokens != 4000 || row.Settings.GuestLimits.MaxChats != 10 {
		t.Errorf("update not persisted: %+v", row.Settings)
	}
	if row.UpdatedBy != "admin@example.com" {
		t.Errorf("UpdatedBy = %q", row.UpdatedBy)
	}
}

func TestUserSettingsUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "sam@example.com", "hash", "Sam", domain.RoleUser)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	row, err := GetOrCreateUserSettings(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if row.Settings.AISettings.DefaultMaxTokens != 1000 {
		t.Errorf("defaults not installed: %+v", row.Settings)
	}

	doc := row.Settings
	doc.Preferences.Theme = "dark"
	doc.AISettings.DefaultMaxTokens = 1500
	if err := SaveUserSettings(ctx, db, u.ID, doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	row, err = GetOrCreateUserSettings(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if row.Settings.Preferences.Theme != "dark" || row.Settings.AISettings.DefaultMaxTokens != 1500 {
		t.Errorf("save not persisted: %+v", row.Settings)
	}

	// Reset = save defaults over the top.
	if err := SaveUserSettings(ctx, db, u.ID, domain.DefaultUserSettings()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	row, _ = GetOrCreateUserSettings(ctx, db, u.ID)
	if row.Settings.Preferences.Theme != "system" {
		t.Errorf("reset not applied: %+v", row.Settings)
	}
}
