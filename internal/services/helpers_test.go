package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/adiva-ai/chat-backend/internal/conversation"
	"github.com/adiva-ai/chat-backend/internal/provider"
	"github.com/adiva-ai/chat-backend/internal/repo"
)

// newTestDB opens a throwaway SQLite database with the schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// fakeProvider is a canned provider.Client for service tests.
type fakeProvider struct {
	reply    string
	usage    provider.Usage
	err      error
	lastReq  provider.Request
	requests int
}

func (f *fakeProvider) Complete(ctx context.Context, req provider.Request) (*provider.Result, error) {
	f.lastReq = req
	f.requests++
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Result{Text: f.reply, Model: req.Model, Usage: f.usage}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req provider.Request, emit func(provider.Chunk) error) error {
	f.lastReq = req
	f.requests++
	if f.err != nil {
		return f.err
	}
	if f.reply != "" {
		if err := emit(provider.Chunk{Text: f.reply}); err != nil {
			return err
		}
	}
	u := f.usage
	return emit(provider.Chunk{Done: true, Usage: &u})
}

// newChatService wires a ChatService over a temp DB and a fake provider.
func newChatService(t *testing.T, fp *fakeProvider) (*ChatService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	store, err := conversation.NewStore(64, conversation.HistoryLimit)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return &ChatService{
		DB:       db,
		Provider: fp,
		Guests:   store,
		Settings: NewSettingsService(db, time.Minute),
	}, db
}
