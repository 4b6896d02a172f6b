// Package services – SettingsService
//
// This file implements reads and step-up-verified writes of the global
// AdminSettings document. Reads flow through a short-TTL cache (every chat
// request consults the policy); the cache is invalidated explicitly on every
// write, so a change is visible no later than the TTL and usually instantly.
package services

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/adiva-ai/chat-backend/internal/domain"
	"github.com/adiva-ai/chat-backend/internal/repo"
)

const (
	settingsCacheKey = "admin_settings"

	// confirmPhrase must be typed verbatim in the step-up confirmation.
	confirmPhrase = "CONFIRM"

	maxSystemPromptLen = 10000
	maxTokensCeiling   = 200000
	maxGuestChats      = 100
)

// SettingsPatch is a partial update of the settings document. Nil fields
// leave the current value untouched.
type SettingsPatch struct {
	DefaultModel         *string                `json:"defaultModel"`
	AllowedModels        *[]string              `json:"allowedModels"`
	SystemPromptTemplate *string                `json:"systemPromptTemplate"`
	MaxTokens            *int                   `json:"maxTokens"`
	RateLimits           *domain.RateLimits     `json:"rateLimits"`
	FeatureToggles       *domain.FeatureToggles `json:"featureToggles"`
	GuestLimits          *domain.GuestLimits    `json:"guestLimits"`
}

// SettingsService serves the global policy document.
type SettingsService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cache holds the read-side copy; nil disables caching.
	Cache *gocache.Cache
	// TTL bounds cache staleness.
	TTL time.Duration
}

// NewSettingsService constructs a SettingsService with its read cache.
func NewSettingsService(db *gorm.DB, ttl time.Duration) *SettingsService {
	return &SettingsService{
		DB:    db,
		Cache: gocache.New(ttl, 2*ttl),
		TTL:   ttl,
	}
}

// Get returns the current settings document, lazily installing defaults on
// first read. Served from cache within the TTL.
func (s *SettingsService) Get(ctx context.Context) (domain.SettingsDoc, error) {
	if s.Cache != nil {
		if v, ok := s.Cache.Get(settingsCacheKey); ok {
			return v.(domain.SettingsDoc), nil
		}
	}
	row, err := repo.GetOrCreateAdminSettings(ctx, s.DB)
	if err != nil {
		return domain.SettingsDoc{}, err
	}
	if s.Cache != nil {
		s.Cache.Set(settingsCacheKey, row.Settings, s.TTL)
	}
	return row.Settings, nil
}

// GetRow returns the full settings row including audit metadata, bypassing
// the cache. Used by the admin read endpoint.
func (s *SettingsService) GetRow(ctx context.Context) (*domain.AdminSettings, error) {
	return repo.GetOrCreateAdminSettings(ctx, s.DB)
}

// Update applies a partial settings change on behalf of admin. The caller
// must re-confirm: confirmText has to be the exact phrase and
// confirmPassword must verify against the admin's stored hash. The check is
// synchronous; nothing is written when it fails.
func (s *SettingsService) Update(ctx context.Context, admin *domain.User, patch SettingsPatch, confirmText, confirmPassword string) (domain.SettingsDoc, error) {
	tr := otel.Tracer("services/SettingsService")
	ctx, span := tr.Start(ctx, "Update")
	defer span.End()

	if confirmText != confirmPhrase {
		return domain.SettingsDoc{}, ErrBadConfirmation
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(confirmPassword)); err != nil {
		return domain.SettingsDoc{}, ErrBadConfirmation
	}

	row, err := repo.GetOrCreateAdminSettings(ctx, s.DB)
	if err != nil {
		return domain.SettingsDoc{}, err
	}

	doc := mergeSettings(row.Settings, patch)
	if err := validateSettings(doc); err != nil {
		return domain.SettingsDoc{}, err
	}

	if err := repo.UpdateAdminSettings(ctx, s.DB, doc, admin.Email); err != nil {
		return domain.SettingsDoc{}, err
	}
	if s.Cache != nil {
		s.Cache.Delete(settingsCacheKey)
	}
	return doc, nil
}

// mergeSettings overlays non-nil patch fields onto the current document.
func mergeSettings(cur domain.SettingsDoc, p SettingsPatch) domain.SettingsDoc {
	if p.DefaultModel != nil {
		cur.DefaultModel = *p.DefaultModel
	}
	if p.AllowedModels != nil {
		cur.AllowedModels = *p.AllowedModels
	}
	if p.SystemPromptTemplate != nil {
		cur.SystemPromptTemplate = *p.SystemPromptTemplate
	}
	if p.MaxTokens != nil {
		cur.MaxTokens = *p.MaxTokens
	}
	if p.RateLimits != nil {
		cur.RateLimits = *p.RateLimits
	}
	if p.FeatureToggles != nil {
		cur.FeatureToggles = *p.FeatureToggles
	}
	if p.GuestLimits != nil {
		cur.GuestLimits = *p.GuestLimits
	}
	return cur
}

func validateSettings(doc domain.SettingsDoc) error {
	if doc.MaxTokens < 1 || doc.MaxTokens > maxTokensCeiling {
		return ErrInvalidSettings
	}
	if doc.GuestLimits.MaxChats < 1 || doc.GuestLimits.MaxChats > maxGuestChats {
		return ErrInvalidSettings
	}
	if len(doc.SystemPromptTemplate) > maxSystemPromptLen {
		return ErrInvalidSettings
	}
	if len(doc.AllowedModels) == 0 {
		return ErrInvalidSettings
	}
	return nil
}
