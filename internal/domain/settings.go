package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SettingsKeyGlobal is the primary key of the single AdminSettings row.
const SettingsKeyGlobal = "global"

// RateLimits declares the advertised per-client request budget. It is
// surfaced to clients and dashboards; enforcement happens at the edge
// rate limiter, not here.
type RateLimits struct {
	RequestsPerMinute int `json:"requestsPerMinute"`
	TokensPerMinute   int `json:"tokensPerMinute"`
}

// FeatureToggles switches optional product features on and off.
type FeatureToggles struct {
	ImageUpload bool `json:"imageUpload"`
	Analytics   bool `json:"analytics"`
}

// GuestLimits bounds anonymous usage.
type GuestLimits struct {
	MaxChats int `json:"maxChats"`
}

// SettingsDoc is the JSON document stored in the AdminSettings row. It is
// the single source of truth for model policy and guest quotas.
type SettingsDoc struct {
	DefaultModel         string         `json:"defaultModel"`
	AllowedModels        []string       `json:"allowedModels"`
	SystemPromptTemplate string         `json:"systemPromptTemplate"`
	MaxTokens            int            `json:"maxTokens"`
	RateLimits           RateLimits     `json:"rateLimits"`
	FeatureToggles       FeatureToggles `json:"featureToggles"`
	GuestLimits          GuestLimits    `json:"guestLimits"`
}

// DefaultSettings returns the document installed when no AdminSettings row
// exists yet.
func DefaultSettings() SettingsDoc {
	return SettingsDoc{
		DefaultModel:         "gpt-5-nano",
		AllowedModels:        []string{"gpt-5-nano", "claude-sonnet-4-20250514"},
		SystemPromptTemplate: "",
		MaxTokens:            2000,
		RateLimits:           RateLimits{RequestsPerMinute: 60, TokensPerMinute: 60000},
		FeatureToggles:       FeatureToggles{ImageUpload: true, Analytics: true},
		GuestLimits:          GuestLimits{MaxChats: 5},
	}
}

// ModelAllowed reports whether the model id appears in AllowedModels.
func (s SettingsDoc) ModelAllowed(model string) bool {
	for _, m := range s.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// Value serializes the document to JSON for storage in a text column.
func (s SettingsDoc) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes the document from its stored JSON form.
func (s *SettingsDoc) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = SettingsDoc{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), s)
	case []byte:
		return json.Unmarshal(v, s)
	default:
		return errors.New("settings: unsupported column type")
	}
}

// AdminSettings is the singleton policy row (key "global"). It is created
// lazily on first read and mutated only through the admin update path.
type AdminSettings struct {
	Key       string      `json:"key"        gorm:"type:varchar(32);primaryKey"`
	Settings  SettingsDoc `json:"settings"   gorm:"type:text;not null"`
	UpdatedBy string      `json:"updated_by" gorm:"type:varchar(255)"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// TableName returns the database table name for AdminSettings.
func (AdminSettings) TableName() string { return "admin_settings" }

// Preferences holds per-user UI preferences.
type Preferences struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

// AISettings holds per-user generation defaults. DefaultMaxTokens is capped
// by the global ceiling when requests are resolved.
type AISettings struct {
	DefaultModel     string  `json:"defaultModel"`
	DefaultMaxTokens int     `json:"defaultMaxTokens"`
	Temperature      float64 `json:"temperature"`
}

// UserSettingsDoc is the JSON document stored per user.
type UserSettingsDoc struct {
	Preferences Preferences `json:"preferences"`
	AISettings  AISettings  `json:"aiSettings"`
}

// DefaultUserSettings returns the document used until a user customizes
// their settings.
func DefaultUserSettings() UserSettingsDoc {
	return UserSettingsDoc{
		Preferences: Preferences{Theme: "system", Language: "en"},
		AISettings:  AISettings{DefaultModel: "", DefaultMaxTokens: 1000, Temperature: 0.7},
	}
}

// Value serializes the document to JSON for storage in a text column.
func (s UserSettingsDoc) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes the document from its stored JSON form.
func (s *UserSettingsDoc) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = UserSettingsDoc{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), s)
	case []byte:
		return json.Unmarshal(v, s)
	default:
		return errors.New("settings: unsupported column type")
	}
}

// UserSettings stores one settings document per registered user.
type UserSettings struct {
	UserID    string          `json:"user_id"  gorm:"type:char(36);primaryKey"`
	Settings  UserSettingsDoc `json:"settings" gorm:"type:text;not null"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for UserSettings.
func (UserSettings) TableName() string { return "user_settings" }
