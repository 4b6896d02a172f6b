// Package domain defines the persistence models for users, chats, messages,
// guest usage, and application settings. These types are mapped with GORM
// and form the core data layer of the chat backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// RoleUser and RoleAdmin are the recognized account roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account. Guests never get a row here; they
// are tracked in GuestUsage instead.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: login identifier, stored lowercase, unique.
//   - PasswordHash: bcrypt hash of the password. Never serialized.
//   - Name: display name.
//   - Role: "user" or "admin" (enforced by DB constraint).
//   - LoginAttempts / LockedUntil: failed-login lockout bookkeeping.
//   - LastLoginAt: set on each successful login.
type User struct {
	ID            string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Email         string         `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash  string         `json:"-"          gorm:"type:varchar(255);not null"`
	Name          string         `json:"name"       gorm:"type:varchar(100);not null"`
	Role          string         `json:"role"       gorm:"type:varchar(16);not null;default:'user';check:role IN ('user','admin')"`
	LoginAttempts int            `json:"-"          gorm:"not null;default:0"`
	LockedUntil   *time.Time     `json:"-"`
	LastLoginAt   *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Locked reports whether the account is currently locked out.
func (u User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Chat represents a conversation owned by a registered user. Guest
// conversations are held in memory only and never reach this table.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the chat owner; indexed for efficient retrieval.
//   - Title: human-readable chat title (auto-generated from the first prompt).
//   - Model: model id that produced the latest assistant turn.
//   - Archived: archive flag; archived chats are hidden from the default list.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Chat struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"   gorm:"type:char(36);not null;index:idx_user_chats"`
	Title     string         `json:"title"     gorm:"type:varchar(255);not null;default:'New chat'"`
	Model     string         `json:"model"     gorm:"type:varchar(64)"`
	Archived  bool           `json:"archived"  gorm:"not null;default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message represents a single utterance within a chat, authored either by
// the "user" or the "assistant". Assistant messages carry the model id and
// the token usage reported by the upstream provider (zeros when absent).
type Message struct {
	ID               string         `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID           string         `json:"chat_id"   gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role             string         `json:"role"      gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content          string         `json:"content"   gorm:"type:text;not null"`
	Model            string         `json:"model,omitempty" gorm:"type:varchar(64)"`
	PromptTokens     int            `json:"prompt_tokens"     gorm:"not null;default:0"`
	CompletionTokens int            `json:"completion_tokens" gorm:"not null;default:0"`
	TotalTokens      int            `json:"total_tokens"      gorm:"not null;default:0"`
	CreatedAt        time.Time      `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"         gorm:"index"`

	// Chat is the parent conversation. Messages are cascade-deleted
	// if their chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// GuestUsage tracks per-visitor message quota for anonymous traffic. One row
// per guest_id cookie. Rows expire and are purged by a background sweep.
//
// Fields:
//   - GuestID: the cookie value, primary key.
//   - ChatCount: messages consumed so far; incremented by the quota gate
//     with a conditional UPDATE so the ceiling cannot be overshot.
//   - LastSeenAt: refreshed on every lookup.
//   - ExpiresAt: extended forward only; the sweep deletes rows past it.
type GuestUsage struct {
	GuestID    string    `json:"guest_id"     gorm:"type:char(36);primaryKey"`
	ChatCount  int       `json:"chat_count"   gorm:"not null;default:0"`
	LastSeenAt time.Time `json:"last_seen_at" gorm:"not null"`
	ExpiresAt  time.Time `json:"expires_at"   gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for GuestUsage.
func (GuestUsage) TableName() string { return "guest_usage" }
