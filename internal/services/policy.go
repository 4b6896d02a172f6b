// Package services – policy resolution
//
// This file implements the pure merge of a generation request against the
// global admin policy and, for registered users, their personal defaults.
// The function has no hidden inputs: everything it consults arrives as an
// argument, which keeps it trivially testable and race-free.
package services

import (
	"strings"

	"github.com/adiva-ai/chat-backend/internal/domain"
)

// fallbackMaxTokens applies when the stored ceiling is unset or invalid.
const fallbackMaxTokens = 2000

// Effective is the resolved generation policy for one request.
type Effective struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
}

// ResolveEffectiveSettings merges the caller's wishes with the admin policy.
//
// Model precedence: the requested model if allowed; otherwise the user's
// default model if allowed (authed only); otherwise the global default if
// allowed; otherwise the first allowed model; otherwise the raw request is
// passed through untouched.
//
// System prompt: the global template and the caller prompt joined with one
// blank line, template first, blanks skipped.
//
// MaxTokens: registered users get min(their default, global ceiling); guests
// get the global ceiling. An explicit request is honored up to the resolved
// ceiling. A missing ceiling falls back to 2000.
func ResolveEffectiveSettings(requestedModel, requestedSystemPrompt string, requestedMaxTokens int, user *domain.UserSettingsDoc, admin domain.SettingsDoc) Effective {
	return Effective{
		Model:        resolveModel(requestedModel, user, admin),
		SystemPrompt: joinPrompts(admin.SystemPromptTemplate, requestedSystemPrompt),
		MaxTokens:    resolveMaxTokens(requestedMaxTokens, user, admin),
	}
}

func resolveModel(requested string, user *domain.UserSettingsDoc, admin domain.SettingsDoc) string {
	requested = strings.TrimSpace(requested)
	if requested != "" && admin.ModelAllowed(requested) {
		return requested
	}
	if user != nil {
		if m := strings.TrimSpace(user.AISettings.DefaultModel); m != "" && admin.ModelAllowed(m) {
			return m
		}
	}
	if admin.ModelAllowed(admin.DefaultModel) {
		return admin.DefaultModel
	}
	if len(admin.AllowedModels) > 0 {
		return admin.AllowedModels[0]
	}
	if requested != "" {
		return requested
	}
	return admin.DefaultModel
}

func joinPrompts(template, caller string) string {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(template); t != "" {
		parts = append(parts, t)
	}
	if c := strings.TrimSpace(caller); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, "\n\n")
}

func resolveMaxTokens(requested int, user *domain.UserSettingsDoc, admin domain.SettingsDoc) int {
	ceiling := admin.MaxTokens
	if ceiling <= 0 {
		ceiling = fallbackMaxTokens
	}
	resolved := ceiling
	if user != nil && user.AISettings.DefaultMaxTokens > 0 && user.AISettings.DefaultMaxTokens < resolved {
		resolved = user.AISettings.DefaultMaxTokens
	}
	if requested > 0 && requested < resolved {
		resolved = requested
	}
	return resolved
}
