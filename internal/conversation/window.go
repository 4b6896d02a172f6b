// Package conversation assembles the message windows sent upstream and holds
// guest conversation history in a bounded in-memory store.
package conversation

import "github.com/adiva-ai/chat-backend/internal/provider"

// HistoryLimit is the number of prior turns included in a window. With the
// optional system turn and the new user turn the window never exceeds
// HistoryLimit+2 entries.
const HistoryLimit = 10

// BuildMessages assembles the upstream window: optional system turn first,
// then the most recent HistoryLimit history turns in their original
// chronological order, then the new user turn. History is never reordered
// or deduplicated; only the oldest turns are dropped.
func BuildMessages(systemPrompt string, history []provider.Message, userContent string, image *provider.ImageData) []provider.Message {
	out := make([]provider.Message, 0, HistoryLimit+2)
	if systemPrompt != "" {
		out = append(out, provider.Message{Role: provider.RoleSystem, Content: systemPrompt})
	}
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	out = append(out, history...)
	out = append(out, provider.Message{
		Role:    provider.RoleUser,
		Content: userContent,
		Image:   image,
	})
	return out
}
