package conversation

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adiva-ai/chat-backend/internal/provider"
)

// Info summarizes one stored conversation for listing endpoints.
type Info struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"messageCount"`
	Preview      string    `json:"preview"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type entry struct {
	turns     []provider.Message
	createdAt time.Time
	updatedAt time.Time
}

// Store keeps guest conversation history in memory, bounded two ways: an LRU
// over conversations (least recently used evicted at capacity) and a per
// conversation turn cap (oldest turns dropped first). It is process-local;
// multi-instance deployments need sticky routing in front of it.
//
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	cache    *lru.Cache[string, *entry]
	turnsCap int
}

// NewStore builds a store holding at most maxConversations conversations of
// at most turnsPerConversation turns each.
func NewStore(maxConversations, turnsPerConversation int) (*Store, error) {
	c, err := lru.New[string, *entry](maxConversations)
	if err != nil {
		return nil, err
	}
	return &Store{cache: c, turnsCap: turnsPerConversation}, nil
}

// Append records one turn under the conversation id, creating the
// conversation if needed and evicting the oldest turn beyond the cap.
func (s *Store) Append(convID, role, content string) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Get(convID)
	if !ok {
		e = &entry{createdAt: now}
		s.cache.Add(convID, e)
	}
	e.turns = append(e.turns, provider.Message{Role: role, Content: content})
	if len(e.turns) > s.turnsCap {
		e.turns = e.turns[len(e.turns)-s.turnsCap:]
	}
	e.updatedAt = now
}

// History returns a copy of the stored turns for the conversation, oldest
// first. A missing conversation yields a nil slice and ok=false.
func (s *Store) History(convID string) ([]provider.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Get(convID)
	if !ok {
		return nil, false
	}
	out := make([]provider.Message, len(e.turns))
	copy(out, e.turns)
	return out, true
}

// Delete drops the conversation. It reports whether anything was removed.
func (s *Store) Delete(convID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Remove(convID)
}

// List returns summaries for every stored conversation, most recently
// updated first.
func (s *Store) List() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.cache.Keys()
	out := make([]Info, 0, len(keys))
	for _, k := range keys {
		e, ok := s.cache.Peek(k)
		if !ok {
			continue
		}
		info := Info{
			ID:           k,
			MessageCount: len(e.turns),
			CreatedAt:    e.createdAt,
			UpdatedAt:    e.updatedAt,
		}
		if len(e.turns) > 0 {
			info.Preview = truncate(e.turns[0].Content, 80)
		}
		out = append(out, info)
	}
	// Keys() is LRU order (oldest first); reverse for recency.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of stored conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
