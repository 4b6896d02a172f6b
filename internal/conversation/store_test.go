package conversation

import (
	"fmt"
	"strings"
	"testing"
)

func TestStore_AppendHistoryAndTurnCap(t *testing.T) {
	s, err := NewStore(4, 4)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	s.Append("c1", "user", "one")
	s.Append("c1", "assistant", "two")

	hist, ok := s.History("c1")
	if !ok || len(hist) != 2 {
		t.Fatalf("history = %v, ok = %v", hist, ok)
	}
	if hist[0].Content != "one" || hist[1].Content != "two" {
		t.Fatalf("order wrong: %v", hist)
	}

	// Mutating the returned slice must not touch the store.
	hist[0].Content = "tampered"
	again, _ := s.History("c1")
	if again[0].Content != "one" {
		t.Fatalf("history copy aliased the store")
	}

	// Beyond the cap the oldest turns fall off.
	for i := 3; i <= 6; i++ {
		s.Append("c1", "user", fmt.Sprintf("msg-%d", i))
	}
	capped, _ := s.History("c1")
	if len(capped) != 4 {
		t.Fatalf("capped length = %d, want 4", len(capped))
	}
	if capped[0].Content != "msg-3" || capped[3].Content != "msg-6" {
		t.Fatalf("capped window = %v", capped)
	}
}

func TestStore_LRUEviction(t *testing.T) {
	s, err := NewStore(2, 4)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	s.Append("a", "user", "a1")
	s.Append("b", "user", "b1")
	s.Append("a", "user", "a2") // refresh a
	s.Append("c", "user", "c1") // evicts b

	if _, ok := s.History("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok := s.History("a"); !ok {
		t.Fatalf("a should have survived")
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
}

func TestStore_ListOrderAndPreview(t *testing.T) {
	s, err := NewStore(4, 4)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	long := strings.Repeat("x", 200)
	s.Append("old", "user", long)
	s.Append("new", "user", "short")

	infos := s.List()
	if len(infos) != 2 {
		t.Fatalf("list = %d entries", len(infos))
	}
	if infos[0].ID != "new" {
		t.Fatalf("most recent first, got %q", infos[0].ID)
	}
	if infos[1].Preview != long[:80]+"..." {
		t.Fatalf("preview not truncated: %q", infos[1].Preview)
	}
	if infos[0].MessageCount != 1 || infos[0].CreatedAt.IsZero() || infos[0].UpdatedAt.IsZero() {
		t.Fatalf("info incomplete: %+v", infos[0])
	}
}

func TestStore_Delete(t *testing.T) {
	s, err := NewStore(2, 2)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.Append("gone", "user", "bye")

	if !s.Delete("gone") {
		t.Fatalf("delete existing = false")
	}
	if s.Delete("gone") {
		t.Fatalf("delete twice = true")
	}
	if _, ok := s.History("gone"); ok {
		t.Fatalf("deleted conversation still readable")
	}
}
