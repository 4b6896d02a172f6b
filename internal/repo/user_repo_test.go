package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adiva-ai/chat-backend/internal/domain"
)

func TestCreateUser_NormalizesEmailAndRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "  Alice@Example.COM ", "hash", "Alice", domain.RoleUser)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q", u.Email)
	}

	if _, err := CreateUser(ctx, db, "alice@example.com", "hash2", "Imposter", domain.RoleUser); err == nil {
		t.Fatal("duplicate email should fail the unique index")
	}

	got, err := GetUserByEmail(ctx, db, "ALICE@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("lookup returned wrong user")
	}

	if _, err := GetUserByEmail(ctx, db, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing user should be ErrNotFound, got %v", err)
	}
}

func TestLoginLockout(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u, err := CreateUser(ctx, db, "bob@example.com", "hash", "Bob", domain.RoleUser)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const maxAttempts = 5
	for i := 1; i < maxAttempts; i++ {
		n, err := RecordLoginFailure(ctx, db, u.ID, maxAttempts, 2*time.Hour)
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
		if n != i {
			t.Errorf("attempt count = %d, want %d", n, i)
		}
	}

	got, _ := GetUserByID(ctx, db, u.ID)
	if got.Locked(time.Now()) {
		t.Error("account should not lock before the threshold")
	}

	if _, err := RecordLoginFailure(ctx, db, u.ID, maxAttempts, 2*time.Hour); err != nil {
		t.Fatalf("final failure: %v", err)
	}
	got, _ = GetUserByID(ctx, db, u.ID)
	if !got.Locked(time.Now()) {
		t.Error("account should lock at the threshold")
	}

	if err := RecordLoginSuccess(ctx, db, u.ID); err != nil {
		t.Fatalf("success: %v", err)
	}
	got, _ = GetUserByID(ctx, db, u.ID)
	if got.Locked(time.Now()) || got.LoginAttempts != 0 {
		t.Errorf("success should clear lockout: %+v", got)
	}
	if got.LastLoginAt == nil {
		t.Error("LastLoginAt should be stamped")
	}
}

func TestListUsersPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if _, err := CreateUser(ctx, db, e, "hash", "User", domain.RoleUser); err != nil {
			t.Fatalf("create %s: %v", e, err)
		}
	}

	total, err := CountUsers(ctx, db)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 {
		t.Errorf("count = %d", total)
	}

	page, err := ListUsersPage(ctx, db, 0, 2)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("page len = %d", len(page))
	}
}

func TestAssistantUsageTotals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c, _ := CreateChat(ctx, db, "user-1", "chat", "")
	CreateMessage(ctx, db, c.ID, "user", "q", "", Usage{})
	CreateMessage(ctx, db, c.ID, "assistant", "a1", "gpt-5-nano", Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	CreateMessage(ctx, db, c.ID, "assistant", "a2", "gpt-5-nano", Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})

	totals, err := AssistantUsageTotals(ctx, db)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Messages != 2 || totals.TotalTokens != 33 || totals.PromptTokens != 11 || totals.CompletionTokens != 22 {
		t.Errorf("totals = %+v", totals)
	}
}
