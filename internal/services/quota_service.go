// Package services – GuestQuotaService
//
// This file implements the quota gate for anonymous traffic. Every guest
// message passes CheckAndConsume exactly once; a denial mutates nothing and
// tells the handler to answer 401 with the login-required code. Admission
// rides on a single conditional UPDATE in the repo layer, so concurrent
// requests cannot overshoot the ceiling.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/adiva-ai/chat-backend/internal/domain"
	"github.com/adiva-ai/chat-backend/internal/repo"
)

// QuotaDecision is the outcome of one gate pass.
type QuotaDecision struct {
	Allowed  bool
	Usage    *domain.GuestUsage // post-decision state
	MaxChats int
}

// GuestQuotaService owns the guest usage ledger.
type GuestQuotaService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Window is how long a guest row lives past its latest sighting.
	Window time.Duration
	// DefaultMaxChats applies when the admin policy carries no ceiling.
	DefaultMaxChats int
}

// CheckAndConsume records the guest sighting and attempts to take one quota
// slot under maxChats (falling back to DefaultMaxChats when <= 0). The
// returned usage reflects the state after the decision.
func (s *GuestQuotaService) CheckAndConsume(ctx context.Context, guestID string, maxChats int) (QuotaDecision, error) {
	tr := otel.Tracer("services/GuestQuotaService")
	ctx, span := tr.Start(ctx, "CheckAndConsume",
		trace.WithAttributes(attribute.String("guest.id", guestID)),
	)
	defer span.End()

	if maxChats <= 0 {
		maxChats = s.DefaultMaxChats
	}

	if _, err := repo.GetOrCreateGuestUsage(ctx, s.DB, guestID, s.Window); err != nil {
		return QuotaDecision{}, err
	}

	admitted, err := repo.ConsumeGuestQuota(ctx, s.DB, guestID, maxChats)
	if err != nil {
		return QuotaDecision{}, err
	}
	usage, err := repo.GetGuestUsage(ctx, s.DB, guestID)
	if err != nil {
		return QuotaDecision{}, err
	}
	span.SetAttributes(
		attribute.Bool("quota.allowed", admitted),
		attribute.Int("quota.count", usage.ChatCount),
	)
	return QuotaDecision{Allowed: admitted, Usage: usage, MaxChats: maxChats}, nil
}

// Peek returns the current usage without consuming a slot, creating the row
// if the guest is new.
func (s *GuestQuotaService) Peek(ctx context.Context, guestID string) (*domain.GuestUsage, error) {
	return repo.GetOrCreateGuestUsage(ctx, s.DB, guestID, s.Window)
}

// RunSweeper deletes expired guest rows every interval until ctx is done.
// Intended to run as a background goroutine from main.
func (s *GuestQuotaService) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.DeleteExpiredGuestUsage(ctx, s.DB, time.Now())
			if err != nil {
				log.Warn().Err(err).Msg("guest usage sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("purged", n).Msg("guest usage sweep")
			}
		}
	}
}
