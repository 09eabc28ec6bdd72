package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/vibe-check/internal/domain"
)

func TestPromptSend_AcquireIsExclusive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ws := seedWorkspace(t, db, "T01234567")
	c := seedClient(t, db, ws.ID, "U01234567", "Ana", true)

	rec, err := AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptStandup, "2025-01-06", time.Now(), 24*time.Hour)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptStandup, "2025-01-06", time.Now(), 24*time.Hour); err != ErrDuplicate {
		t.Fatalf("second acquire should be ErrDuplicate, got %v", err)
	}
	// Different kind or period is a different slot.
	if _, err := AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptFeedback, "2025-01-06", time.Now(), 24*time.Hour); err != nil {
		t.Fatalf("feedback acquire: %v", err)
	}
	if _, err := AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptStandup, "2025-01-07", time.Now(), 24*time.Hour); err != nil {
		t.Fatalf("next-day acquire: %v", err)
	}

	if err := ReleasePromptSend(ctx, db, rec.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptStandup, "2025-01-06", time.Now(), 24*time.Hour); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestPromptSend_ReminderCandidates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ws := seedWorkspace(t, db, "T01234567")
	c := seedClient(t, db, ws.ID, "U01234567", "Ana", true)
	now := time.Now().UTC()

	sent, _ := AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptStandup, "2025-01-06", time.Now(), 24*time.Hour)
	if err := MarkPromptSent(ctx, db, sent.ID, "D01234567", "1700000000.000100", now.Add(-3*time.Hour)); err != nil {
		t.Fatalf("MarkPromptSent: %v", err)
	}
	// In flight: claimed but not delivered.
	_, _ = AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptFeedback, "2025-01-10", time.Now(), 24*time.Hour)
	// Too recent.
	recent, _ := AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptStandup, "2025-01-07", time.Now(), 24*time.Hour)
	_ = MarkPromptSent(ctx, db, recent.ID, "D01234567", "1700000001.000100", now.Add(-10*time.Minute))

	got, err := ListReminderCandidates(ctx, db, now.Add(-2*time.Hour), now, 50)
	if err != nil {
		t.Fatalf("ListReminderCandidates: %v", err)
	}
	if len(got) != 1 || got[0].ID != sent.ID || got[0].Client.SlackUserID != "U01234567" {
		t.Fatalf("unexpected candidates: %+v", got)
	}

	if err := MarkReminded(ctx, db, sent.ID, now); err != nil {
		t.Fatalf("MarkReminded: %v", err)
	}
	got, _ = ListReminderCandidates(ctx, db, now.Add(-2*time.Hour), now, 50)
	if len(got) != 0 {
		t.Fatalf("reminded prompt listed again: %+v", got)
	}
}

func TestPromptSend_ReminderCandidatesSkipInactive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	live := seedWorkspace(t, db, "T0LIVE001")
	gone := seedWorkspace(t, db, "T0GONE001")
	a := seedClient(t, db, live.ID, "U0LIVE001", "Ana", true)
	b := seedClient(t, db, live.ID, "U0LIVE002", "Bea", true)
	g := seedClient(t, db, gone.ID, "U0GONE001", "Gus", true)
	now := time.Now().UTC()

	deliver := func(wsID, clientID uint, period string, at time.Time) *domain.PromptSend {
		t.Helper()
		p, err := AcquirePromptSend(ctx, db, wsID, clientID, domain.PromptStandup, period, now, 24*time.Hour)
		if err != nil {
			t.Fatalf("acquire %s: %v", period, err)
		}
		if err := MarkPromptSent(ctx, db, p.ID, "D0000001", period, at); err != nil {
			t.Fatalf("MarkPromptSent: %v", err)
		}
		return p
	}
	// Older rows of inactive owners must not crowd out the active one.
	deliver(gone.ID, g.ID, "2025-01-01", now.Add(-5*time.Hour))
	deliver(live.ID, b.ID, "2025-01-01", now.Add(-5*time.Hour))
	want := deliver(live.ID, a.ID, "2025-01-01", now.Add(-3*time.Hour))

	if err := SetWorkspaceActive(ctx, db, gone.TeamID, false); err != nil {
		t.Fatalf("deactivate workspace: %v", err)
	}
	if err := db.Model(&domain.Client{}).Where("id = ?", b.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate client: %v", err)
	}

	got, err := ListReminderCandidates(ctx, db, now.Add(-2*time.Hour), now, 1)
	if err != nil {
		t.Fatalf("ListReminderCandidates: %v", err)
	}
	if len(got) != 1 || got[0].ID != want.ID {
		t.Fatalf("candidates = %+v; want prompt %d", got, want.ID)
	}
}

func TestPromptSend_PurgeExpired(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ws := seedWorkspace(t, db, "T01234567")
	c := seedClient(t, db, ws.ID, "U01234567", "Ana", true)

	_, _ = AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptStandup, "2025-01-06", time.Now(), time.Millisecond)
	_, _ = AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptStandup, "2025-01-07", time.Now(), time.Hour)

	n, err := PurgeExpiredPromptSends(ctx, db, time.Now().UTC().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredPromptSends = %d, %v", n, err)
	}
	if _, err := GetPromptSend(ctx, db, c.ID, domain.PromptStandup, "2025-01-07"); err != nil {
		t.Fatalf("unexpired claim should remain: %v", err)
	}
}
