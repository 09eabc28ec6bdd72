package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/vibe-check/internal/domain"
)

func TestClient_CreateDuplicateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ws := seedWorkspace(t, db, "T01234567")
	c := seedClient(t, db, ws.ID, "U01234567", "Ana", true)

	dup := &domain.Client{WorkspaceID: ws.ID, SlackUserID: "U01234567", DisplayName: "Ana", Timezone: "UTC", IsActive: true}
	if err := CreateClient(ctx, db, dup); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := GetClient(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if got.StandupConfig == nil || got.StandupConfig.ScheduleTime != "09:00" {
		t.Fatalf("standup config not preloaded: %+v", got.StandupConfig)
	}
	if got.FeedbackConfig != nil {
		t.Fatalf("unexpected feedback config: %+v", got.FeedbackConfig)
	}
	if got.Workspace.TeamID != "T01234567" {
		t.Fatalf("workspace not preloaded: %+v", got.Workspace)
	}

	bySlack, err := GetClientBySlackUser(ctx, db, ws.ID, "U01234567")
	if err != nil || bySlack.ID != c.ID {
		t.Fatalf("GetClientBySlackUser = %+v, %v", bySlack, err)
	}
}

func TestClient_ListAndSchedulable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ws := seedWorkspace(t, db, "T01234567")
	off := seedWorkspace(t, db, "T07654321")
	seedClient(t, db, ws.ID, "U0000000B", "Bruno", true)
	seedClient(t, db, ws.ID, "U0000000A", "Ana", false)
	inactive := seedClient(t, db, ws.ID, "U0000000C", "Caro", true)
	db.Model(inactive).Update("is_active", false)
	seedClient(t, db, off.ID, "U0000000D", "Dan", true)
	if err := SetWorkspaceActive(ctx, db, off.TeamID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	list, err := ListClients(ctx, db, ws.ID, true)
	if err != nil || len(list) != 2 || list[0].DisplayName != "Ana" {
		t.Fatalf("ListClients(active) = %+v, %v", list, err)
	}
	all, _ := ListClients(ctx, db, ws.ID, false)
	if len(all) != 3 {
		t.Fatalf("ListClients(all) = %d", len(all))
	}
	every, err := ListClients(ctx, db, 0, false)
	if err != nil || len(every) != 4 {
		t.Fatalf("ListClients(any workspace) = %d, %v", len(every), err)
	}
	if every[0].DisplayName != "Ana" || every[3].DisplayName != "Dan" {
		t.Fatalf("ListClients(any workspace) order = %s..%s", every[0].DisplayName, every[3].DisplayName)
	}

	sched, err := ListSchedulableClients(ctx, db)
	if err != nil {
		t.Fatalf("ListSchedulableClients: %v", err)
	}
	// Clients of the deactivated workspace stay scheduled so a reinstall
	// picks them up without a restart.
	if len(sched) != 3 {
		t.Fatalf("expected 3 schedulable clients, got %d", len(sched))
	}
	for _, c := range sched {
		if !c.IsActive || c.DisplayName == "Caro" {
			t.Fatalf("unexpected schedulable client %+v", c)
		}
	}

	page, err := ListClientsPage(ctx, db, 0, 0, 10)
	if err != nil || len(page) != 4 {
		t.Fatalf("ListClientsPage = %d, %v", len(page), err)
	}
	if n, _ := CountClients(ctx, db, ws.ID); n != 3 {
		t.Fatalf("CountClients = %d", n)
	}
}

func TestClient_PauseAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ws := seedWorkspace(t, db, "T01234567")
	c := seedClient(t, db, ws.ID, "U01234567", "Ana", true)
	bare := seedClient(t, db, ws.ID, "U07654321", "Bo", false)

	if err := SetStandupPaused(ctx, db, c.ID, true); err != nil {
		t.Fatalf("SetStandupPaused: %v", err)
	}
	if err := SetStandupPaused(ctx, db, bare.ID, true); !IsNotFound(err) {
		t.Fatalf("expected ErrNotFound without config, got %v", err)
	}
	got, _ := GetClient(ctx, db, c.ID)
	if !got.StandupConfig.IsPaused {
		t.Fatalf("expected paused config")
	}

	now := time.Now().UTC()
	if err := CreateStandupResponse(ctx, db, &domain.StandupResponse{
		ClientID: c.ID, WorkspaceID: ws.ID, ScheduledDate: "2025-01-06", SubmittedAt: now,
	}); err != nil {
		t.Fatalf("seed response: %v", err)
	}
	if _, err := AcquirePromptSend(ctx, db, ws.ID, c.ID, domain.PromptStandup, "2025-01-07", time.Now(), time.Hour); err != nil {
		t.Fatalf("seed prompt send: %v", err)
	}

	if err := DeleteClient(ctx, db, c.ID); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}
	if err := DeleteClient(ctx, db, c.ID); !IsNotFound(err) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
	for _, m := range []any{&domain.StandupConfig{}, &domain.StandupResponse{}, &domain.PromptSend{}} {
		var n int64
		db.Model(m).Where("client_id = ?", c.ID).Count(&n)
		if n != 0 {
			t.Fatalf("%T rows left after delete: %d", m, n)
		}
	}
}
