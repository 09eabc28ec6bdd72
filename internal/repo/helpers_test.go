package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/vibe-check/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedWorkspace(t *testing.T, db *gorm.DB, teamID string) *domain.Workspace {
	t.Helper()
	ws := &domain.Workspace{TeamID: teamID, TeamName: "Team " + teamID, BotToken: "enc", IsActive: true}
	if err := CreateWorkspace(context.Background(), db, ws); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return ws
}

func seedClient(t *testing.T, db *gorm.DB, wsID uint, user, name string, withStandup bool) *domain.Client {
	t.Helper()
	ctx := context.Background()
	c := &domain.Client{WorkspaceID: wsID, SlackUserID: user, DisplayName: name, Timezone: "UTC", IsActive: true}
	if err := CreateClient(ctx, db, c); err != nil {
		t.Fatalf("create client: %v", err)
	}
	if withStandup {
		cfg := &domain.StandupConfig{ClientID: c.ID, ScheduleType: domain.ScheduleDaily, ScheduleTime: "09:00"}
		if err := CreateStandupConfig(ctx, db, cfg); err != nil {
			t.Fatalf("create standup config: %v", err)
		}
	}
	return c
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}
