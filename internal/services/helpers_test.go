package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/repo"
	"github.com/tbourn/vibe-check/internal/slackapi"
	"github.com/tbourn/vibe-check/internal/slackapi/slackapitest"
	"github.com/tbourn/vibe-check/internal/tokenstore"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type env struct {
	db    *gorm.DB
	fake  *slackapitest.Fake
	ws    *WorkspaceService
	token string // bot token the fake is reached with
}

func newEnv(t *testing.T) *env {
	t.Helper()
	key, err := tokenstore.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	cipher, err := tokenstore.New(key)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	e := &env{db: newTestDB(t), fake: slackapitest.New()}
	e.ws = &WorkspaceService{
		DB:     e.db,
		Cipher: cipher,
		Slack: func(token string) slackapi.API {
			e.token = token
			return e.fake
		},
		Retry: &slackapi.Retrier{MaxRetries: 0, Logger: zerolog.Nop()},
	}
	return e
}

func (e *env) workspace(t *testing.T, teamID string) *domain.Workspace {
	t.Helper()
	ws, err := e.ws.Install(context.Background(), Installation{
		TeamID: teamID, TeamName: "Acme", BotToken: "xoxb-" + teamID, InstallerID: "UADMIN0001",
	})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	return ws
}

func (e *env) client(t *testing.T, wsID uint, user, tz string) *domain.Client {
	t.Helper()
	cs := &ClientService{DB: e.db}
	c, err := cs.Add(context.Background(), NewClient{
		WorkspaceID: wsID, SlackUserID: user, DisplayName: "Client " + user, Timezone: tz,
		ScheduleType: domain.ScheduleDaily, ScheduleTime: "09:00", EnableFeedback: true,
	})
	if err != nil {
		t.Fatalf("add client: %v", err)
	}
	return c
}

func fixedClock(s string) func() time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return ts }
}
