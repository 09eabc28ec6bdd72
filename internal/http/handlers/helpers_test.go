package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/repo"
	"github.com/tbourn/vibe-check/internal/scheduler"
	"github.com/tbourn/vibe-check/internal/services"
	"github.com/tbourn/vibe-check/internal/slackapi"
	"github.com/tbourn/vibe-check/internal/slackapi/slackapitest"
	"github.com/tbourn/vibe-check/internal/tokenstore"
)

const (
	testTeam  = "T00000001"
	testAdmin = "UADMIN0001"
)

type staticJobs []scheduler.Job

func (s staticJobs) Jobs() []scheduler.Job { return s }

type testEnv struct {
	db        *gorm.DB
	fake      *slackapitest.Fake
	ws        *services.WorkspaceService
	clients   *services.ClientService
	prompts   *services.PromptService
	responses *services.ResponseService
	reports   *services.ReportService
	jobs      staticJobs
	h         *Handlers
	r         *gin.Engine
	workspace *domain.Workspace
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newEnv wires real services over sqlite and the Slack fake, installs one
// workspace administered by testAdmin and mounts every handler on a bare
// gin engine.
func newEnv(t *testing.T, oauth OAuthConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := tokenstore.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	cipher, err := tokenstore.New(key)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}

	e := &testEnv{db: newTestDB(t), fake: slackapitest.New()}
	e.ws = &services.WorkspaceService{
		DB:     e.db,
		Cipher: cipher,
		Slack:  func(string) slackapi.API { return e.fake },
		Retry:  &slackapi.Retrier{MaxRetries: 0, Logger: zerolog.Nop()},
	}
	e.clients = &services.ClientService{DB: e.db}
	e.prompts = &services.PromptService{DB: e.db, Workspaces: e.ws}
	e.responses = &services.ResponseService{DB: e.db, Workspaces: e.ws}
	e.reports = &services.ReportService{DB: e.db}
	e.jobs = staticJobs{}

	e.workspace, err = e.ws.Install(context.Background(), services.Installation{
		TeamID: testTeam, TeamName: "Acme", BotToken: "xoxb-test", InstallerID: testAdmin,
	})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	e.mount(oauth)
	return e
}

func (e *testEnv) mount(oauth OAuthConfig) {
	e.h = New(Deps{
		Workspaces: e.ws,
		Clients:    e.clients,
		Prompts:    e.prompts,
		Responses:  e.responses,
		Reports:    e.reports,
		Jobs:       e.jobs,
		OAuth:      oauth,
		BasePath:   "/api/v1",
	})

	r := gin.New()
	r.SetHTMLTemplate(MustTemplates())
	r.GET("/", e.h.Home)
	r.GET("/health", e.h.Health)
	r.POST("/slack/events", e.h.SlackEvents)
	r.POST("/slack/commands", e.h.SlackCommands)
	r.POST("/slack/interactions", e.h.SlackInteractions)
	r.GET("/slack/install", e.h.SlackInstall)
	r.GET("/slack/oauth_redirect", e.h.SlackOAuthRedirect)
	r.GET("/dashboard", e.h.Dashboard)
	r.GET("/dashboard/jobs", e.h.DashboardJobs)
	r.GET("/dashboard/clients/:id", e.h.DashboardClient)
	r.POST("/dashboard/clients/:id/send-standup", e.h.DashboardSend(domain.PromptStandup))
	r.POST("/dashboard/clients/:id/send-feedback", e.h.DashboardSend(domain.PromptFeedback))
	api := r.Group("/api/v1")
	api.GET("/clients", e.h.ListClients)
	api.GET("/clients/:id", e.h.GetClient)
	api.GET("/jobs", e.h.ListJobs)
	api.GET("/workspaces", e.h.ListWorkspaces)
	e.r = r
}

func (e *testEnv) addClient(t *testing.T, user, name string) *domain.Client {
	t.Helper()
	c, err := e.clients.Add(context.Background(), services.NewClient{
		WorkspaceID: e.workspace.ID, SlackUserID: user, DisplayName: name, Timezone: "UTC",
		ScheduleType: domain.ScheduleDaily, ScheduleTime: "09:00", EnableFeedback: true,
	})
	if err != nil {
		t.Fatalf("add client: %v", err)
	}
	return c
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *testEnv) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func commandForm(cmd, user string) url.Values {
	return url.Values{
		"command":     {cmd},
		"team_id":     {testTeam},
		"team_domain": {"acme"},
		"user_id":     {user},
		"channel_id":  {"C0001"},
		"trigger_id":  {"trigger-1"},
		"text":        {""},
	}
}

func payloadForm(t *testing.T, payload map[string]any) url.Values {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return url.Values{"payload": {string(b)}}
}

// blockActions builds a block_actions payload for one button press on the
// prompt DM at ts with the given input state.
func blockActions(user, actionID, value, ts string, state map[string]map[string]any) map[string]any {
	return map[string]any{
		"type":      "block_actions",
		"team":      map[string]any{"id": testTeam},
		"user":      map[string]any{"id": user},
		"container": map[string]any{"type": "message", "channel_id": "D0001", "message_ts": ts},
		"actions": []map[string]any{{
			"action_id": actionID,
			"block_id":  "actions",
			"type":      "button",
			"value":     value,
		}},
		"state": map[string]any{"values": state},
	}
}

// viewSubmission builds a view_submission payload for modal callbackID.
func viewSubmission(user, callbackID string, values map[string]map[string]any) map[string]any {
	return map[string]any{
		"type": "view_submission",
		"team": map[string]any{"id": testTeam},
		"user": map[string]any{"id": user},
		"view": map[string]any{
			"id":          "V0001",
			"callback_id": callbackID,
			"state":       map[string]any{"values": values},
		},
	}
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
}

func today() string { return time.Now().UTC().Format(time.DateOnly) }
