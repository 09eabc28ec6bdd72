package handlers

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/scheduler"
	"github.com/tbourn/vibe-check/internal/services"
	"github.com/tbourn/vibe-check/internal/slackapi"
)

//
// Service contracts (context-aware)
//

// WorkspaceService resolves installed workspaces and their bot messengers.
type WorkspaceService interface {
	Install(ctx context.Context, in services.Installation) (*domain.Workspace, error)
	ByID(ctx context.Context, id uint) (*domain.Workspace, error)
	ByTeamID(ctx context.Context, teamID string) (*domain.Workspace, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Workspace, error)
	// Resolve finds the workspace of a Slack request, registering it in
	// single-workspace mode.
	Resolve(ctx context.Context, teamID, teamName, userID string) (*domain.Workspace, error)
	Messenger(ws *domain.Workspace) (*slackapi.Messenger, error)
	SetVibeChannel(ctx context.Context, workspaceID uint, channelID string) error
	Deactivate(ctx context.Context, teamID string) error
}

// ClientService manages clients and their schedules.
type ClientService interface {
	Add(ctx context.Context, in services.NewClient) (*domain.Client, error)
	Get(ctx context.Context, workspaceID, id uint) (*domain.Client, error)
	List(ctx context.Context, workspaceID uint, activeOnly bool) ([]domain.Client, error)
	Page(ctx context.Context, workspaceID uint, offset, limit int) ([]domain.Client, int64, error)
	Pause(ctx context.Context, workspaceID, id uint) (*domain.Client, error)
	Resume(ctx context.Context, workspaceID, id uint) (*domain.Client, error)
	Remove(ctx context.Context, workspaceID, id uint) (*domain.Client, error)
}

// PromptService sends prompts outside the schedule.
type PromptService interface {
	ForceStandup(ctx context.Context, clientID uint) (services.SendOutcome, error)
	ForceFeedback(ctx context.Context, clientID uint) (services.SendOutcome, error)
	SendTest(ctx context.Context, ws *domain.Workspace, userID, kind string) error
}

// ResponseService records prompt answers.
type ResponseService interface {
	SaveStandup(ctx context.Context, sub services.StandupSubmission) (*domain.StandupResponse, error)
	SaveFeedback(ctx context.Context, sub services.FeedbackSubmission) (*domain.FeedbackResponse, error)
}

// ReportService answers dashboard queries.
type ReportService interface {
	Overview(ctx context.Context, workspaceID uint) (*services.Overview, error)
	History(ctx context.Context, workspaceID, clientID uint, offset, limit int) (*services.ClientHistory, error)
}

// JobLister exposes the scheduler's table.
type JobLister interface {
	Jobs() []scheduler.Job
}

// OAuthExchanger trades an authorization code for tokens.
type OAuthExchanger func(ctx context.Context, code, redirectURI string) (*slack.OAuthV2Response, error)

// OAuthConfig configures the install flow. An empty ClientID disables it.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	// RedirectURL overrides the callback URL derived from the request.
	RedirectURL string
	// StateSecret signs the state parameter. Defaults to ClientSecret.
	StateSecret []byte
	// Exchange defaults to slack.GetOAuthV2ResponseContext.
	Exchange OAuthExchanger
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers.
type Deps struct {
	Workspaces WorkspaceService
	Clients    ClientService
	Prompts    PromptService
	Responses  ResponseService
	Reports    ReportService
	Jobs       JobLister
	OAuth      OAuthConfig
	// BasePath is the JSON API prefix, used in dashboard links.
	BasePath string
}

// Handlers groups the Slack webhooks, OAuth, dashboard and API endpoints.
type Handlers struct {
	ws        WorkspaceService
	clients   ClientService
	prompts   PromptService
	responses ResponseService
	reports   ReportService
	jobs      JobLister
	oauth     OAuthConfig
	basePath  string

	commands map[string]commandHandler
	actions  map[string]actionHandler
	views    map[string]viewHandler
}

// New constructs Handlers and its command, action and view tables.
func New(d Deps) *Handlers {
	h := &Handlers{
		ws:        d.Workspaces,
		clients:   d.Clients,
		prompts:   d.Prompts,
		responses: d.Responses,
		reports:   d.Reports,
		jobs:      d.Jobs,
		oauth:     d.OAuth,
		basePath:  d.BasePath,
	}
	if len(h.oauth.StateSecret) == 0 {
		h.oauth.StateSecret = []byte(h.oauth.ClientSecret)
	}
	if h.oauth.Exchange == nil && h.oauth.ClientID != "" {
		h.oauth.Exchange = slackExchanger(h.oauth.ClientID, h.oauth.ClientSecret)
	}
	h.commands = h.commandTable()
	h.actions = h.actionTable()
	h.views = h.viewTable()
	return h
}
