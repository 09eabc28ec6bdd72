package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/repo"
	"github.com/tbourn/vibe-check/internal/slackapi"
	"github.com/tbourn/vibe-check/internal/tokenstore"
)

// WorkspaceService manages installed workspaces and hands out Slack
// messengers bound to their bot tokens.
type WorkspaceService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Cipher encrypts bot tokens at rest.
	Cipher *tokenstore.Cipher
	// Slack builds API clients for decrypted tokens.
	Slack slackapi.Factory
	// Retry wraps every Slack call made through a messenger.
	Retry *slackapi.Retrier
	// SingleBotToken enables single-workspace mode: unknown teams are
	// registered on first use with this token.
	SingleBotToken string
}

// Installation is the result of an OAuth install (or a single-workspace
// bootstrap).
type Installation struct {
	TeamID      string
	TeamName    string
	BotToken    string
	BotUserID   string
	Scope       string
	InstallerID string
}

// Install creates or refreshes the workspace of in.TeamID. The token is
// encrypted, the workspace reactivated, and the installer added to the
// admins.
func (s *WorkspaceService) Install(ctx context.Context, in Installation) (*domain.Workspace, error) {
	if in.TeamID == "" || in.BotToken == "" {
		return nil, ErrNoBotToken
	}
	enc, err := s.Cipher.Encrypt(in.BotToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt bot token: %w", err)
	}
	name := in.TeamName
	if name == "" {
		name = in.TeamID
	}

	var out *domain.Workspace
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ws, err := repo.GetWorkspaceByTeamID(ctx, tx, in.TeamID)
		switch {
		case repo.IsNotFound(err):
			ws = &domain.Workspace{TeamID: in.TeamID}
		case err != nil:
			return err
		}
		ws.TeamName = name
		ws.BotToken = enc
		ws.BotUserID = in.BotUserID
		ws.Scope = in.Scope
		ws.IsActive = true
		ws.AddAdmin(in.InstallerID)

		if ws.ID == 0 {
			err = repo.CreateWorkspace(ctx, tx, ws)
		} else {
			err = repo.SaveWorkspace(ctx, tx, ws)
		}
		out = ws
		return err
	})
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("team_id", in.TeamID).Uint("workspace_id", out.ID).Msg("workspace installed")
	return out, nil
}

// ByTeamID returns the workspace of a Slack team.
func (s *WorkspaceService) ByTeamID(ctx context.Context, teamID string) (*domain.Workspace, error) {
	ws, err := repo.GetWorkspaceByTeamID(ctx, s.DB, teamID)
	if repo.IsNotFound(err) {
		return nil, ErrWorkspaceNotFound
	}
	return ws, err
}

// ByID returns the workspace with id.
func (s *WorkspaceService) ByID(ctx context.Context, id uint) (*domain.Workspace, error) {
	ws, err := repo.GetWorkspace(ctx, s.DB, id)
	if repo.IsNotFound(err) {
		return nil, ErrWorkspaceNotFound
	}
	return ws, err
}

// List returns all workspaces, optionally only active ones.
func (s *WorkspaceService) List(ctx context.Context, activeOnly bool) ([]domain.Workspace, error) {
	return repo.ListWorkspaces(ctx, s.DB, activeOnly)
}

// Resolve finds the workspace a Slack request came from. In single-workspace
// mode an unknown team is registered on the fly and the caller becomes its
// first admin.
func (s *WorkspaceService) Resolve(ctx context.Context, teamID, teamName, userID string) (*domain.Workspace, error) {
	ws, err := s.ByTeamID(ctx, teamID)
	if s.SingleBotToken == "" {
		return ws, err
	}
	if errors.Is(err, ErrWorkspaceNotFound) {
		return s.Install(ctx, Installation{
			TeamID:      teamID,
			TeamName:    teamName,
			BotToken:    s.SingleBotToken,
			InstallerID: userID,
		})
	}
	if err != nil {
		return nil, err
	}
	if len(ws.AdminUserIDs) == 0 && ws.AddAdmin(userID) {
		if err := repo.SaveWorkspace(ctx, s.DB, ws); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

// BotToken decrypts the workspace's bot token.
func (s *WorkspaceService) BotToken(ws *domain.Workspace) (string, error) {
	if ws.BotToken == "" {
		return "", ErrNoBotToken
	}
	tok, err := s.Cipher.Decrypt(ws.BotToken)
	if err != nil {
		return "", fmt.Errorf("workspace %d: %w", ws.ID, err)
	}
	return tok, nil
}

// Messenger returns a retrying Slack messenger acting as the workspace's bot.
func (s *WorkspaceService) Messenger(ws *domain.Workspace) (*slackapi.Messenger, error) {
	if !ws.IsActive {
		return nil, ErrWorkspaceInactive
	}
	tok, err := s.BotToken(ws)
	if err != nil {
		return nil, err
	}
	return slackapi.NewMessenger(s.Slack(tok), s.Retry), nil
}

// SetVibeChannel sets the channel receiving feedback summaries.
func (s *WorkspaceService) SetVibeChannel(ctx context.Context, workspaceID uint, channelID string) error {
	if !domain.IsSlackChannelID(channelID) {
		return ErrInvalidChannel
	}
	err := repo.SetVibeChannel(ctx, s.DB, workspaceID, channelID)
	if repo.IsNotFound(err) {
		return ErrWorkspaceNotFound
	}
	return err
}

// Deactivate marks a team's workspace inactive after an uninstall or token
// revocation. Scheduled prompts for its clients become no-ops.
func (s *WorkspaceService) Deactivate(ctx context.Context, teamID string) error {
	err := repo.SetWorkspaceActive(ctx, s.DB, teamID, false)
	if repo.IsNotFound(err) {
		return ErrWorkspaceNotFound
	}
	if err == nil {
		zerolog.Ctx(ctx).Info().Str("team_id", teamID).Msg("workspace deactivated")
	}
	return err
}
