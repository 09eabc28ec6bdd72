package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/repo"
)

// JobScheduler is the part of the scheduler ClientService drives.
type JobScheduler interface {
	AddStandupJob(c domain.Client, cfg domain.StandupConfig) error
	AddFeedbackJob(c domain.Client, cfg domain.FeedbackConfig) error
	RemoveStandupJob(workspaceID, clientID uint) bool
	RemoveFeedbackJob(workspaceID, clientID uint) bool
}

// ClientService manages clients and keeps their scheduled jobs in step with
// the stored configs.
type ClientService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Jobs receives schedule changes. It may be nil (CLI, tests).
	Jobs JobScheduler
}

// NewClient is the input of ClientService.Add. An empty ScheduleType creates
// a client without standups.
type NewClient struct {
	WorkspaceID    uint
	SlackUserID    string
	DisplayName    string
	Email          string
	Timezone       string
	ScheduleType   string
	ScheduleTime   string
	EnableFeedback bool
}

func (in *NewClient) validate() error {
	if !domain.IsSlackUserID(in.SlackUserID) {
		return ErrInvalidUser
	}
	if in.Timezone == "" {
		in.Timezone = "UTC"
	}
	if _, err := domain.LoadTimezone(in.Timezone); err != nil {
		return ErrInvalidTimezone
	}
	if in.ScheduleType == "" {
		return nil
	}
	if !domain.ValidScheduleType(in.ScheduleType) {
		return ErrInvalidSchedule
	}
	if in.ScheduleTime == "" {
		in.ScheduleTime = domain.DefaultStandupTime
	}
	t, err := domain.NormalizeClock(in.ScheduleTime)
	if err != nil {
		return ErrInvalidTime
	}
	in.ScheduleTime = t
	return nil
}

// Add creates a client with its configs in one transaction, then schedules
// its jobs.
func (s *ClientService) Add(ctx context.Context, in NewClient) (*domain.Client, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	c := &domain.Client{
		WorkspaceID: in.WorkspaceID,
		SlackUserID: in.SlackUserID,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Timezone:    in.Timezone,
		IsActive:    true,
	}
	if e := strings.TrimSpace(in.Email); e != "" {
		c.Email = &e
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateClient(ctx, tx, c); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateClient
			}
			return err
		}
		if in.ScheduleType != "" {
			c.StandupConfig = &domain.StandupConfig{
				ClientID:     c.ID,
				ScheduleType: in.ScheduleType,
				ScheduleTime: in.ScheduleTime,
			}
			if err := repo.CreateStandupConfig(ctx, tx, c.StandupConfig); err != nil {
				return err
			}
		}
		if in.EnableFeedback {
			c.FeedbackConfig = &domain.FeedbackConfig{
				ClientID:     c.ID,
				ScheduleTime: domain.DefaultFeedbackTime,
				IsEnabled:    true,
			}
			if err := repo.CreateFeedbackConfig(ctx, tx, c.FeedbackConfig); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.schedule(ctx, c)
	zerolog.Ctx(ctx).Info().
		Uint("workspace_id", c.WorkspaceID).
		Uint("client_id", c.ID).
		Str("slack_user_id", c.SlackUserID).
		Msg("client added")
	return c, nil
}

func (s *ClientService) schedule(ctx context.Context, c *domain.Client) {
	if s.Jobs == nil || !c.IsActive {
		return
	}
	lg := zerolog.Ctx(ctx).With().Uint("client_id", c.ID).Logger()
	if cfg := c.StandupConfig; cfg != nil && !cfg.IsPaused {
		if err := s.Jobs.AddStandupJob(*c, *cfg); err != nil {
			lg.Error().Err(err).Msg("schedule standup")
		}
	}
	if cfg := c.FeedbackConfig; cfg != nil && cfg.IsEnabled {
		if err := s.Jobs.AddFeedbackJob(*c, *cfg); err != nil {
			lg.Error().Err(err).Msg("schedule feedback")
		}
	}
}

// Get returns a client with its configs. A non-zero workspaceID restricts
// the lookup to that workspace.
func (s *ClientService) Get(ctx context.Context, workspaceID, id uint) (*domain.Client, error) {
	c, err := repo.GetClient(ctx, s.DB, id)
	if repo.IsNotFound(err) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	if workspaceID != 0 && c.WorkspaceID != workspaceID {
		return nil, ErrClientNotFound
	}
	return c, nil
}

// List returns the clients of a workspace ordered by name.
func (s *ClientService) List(ctx context.Context, workspaceID uint, activeOnly bool) ([]domain.Client, error) {
	return repo.ListClients(ctx, s.DB, workspaceID, activeOnly)
}

// Page returns one page of clients and the total count. workspaceID 0 spans
// every workspace.
func (s *ClientService) Page(ctx context.Context, workspaceID uint, offset, limit int) ([]domain.Client, int64, error) {
	total, err := repo.CountClients(ctx, s.DB, workspaceID)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListClientsPage(ctx, s.DB, workspaceID, offset, limit)
	return items, total, err
}

// Pause stops a client's standups and removes the job. The config is kept
// so Resume restores the same cadence and time.
func (s *ClientService) Pause(ctx context.Context, workspaceID, id uint) (*domain.Client, error) {
	return s.setPaused(ctx, workspaceID, id, true)
}

// Resume re-enables a client's standups and schedules the job again.
func (s *ClientService) Resume(ctx context.Context, workspaceID, id uint) (*domain.Client, error) {
	return s.setPaused(ctx, workspaceID, id, false)
}

func (s *ClientService) setPaused(ctx context.Context, workspaceID, id uint, paused bool) (*domain.Client, error) {
	c, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if c.StandupConfig == nil {
		return nil, ErrNoStandupConfig
	}
	if err := repo.SetStandupPaused(ctx, s.DB, c.ID, paused); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNoStandupConfig
		}
		return nil, err
	}
	c.StandupConfig.IsPaused = paused

	if s.Jobs != nil {
		if paused {
			s.Jobs.RemoveStandupJob(c.WorkspaceID, c.ID)
		} else if c.IsActive {
			if err := s.Jobs.AddStandupJob(*c, *c.StandupConfig); err != nil {
				return c, err
			}
		}
	}
	zerolog.Ctx(ctx).Info().Uint("client_id", c.ID).Bool("paused", paused).Msg("standups toggled")
	return c, nil
}

// Remove deletes a client with its configs, responses and prompt sends,
// then unschedules it. A failed delete leaves the jobs in place. The removed
// client is returned for confirmations.
func (s *ClientService) Remove(ctx context.Context, workspaceID, id uint) (*domain.Client, error) {
	c, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if err := repo.DeleteClient(ctx, s.DB, c.ID); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if s.Jobs != nil {
		s.Jobs.RemoveStandupJob(c.WorkspaceID, c.ID)
		s.Jobs.RemoveFeedbackJob(c.WorkspaceID, c.ID)
	}
	zerolog.Ctx(ctx).Info().Uint("client_id", c.ID).Msg("client removed")
	return c, nil
}
