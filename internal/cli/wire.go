package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/config"
	"github.com/tbourn/vibe-check/internal/http/handlers"
	"github.com/tbourn/vibe-check/internal/repo"
	"github.com/tbourn/vibe-check/internal/scheduler"
	"github.com/tbourn/vibe-check/internal/services"
	"github.com/tbourn/vibe-check/internal/slackapi"
	"github.com/tbourn/vibe-check/internal/tokenstore"
)

// System job ids and schedules.
const (
	retentionJobID = "system:retention"
	retentionSpec  = "CRON_TZ=UTC 0 3 * * *"
	remindersJobID = "system:reminders"
	remindersSpec  = "*/15 * * * *"
)

// components is the wired service graph.
type components struct {
	db        *gorm.DB
	ws        *services.WorkspaceService
	clients   *services.ClientService
	prompts   *services.PromptService
	responses *services.ResponseService
	reports   *services.ReportService
	retention *services.RetentionService
	sched     *scheduler.Scheduler
}

// openDB connects, instruments and migrates the database.
func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.OTEL.Enabled {
		if err := repo.Instrument(db); err != nil {
			return nil, fmt.Errorf("instrument database: %w", err)
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// wire builds the services over db. The cipher is only created when a key
// is configured; commands that never touch bot tokens run without one.
func wire(cfg config.Config, db *gorm.DB, lg zerolog.Logger) (*components, error) {
	var cipher *tokenstore.Cipher
	if cfg.EncryptionKey != "" {
		c, err := tokenstore.New(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
		}
		cipher = c
	}

	ws := &services.WorkspaceService{
		DB:             db,
		Cipher:         cipher,
		Slack:          slackapi.NewFactory(cfg.Slack.APIURL),
		Retry:          slackapi.NewRetrier(lg),
		SingleBotToken: cfg.Slack.BotToken,
	}
	prompts := &services.PromptService{DB: db, Workspaces: ws, ReminderDelay: cfg.ReminderDelay}
	sched := scheduler.New(prompts, scheduler.Options{
		PoolSize:     cfg.Scheduler.PoolSize,
		MaxInstances: cfg.Scheduler.MaxInstances,
		MisfireGrace: cfg.Scheduler.MisfireGrace,
		JobTimeout:   cfg.Scheduler.JobTimeout,
		Logger:       lg,
	})

	return &components{
		db:        db,
		ws:        ws,
		clients:   &services.ClientService{DB: db, Jobs: sched},
		prompts:   prompts,
		responses: &services.ResponseService{DB: db, Workspaces: ws},
		reports:   &services.ReportService{DB: db},
		retention: &services.RetentionService{DB: db, Days: cfg.RetentionDays},
		sched:     sched,
	}, nil
}

// scheduleAll loads client jobs from the database and registers the
// housekeeping jobs.
func (c *components) scheduleAll(ctx context.Context, cfg config.Config) error {
	if _, err := c.sched.Sync(ctx, c.db); err != nil {
		return err
	}
	if err := c.sched.AddSystemJob(retentionJobID, retentionSpec, func(ctx context.Context) error {
		_, err := c.retention.Purge(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("schedule retention: %w", err)
	}
	if cfg.EnableReminders {
		if err := c.sched.AddSystemJob(remindersJobID, remindersSpec, func(ctx context.Context) error {
			_, err := c.prompts.SendReminders(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("schedule reminders: %w", err)
		}
	}
	return nil
}

// newHandlers builds the HTTP handlers over the wired services.
func (c *components) newHandlers(cfg config.Config) *handlers.Handlers {
	oauth := handlers.OAuthConfig{RedirectURL: cfg.Slack.RedirectURL}
	if cfg.Slack.OAuthEnabled() {
		oauth.ClientID = cfg.Slack.ClientID
		oauth.ClientSecret = cfg.Slack.ClientSecret
	}
	return handlers.New(handlers.Deps{
		Workspaces: c.ws,
		Clients:    c.clients,
		Prompts:    c.prompts,
		Responses:  c.responses,
		Reports:    c.reports,
		Jobs:       c.sched,
		OAuth:      oauth,
		BasePath:   cfg.APIBasePath,
	})
}
