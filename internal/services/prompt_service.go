package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/blocks"
	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/repo"
	"github.com/tbourn/vibe-check/internal/slackapi"
)

// SendOutcome tells what a dispatch attempt did.
type SendOutcome string

const (
	SendSent     SendOutcome = "sent"
	SendAnswered SendOutcome = "answered" // a response for the period exists
	SendClaimed  SendOutcome = "claimed"  // another firing already sent it
	SendSkipped  SendOutcome = "skipped"  // client or workspace inactive
)

const (
	defaultLockTTL       = 8 * 24 * time.Hour
	defaultReminderDelay = 4 * time.Hour
	staleClaimAfter      = 10 * time.Minute
	reminderBatch        = 200
)

// PromptService delivers standup and feedback prompts. Each (client, kind,
// period) is claimed in prompt_sends before posting, so overlapping firings
// send at most once; a failed post releases the claim.
type PromptService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Workspaces provides bot-token messengers.
	Workspaces *WorkspaceService
	// LockTTL bounds how long a claim is kept. Default 8 days.
	LockTTL time.Duration
	// ReminderDelay is the wait before a single threaded reminder.
	ReminderDelay time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *PromptService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *PromptService) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return defaultLockTTL
}

// SendStandup is the scheduler entry point for a client's daily prompt.
func (s *PromptService) SendStandup(ctx context.Context, workspaceID, clientID uint) error {
	_, err := s.dispatch(ctx, workspaceID, clientID, domain.PromptStandup, false)
	return err
}

// SendFeedback is the scheduler entry point for a client's weekly prompt.
func (s *PromptService) SendFeedback(ctx context.Context, workspaceID, clientID uint) error {
	_, err := s.dispatch(ctx, workspaceID, clientID, domain.PromptFeedback, false)
	return err
}

// ForceStandup sends today's standup now, ignoring an earlier send but not
// an existing response.
func (s *PromptService) ForceStandup(ctx context.Context, clientID uint) (SendOutcome, error) {
	return s.dispatch(ctx, 0, clientID, domain.PromptStandup, true)
}

// ForceFeedback sends this week's feedback form now, ignoring an earlier
// send but not an existing response.
func (s *PromptService) ForceFeedback(ctx context.Context, clientID uint) (SendOutcome, error) {
	return s.dispatch(ctx, 0, clientID, domain.PromptFeedback, true)
}

// WeekEnding returns the Friday closing the week of t: t itself on a
// Friday, otherwise the next Friday.
func WeekEnding(t time.Time) time.Time {
	d := (int(time.Friday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, d)
}

func promptFor(kind string, clientID int64, localNow time.Time) (string, []slack.Block, time.Time) {
	if kind == domain.PromptFeedback {
		we := WeekEnding(localNow)
		return "Time for your weekly vibe check!", blocks.FeedbackPrompt(clientID, we), we
	}
	return "Time for your daily standup!", blocks.StandupPrompt(clientID, localNow), localNow
}

func (s *PromptService) dispatch(ctx context.Context, workspaceID, clientID uint, kind string, force bool) (SendOutcome, error) {
	lg := zerolog.Ctx(ctx).With().Str("kind", kind).Uint("client_id", clientID).Logger()

	c, err := repo.GetClient(ctx, s.DB, clientID)
	if repo.IsNotFound(err) {
		lg.Warn().Msg("prompt skipped: client not found")
		return SendSkipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("load client %d: %w", clientID, err)
	}
	if !c.IsActive || (workspaceID != 0 && c.WorkspaceID != workspaceID) {
		lg.Warn().Msg("prompt skipped: client inactive or moved")
		return SendSkipped, nil
	}
	ws := c.Workspace
	if !ws.IsActive {
		lg.Warn().Uint("workspace_id", ws.ID).Msg("prompt skipped: workspace inactive")
		return SendSkipped, nil
	}

	local := s.now().In(c.Location())
	text, blks, periodDay := promptFor(kind, int64(c.ID), local)
	period := periodDay.Format(time.DateOnly)
	lg = lg.With().Str("period", period).Logger()

	answered, err := repo.ResponseExists(ctx, s.DB, kind, c.ID, period)
	if err != nil {
		return "", err
	}
	if answered {
		lg.Info().Msg("prompt skipped: already answered")
		return SendAnswered, nil
	}

	var claim *domain.PromptSend
	if !force {
		claim, err = s.claim(ctx, ws.ID, c.ID, kind, period)
		if errors.Is(err, repo.ErrDuplicate) {
			lg.Info().Msg("prompt skipped: already sent")
			return SendClaimed, nil
		}
		if err != nil {
			return "", err
		}
	}

	msgr, err := s.Workspaces.Messenger(&ws)
	if err == nil {
		var ch, ts string
		ch, ts, err = msgr.Post(ctx, c.SlackUserID, text, blks)
		if err == nil {
			s.recordSent(ctx, claim, ws.ID, c.ID, kind, period, ch, ts)
			lg.Info().Str("channel", ch).Str("ts", ts).Bool("forced", force).Msg("prompt sent")
			return SendSent, nil
		}
	}

	if claim != nil {
		if rerr := repo.ReleasePromptSend(ctx, s.DB, claim.ID); rerr != nil {
			lg.Error().Err(rerr).Msg("release prompt claim")
		}
	}
	lg.Error().Err(err).Msg("prompt send failed")
	return "", fmt.Errorf("send %s prompt to client %d: %w", kind, c.ID, err)
}

// claim acquires the send-lock. A claim left without a message ts by a
// crashed sender is taken over once it is older than staleClaimAfter.
func (s *PromptService) claim(ctx context.Context, wsID, clientID uint, kind, period string) (*domain.PromptSend, error) {
	rec, err := repo.AcquirePromptSend(ctx, s.DB, wsID, clientID, kind, period, s.now(), s.lockTTL())
	if !errors.Is(err, repo.ErrDuplicate) {
		return rec, err
	}
	prev, gerr := repo.GetPromptSend(ctx, s.DB, clientID, kind, period)
	if gerr != nil || prev.MessageTS != "" || s.now().Sub(prev.CreatedAt) < staleClaimAfter {
		return nil, err
	}
	if err := repo.ReleasePromptSend(ctx, s.DB, prev.ID); err != nil {
		return nil, err
	}
	return repo.AcquirePromptSend(ctx, s.DB, wsID, clientID, kind, period, s.now(), s.lockTTL())
}

// recordSent stores where the prompt landed so reminders can thread under
// it. Forced sends upsert the claim for the period.
func (s *PromptService) recordSent(ctx context.Context, claim *domain.PromptSend, wsID, clientID uint, kind, period, ch, ts string) {
	lg := zerolog.Ctx(ctx)
	if claim == nil {
		var err error
		claim, err = repo.AcquirePromptSend(ctx, s.DB, wsID, clientID, kind, period, s.now(), s.lockTTL())
		if errors.Is(err, repo.ErrDuplicate) {
			claim, err = repo.GetPromptSend(ctx, s.DB, clientID, kind, period)
		}
		if err != nil {
			lg.Error().Err(err).Msg("record forced prompt")
			return
		}
	}
	if err := repo.MarkPromptSent(ctx, s.DB, claim.ID, ch, ts, s.now()); err != nil {
		lg.Error().Err(err).Uint("prompt_send_id", claim.ID).Msg("mark prompt sent")
	}
}

// SendTest DMs userID a prompt of kind carrying the test client id. Answers
// to it are acknowledged but never stored.
func (s *PromptService) SendTest(ctx context.Context, ws *domain.Workspace, userID, kind string) error {
	msgr, err := s.Workspaces.Messenger(ws)
	if err != nil {
		return err
	}
	_, blks, _ := promptFor(kind, blocks.TestClientID, s.now().UTC())
	text := "Test standup message"
	if kind == domain.PromptFeedback {
		text = "Test weekly vibe check"
	}
	_, _, err = msgr.Post(ctx, userID, text, blks)
	return err
}

func (s *PromptService) markReminded(ctx context.Context, lg zerolog.Logger, id uint, now time.Time) {
	if err := repo.MarkReminded(ctx, s.DB, id, now); err != nil {
		lg.Error().Err(err).Msg("mark reminded")
	}
}

// SendReminders posts one threaded reminder under every prompt that has
// been unanswered for ReminderDelay. It returns how many were sent.
func (s *PromptService) SendReminders(ctx context.Context) (int, error) {
	delay := s.ReminderDelay
	if delay <= 0 {
		delay = defaultReminderDelay
	}
	now := s.now()
	cands, err := repo.ListReminderCandidates(ctx, s.DB, now.Add(-delay), now, reminderBatch)
	if err != nil {
		return 0, fmt.Errorf("list reminder candidates: %w", err)
	}

	lg := zerolog.Ctx(ctx)
	messengers := map[uint]*slackapi.Messenger{}
	sent := 0
	for _, p := range cands {
		plg := lg.With().Uint("prompt_send_id", p.ID).Uint("client_id", p.ClientID).Logger()
		answered, err := repo.ResponseExists(ctx, s.DB, p.Kind, p.ClientID, p.Period)
		if err != nil {
			return sent, err
		}
		if answered || !p.Client.IsActive {
			// Nothing to nudge; stamp it so it is not reconsidered.
			s.markReminded(ctx, plg, p.ID, now)
			continue
		}

		msgr, ok := messengers[p.WorkspaceID]
		if !ok {
			ws, err := repo.GetWorkspace(ctx, s.DB, p.WorkspaceID)
			if err == nil {
				msgr, err = s.Workspaces.Messenger(ws)
			}
			if err != nil {
				plg.Warn().Err(err).Uint("workspace_id", p.WorkspaceID).Msg("reminders skipped for workspace")
			}
			messengers[p.WorkspaceID] = msgr
		}
		if msgr == nil {
			// No token to send with; the reminder is dropped, not retried.
			s.markReminded(ctx, plg, p.ID, now)
			continue
		}

		// The messenger already retried transient errors, so a failure here
		// is final for this prompt.
		if _, err := msgr.Reply(ctx, p.Channel, p.MessageTS, blocks.Reminder(p.Kind)); err != nil {
			plg.Error().Err(err).Msg("reminder failed")
			s.markReminded(ctx, plg, p.ID, now)
			continue
		}
		if err := repo.MarkReminded(ctx, s.DB, p.ID, now); err != nil {
			return sent, err
		}
		sent++
	}
	if sent > 0 {
		lg.Info().Int("sent", sent).Msg("reminders sent")
	}
	return sent, nil
}
