package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/blocks"
	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/repo"
)

// DefaultRating replaces missing or out-of-range ratings.
const DefaultRating = 3

// StandupSubmission is a decoded "submit_standup" interaction.
type StandupSubmission struct {
	WorkspaceID     uint
	ClientID        uint
	ScheduledDate   string
	Accomplishments string
	WorkingOn       string
	Blockers        string
	MessageTS       string
}

// FeedbackSubmission is a decoded "submit_feedback" interaction.
type FeedbackSubmission struct {
	WorkspaceID        uint
	ClientID           uint
	WeekEnding         string
	FeelingRating      int
	SatisfactionRating int
	FeelingText        string
	Improvements       string
	Blockers           string
	MessageTS          string
}

// ResponseService records prompt answers and publishes feedback summaries.
type ResponseService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Workspaces provides the messenger used for vibe-channel posts.
	Workspaces *WorkspaceService
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *ResponseService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ResponseTime returns whole seconds between the Slack message timestamp ts
// ("1700000000.000100") and now. Unparsable or future timestamps give 0.
func ResponseTime(ts string, now time.Time) int {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil || math.IsNaN(f) || f <= 0 {
		return 0
	}
	sec, frac := math.Modf(f)
	sent := time.Unix(int64(sec), int64(frac*1e9))
	if d := now.Sub(sent); d > 0 {
		return int(d / time.Second)
	}
	return 0
}

// ClampRating returns r when it is a valid 1..5 rating, DefaultRating
// otherwise.
func ClampRating(r int) (int, bool) {
	if domain.ValidRating(r) != nil {
		return DefaultRating, false
	}
	return r, true
}

func (s *ResponseService) client(ctx context.Context, workspaceID, clientID uint) (*domain.Client, error) {
	c, err := repo.GetClient(ctx, s.DB, clientID)
	if repo.IsNotFound(err) || (err == nil && c.WorkspaceID != workspaceID) {
		return nil, ErrClientNotFound
	}
	return c, err
}

// SaveStandup stores a standup answer. A second answer for the same client
// and date returns ErrDuplicateResponse.
func (s *ResponseService) SaveStandup(ctx context.Context, sub StandupSubmission) (*domain.StandupResponse, error) {
	if _, err := time.Parse(time.DateOnly, sub.ScheduledDate); err != nil {
		return nil, err
	}
	if _, err := s.client(ctx, sub.WorkspaceID, sub.ClientID); err != nil {
		return nil, err
	}
	now := s.now()
	r := &domain.StandupResponse{
		ClientID:            sub.ClientID,
		WorkspaceID:         sub.WorkspaceID,
		ScheduledDate:       sub.ScheduledDate,
		SubmittedAt:         now.UTC(),
		Accomplishments:     sub.Accomplishments,
		WorkingOn:           sub.WorkingOn,
		Blockers:            sub.Blockers,
		ResponseTimeSeconds: ResponseTime(sub.MessageTS, now),
		MessageTS:           sub.MessageTS,
	}
	if err := repo.CreateStandupResponse(ctx, s.DB, r); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateResponse
		}
		return nil, err
	}
	zerolog.Ctx(ctx).Info().
		Uint("client_id", r.ClientID).
		Str("date", r.ScheduledDate).
		Bool("blockers", r.HasBlockers()).
		Msg("standup recorded")
	return r, nil
}

// SaveFeedback stores a weekly answer and posts its summary to the
// workspace's vibe channel. A failed or unconfigured channel post is logged;
// the stored response is still returned.
func (s *ResponseService) SaveFeedback(ctx context.Context, sub FeedbackSubmission) (*domain.FeedbackResponse, error) {
	if _, err := time.Parse(time.DateOnly, sub.WeekEnding); err != nil {
		return nil, err
	}
	lg := zerolog.Ctx(ctx).With().Uint("client_id", sub.ClientID).Str("week_ending", sub.WeekEnding).Logger()

	feeling, ok := ClampRating(sub.FeelingRating)
	if !ok {
		lg.Warn().Int("rating", sub.FeelingRating).Msg("feeling rating out of range; using default")
	}
	satisfaction, ok := ClampRating(sub.SatisfactionRating)
	if !ok {
		lg.Warn().Int("rating", sub.SatisfactionRating).Msg("satisfaction rating out of range; using default")
	}

	var (
		c *domain.Client
		r *domain.FeedbackResponse
	)
	now := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		c, err = repo.GetClient(ctx, tx, sub.ClientID)
		if repo.IsNotFound(err) || (err == nil && c.WorkspaceID != sub.WorkspaceID) {
			return ErrClientNotFound
		}
		if err != nil {
			return err
		}
		r = &domain.FeedbackResponse{
			ClientID:            sub.ClientID,
			WorkspaceID:         sub.WorkspaceID,
			WeekEnding:          sub.WeekEnding,
			SubmittedAt:         now.UTC(),
			FeelingRating:       feeling,
			FeelingText:         sub.FeelingText,
			SatisfactionRating:  satisfaction,
			Improvements:        sub.Improvements,
			Blockers:            sub.Blockers,
			ResponseTimeSeconds: ResponseTime(sub.MessageTS, now),
			MessageTS:           sub.MessageTS,
		}
		if err := repo.CreateFeedbackResponse(ctx, tx, r); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrDuplicateResponse
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	lg.Info().Bool("needs_attention", r.NeedsAttention()).Msg("feedback recorded")

	s.postVibe(ctx, c, r)
	return r, nil
}

func (s *ResponseService) postVibe(ctx context.Context, c *domain.Client, r *domain.FeedbackResponse) {
	lg := zerolog.Ctx(ctx).With().Uint("workspace_id", c.WorkspaceID).Uint("feedback_id", r.ID).Logger()
	ws := c.Workspace
	if ws.VibeCheckChannelID == nil || *ws.VibeCheckChannelID == "" {
		lg.Warn().Msg("no vibe check channel configured")
		return
	}
	msgr, err := s.Workspaces.Messenger(&ws)
	if err != nil {
		lg.Error().Err(err).Msg("vibe channel post skipped")
		return
	}
	_, ts, err := msgr.Post(ctx, *ws.VibeCheckChannelID, "Weekly feedback from "+c.Name(), blocks.VibeSummary(*c, *r))
	if err != nil {
		lg.Error().Err(err).Msg("vibe channel post failed")
		return
	}
	if err := repo.SetFeedbackVibeTS(ctx, s.DB, r.ID, ts); err != nil {
		lg.Error().Err(err).Msg("store vibe channel ts")
		return
	}
	r.VibeChannelTS = ts
}
