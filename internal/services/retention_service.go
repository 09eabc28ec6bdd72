package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/repo"
)

// RetentionService deletes responses older than the retention window and
// prompt claims past their expiry.
type RetentionService struct {
	DB *gorm.DB
	// Days is the retention window; 0 keeps responses forever.
	Days int
	Now  func() time.Time
}

// PurgeResult reports what one purge removed.
type PurgeResult struct {
	Standups    int64 `json:"standups"`
	Feedback    int64 `json:"feedback"`
	PromptSends int64 `json:"prompt_sends"`
}

// Purge runs one retention pass.
func (s *RetentionService) Purge(ctx context.Context) (PurgeResult, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	var res PurgeResult
	var err error
	if s.Days > 0 {
		cutoff := now.AddDate(0, 0, -s.Days)
		res.Standups, res.Feedback, err = repo.PurgeResponsesBefore(ctx, s.DB, cutoff)
		if err != nil {
			return res, err
		}
	}
	res.PromptSends, err = repo.PurgeExpiredPromptSends(ctx, s.DB, now)
	if err != nil {
		return res, err
	}
	zerolog.Ctx(ctx).Info().
		Int("retention_days", s.Days).
		Int64("standups", res.Standups).
		Int64("feedback", res.Feedback).
		Int64("prompt_sends", res.PromptSends).
		Msg("retention purge done")
	return res, nil
}
