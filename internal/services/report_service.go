package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/repo"
)

const attentionLimit = 25

// ClientSummary is one dashboard row.
type ClientSummary struct {
	Client       domain.Client
	LastStandup  *domain.StandupResponse
	LastFeedback *domain.FeedbackResponse
}

// Overview is the dashboard landing page.
type Overview struct {
	Since     time.Time
	Stats     repo.Overview
	Clients   []ClientSummary
	Attention []domain.FeedbackResponse
}

// ClientHistory is one page of a client's answers.
type ClientHistory struct {
	Client        domain.Client
	Standups      []domain.StandupResponse
	StandupTotal  int64
	Feedback      []domain.FeedbackResponse
	FeedbackTotal int64
}

// ReportService answers the read-only dashboard queries.
type ReportService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// WeekStart returns Monday 00:00 UTC of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	d := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-d, 0, 0, 0, 0, time.UTC)
}

// Overview builds the landing page for one workspace, or all when
// workspaceID is 0. Totals and attention items cover the current week.
func (s *ReportService) Overview(ctx context.Context, workspaceID uint) (*Overview, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	since := WeekStart(now)

	stats, err := repo.OverviewStats(ctx, s.DB, workspaceID, since)
	if err != nil {
		return nil, err
	}
	clients, err := repo.ListClients(ctx, s.DB, workspaceID, false)
	if err != nil {
		return nil, err
	}
	ov := &Overview{Since: since, Stats: stats, Clients: make([]ClientSummary, 0, len(clients))}
	for _, c := range clients {
		row := ClientSummary{Client: c}
		st, err := repo.ListStandupResponses(ctx, s.DB, c.ID, 0, 1)
		if err != nil {
			return nil, err
		}
		if len(st) > 0 {
			row.LastStandup = &st[0]
		}
		fb, err := repo.ListFeedbackResponses(ctx, s.DB, c.ID, 0, 1)
		if err != nil {
			return nil, err
		}
		if len(fb) > 0 {
			row.LastFeedback = &fb[0]
		}
		ov.Clients = append(ov.Clients, row)
	}

	recent, err := repo.RecentFeedback(ctx, s.DB, workspaceID, since, 200)
	if err != nil {
		return nil, err
	}
	for _, r := range recent {
		if r.NeedsAttention() {
			ov.Attention = append(ov.Attention, r)
			if len(ov.Attention) == attentionLimit {
				break
			}
		}
	}
	return ov, nil
}

// History returns one page of a client's standups and feedback. A non-zero
// workspaceID restricts the lookup to that workspace.
func (s *ReportService) History(ctx context.Context, workspaceID, clientID uint, offset, limit int) (*ClientHistory, error) {
	c, err := repo.GetClient(ctx, s.DB, clientID)
	if repo.IsNotFound(err) || (err == nil && workspaceID != 0 && c.WorkspaceID != workspaceID) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	h := &ClientHistory{Client: *c}
	if h.StandupTotal, err = repo.CountStandupResponses(ctx, s.DB, clientID); err != nil {
		return nil, err
	}
	if h.Standups, err = repo.ListStandupResponses(ctx, s.DB, clientID, offset, limit); err != nil {
		return nil, err
	}
	if h.FeedbackTotal, err = repo.CountFeedbackResponses(ctx, s.DB, clientID); err != nil {
		return nil, err
	}
	if h.Feedback, err = repo.ListFeedbackResponses(ctx, s.DB, clientID, offset, limit); err != nil {
		return nil, err
	}
	return h, nil
}
