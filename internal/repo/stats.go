// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides aggregate queries for the dashboard.
// Each function is context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/domain"
)

// Overview summarizes activity across all workspaces (or one, when a
// workspace id is given) since a point in time.
type Overview struct {
	Workspaces       int64
	Clients          int64
	ActiveClients    int64
	PausedClients    int64
	StandupsSince    int64
	FeedbackSince    int64
	NeedsAttention   int64
	AvgFeeling       float64
	AvgSatisfaction  float64
	LastSubmissionAt *time.Time
}

// OverviewStats computes the dashboard header numbers.
//
// Averages are computed in Go over the feedback rows in range to avoid
// AVG() type differences between SQLite, PostgreSQL and MySQL.
func OverviewStats(ctx context.Context, db *gorm.DB, workspaceID uint, since time.Time) (Overview, error) {
	var ov Overview
	scope := func(q *gorm.DB, col string) *gorm.DB {
		if workspaceID != 0 {
			return q.Where(col+" = ?", workspaceID)
		}
		return q
	}
	d := db.WithContext(ctx)

	if err := scope(d.Model(&domain.Workspace{}).Where("is_active = ?", true), "id").Count(&ov.Workspaces).Error; err != nil {
		return ov, err
	}
	if err := scope(d.Model(&domain.Client{}), "workspace_id").Count(&ov.Clients).Error; err != nil {
		return ov, err
	}
	if err := scope(d.Model(&domain.Client{}).Where("is_active = ?", true), "workspace_id").Count(&ov.ActiveClients).Error; err != nil {
		return ov, err
	}
	if err := scope(d.Model(&domain.StandupConfig{}).
		Joins("JOIN clients ON clients.id = standup_configs.client_id").
		Where("standup_configs.is_paused = ?", true), "clients.workspace_id").
		Count(&ov.PausedClients).Error; err != nil {
		return ov, err
	}
	if err := scope(d.Model(&domain.StandupResponse{}).Where("submitted_at >= ?", since.UTC()), "workspace_id").
		Count(&ov.StandupsSince).Error; err != nil {
		return ov, err
	}

	var fb []domain.FeedbackResponse
	if err := scope(d.Where("submitted_at >= ?", since.UTC()), "workspace_id").
		Select("feeling_rating", "satisfaction_rating", "blockers", "submitted_at").
		Find(&fb).Error; err != nil {
		return ov, err
	}
	ov.FeedbackSince = int64(len(fb))
	var feel, sat int
	for _, r := range fb {
		feel += r.FeelingRating
		sat += r.SatisfactionRating
		if r.NeedsAttention() {
			ov.NeedsAttention++
		}
	}
	if n := len(fb); n > 0 {
		ov.AvgFeeling = float64(feel) / float64(n)
		ov.AvgSatisfaction = float64(sat) / float64(n)
	}

	// Latest submission (avoid MAX() -> TEXT in SQLite)
	var row struct {
		SubmittedAt time.Time
	}
	q := scope(d.Model(&domain.StandupResponse{}), "workspace_id").Select("submitted_at").Order("submitted_at DESC").Limit(1)
	if res := q.Scan(&row); res.Error != nil {
		return ov, res.Error
	} else if res.RowsAffected > 0 {
		t := row.SubmittedAt
		ov.LastSubmissionAt = &t
	}
	return ov, nil
}
