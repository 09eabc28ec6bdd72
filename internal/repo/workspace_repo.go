// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Workspace
// model.
//
// Functions are thin: no token handling and no admin policy, only
// persistence. Lookups return ErrNotFound when no row matches.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/vibe-check/internal/domain"
)

// GetWorkspace fetches a workspace by primary key.
func GetWorkspace(ctx context.Context, db *gorm.DB, id uint) (*domain.Workspace, error) {
	var w domain.Workspace
	if err := db.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWorkspaceByTeamID fetches a workspace by its Slack team id.
func GetWorkspaceByTeamID(ctx context.Context, db *gorm.DB, teamID string) (*domain.Workspace, error) {
	var w domain.Workspace
	if err := db.WithContext(ctx).Where("team_id = ?", teamID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWorkspace inserts w and returns ErrDuplicate when the team id is
// already registered.
func CreateWorkspace(ctx context.Context, db *gorm.DB, w *domain.Workspace) error {
	return dupOr(db.WithContext(ctx).Create(w).Error)
}

// SaveWorkspace writes all columns of an existing workspace.
func SaveWorkspace(ctx context.Context, db *gorm.DB, w *domain.Workspace) error {
	return db.WithContext(ctx).Save(w).Error
}

// ListWorkspaces returns workspaces ordered by name. When activeOnly is set,
// uninstalled workspaces are excluded.
func ListWorkspaces(ctx context.Context, db *gorm.DB, activeOnly bool) ([]domain.Workspace, error) {
	var out []domain.Workspace
	q := db.WithContext(ctx).Order("team_name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&out).Error
	return out, err
}

// SetVibeChannel stores the summary channel of a workspace.
func SetVibeChannel(ctx context.Context, db *gorm.DB, workspaceID uint, channelID string) error {
	res := db.WithContext(ctx).Model(&domain.Workspace{}).
		Where("id = ?", workspaceID).
		Update("vibe_check_channel_id", channelID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetWorkspaceActive flips the active flag of the workspace owning teamID.
func SetWorkspaceActive(ctx context.Context, db *gorm.DB, teamID string, active bool) error {
	res := db.WithContext(ctx).Model(&domain.Workspace{}).
		Where("team_id = ?", teamID).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
