// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for clients and
// their standup/feedback configs.
//
// Error semantics:
//   - Lookups return ErrNotFound when no row matches.
//   - CreateClient returns ErrDuplicate when the Slack user is already a
//     client of the workspace.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/vibe-check/internal/domain"
)

func withConfigs(db *gorm.DB) *gorm.DB {
	return db.Preload("StandupConfig").Preload("FeedbackConfig")
}

// CreateClient inserts c without touching its associations.
func CreateClient(ctx context.Context, db *gorm.DB, c *domain.Client) error {
	return dupOr(db.WithContext(ctx).Omit(clause.Associations).Create(c).Error)
}

// CreateStandupConfig inserts a standup schedule.
func CreateStandupConfig(ctx context.Context, db *gorm.DB, cfg *domain.StandupConfig) error {
	return dupOr(db.WithContext(ctx).Create(cfg).Error)
}

// CreateFeedbackConfig inserts a feedback schedule.
func CreateFeedbackConfig(ctx context.Context, db *gorm.DB, cfg *domain.FeedbackConfig) error {
	return dupOr(db.WithContext(ctx).Create(cfg).Error)
}

// GetClient fetches a client with its configs and workspace.
func GetClient(ctx context.Context, db *gorm.DB, id uint) (*domain.Client, error) {
	var c domain.Client
	err := withConfigs(db.WithContext(ctx)).Preload("Workspace").First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClientBySlackUser fetches the client registered for slackUserID in a
// workspace.
func GetClientBySlackUser(ctx context.Context, db *gorm.DB, workspaceID uint, slackUserID string) (*domain.Client, error) {
	var c domain.Client
	err := withConfigs(db.WithContext(ctx)).
		Where("workspace_id = ? AND slack_user_id = ?", workspaceID, slackUserID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListClients returns clients ordered by display name, across all workspaces
// when workspaceID is zero.
func ListClients(ctx context.Context, db *gorm.DB, workspaceID uint, activeOnly bool) ([]domain.Client, error) {
	var out []domain.Client
	q := withConfigs(db.WithContext(ctx))
	if workspaceID != 0 {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("display_name ASC").Order("id ASC").Find(&out).Error
	return out, err
}

// CountClients returns the number of clients across all workspaces, or in
// one workspace when workspaceID is non-zero.
func CountClients(ctx context.Context, db *gorm.DB, workspaceID uint) (int64, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.Client{})
	if workspaceID != 0 {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	err := q.Count(&n).Error
	return n, err
}

// ListClientsPage returns clients across all workspaces (or one, when
// workspaceID is non-zero) with their configs and workspace.
func ListClientsPage(ctx context.Context, db *gorm.DB, workspaceID uint, offset, limit int) ([]domain.Client, error) {
	var out []domain.Client
	q := withConfigs(db.WithContext(ctx)).Preload("Workspace")
	if workspaceID != 0 {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	err := q.Order("workspace_id ASC").Order("display_name ASC").Order("id ASC").
		Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// ListSchedulableClients returns active clients with their configs
// preloaded, whatever their workspace's state: dispatch skips inactive
// workspaces, so a reinstall needs no reschedule. Callers decide which jobs
// each config implies.
func ListSchedulableClients(ctx context.Context, db *gorm.DB) ([]domain.Client, error) {
	var out []domain.Client
	err := withConfigs(db.WithContext(ctx)).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// SetStandupPaused updates the pause flag of a client's standup config.
func SetStandupPaused(ctx context.Context, db *gorm.DB, clientID uint, paused bool) error {
	res := db.WithContext(ctx).Model(&domain.StandupConfig{}).
		Where("client_id = ?", clientID).
		Update("is_paused", paused)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteClient removes a client and everything that references it in one
// transaction. Children are deleted explicitly so the result does not depend
// on the driver enforcing ON DELETE CASCADE.
func DeleteClient(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []any{
			&domain.PromptSend{},
			&domain.StandupResponse{},
			&domain.FeedbackResponse{},
			&domain.StandupConfig{},
			&domain.FeedbackConfig{},
		} {
			if err := tx.Where("client_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&domain.Client{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
