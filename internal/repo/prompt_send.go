// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the send-lock used to deliver each
// prompt at most once per (client, kind, period), and the queries that drive
// reminders.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/vibe-check/internal/domain"
)

// AcquirePromptSend claims the (client, kind, period) slot at now; the claim
// expires after ttl. It returns ErrDuplicate when another sender already
// holds the claim.
func AcquirePromptSend(ctx context.Context, db *gorm.DB, workspaceID, clientID uint, kind, period string, now time.Time, ttl time.Duration) (*domain.PromptSend, error) {
	now = now.UTC()
	rec := &domain.PromptSend{
		ClientID:    clientID,
		WorkspaceID: workspaceID,
		Kind:        kind,
		Period:      period,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return nil, dupOr(err)
	}
	return rec, nil
}

// GetPromptSend returns the claim for (client, kind, period) or ErrNotFound.
func GetPromptSend(ctx context.Context, db *gorm.DB, clientID uint, kind, period string) (*domain.PromptSend, error) {
	var rec domain.PromptSend
	err := db.WithContext(ctx).
		Where("client_id = ? AND kind = ? AND period = ?", clientID, kind, period).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkPromptSent stores where the prompt landed.
func MarkPromptSent(ctx context.Context, db *gorm.DB, id uint, channel, ts string, at time.Time) error {
	at = at.UTC()
	return db.WithContext(ctx).Model(&domain.PromptSend{}).
		Where("id = ?", id).
		Updates(map[string]any{"channel": channel, "message_ts": ts, "sent_at": &at, "reminded_at": nil}).Error
}

// ReleasePromptSend drops a claim whose send failed so a later attempt can
// retry.
func ReleasePromptSend(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).Delete(&domain.PromptSend{}, id).Error
}

// ListReminderCandidates returns delivered prompts sent at or before cutoff
// that have not been reminded yet and whose claim has not expired, with
// clients preloaded. Prompts of inactive clients or workspaces are left
// out. Whether a response exists is checked by the caller.
func ListReminderCandidates(ctx context.Context, db *gorm.DB, cutoff, now time.Time, limit int) ([]domain.PromptSend, error) {
	var out []domain.PromptSend
	err := db.WithContext(ctx).
		Preload("Client").
		Select("prompt_sends.*").
		Joins("JOIN clients ON clients.id = prompt_sends.client_id").
		Joins("JOIN workspaces ON workspaces.id = prompt_sends.workspace_id").
		Where("clients.is_active = ? AND workspaces.is_active = ?", true, true).
		Where("prompt_sends.message_ts <> '' AND prompt_sends.sent_at IS NOT NULL AND prompt_sends.sent_at <= ?", cutoff.UTC()).
		Where("prompt_sends.reminded_at IS NULL AND prompt_sends.expires_at > ?", now.UTC()).
		Order("prompt_sends.sent_at ASC").
		Order("prompt_sends.id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkReminded records that the single reminder for a prompt was sent.
func MarkReminded(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	at = at.UTC()
	return db.WithContext(ctx).Model(&domain.PromptSend{}).
		Where("id = ?", id).
		Update("reminded_at", &at).Error
}

// PurgeExpiredPromptSends deletes claims that expired before now.
func PurgeExpiredPromptSends(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.PromptSend{})
	return res.RowsAffected, res.Error
}
