// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for standup and
// feedback responses.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/vibe-check/internal/domain"
)

// CreateStandupResponse inserts r. A second response for the same
// (client, date) yields ErrDuplicate.
func CreateStandupResponse(ctx context.Context, db *gorm.DB, r *domain.StandupResponse) error {
	return dupOr(db.WithContext(ctx).Omit(clause.Associations).Create(r).Error)
}

// CreateFeedbackResponse inserts r. A second response for the same
// (client, week ending) yields ErrDuplicate.
func CreateFeedbackResponse(ctx context.Context, db *gorm.DB, r *domain.FeedbackResponse) error {
	return dupOr(db.WithContext(ctx).Omit(clause.Associations).Create(r).Error)
}

// StandupResponseExists reports whether clientID already answered for date.
func StandupResponseExists(ctx context.Context, db *gorm.DB, clientID uint, date string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.StandupResponse{}).
		Where("client_id = ? AND scheduled_date = ?", clientID, date).
		Count(&n).Error
	return n > 0, err
}

// FeedbackResponseExists reports whether clientID already answered for the
// week ending on weekEnding.
func FeedbackResponseExists(ctx context.Context, db *gorm.DB, clientID uint, weekEnding string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.FeedbackResponse{}).
		Where("client_id = ? AND week_ending = ?", clientID, weekEnding).
		Count(&n).Error
	return n > 0, err
}

// ResponseExists dispatches to the standup or feedback check by prompt kind.
func ResponseExists(ctx context.Context, db *gorm.DB, kind string, clientID uint, period string) (bool, error) {
	if kind == domain.PromptFeedback {
		return FeedbackResponseExists(ctx, db, clientID, period)
	}
	return StandupResponseExists(ctx, db, clientID, period)
}

// SetFeedbackVibeTS records where the summary of a feedback response was
// posted.
func SetFeedbackVibeTS(ctx context.Context, db *gorm.DB, id uint, ts string) error {
	return db.WithContext(ctx).Model(&domain.FeedbackResponse{}).
		Where("id = ?", id).
		Update("vibe_channel_message_ts", ts).Error
}

// ListStandupResponses returns a page of a client's standups, newest first.
func ListStandupResponses(ctx context.Context, db *gorm.DB, clientID uint, offset, limit int) ([]domain.StandupResponse, error) {
	var out []domain.StandupResponse
	err := db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("scheduled_date DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

// CountStandupResponses returns the number of standups of a client.
func CountStandupResponses(ctx context.Context, db *gorm.DB, clientID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.StandupResponse{}).Where("client_id = ?", clientID).Count(&n).Error
	return n, err
}

// ListFeedbackResponses returns a page of a client's feedback, newest first.
func ListFeedbackResponses(ctx context.Context, db *gorm.DB, clientID uint, offset, limit int) ([]domain.FeedbackResponse, error) {
	var out []domain.FeedbackResponse
	err := db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("week_ending DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&out).Error
	return out, err
}

// CountFeedbackResponses returns the number of feedback rows of a client.
func CountFeedbackResponses(ctx context.Context, db *gorm.DB, clientID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.FeedbackResponse{}).Where("client_id = ?", clientID).Count(&n).Error
	return n, err
}

// RecentFeedback returns feedback submitted at or after since, newest first,
// with the client preloaded. workspaceID zero means all workspaces.
func RecentFeedback(ctx context.Context, db *gorm.DB, workspaceID uint, since time.Time, limit int) ([]domain.FeedbackResponse, error) {
	var out []domain.FeedbackResponse
	q := db.WithContext(ctx).Preload("Client").Where("submitted_at >= ?", since.UTC())
	if workspaceID != 0 {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	err := q.Order("submitted_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// PurgeResponsesBefore deletes standups and feedback submitted before cutoff.
func PurgeResponsesBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (standups, feedback int64, err error) {
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("submitted_at < ?", cutoff.UTC()).Delete(&domain.StandupResponse{})
		if res.Error != nil {
			return res.Error
		}
		standups = res.RowsAffected
		res = tx.Where("submitted_at < ?", cutoff.UTC()).Delete(&domain.FeedbackResponse{})
		if res.Error != nil {
			return res.Error
		}
		feedback = res.RowsAffected
		return nil
	})
	return standups, feedback, err
}
