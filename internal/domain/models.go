// Package domain defines the persistence models for workspaces, clients,
// their prompt schedules, and the standup and feedback responses they submit.
// These types are mapped with GORM and form the core data layer of the
// check-in service.
package domain

import (
	"slices"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Schedule types accepted by StandupConfig.ScheduleType.
const (
	ScheduleDaily      = "daily"
	ScheduleMondayOnly = "monday_only"
)

// Default prompt times (HH:MM, client-local).
const (
	DefaultStandupTime  = "09:00"
	DefaultFeedbackTime = "15:00"
)

// Workspace is a Slack team that installed the app. The bot token is stored
// encrypted and never serialized.
//
// Fields:
//   - TeamID: Slack team id (unique).
//   - BotToken: encrypted bot token (see tokenstore).
//   - IsActive: cleared when the app is uninstalled or its tokens are revoked.
//   - VibeCheckChannelID: optional channel receiving feedback summaries.
//   - AdminUserIDs: Slack users allowed to manage clients.
type Workspace struct {
	ID                 uint                        `json:"id"                    gorm:"primaryKey"`
	TeamID             string                      `json:"team_id"               gorm:"type:varchar(32);not null;uniqueIndex:ux_workspaces_team"`
	TeamName           string                      `json:"team_name"             gorm:"type:varchar(255);not null"`
	BotToken           string                      `json:"-"                     gorm:"type:text;not null"`
	BotUserID          string                      `json:"bot_user_id"           gorm:"type:varchar(32)"`
	Scope              string                      `json:"-"                     gorm:"type:text"`
	IsActive           bool                        `json:"is_active"             gorm:"not null"`
	VibeCheckChannelID *string                     `json:"vibe_check_channel_id" gorm:"type:varchar(32)"`
	AdminUserIDs       datatypes.JSONSlice[string] `json:"admin_user_ids"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for Workspace.
func (Workspace) TableName() string { return "workspaces" }

// IsAdmin reports whether userID may manage this workspace.
func (w Workspace) IsAdmin(userID string) bool {
	return userID != "" && slices.Contains(w.AdminUserIDs, userID)
}

// AddAdmin appends userID to the admin list if absent and reports whether
// the list changed.
func (w *Workspace) AddAdmin(userID string) bool {
	if userID == "" || w.IsAdmin(userID) {
		return false
	}
	w.AdminUserIDs = append(w.AdminUserIDs, userID)
	return true
}

// Client is a Slack user who receives prompts. A Slack user is registered at
// most once per workspace.
type Client struct {
	ID          uint      `json:"id"            gorm:"primaryKey"`
	WorkspaceID uint      `json:"workspace_id"  gorm:"not null;index;uniqueIndex:ux_clients_workspace_user,priority:1"`
	SlackUserID string    `json:"slack_user_id" gorm:"type:varchar(32);not null;uniqueIndex:ux_clients_workspace_user,priority:2"`
	DisplayName string    `json:"display_name"  gorm:"type:varchar(255);not null"`
	Email       *string   `json:"email,omitempty" gorm:"type:varchar(255)"`
	Timezone    string    `json:"timezone"      gorm:"type:varchar(64);not null"`
	IsActive    bool      `json:"is_active"     gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Workspace      Workspace       `json:"-" gorm:"foreignKey:WorkspaceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	StandupConfig  *StandupConfig  `json:"standup_config,omitempty"  gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	FeedbackConfig *FeedbackConfig `json:"feedback_config,omitempty" gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clients" }

// Location resolves the client's timezone, falling back to UTC.
func (c Client) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil && c.Timezone != "" {
		return loc
	}
	return time.UTC
}

// Name returns the display name, or a Slack mention when none is known.
func (c Client) Name() string {
	if strings.TrimSpace(c.DisplayName) != "" {
		return c.DisplayName
	}
	return "<@" + c.SlackUserID + ">"
}

// StandupConfig holds the daily prompt schedule of one client.
type StandupConfig struct {
	ID              uint           `json:"id"            gorm:"primaryKey"`
	ClientID        uint           `json:"client_id"     gorm:"not null;uniqueIndex:ux_standup_configs_client"`
	ScheduleType    string         `json:"schedule_type" gorm:"type:varchar(20);not null"`
	ScheduleTime    string         `json:"schedule_time" gorm:"type:varchar(5);not null"`
	IsPaused        bool           `json:"is_paused"     gorm:"not null"`
	CustomQuestions datatypes.JSON `json:"custom_questions,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName returns the database table name for StandupConfig.
func (StandupConfig) TableName() string { return "standup_configs" }

// FeedbackConfig holds the weekly (Friday) feedback schedule of one client.
type FeedbackConfig struct {
	ID              uint           `json:"id"            gorm:"primaryKey"`
	ClientID        uint           `json:"client_id"     gorm:"not null;uniqueIndex:ux_feedback_configs_client"`
	ScheduleTime    string         `json:"schedule_time" gorm:"type:varchar(5);not null"`
	IsEnabled       bool           `json:"is_enabled"    gorm:"not null"`
	CustomQuestions datatypes.JSON `json:"custom_questions,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName returns the database table name for FeedbackConfig.
func (FeedbackConfig) TableName() string { return "feedback_configs" }

// StandupResponse is one submitted daily check-in. At most one
// exists per (client, scheduled date).
type StandupResponse struct {
	ID                  uint      `json:"id"                    gorm:"primaryKey"`
	ClientID            uint      `json:"client_id"             gorm:"not null;index;uniqueIndex:ux_standup_client_date,priority:1"`
	WorkspaceID         uint      `json:"workspace_id"          gorm:"not null;index"`
	ScheduledDate       string    `json:"scheduled_date"        gorm:"type:varchar(10);not null;uniqueIndex:ux_standup_client_date,priority:2"`
	SubmittedAt         time.Time `json:"submitted_at"          gorm:"not null;index"`
	Accomplishments     string    `json:"accomplishments"       gorm:"type:text"`
	WorkingOn           string    `json:"working_on"            gorm:"type:text"`
	Blockers            string    `json:"blockers"              gorm:"type:text"`
	ResponseTimeSeconds int       `json:"response_time_seconds" gorm:"not null"`
	MessageTS           string    `json:"message_ts,omitempty"  gorm:"type:varchar(32)"`

	Client    Client    `json:"-" gorm:"foreignKey:ClientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Workspace Workspace `json:"-" gorm:"foreignKey:WorkspaceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for StandupResponse.
func (StandupResponse) TableName() string { return "standup_responses" }

// HasBlockers reports whether the blockers answer carries real content.
func (r StandupResponse) HasBlockers() bool { return !IsBlankAnswer(r.Blockers) }

// FeedbackResponse is one weekly feedback submission. At most one exists per
// (client, week ending).
type FeedbackResponse struct {
	ID                  uint      `json:"id"                    gorm:"primaryKey"`
	ClientID            uint      `json:"client_id"             gorm:"not null;index;uniqueIndex:ux_feedback_client_week,priority:1"`
	WorkspaceID         uint      `json:"workspace_id"          gorm:"not null;index"`
	WeekEnding          string    `json:"week_ending"           gorm:"type:varchar(10);not null;uniqueIndex:ux_feedback_client_week,priority:2"`
	SubmittedAt         time.Time `json:"submitted_at"          gorm:"not null;index"`
	FeelingRating       int       `json:"feeling_rating"        gorm:"not null"`
	FeelingText         string    `json:"feeling_text"          gorm:"type:text"`
	SatisfactionRating  int       `json:"satisfaction_rating"   gorm:"not null"`
	Improvements        string    `json:"improvements"          gorm:"type:text"`
	Blockers            string    `json:"blockers"              gorm:"type:text"`
	ResponseTimeSeconds int       `json:"response_time_seconds" gorm:"not null"`
	MessageTS           string    `json:"message_ts,omitempty"  gorm:"type:varchar(32)"`
	VibeChannelTS       string    `json:"vibe_channel_message_ts,omitempty" gorm:"column:vibe_channel_message_ts;type:varchar(32)"`

	Client    Client    `json:"-" gorm:"foreignKey:ClientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Workspace Workspace `json:"-" gorm:"foreignKey:WorkspaceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for FeedbackResponse.
func (FeedbackResponse) TableName() string { return "feedback_responses" }

// HasConcerns reports whether the blockers answer carries real content.
func (r FeedbackResponse) HasConcerns() bool { return !IsBlankAnswer(r.Blockers) }

// NeedsAttention flags low ratings or reported blockers.
func (r FeedbackResponse) NeedsAttention() bool {
	return r.FeelingRating <= 2 || r.SatisfactionRating <= 2 || r.HasConcerns()
}

// IsPositive reports whether both ratings are 4 or higher.
func (r FeedbackResponse) IsPositive() bool {
	return r.FeelingRating >= 4 && r.SatisfactionRating >= 4
}
