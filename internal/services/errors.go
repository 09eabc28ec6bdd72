// Package services implements the Vibe Check use cases on top of the repo
// layer: workspace installation, client management, prompt dispatch,
// response recording, and data retention.
//
// This file centralizes the service-level error values so they can be
// returned consistently and mapped to Slack replies or HTTP statuses by the
// handler layer.
package services

import "errors"

// Workspace errors.
var (
	// ErrWorkspaceNotFound indicates no workspace matches the team or id.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrWorkspaceInactive is returned when the app was uninstalled from the
	// workspace or its tokens were revoked.
	ErrWorkspaceInactive = errors.New("workspace is inactive")

	// ErrNoBotToken indicates the workspace has no usable bot token.
	ErrNoBotToken = errors.New("workspace has no bot token")

	// ErrInvalidChannel is returned for values that are not Slack channel ids.
	ErrInvalidChannel = errors.New("invalid channel id")
)

// Client errors.
var (
	// ErrClientNotFound indicates the client does not exist in the workspace.
	ErrClientNotFound = errors.New("client not found")

	// ErrDuplicateClient is returned when the Slack user is already a client
	// of the workspace.
	ErrDuplicateClient = errors.New("user is already a client")

	// ErrNoStandupConfig is returned when pausing or resuming a client that
	// has no standup schedule.
	ErrNoStandupConfig = errors.New("client has no standup schedule")

	// ErrInvalidUser is returned for values that are not Slack user ids.
	ErrInvalidUser = errors.New("invalid slack user id")
)

// Schedule validation errors.
var (
	ErrInvalidSchedule = errors.New("schedule type must be daily or monday_only")
	ErrInvalidTimezone = errors.New("unknown timezone")
	ErrInvalidTime     = errors.New("time must be HH:MM")
)

// ErrDuplicateResponse is returned when a response for the same client and
// period was already recorded.
var ErrDuplicateResponse = errors.New("response already recorded")
