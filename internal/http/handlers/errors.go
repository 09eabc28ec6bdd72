// Package handlers defines HTTP-layer error codes used across the JSON API
// and the dashboard.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status
// semantics; domain codes name the failed operation. Clients branch on the
// code, never on the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_state",
//	  "message": "install link expired, please try again"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/vibe-check/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeListFailed    = "list_failed"
	ErrCodeSendFailed    = "send_failed"
	ErrCodeInvalidState  = "invalid_state"
	ErrCodeInstallFailed = "install_failed"
	ErrCodeOAuthDisabled = "oauth_disabled"
)

// Slack-facing texts. Admin errors stay generic; details go to the log.
const (
	msgGenericError      = "❌ Sorry, something went wrong. Please try again later."
	msgPermissionDenied  = "⛔ You don't have permission to use this command. Only workspace admins can manage Vibe Check."
	msgWorkspaceNotFound = "Workspace not found. Please reinstall the app."
)

// statusFor maps service errors to an HTTP status and code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrClientNotFound), errors.Is(err, services.ErrWorkspaceNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, services.ErrDuplicateClient), errors.Is(err, services.ErrDuplicateResponse):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, services.ErrWorkspaceInactive), errors.Is(err, services.ErrNoBotToken):
		return http.StatusConflict, ErrCodeSendFailed
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
