// Package handlers provides the HTTP handlers of Vibe Check: the Slack
// webhooks (events, slash commands, interactions), the OAuth install flow,
// the server-rendered dashboard and its JSON API.
//
// This file defines the response utilities shared by all endpoints. JSON
// endpoints fail with the ErrorResponse envelope; Slack endpoints always
// answer 200 once a request is authenticated, with an ephemeral message or
// an empty acknowledgement, because Slack shows any other status as an
// error to the user and retries events.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "client not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"

	"github.com/tbourn/vibe-check/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by JSON endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"client not found"`
}

// fail aborts the request with a structured error. Server errors (>=500)
// are logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// ack acknowledges a Slack request with an empty 200.
func ack(c *gin.Context) {
	c.Status(http.StatusOK)
}

// ephemeral answers a slash command with a message only the caller sees.
func ephemeral(c *gin.Context, text string, blocks []slack.Block) {
	msg := slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: text}
	if len(blocks) > 0 {
		msg.Blocks = slack.Blocks{BlockSet: blocks}
	}
	c.JSON(http.StatusOK, msg)
}
