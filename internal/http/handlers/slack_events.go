// Slack Events API handler.
//
// POST /slack/events receives the Events API envelope. Installs that point
// every request URL at this one endpoint also deliver slash commands and
// interactions here; those are form encoded and are routed by content.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack/slackevents"

	"github.com/tbourn/vibe-check/internal/http/middleware"
	"github.com/tbourn/vibe-check/internal/services"
)

// SlackEvents godoc
// @ID          slackEvents
// @Summary     Slack Events API webhook
// @Description Answers url_verification, deactivates the workspace on app_uninstalled and tokens_revoked. Form-encoded commands and interactions are accepted too.
// @Tags        Slack
// @Accept      json
// @Produce     json
// @Param       X-Slack-Signature          header string true "v0 HMAC signature"
// @Param       X-Slack-Request-Timestamp  header string true "Unix seconds"
// @Success     200
// @Failure     400 {object} handlers.ErrorResponse "Malformed form payload"
// @Failure     401 {object} handlers.ErrorResponse "Bad signature"
// @Router      /slack/events [post]
func (h *Handlers) SlackEvents(c *gin.Context) {
	if c.ContentType() == gin.MIMEPOSTForm {
		switch {
		case c.PostForm("payload") != "":
			h.SlackInteractions(c)
		case c.PostForm("command") != "":
			h.SlackCommands(c)
		default:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unrecognized form payload")
		}
		return
	}

	lg := middleware.LoggerFrom(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot read body")
		return
	}
	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		// Unknown inner event types fail to parse too; Slack must not retry them.
		lg.Warn().Err(err).Msg("unparsable slack event")
		ack(c)
		return
	}

	switch ev.Type {
	case slackevents.URLVerification:
		var ch slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &ch); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed challenge")
			return
		}
		c.JSON(http.StatusOK, gin.H{"challenge": ch.Challenge})
		return
	case slackevents.CallbackEvent:
		h.callbackEvent(c, ev)
	default:
		lg.Debug().Str("type", ev.Type).Msg("slack event ignored")
	}
	ack(c)
}

func (h *Handlers) callbackEvent(c *gin.Context, ev slackevents.EventsAPIEvent) {
	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c).With().
		Str("team_id", ev.TeamID).
		Str("event", ev.InnerEvent.Type).
		Logger()
	if n := middleware.SlackRetryAttempt(c); n > 0 {
		lg = lg.With().Int("slack_retry_attempt", n).Logger()
		lg.Info().Msg("slack event redelivered")
	}

	switch e := ev.InnerEvent.Data.(type) {
	case *slackevents.AppUninstalledEvent, *slackevents.TokensRevokedEvent:
		err := h.ws.Deactivate(ctx, ev.TeamID)
		switch {
		case errors.Is(err, services.ErrWorkspaceNotFound):
			lg.Warn().Msg("deactivation for unknown workspace")
		case err != nil:
			// Acked anyway; a retry would hit the same error.
			lg.Error().Err(err).Msg("deactivate workspace")
		}
	case *slackevents.AppHomeOpenedEvent:
		lg.Info().Str("user_id", e.User).Msg("app home opened")
	default:
		lg.Debug().Msg("callback event ignored")
	}
}
