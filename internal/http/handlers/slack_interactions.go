// Interactivity handlers.
//
// POST /slack/interactions receives block actions (prompt buttons) and view
// submissions (admin modals). The payload form field is decoded into a
// slack.InteractionCallback and dispatched by action id or callback id.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/tbourn/vibe-check/internal/blocks"
	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/http/middleware"
	"github.com/tbourn/vibe-check/internal/services"
	"github.com/tbourn/vibe-check/internal/slackapi"
)

// actionHandler handles one block action. The request is acked by the
// dispatcher once every action ran.
type actionHandler func(c *gin.Context, cb *slack.InteractionCallback, a *slack.BlockAction)

// viewHandler handles a modal submission. Non-empty errs are shown on the
// modal's inputs; err is logged and reported to the submitter by DM.
type viewHandler func(c *gin.Context, ws *domain.Workspace, cb *slack.InteractionCallback) (errs map[string]string, err error)

func (h *Handlers) actionTable() map[string]actionHandler {
	return map[string]actionHandler{
		blocks.ActionSubmitStandup:      h.submitStandup,
		blocks.ActionSkipStandup:        h.skipStandup,
		blocks.ActionSubmitFeedback:     h.submitFeedback,
		blocks.ActionFeelingSelect:      ackOnly,
		blocks.ActionSatisfactionSelect: ackOnly,
	}
}

func (h *Handlers) viewTable() map[string]viewHandler {
	return map[string]viewHandler{
		blocks.ModalAddClient: h.viewAddClient,
		blocks.ModalPauseClient: h.clientView(h.clients.Pause,
			"⏸️ Standups paused for *%s*.\nUse `/vibe-resume` to resume their standups."),
		blocks.ModalResumeClient: h.clientView(h.clients.Resume,
			"▶️ Standups resumed for *%s*.\nThey will receive standups at their scheduled time."),
		blocks.ModalRemoveClient: h.clientView(h.clients.Remove,
			"🗑️ *%s* has been removed.\nAll their response history has been deleted."),
		blocks.ModalSetChannel: h.viewSetChannel,
	}
}

// SlackInteractions godoc
// @ID          slackInteractions
// @Summary     Slack interactivity webhook
// @Description Handles prompt buttons (submit, skip) and admin modal submissions.
// @Tags        Slack
// @Accept      x-www-form-urlencoded
// @Produce     json
// @Param       X-Slack-Signature          header string true "v0 HMAC signature"
// @Param       X-Slack-Request-Timestamp  header string true "Unix seconds"
// @Param       payload formData string true "InteractionCallback JSON"
// @Success     200
// @Failure     400 {object} handlers.ErrorResponse "Malformed payload"
// @Failure     401 {object} handlers.ErrorResponse "Bad signature"
// @Router      /slack/interactions [post]
func (h *Handlers) SlackInteractions(c *gin.Context) {
	raw := c.PostForm("payload")
	if raw == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing payload")
		return
	}
	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &cb); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("malformed interaction payload")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed payload")
		return
	}

	switch cb.Type {
	case slack.InteractionTypeBlockActions:
		h.blockActions(c, &cb)
	case slack.InteractionTypeViewSubmission:
		h.viewSubmission(c, &cb)
	default:
		middleware.LoggerFrom(c).Debug().Str("type", string(cb.Type)).Msg("interaction ignored")
		ack(c)
	}
}

func (h *Handlers) blockActions(c *gin.Context, cb *slack.InteractionCallback) {
	for _, a := range cb.ActionCallback.BlockActions {
		if fn, ok := h.actions[a.ActionID]; ok {
			fn(c, cb, a)
			continue
		}
		middleware.LoggerFrom(c).Debug().Str("action_id", a.ActionID).Msg("unhandled action")
	}
	ack(c)
}

func (h *Handlers) viewSubmission(c *gin.Context, cb *slack.InteractionCallback) {
	lg := middleware.LoggerFrom(c).With().
		Str("callback_id", cb.View.CallbackID).
		Str("team_id", cb.Team.ID).
		Str("user_id", cb.User.ID).
		Logger()

	fn, found := h.views[cb.View.CallbackID]
	if !found {
		lg.Debug().Msg("unhandled view")
		ack(c)
		return
	}
	ws, err := h.ws.ByTeamID(c.Request.Context(), cb.Team.ID)
	if err != nil {
		lg.Error().Err(err).Msg("view for unknown workspace")
		ack(c)
		return
	}
	if !ws.IsAdmin(cb.User.ID) {
		lg.Warn().Msg("view submitted by non-admin")
		ack(c)
		return
	}

	errs, err := fn(c, ws, cb)
	if len(errs) > 0 {
		c.JSON(http.StatusOK, slack.NewErrorsViewSubmissionResponse(errs))
		return
	}
	if err != nil {
		lg.Error().Err(err).Uint("workspace_id", ws.ID).Msg("view submission failed")
		h.notify(c, ws, cb.User.ID, msgGenericError)
	}
	ack(c)
}

// notify DMs userID; failures are only logged.
func (h *Handlers) notify(c *gin.Context, ws *domain.Workspace, userID, text string) {
	msgr, err := h.ws.Messenger(ws)
	if err == nil {
		_, _, err = msgr.Post(c.Request.Context(), userID, text, nil)
	}
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Str("user_id", userID).Msg("notify admin")
	}
}

//
// Prompt actions
//

func ackOnly(*gin.Context, *slack.InteractionCallback, *slack.BlockAction) {}

// promptMessage returns the DM holding the prompt.
func promptMessage(cb *slack.InteractionCallback) (channel, ts string) {
	channel, ts = cb.Container.ChannelID, cb.Container.MessageTs
	if channel == "" {
		channel = cb.Channel.ID
	}
	if ts == "" {
		ts = cb.Message.Timestamp
	}
	return channel, ts
}

// stateValue returns the submitted element actionID of block blockID.
func stateValue(cb *slack.InteractionCallback, blockID, actionID string) slack.BlockAction {
	if cb.BlockActionState == nil {
		return slack.BlockAction{}
	}
	return cb.BlockActionState.Values[blockID][actionID]
}

// rating reads a rating select. Unanswered selects give DefaultRating;
// garbage gives 0, which the service clamps and logs.
func rating(a slack.BlockAction) int {
	v := a.SelectedOption.Value
	if v == "" {
		return services.DefaultRating
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// promptContext parses the prompt key of a button and finds the workspace
// and messenger needed to answer it. ok is false when the action must be
// dropped; the reason is logged.
func (h *Handlers) promptContext(c *gin.Context, cb *slack.InteractionCallback, a *slack.BlockAction) (key blocks.PromptKey, ws *domain.Workspace, msgr *slackapi.Messenger, lg zerolog.Logger, ok bool) {
	lg = middleware.LoggerFrom(c).With().
		Str("action_id", a.ActionID).
		Str("team_id", cb.Team.ID).
		Str("user_id", cb.User.ID).
		Logger()

	key, err := blocks.ParsePromptKey(a.Value)
	if err != nil {
		lg.Warn().Err(err).Msg("bad prompt key")
		return key, nil, nil, lg, false
	}
	lg = lg.With().Int64("client_id", key.ClientID).Str("period", key.Date).Logger()

	ws, err = h.ws.ByTeamID(c.Request.Context(), cb.Team.ID)
	if err != nil {
		lg.Error().Err(err).Msg("prompt from unknown workspace")
		return key, nil, nil, lg, false
	}
	msgr, err = h.ws.Messenger(ws)
	if err != nil {
		lg.Error().Err(err).Msg("no messenger for workspace")
		return key, nil, nil, lg, false
	}
	return key, ws, msgr, lg, true
}

// confirm replaces the prompt DM with confirmation blocks.
func confirm(c *gin.Context, cb *slack.InteractionCallback, msgr *slackapi.Messenger, lg zerolog.Logger, text string, blks []slack.Block) {
	ch, ts := promptMessage(cb)
	if ch == "" || ts == "" {
		lg.Warn().Msg("interaction without message; confirmation skipped")
		return
	}
	if err := msgr.Update(c.Request.Context(), ch, ts, text, blks); err != nil {
		lg.Error().Err(err).Msg("update prompt")
	}
}

// saveFailed tells the client privately that the answer was not stored.
func saveFailed(c *gin.Context, cb *slack.InteractionCallback, msgr *slackapi.Messenger, lg zerolog.Logger) {
	ch, _ := promptMessage(cb)
	if ch == "" {
		return
	}
	if err := msgr.Ephemeral(c.Request.Context(), ch, cb.User.ID, msgGenericError); err != nil {
		lg.Error().Err(err).Msg("ephemeral error reply")
	}
}

func (h *Handlers) submitStandup(c *gin.Context, cb *slack.InteractionCallback, a *slack.BlockAction) {
	key, ws, msgr, lg, ok := h.promptContext(c, cb, a)
	if !ok {
		return
	}
	text := strings.TrimSpace
	sub := services.StandupSubmission{
		WorkspaceID:     ws.ID,
		ScheduledDate:   key.Date,
		Accomplishments: text(stateValue(cb, key.BlockID(blocks.FieldAccomplishments), blocks.InputAccomplishments).Value),
		WorkingOn:       text(stateValue(cb, key.BlockID(blocks.FieldWorkingOn), blocks.InputWorkingOn).Value),
		Blockers:        text(stateValue(cb, key.BlockID(blocks.FieldBlockers), blocks.InputBlockers).Value),
	}
	_, sub.MessageTS = promptMessage(cb)

	if key.IsTest() {
		lg.Info().Msg("test standup submitted")
		confirm(c, cb, msgr, lg, "Test standup submitted!", blocks.StandupConfirmation(true))
		return
	}
	sub.ClientID = uint(key.ClientID)
	_, err := h.responses.SaveStandup(c.Request.Context(), sub)
	switch {
	case errors.Is(err, services.ErrDuplicateResponse):
		lg.Info().Msg("standup already recorded")
	case err != nil:
		lg.Error().Err(err).Msg("save standup")
		saveFailed(c, cb, msgr, lg)
		return
	}
	confirm(c, cb, msgr, lg, "Standup submitted!", blocks.StandupConfirmation(true))
}

func (h *Handlers) skipStandup(c *gin.Context, cb *slack.InteractionCallback, a *slack.BlockAction) {
	_, _, msgr, lg, ok := h.promptContext(c, cb, a)
	if !ok {
		return
	}
	lg.Info().Msg("standup skipped")
	confirm(c, cb, msgr, lg, "Standup skipped", blocks.StandupConfirmation(false))
}

func (h *Handlers) submitFeedback(c *gin.Context, cb *slack.InteractionCallback, a *slack.BlockAction) {
	key, ws, msgr, lg, ok := h.promptContext(c, cb, a)
	if !ok {
		return
	}
	text := strings.TrimSpace
	sub := services.FeedbackSubmission{
		WorkspaceID:        ws.ID,
		WeekEnding:         key.Date,
		FeelingRating:      rating(stateValue(cb, key.BlockID(blocks.FieldFeelingRating), blocks.ActionFeelingSelect)),
		SatisfactionRating: rating(stateValue(cb, key.BlockID(blocks.FieldSatisfaction), blocks.ActionSatisfactionSelect)),
		FeelingText:        text(stateValue(cb, key.BlockID(blocks.FieldFeelingText), blocks.InputFeelingText).Value),
		Improvements:       text(stateValue(cb, key.BlockID(blocks.FieldImprovements), blocks.InputImprovements).Value),
		Blockers:           text(stateValue(cb, key.BlockID(blocks.FieldBlockers), blocks.InputBlockers).Value),
	}
	_, sub.MessageTS = promptMessage(cb)

	if key.IsTest() {
		lg.Info().Int("feeling", sub.FeelingRating).Int("satisfaction", sub.SatisfactionRating).Msg("test feedback submitted")
		confirm(c, cb, msgr, lg, "Test feedback submitted!", blocks.FeedbackConfirmation())
		return
	}
	sub.ClientID = uint(key.ClientID)
	_, err := h.responses.SaveFeedback(c.Request.Context(), sub)
	switch {
	case errors.Is(err, services.ErrDuplicateResponse):
		lg.Info().Msg("feedback already recorded")
	case err != nil:
		lg.Error().Err(err).Msg("save feedback")
		saveFailed(c, cb, msgr, lg)
		return
	}
	confirm(c, cb, msgr, lg, "Feedback submitted!", blocks.FeedbackConfirmation())
}

//
// Admin modals
//

// viewValue returns the submitted element actionID of block blockID.
func viewValue(cb *slack.InteractionCallback, blockID, actionID string) slack.BlockAction {
	if cb.View.State == nil {
		return slack.BlockAction{}
	}
	return cb.View.State.Values[blockID][actionID]
}

// selectedClient reads the client picker of the pause, resume and remove
// modals.
func selectedClient(cb *slack.InteractionCallback) (uint, bool) {
	v := viewValue(cb, blocks.BlockClientSelect, blocks.InputClientSelect).SelectedOption.Value
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *Handlers) viewAddClient(c *gin.Context, ws *domain.Workspace, cb *slack.InteractionCallback) (map[string]string, error) {
	ctx := c.Request.Context()
	in := services.NewClient{
		WorkspaceID:    ws.ID,
		SlackUserID:    viewValue(cb, blocks.BlockUserSelect, blocks.InputUser).SelectedUser,
		Timezone:       viewValue(cb, blocks.BlockTimezone, blocks.InputTimezone).SelectedOption.Value,
		ScheduleType:   viewValue(cb, blocks.BlockScheduleType, blocks.InputScheduleType).SelectedOption.Value,
		ScheduleTime:   viewValue(cb, blocks.BlockStandupTime, blocks.InputStandupTime).SelectedTime,
		EnableFeedback: true,
	}
	if in.SlackUserID == "" {
		return map[string]string{blocks.BlockUserSelect: "Select a user."}, nil
	}
	if in.ScheduleType == "" {
		in.ScheduleType = domain.ScheduleDaily
	}

	msgr, err := h.ws.Messenger(ws)
	if err != nil {
		return nil, err
	}
	u, err := msgr.UserInfo(ctx, in.SlackUserID)
	if err != nil {
		return nil, fmt.Errorf("users.info %s: %w", in.SlackUserID, err)
	}
	if u.IsBot {
		return map[string]string{blocks.BlockUserSelect: "Bots cannot be clients."}, nil
	}
	in.DisplayName = firstNonEmpty(u.Profile.DisplayName, u.Profile.RealName, u.RealName, u.Name, in.SlackUserID)
	in.Email = u.Profile.Email
	if in.Timezone == "" {
		in.Timezone = u.TZ
	}

	cl, err := h.clients.Add(ctx, in)
	switch {
	case errors.Is(err, services.ErrDuplicateClient):
		return map[string]string{blocks.BlockUserSelect: "This user is already a client."}, nil
	case errors.Is(err, services.ErrInvalidUser):
		return map[string]string{blocks.BlockUserSelect: "Select a user."}, nil
	case errors.Is(err, services.ErrInvalidTimezone):
		return map[string]string{blocks.BlockTimezone: "Unknown timezone."}, nil
	case errors.Is(err, services.ErrInvalidSchedule):
		return map[string]string{blocks.BlockScheduleType: "Choose a schedule."}, nil
	case errors.Is(err, services.ErrInvalidTime):
		return map[string]string{blocks.BlockStandupTime: "Choose a time."}, nil
	case err != nil:
		return nil, err
	}

	schedule := blocks.ScheduleLabel(in.ScheduleType) + " at " + blocks.Clock12(in.ScheduleTime)
	if cfg := cl.StandupConfig; cfg != nil {
		schedule = blocks.ScheduleLabel(cfg.ScheduleType) + " at " + blocks.Clock12(cfg.ScheduleTime)
	}
	h.notify(c, ws, cb.User.ID, fmt.Sprintf("✅ Successfully added <@%s> as a client!\n• Schedule: %s\n• Timezone: %s",
		cl.SlackUserID, schedule, cl.Timezone))
	return nil, nil
}

// clientView runs op on the picked client and DMs the formatted reply.
func (h *Handlers) clientView(op func(ctx context.Context, workspaceID, id uint) (*domain.Client, error), reply string) viewHandler {
	return func(c *gin.Context, ws *domain.Workspace, cb *slack.InteractionCallback) (map[string]string, error) {
		id, ok := selectedClient(cb)
		if !ok {
			return map[string]string{blocks.BlockClientSelect: "Select a client."}, nil
		}
		cl, err := op(c.Request.Context(), ws.ID, id)
		if errors.Is(err, services.ErrClientNotFound) {
			return map[string]string{blocks.BlockClientSelect: "This client no longer exists."}, nil
		}
		if errors.Is(err, services.ErrNoStandupConfig) {
			return map[string]string{blocks.BlockClientSelect: "This client has no standup schedule."}, nil
		}
		if err != nil {
			return nil, err
		}
		h.notify(c, ws, cb.User.ID, fmt.Sprintf(reply, cl.Name()))
		return nil, nil
	}
}

func (h *Handlers) viewSetChannel(c *gin.Context, ws *domain.Workspace, cb *slack.InteractionCallback) (map[string]string, error) {
	ch := viewValue(cb, blocks.BlockChannelSelect, blocks.InputChannelSelect).SelectedChannel
	err := h.ws.SetVibeChannel(c.Request.Context(), ws.ID, ch)
	if errors.Is(err, services.ErrInvalidChannel) {
		return map[string]string{blocks.BlockChannelSelect: "Select a channel."}, nil
	}
	if err != nil {
		return nil, err
	}
	h.notify(c, ws, cb.User.ID, fmt.Sprintf("✅ Vibe check channel set to <#%s>.\nClient feedback will be posted there.", ch))
	return nil, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
