// Slash command handlers.
//
// Every command except /vibe-help is limited to the workspace admins.
// Commands answer in the HTTP response: an ephemeral message, or an empty
// 200 once a modal was opened.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"

	"github.com/tbourn/vibe-check/internal/blocks"
	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/http/middleware"
	"github.com/tbourn/vibe-check/internal/services"
)

// Slash commands.
const (
	CmdAddClient    = "/vibe-add-client"
	CmdRemoveClient = "/vibe-remove-client"
	CmdListClients  = "/vibe-list-clients"
	CmdPause        = "/vibe-pause"
	CmdResume       = "/vibe-resume"
	CmdSetChannel   = "/vibe-set-channel"
	CmdTest         = "/vibe-test"
	CmdTestFeedback = "/vibe-test-feedback"
	CmdHelp         = "/vibe-help"
)

// commandHandler runs one slash command for an authorized caller. It writes
// the reply itself; a returned error is logged and answered generically.
type commandHandler struct {
	public bool
	run    func(c *gin.Context, ws *domain.Workspace, cmd slack.SlashCommand) error
}

func (h *Handlers) commandTable() map[string]commandHandler {
	return map[string]commandHandler{
		CmdAddClient:    {run: h.cmdAddClient},
		CmdRemoveClient: {run: h.clientSelectCommand("remove", blocks.RemoveClientModal)},
		CmdListClients:  {run: h.cmdListClients},
		CmdPause:        {run: h.clientSelectCommand("pause", blocks.PauseClientModal)},
		CmdResume:       {run: h.clientSelectCommand("resume", blocks.ResumeClientModal)},
		CmdSetChannel:   {run: h.cmdSetChannel},
		CmdTest:         {run: h.testCommand(domain.PromptStandup, "✅ Test standup sent to your DMs! (This is a test - responses won't be saved)")},
		CmdTestFeedback: {run: h.testCommand(domain.PromptFeedback, "✅ Test feedback form sent to your DMs! (This is a test - responses won't be saved)")},
		CmdHelp:         {public: true, run: h.cmdHelp},
	}
}

// SlackCommands godoc
// @ID          slackCommands
// @Summary     Slack slash commands webhook
// @Description Dispatches /vibe-* commands. Replies are ephemeral Slack messages.
// @Tags        Slack
// @Accept      x-www-form-urlencoded
// @Produce     json
// @Param       X-Slack-Signature          header string true "v0 HMAC signature"
// @Param       X-Slack-Request-Timestamp  header string true "Unix seconds"
// @Success     200
// @Failure     400 {object} handlers.ErrorResponse "Malformed form"
// @Failure     401 {object} handlers.ErrorResponse "Bad signature"
// @Router      /slack/commands [post]
func (h *Handlers) SlackCommands(c *gin.Context) {
	cmd, err := slack.SlashCommandParse(c.Request)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed slash command")
		return
	}
	lg := middleware.LoggerFrom(c).With().
		Str("command", cmd.Command).
		Str("team_id", cmd.TeamID).
		Str("user_id", cmd.UserID).
		Logger()

	handler, found := h.commands[cmd.Command]
	if !found {
		lg.Warn().Msg("unknown command")
		ephemeral(c, "Unknown command: "+cmd.Command, nil)
		return
	}

	ws, err := h.ws.Resolve(c.Request.Context(), cmd.TeamID, cmd.TeamDomain, cmd.UserID)
	switch {
	case errors.Is(err, services.ErrWorkspaceNotFound) || (err == nil && !ws.IsActive):
		ephemeral(c, msgWorkspaceNotFound, nil)
		return
	case err != nil:
		lg.Error().Err(err).Msg("resolve workspace")
		ephemeral(c, msgGenericError, nil)
		return
	}
	if !handler.public && !ws.IsAdmin(cmd.UserID) {
		lg.Info().Msg("command denied: not an admin")
		ephemeral(c, msgPermissionDenied, nil)
		return
	}

	if err := handler.run(c, ws, cmd); err != nil {
		lg.Error().Err(err).Uint("workspace_id", ws.ID).Msg("command failed")
		ephemeral(c, msgGenericError, nil)
	}
}

// openModal opens view for the command's trigger and acks the command.
func (h *Handlers) openModal(c *gin.Context, ws *domain.Workspace, triggerID string, view slack.ModalViewRequest) error {
	msgr, err := h.ws.Messenger(ws)
	if err != nil {
		return err
	}
	if err := msgr.OpenView(c.Request.Context(), triggerID, view); err != nil {
		return fmt.Errorf("open %s: %w", view.CallbackID, err)
	}
	ack(c)
	return nil
}

func (h *Handlers) cmdAddClient(c *gin.Context, ws *domain.Workspace, cmd slack.SlashCommand) error {
	return h.openModal(c, ws, cmd.TriggerID, blocks.AddClientModal())
}

func (h *Handlers) cmdSetChannel(c *gin.Context, ws *domain.Workspace, cmd slack.SlashCommand) error {
	return h.openModal(c, ws, cmd.TriggerID, blocks.SetChannelModal())
}

// clientSelectCommand opens a client picker, or explains that no client
// qualifies for action.
func (h *Handlers) clientSelectCommand(action string, build func([]domain.Client) (slack.ModalViewRequest, bool)) func(*gin.Context, *domain.Workspace, slack.SlashCommand) error {
	return func(c *gin.Context, ws *domain.Workspace, cmd slack.SlashCommand) error {
		clients, err := h.clients.List(c.Request.Context(), ws.ID, false)
		if err != nil {
			return err
		}
		view, ok := build(clients)
		if !ok {
			ephemeral(c, "No eligible clients.", blocks.NoClients(action))
			return nil
		}
		return h.openModal(c, ws, cmd.TriggerID, view)
	}
}

func (h *Handlers) cmdListClients(c *gin.Context, ws *domain.Workspace, _ slack.SlashCommand) error {
	clients, err := h.clients.List(c.Request.Context(), ws.ID, true)
	if err != nil {
		return err
	}
	ephemeral(c, fmt.Sprintf("%d active clients", len(clients)), blocks.ClientList(clients))
	return nil
}

func (h *Handlers) testCommand(kind, reply string) func(*gin.Context, *domain.Workspace, slack.SlashCommand) error {
	return func(c *gin.Context, ws *domain.Workspace, cmd slack.SlashCommand) error {
		if err := h.prompts.SendTest(c.Request.Context(), ws, cmd.UserID, kind); err != nil {
			return fmt.Errorf("send test %s: %w", kind, err)
		}
		ephemeral(c, reply, nil)
		return nil
	}
}

func (h *Handlers) cmdHelp(c *gin.Context, _ *domain.Workspace, _ slack.SlashCommand) error {
	ephemeral(c, "Vibe Check help", blocks.Help())
	return nil
}
