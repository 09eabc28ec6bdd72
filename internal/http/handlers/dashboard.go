// Dashboard HTML handlers.
//
//   - GET  /dashboard                            workspace overview
//   - GET  /dashboard/clients/:id                client history (paginated)
//   - GET  /dashboard/jobs                       scheduler table
//   - POST /dashboard/clients/:id/send-standup   manual standup
//   - POST /dashboard/clients/:id/send-feedback  manual feedback form
//
// The group is guarded by middleware.APIKey. A key given as the api_key
// query parameter is carried through every link so the pages stay
// navigable from a bookmarked URL.
package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/http/middleware"
	"github.com/tbourn/vibe-check/internal/scheduler"
	"github.com/tbourn/vibe-check/internal/services"
	"github.com/tbourn/vibe-check/internal/utils"
)

const (
	historyPageSize    = 20
	historyMaxPageSize = 100
)

// authQuery returns "api_key=..." when the key came in the query string.
func authQuery(c *gin.Context) string {
	if k := c.Query("api_key"); k != "" {
		return url.Values{"api_key": {k}}.Encode()
	}
	return ""
}

// page adds the layout fields every dashboard page needs.
func page(c *gin.Context, title string, data gin.H) gin.H {
	data["Title"] = title
	data["Dashboard"] = true
	data["Q"] = authQuery(c)
	data["Key"] = c.Query("api_key")
	return data
}

func parseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// Dashboard renders the overview of one workspace (?workspace=ID) or of all.
func (h *Handlers) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	wsID := uint(utils.AtoiDefault(c.Query("workspace"), 0))

	ov, err := h.reports.Overview(ctx, wsID)
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Msg("dashboard overview")
		messagePage(c, http.StatusInternalServerError, "Error", "The overview could not be loaded.")
		return
	}
	workspaces, err := h.ws.List(ctx, false)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("list workspaces")
	}
	c.HTML(http.StatusOK, "dashboard.html", page(c, "Overview", gin.H{
		"Overview":    ov,
		"Workspaces":  workspaces,
		"WorkspaceID": wsID,
	}))
}

// clientJobs returns the scheduled jobs of clientID.
func (h *Handlers) clientJobs(clientID uint) []scheduler.Job {
	if h.jobs == nil {
		return nil
	}
	var out []scheduler.Job
	for _, j := range h.jobs.Jobs() {
		if j.ClientID == clientID {
			out = append(out, j)
		}
	}
	return out
}

// DashboardClient renders a client's standup and feedback history.
func (h *Handlers) DashboardClient(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		messagePage(c, http.StatusNotFound, "Not found", "No such client.")
		return
	}
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"), historyPageSize, historyMaxPageSize)

	hist, err := h.reports.History(c.Request.Context(), 0, id, p.Offset(), p.Size)
	if errors.Is(err, services.ErrClientNotFound) {
		messagePage(c, http.StatusNotFound, "Not found", "No such client.")
		return
	}
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Uint("client_id", id).Msg("client history")
		messagePage(c, http.StatusInternalServerError, "Error", "The client history could not be loaded.")
		return
	}

	total := max(hist.StandupTotal, hist.FeedbackTotal)
	c.HTML(http.StatusOK, "client.html", page(c, hist.Client.Name(), gin.H{
		"History":    hist,
		"Jobs":       h.clientJobs(id),
		"Flash":      c.Query("flash"),
		"Page":       p,
		"TotalPages": p.TotalPages(total),
		"HasNext":    p.HasNext(total),
	}))
}

// DashboardJobs renders the scheduler table.
func (h *Handlers) DashboardJobs(c *gin.Context) {
	var jobs []scheduler.Job
	if h.jobs != nil {
		jobs = h.jobs.Jobs()
	}
	c.HTML(http.StatusOK, "jobs.html", page(c, "Jobs", gin.H{"Jobs": jobs}))
}

// sendFlash describes a manual send for the redirect.
func sendFlash(kind string, out services.SendOutcome) string {
	what := "Standup"
	if kind == domain.PromptFeedback {
		what = "Feedback form"
	}
	switch out {
	case services.SendSent:
		return what + " sent."
	case services.SendAnswered:
		return what + " not sent: already answered for this period."
	case services.SendSkipped:
		return what + " not sent: client or workspace inactive."
	default:
		return what + " not sent."
	}
}

// DashboardSend returns the manual send handler for kind. The send-lock is
// bypassed; an existing answer for the period still prevents the send.
func (h *Handlers) DashboardSend(kind string) gin.HandlerFunc {
	send := h.prompts.ForceStandup
	if kind == domain.PromptFeedback {
		send = h.prompts.ForceFeedback
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := parseID(c.Param("id"))
		if !ok {
			messagePage(c, http.StatusNotFound, "Not found", "No such client.")
			return
		}
		if _, err := h.clients.Get(ctx, 0, id); err != nil {
			if errors.Is(err, services.ErrClientNotFound) {
				messagePage(c, http.StatusNotFound, "Not found", "No such client.")
				return
			}
			middleware.LoggerFrom(c).Error().Err(err).Uint("client_id", id).Msg("load client")
			messagePage(c, http.StatusInternalServerError, "Error", "The client could not be loaded.")
			return
		}

		out, err := send(ctx, id)
		flash := sendFlash(kind, out)
		if err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Uint("client_id", id).Str("kind", kind).Msg("manual send")
			flash = "Send failed. Check the logs for details."
		}

		q := url.Values{"flash": {flash}}
		if k := c.Query("api_key"); k != "" {
			q.Set("api_key", k)
		}
		c.Redirect(http.StatusSeeOther, "/dashboard/clients/"+strconv.FormatUint(uint64(id), 10)+"?"+q.Encode())
	}
}
