package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// Home renders the landing page with the "Add to Slack" button.
func (h *Handlers) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "home.html", gin.H{
		"Title":          "Home",
		"InstallEnabled": h.oauth.ClientID != "",
	})
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Tags        System
// @Produce     json
// @Success     200 {object} handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{Status: "ok"})
}
