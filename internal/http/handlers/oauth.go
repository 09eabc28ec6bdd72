// OAuth v2 install flow.
//
//   - GET /slack/install         redirects to Slack's consent screen
//   - GET /slack/oauth_redirect  exchanges the code and stores the workspace
//
// The state parameter is a short-lived HS256 JWT, so no server-side session
// is needed between the two legs.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"github.com/tbourn/vibe-check/internal/http/middleware"
	"github.com/tbourn/vibe-check/internal/services"
)

const (
	slackAuthorizeURL = "https://slack.com/oauth/v2/authorize"
	oauthCallbackPath = "/slack/oauth_redirect"
	stateIssuer       = "vibecheck"
	stateTTL          = 10 * time.Minute
)

// BotScopes are requested on install.
var BotScopes = []string{
	"chat:write",
	"im:write",
	"im:history",
	"users:read",
	"users:read.email",
	"channels:read",
	"channels:manage",
	"channels:join",
	"commands",
	"team:read",
}

func slackExchanger(clientID, secret string) OAuthExchanger {
	hc := &http.Client{Timeout: 15 * time.Second}
	return func(ctx context.Context, code, redirectURI string) (*slack.OAuthV2Response, error) {
		return slack.GetOAuthV2ResponseContext(ctx, hc, clientID, secret, code, redirectURI)
	}
}

// signState issues the state parameter for one install attempt.
func (h *Handlers) signState(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.oauth.StateSecret)
}

// verifyState checks signature, algorithm, issuer and expiry.
func (h *Handlers) verifyState(state string) error {
	if state == "" {
		return errors.New("missing state")
	}
	_, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return h.oauth.StateSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(stateIssuer), jwt.WithExpirationRequired())
	return err
}

// redirectURI is the configured callback or one derived from the request.
func (h *Handlers) redirectURI(c *gin.Context) string {
	if h.oauth.RedirectURL != "" {
		return h.oauth.RedirectURL
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + oauthCallbackPath
}

// SlackInstall godoc
// @ID          slackInstall
// @Summary     Start the Slack install
// @Description Redirects to Slack's OAuth v2 consent screen with the bot scopes and a signed state.
// @Tags        OAuth
// @Success     302
// @Failure     404 {object} handlers.ErrorResponse "OAuth not configured"
// @Router      /slack/install [get]
func (h *Handlers) SlackInstall(c *gin.Context) {
	if h.oauth.ClientID == "" {
		fail(c, http.StatusNotFound, ErrCodeOAuthDisabled, "install via OAuth is not configured")
		return
	}
	state, err := h.signState(time.Now())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "cannot sign state")
		return
	}
	q := url.Values{}
	q.Set("client_id", h.oauth.ClientID)
	q.Set("scope", strings.Join(BotScopes, ","))
	q.Set("state", state)
	q.Set("redirect_uri", h.redirectURI(c))
	c.Redirect(http.StatusFound, slackAuthorizeURL+"?"+q.Encode())
}

// SlackOAuthRedirect godoc
// @ID          slackOAuthRedirect
// @Summary     Finish the Slack install
// @Description Verifies state, exchanges the code and stores the workspace with its encrypted bot token. The installer becomes an admin.
// @Tags        OAuth
// @Produce     html
// @Param       code   query string false "Authorization code"
// @Param       state  query string false "Signed state"
// @Param       error  query string false "Set when the user cancelled"
// @Success     200 {string} string "Installed"
// @Failure     400 {string} string "Bad or expired state"
// @Failure     502 {string} string "Code exchange failed"
// @Router      /slack/oauth_redirect [get]
func (h *Handlers) SlackOAuthRedirect(c *gin.Context) {
	lg := middleware.LoggerFrom(c)
	if h.oauth.ClientID == "" {
		fail(c, http.StatusNotFound, ErrCodeOAuthDisabled, "install via OAuth is not configured")
		return
	}
	if e := c.Query("error"); e != "" {
		lg.Info().Str("error", e).Msg("install cancelled")
		messagePage(c, http.StatusBadRequest, "Installation cancelled", "Vibe Check was not added to your workspace.")
		return
	}
	if err := h.verifyState(c.Query("state")); err != nil {
		lg.Warn().Err(err).Msg("invalid oauth state")
		messagePage(c, http.StatusBadRequest, "Link expired", "This install link is invalid or expired. Please start again.")
		return
	}
	code := c.Query("code")
	if code == "" {
		messagePage(c, http.StatusBadRequest, "Missing code", "Slack did not return an authorization code.")
		return
	}

	ctx := c.Request.Context()
	resp, err := h.oauth.Exchange(ctx, code, h.redirectURI(c))
	if err != nil {
		lg.Error().Err(err).Msg("oauth code exchange")
		messagePage(c, http.StatusBadGateway, "Installation failed", "Slack rejected the installation. Please try again.")
		return
	}
	ws, err := h.ws.Install(ctx, services.Installation{
		TeamID:      resp.Team.ID,
		TeamName:    resp.Team.Name,
		BotToken:    resp.AccessToken,
		BotUserID:   resp.BotUserID,
		Scope:       resp.Scope,
		InstallerID: resp.AuthedUser.ID,
	})
	if err != nil {
		lg.Error().Err(err).Str("team_id", resp.Team.ID).Msg("store installation")
		messagePage(c, http.StatusInternalServerError, "Installation failed", "The workspace could not be saved. Please try again.")
		return
	}
	lg.Info().Uint("workspace_id", ws.ID).Str("team_id", ws.TeamID).Msg("workspace installed")
	messagePage(c, http.StatusOK, "Installed", "Vibe Check is now installed in "+ws.TeamName+". Use /vibe-add-client in Slack to get started.")
}
