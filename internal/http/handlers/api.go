// JSON API handlers.
//
// Read-only endpoints under the API base path, guarded by the dashboard
// API key:
//   - GET /clients        clients with their configs (paginated)
//   - GET /clients/{id}   one client
//   - GET /jobs           scheduled jobs
//   - GET /workspaces     installed workspaces
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/scheduler"
	"github.com/tbourn/vibe-check/internal/utils"
)

const (
	defaultAPIPageSize = 20
	maxAPIPageSize     = 100
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func paginationFor(p utils.Page, total int64) Pagination {
	return Pagination{
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      total,
		TotalPages: p.TotalPages(total),
		HasNext:    p.HasNext(total),
	}
}

// ListClientsResponse wraps a page of clients and pagination information.
type ListClientsResponse struct {
	Clients    []domain.Client `json:"clients"`
	Pagination Pagination      `json:"pagination"`
}

// ListJobsResponse lists scheduled jobs.
type ListJobsResponse struct {
	Jobs []scheduler.Job `json:"jobs"`
}

// ListWorkspacesResponse lists installed workspaces.
type ListWorkspacesResponse struct {
	Workspaces []domain.Workspace `json:"workspaces"`
}

// ListClients godoc
// @ID          listClients
// @Summary     List clients (paginated)
// @Description Returns clients with their standup and feedback configs, ordered by name.
// @Tags        Clients
// @Produce     json
// @Security    ApiKeyAuth
//
// @Param       workspace  query  int  false "Workspace id; 0 or absent for all"
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListClientsResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid API key"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /clients [get]
func (h *Handlers) ListClients(c *gin.Context) {
	p := utils.ParsePage(c.Query("page"), c.Query("page_size"), defaultAPIPageSize, maxAPIPageSize)
	wsID := uint(utils.AtoiDefault(c.Query("workspace"), 0))

	items, total, err := h.clients.Page(c.Request.Context(), wsID, p.Offset(), p.Size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Client{}
	}
	ok(c, http.StatusOK, ListClientsResponse{Clients: items, Pagination: paginationFor(p, total)})
}

// GetClient godoc
// @ID          getClient
// @Summary     Get a client
// @Tags        Clients
// @Produce     json
// @Security    ApiKeyAuth
// @Param       id   path  int  true  "Client id"
// @Success     200  {object} domain.Client
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid API key"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /clients/{id} [get]
func (h *Handlers) GetClient(c *gin.Context) {
	id, valid := parseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "client not found")
		return
	}
	cl, err := h.clients.Get(c.Request.Context(), 0, id)
	if err != nil {
		status, code := statusFor(err)
		fail(c, status, code, err.Error())
		return
	}
	ok(c, http.StatusOK, cl)
}

// ListJobs godoc
// @ID          listJobs
// @Summary     List scheduled jobs
// @Description Returns every scheduled prompt and system job with its next fire time.
// @Tags        Jobs
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200  {object} handlers.ListJobsResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid API key"
// @Router      /jobs [get]
func (h *Handlers) ListJobs(c *gin.Context) {
	jobs := []scheduler.Job{}
	if h.jobs != nil {
		jobs = h.jobs.Jobs()
	}
	ok(c, http.StatusOK, ListJobsResponse{Jobs: jobs})
}

// ListWorkspaces godoc
// @ID          listWorkspaces
// @Summary     List workspaces
// @Tags        Workspaces
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200  {object} handlers.ListWorkspacesResponse
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid API key"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /workspaces [get]
func (h *Handlers) ListWorkspaces(c *gin.Context) {
	items, err := h.ws.List(c.Request.Context(), false)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Workspace{}
	}
	ok(c, http.StatusOK, ListWorkspacesResponse{Workspaces: items})
}
