package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scrumboard/internal/model"
	"scrumboard/internal/service/sprint"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// ActivityLister reads a sprint's activity feed.
type ActivityLister interface {
	ListBySprint(ctx context.Context, sprintID string, limit int) ([]model.Activity, error)
}

type SprintHandler struct {
	service  sprint.Service
	activity ActivityLister
	logger   *zap.Logger
}

func NewSprintHandler(service sprint.Service, activity ActivityLister, logger *zap.Logger) *SprintHandler {
	return &SprintHandler{service: service, activity: activity, logger: logger}
}

type createSprintRequest struct {
	Name      string    `json:"name" binding:"required"`
	StartDate time.Time `json:"start_date" binding:"required"`
	EndDate   time.Time `json:"end_date" binding:"required"`
}

type updateSprintStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// List handles GET /projects/:id/sprints
func (h *SprintHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	sprints, err := h.service.List(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sprints": sprints})
}

// Create handles POST /projects/:id/sprints
func (h *SprintHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	created, err := h.service.Create(c.Request.Context(), p, c.Param("id"), sprint.CreateRequest{
		Name:      req.Name,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateStatus handles PATCH /sprints/:id/status
func (h *SprintHandler) UpdateStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req updateSprintStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), p, c.Param("id"), model.SprintStatus(req.Status))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Activity handles GET /sprints/:id/activity?limit=50
func (h *SprintHandler) Activity(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultActivityLimit)))
	if err != nil || limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	sp, err := h.service.Get(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	entries, err := h.activity.ListBySprint(c.Request.Context(), sp.ID, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}
