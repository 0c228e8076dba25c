package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scrumboard/internal/model"
	"scrumboard/internal/service/issue"
)

type IssueHandler struct {
	service issue.Service
	logger  *zap.Logger
}

func NewIssueHandler(service issue.Service, logger *zap.Logger) *IssueHandler {
	return &IssueHandler{service: service, logger: logger}
}

type createIssueRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	StatusID    string  `json:"status_id" binding:"required"`
	Priority    string  `json:"priority"`
	SprintID    string  `json:"sprint_id" binding:"required"`
	AssigneeID  *string `json:"assignee_id"`
}

type updateIssueRequest struct {
	StatusID *string `json:"status_id"`
	Priority *string `json:"priority"`
}

// Create handles POST /projects/:id/issues
func (h *IssueHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	created, err := h.service.Create(c.Request.Context(), p, c.Param("id"), issue.CreateRequest{
		Title:       req.Title,
		Description: req.Description,
		StatusID:    req.StatusID,
		Priority:    model.Priority(req.Priority),
		SprintID:    req.SprintID,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListBySprint handles GET /sprints/:id/issues
func (h *IssueHandler) ListBySprint(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	issues, err := h.service.ListBySprint(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

// Update handles PATCH /issues/:id
func (h *IssueHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req updateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	var priority *model.Priority
	if req.Priority != nil {
		pr := model.Priority(*req.Priority)
		priority = &pr
	}
	updated, err := h.service.Update(c.Request.Context(), p, c.Param("id"), issue.UpdateRequest{
		StatusID: req.StatusID,
		Priority: priority,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /issues/:id
func (h *IssueHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
