package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scrumboard/internal/service/project"
)

type ProjectHandler struct {
	service project.Service
	logger  *zap.Logger
}

func NewProjectHandler(service project.Service, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{service: service, logger: logger}
}

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Key         string `json:"key" binding:"required"`
	Description string `json:"description"`
}

// List handles GET /projects
func (h *ProjectHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	projects, err := h.service.List(c.Request.Context(), p.OrganizationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	created, err := h.service.Create(c.Request.Context(), p.OrganizationID, project.CreateRequest{
		Name:        req.Name,
		Key:         req.Key,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	detail, err := h.service.Get(c.Request.Context(), p.OrganizationID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Delete handles DELETE /projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), p.OrganizationID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "project deleted"})
}
