package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scrumboard/internal/service/status"
)

type StatusHandler struct {
	service status.Service
	logger  *zap.Logger
}

func NewStatusHandler(service status.Service, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{service: service, logger: logger}
}

type createStatusRequest struct {
	Name string `json:"name" binding:"required"`
	Key  string `json:"key" binding:"required"`
}

type updateStatusRequest struct {
	Name *string `json:"name"`
	Key  *string `json:"key"`
}

// List handles GET /statuses
func (h *StatusHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	statuses, err := h.service.List(c.Request.Context(), p.OrganizationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

// Create handles POST /statuses
func (h *StatusHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req createStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	created, err := h.service.Create(c.Request.Context(), p.OrganizationID, req.Name, req.Key)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update handles PATCH /statuses/:id
func (h *StatusHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	updated, err := h.service.Update(c.Request.Context(), p.OrganizationID, c.Param("id"), req.Name, req.Key)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /statuses/:id
func (h *StatusHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), p.OrganizationID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
