package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scrumboard/internal/service/organization"
)

type OrganizationHandler struct {
	service organization.Service
	logger  *zap.Logger
}

func NewOrganizationHandler(service organization.Service, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{service: service, logger: logger}
}

// Me handles GET /me
func (h *OrganizationHandler) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	user, err := h.service.Me(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":            user,
		"organization_id": p.OrganizationID,
		"role":            p.Role,
	})
}

// Organization handles GET /organization
func (h *OrganizationHandler) Organization(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	org, err := h.service.Organization(c.Request.Context(), p.OrganizationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

// Members handles GET /organization/users
func (h *OrganizationHandler) Members(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	members, err := h.service.Members(c.Request.Context(), p.OrganizationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": members})
}
