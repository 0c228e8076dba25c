package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"scrumboard/internal/handler"
	"scrumboard/pkg/otel"
	"scrumboard/pkg/rbac"
)

// Pinger 用于 readiness 检查数据库
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Organization *handler.OrganizationHandler
	Project      *handler.ProjectHandler
	Sprint       *handler.SprintHandler
	Status       *handler.StatusHandler
	Issue        *handler.IssueHandler
	Board        *handler.BoardHandler
	Admin        *handler.AdminHandler
}

type AuthConfig struct {
	Secret string
	Issuer string
	Syncer MemberSyncer
	Guard  OnceGuard
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(h Handlers, auth AuthConfig, db Pinger, logger *zap.Logger) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogger(logger))

	// 健康检查端点（放在最前面）
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.Use(otel.GinMiddleware(), AuthMiddleware(auth.Secret, auth.Issuer))
	if auth.Syncer != nil {
		api.Use(MemberSyncMiddleware(auth.Syncer, auth.Guard, logger))
	}
	read := RequirePermission(rbac.PermissionReadBoard)
	write := RequirePermission(rbac.PermissionWriteIssue)
	{
		api.GET("/me", read, h.Organization.Me)
		api.GET("/organization", read, h.Organization.Organization)
		api.GET("/organization/users", read, h.Organization.Members)

		api.GET("/statuses", read, h.Status.List)
		api.POST("/statuses", RequirePermission(rbac.PermissionManageStatus), h.Status.Create)
		api.PATCH("/statuses/:id", RequirePermission(rbac.PermissionManageStatus), h.Status.Update)
		api.DELETE("/statuses/:id", RequirePermission(rbac.PermissionManageStatus), h.Status.Delete)

		api.GET("/projects", read, h.Project.List)
		api.POST("/projects", RequirePermission(rbac.PermissionCreateProject), h.Project.Create)
		api.GET("/projects/:id", read, h.Project.Get)
		api.DELETE("/projects/:id", RequirePermission(rbac.PermissionDeleteProject), h.Project.Delete)
		api.GET("/projects/:id/sprints", read, h.Sprint.List)
		api.POST("/projects/:id/sprints", RequirePermission(rbac.PermissionCreateSprint), h.Sprint.Create)
		api.POST("/projects/:id/issues", write, h.Issue.Create)

		api.PATCH("/sprints/:id/status", RequirePermission(rbac.PermissionManageSprint), h.Sprint.UpdateStatus)
		api.GET("/sprints/:id/issues", read, h.Issue.ListBySprint)
		api.GET("/sprints/:id/activity", read, h.Sprint.Activity)
		api.POST("/sprints/:id/board/move", RequirePermission(rbac.PermissionReorderBoard), h.Board.Move)
		api.PUT("/sprints/:id/board/order", RequirePermission(rbac.PermissionReorderBoard), h.Board.Apply)

		api.PATCH("/issues/:id", write, h.Issue.Update)
		api.DELETE("/issues/:id", write, h.Issue.Delete)

		admin := api.Group("/admin", RequirePermission(rbac.PermissionReplayOutbox))
		admin.POST("/outbox/replay", h.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", h.Admin.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}
