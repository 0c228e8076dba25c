package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scrumboard/internal/handler"
	"scrumboard/internal/service/organization"
	"scrumboard/pkg/logger"
	"scrumboard/pkg/metrics"
	"scrumboard/pkg/rbac"
	"scrumboard/pkg/trace"
	"scrumboard/pkg/util"
)

const claimsKey = "session_claims"

// TraceMiddleware 为每个请求确保 trace_id，并回写到响应头
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(trace.HeaderName); id != "" {
			ctx = trace.WithContext(ctx, id)
		}
		ctx, id := trace.Ensure(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(trace.HeaderName, id)
		c.Next()
	}
}

// RequestLogger 记录请求日志与 HTTP 延迟指标
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(status), latency)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		l := logger.WithTrace(c.Request.Context(), log)
		if status >= http.StatusInternalServerError {
			l.Error("request", fields...)
			return
		}
		l.Info("request", fields...)
	}
}

// AuthMiddleware 校验会话令牌，并把调用者写入 context
func AuthMiddleware(jwtSecret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := util.ParseSessionToken(token, jwtSecret, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.OrgID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "organization required"})
			return
		}
		if !rbac.IsKnownRole(claims.OrgRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": organization.ErrUnknownRole.Error()})
			return
		}

		handler.SetPrincipal(c, rbac.Principal{
			UserID:         claims.Subject,
			OrganizationID: claims.OrgID,
			Role:           claims.OrgRole,
		})
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// MemberSyncer 将会话中的用户与组织同步到本地
type MemberSyncer interface {
	Sync(ctx context.Context, req organization.SyncRequest) error
}

// OnceGuard 在 TTL 内对同一 key 去重
type OnceGuard interface {
	AcquireOnce(ctx context.Context, handler, id string) bool
	Release(ctx context.Context, handler, id string)
}

const memberSyncHandler = "member_sync"

// MemberSyncMiddleware 在首次请求时同步用户、组织与成员关系。guard 为 nil 时每次都同步
func MemberSyncMiddleware(syncer MemberSyncer, guard OnceGuard, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(claimsKey)
		if !ok {
			c.Next()
			return
		}
		claims := v.(*util.SessionClaims)
		ctx := c.Request.Context()

		key := claims.Subject + ":" + claims.OrgID + ":" + claims.OrgRole
		if guard != nil && !guard.AcquireOnce(ctx, memberSyncHandler, key) {
			c.Next()
			return
		}

		err := syncer.Sync(ctx, organization.SyncRequest{
			UserID:   claims.Subject,
			Email:    claims.Email,
			Name:     claims.Name,
			ImageURL: claims.Picture,
			OrgID:    claims.OrgID,
			OrgSlug:  claims.OrgSlug,
			Role:     claims.OrgRole,
		})
		if err != nil {
			if guard != nil {
				guard.Release(ctx, memberSyncHandler, key)
			}
			if errors.Is(err, organization.ErrMissingUser) || errors.Is(err, organization.ErrUnknownRole) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			logger.WithTrace(ctx, log).Error("Failed to sync member",
				zap.String("user_id", claims.Subject),
				zap.String("org_id", claims.OrgID),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.Next()
	}
}
