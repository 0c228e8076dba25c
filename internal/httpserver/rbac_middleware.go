package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scrumboard/internal/handler"
	"scrumboard/pkg/rbac"
)

// RequirePermission 中间件：要求调用者具有指定权限
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := handler.CurrentPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			return
		}

		if err := rbac.CheckPermission(p, permission); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}

		c.Next()
	}
}
