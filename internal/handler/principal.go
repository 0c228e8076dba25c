package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scrumboard/pkg/rbac"
)

const principalKey = "principal"

// SetPrincipal stores the authenticated caller on the request.
func SetPrincipal(c *gin.Context, p rbac.Principal) {
	c.Set(principalKey, p)
}

// CurrentPrincipal returns the caller stored by the auth middleware.
func CurrentPrincipal(c *gin.Context) (rbac.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return rbac.Principal{}, false
	}
	p, ok := v.(rbac.Principal)
	return p, ok
}

// principal reads the caller or writes 401 and reports false.
func principal(c *gin.Context) (rbac.Principal, bool) {
	p, ok := CurrentPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
	}
	return p, ok
}
