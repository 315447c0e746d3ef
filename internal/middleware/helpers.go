// internal/middleware/helpers.go
package middleware

import (
	"slices"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// GetSubject gets the token subject from context
func GetSubject(c *gin.Context) (string, bool) {
	return getString(c, ctxSubject)
}

// GetJTI gets the token id from context
func GetJTI(c *gin.Context) (string, bool) {
	return getString(c, ctxJTI)
}

// GetRequestID gets the request id assigned by LoggingMiddleware
func GetRequestID(c *gin.Context) string {
	id, _ := getString(c, ctxRequestID)
	return id
}

// GetRoles gets user roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get(ctxRoles)
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// HasRole checks the roles stored by Auth()
func HasRole(c *gin.Context, role string) bool {
	return slices.Contains(GetRoles(c), role)
}

// IsAdmin checks if user is an admin
func IsAdmin(c *gin.Context) bool {
	return HasRole(c, jwt.RoleAdmin) || HasRole(c, jwt.RoleSuperAdmin)
}

// CanActFor reports whether the authenticated caller may act on userID's
// account: the token subject is that user, or the caller is an admin.
func CanActFor(c *gin.Context, userID string) bool {
	subject, ok := GetSubject(c)
	if ok && subject != "" && subject == userID {
		return true
	}
	return IsAdmin(c)
}

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
