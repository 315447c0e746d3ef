// internal/middleware/auth_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/jwt"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ctxSubject = "subject"
	ctxJTI     = "jti"
	ctxRoles   = "roles"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// Auth validates the bearer token and stores its claims on the context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Warn("rejected bearer token",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}

		c.Set(ctxSubject, claims.Subject)
		c.Set(ctxJTI, claims.ID)
		c.Set(ctxRoles, claims.Roles)

		c.Next()
	}
}

// RequireRole requires at least one of roles. MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, role := range roles {
			if HasRole(c, role) {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "insufficient permissions",
			errors.New("user does not have required role"),
			map[string]interface{}{"required_roles": roles},
		)
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireRole)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleAdmin, jwt.RoleSuperAdmin),
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
