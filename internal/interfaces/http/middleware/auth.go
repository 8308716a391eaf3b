// internal/interfaces/http/middleware/auth.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/interfaces/http/response"
	"github.com/your-org/storefront/internal/pkg/auth"
	pkgerrors "github.com/your-org/storefront/internal/pkg/errors"
)

const (
	principalKey = "principal_id"
	emailKey     = "user_email"
	adminKey     = "is_admin"
)

// AuthMiddleware requires a valid bearer token
func AuthMiddleware(jwtManager *auth.JWTManager, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, logger, pkgerrors.New(pkgerrors.CodeUnauthorized, "authorization header required"))
			return
		}

		tokenString := auth.ExtractTokenFromHeader(authHeader)
		if tokenString == "" {
			response.Error(c, logger, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid authorization header format"))
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			response.Error(c, logger, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid or expired token"))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// AdminMiddleware ensures the user is an admin. It must run after AuthMiddleware.
func AdminMiddleware(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetPrincipalFromContext(c); !ok {
			response.Error(c, logger, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		if !IsAdminFromContext(c) {
			response.Error(c, logger, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the user when a valid token is sent and
// otherwise lets the request through anonymously
func OptionalAuthMiddleware(jwtManager *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			c.Next()
			return
		}

		if claims, err := jwtManager.ValidateToken(tokenString); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(principalKey, claims.PrincipalID())
	c.Set(emailKey, claims.Email)
	c.Set(adminKey, claims.IsAdmin)
}

// GetPrincipalFromContext returns the signed-in principal id
func GetPrincipalFromContext(c *gin.Context) (string, bool) {
	principal := c.GetString(principalKey)
	return principal, principal != ""
}

// GetUserEmailFromContext extracts user email from gin context
func GetUserEmailFromContext(c *gin.Context) (string, bool) {
	email := c.GetString(emailKey)
	return email, email != ""
}

// IsAdminFromContext checks if user is admin from gin context
func IsAdminFromContext(c *gin.Context) bool {
	return c.GetBool(adminKey)
}
