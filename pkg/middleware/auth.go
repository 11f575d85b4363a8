package middleware

import (
	"strings"

	"zapline/backend/pkg/errors"
	"zapline/backend/pkg/jwt"
	"zapline/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware checks that the request has a valid JWT and adds claims to the context
func JWTAuthMiddleware(jwtService *jwt.Service, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.Error(errors.NewUnauthorizedError("Authorization header is required"))
			c.Abort()
			return
		}

		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			logger.Warn("invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("Invalid or expired token"))
			c.Abort()
			return
		}

		// Add claims to context
		c.Set("claims", claims)
		c.Set("userId", claims.UserID)
		c.Set("userName", claims.Name)

		c.Next()
	}
}

// AuthenticatedUser returns the user ID set by JWTAuthMiddleware
func AuthenticatedUser(c *gin.Context) (string, bool) {
	userID := c.GetString("userId")
	return userID, userID != ""
}
