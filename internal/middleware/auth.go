package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jurimate/casedraft-backend/internal/common"
	"github.com/jurimate/casedraft-backend/pkg/jwt"
)

// JWTAuth JWT authentication middleware
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			common.ErrorResponse(c, 401, "Missing authorization header", nil)
			c.Abort()
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, 401, "Token expired", err)
			} else {
				common.ErrorResponse(c, 401, "Invalid token", err)
			}
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("name", claims.Name)
		c.Set("role", claims.Role)
		c.Set("firmID", claims.FirmID)

		c.Next()
	}
}

// extractToken reads the bearer token from the Authorization header,
// falling back to the token query parameter for WebSocket upgrades
// (브라우저 WebSocket API는 헤더를 붙일 수 없다)
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("userID")
	if !exists {
		return ""
	}
	if str, ok := userID.(string); ok {
		return str
	}
	return ""
}

// GetUserName extracts user name from context
func GetUserName(c *gin.Context) string {
	name, exists := c.Get("name")
	if !exists {
		return ""
	}
	if str, ok := name.(string); ok {
		return str
	}
	return ""
}

// GetUserRole extracts user role from context
func GetUserRole(c *gin.Context) string {
	role, exists := c.Get("role")
	if !exists {
		return ""
	}
	if str, ok := role.(string); ok {
		return str
	}
	return ""
}

// GetFirmID extracts the user's firm ID from context
func GetFirmID(c *gin.Context) string {
	firmID, exists := c.Get("firmID")
	if !exists {
		return ""
	}
	if str, ok := firmID.(string); ok {
		return str
	}
	return ""
}
