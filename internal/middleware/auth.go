package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fjfoyain/reservation-boss/internal/auth/jwt"
)

// AdminAuth 管理接口认证中间件
type AdminAuth struct {
	jwtManager *jwt.Manager
	log        *zap.Logger
}

// NewAdminAuth 创建管理接口认证中间件
func NewAdminAuth(jwtManager *jwt.Manager, log *zap.Logger) *AdminAuth {
	return &AdminAuth{
		jwtManager: jwtManager,
		log:        log,
	}
}

// RequireAdmin 要求携带 admin 角色的有效令牌。
func (aa *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}

		claims, err := aa.jwtManager.ValidateToken(token)
		if err != nil {
			aa.log.Warn("invalid admin token",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		if claims.Role != jwt.RoleAdmin {
			aa.log.Warn("insufficient role",
				zap.String("email", claims.Email),
				zap.String("role", claims.Role),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
			})
			c.Abort()
			return
		}

		// 将用户信息存储到上下文
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// extractBearerToken 从 Authorization header 提取令牌。
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
