package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/service"
	"github.com/r41nm4k3r/AutopassGui/internal/utils"
)

// AuthMiddleware JWT认证中间件
type AuthMiddleware struct {
	auth service.AuthService
	jwt  *utils.JWTManager
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(auth service.AuthService, jwt *utils.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		auth: auth,
		jwt:  jwt,
	}
}

// RequireAuth 需要认证的中间件
// 未启用认证时直接放行，本机部署不强制登录
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.auth.Enabled() {
			c.Next()
			return
		}

		token := m.extractToken(c)
		if token == "" {
			m.reject(c, apperrors.New(apperrors.ErrAuthentication, "缺少认证令牌"))
			return
		}

		claims, err := m.jwt.ValidateAccessToken(token)
		if err != nil {
			m.reject(c, apperrors.New(apperrors.ErrTokenInvalid))
			return
		}

		// 令牌有效还要求会话未被撤销
		if _, err := m.auth.ValidateSession(c.Request.Context(), claims.SessionID); err != nil {
			m.reject(c, apperrors.New(apperrors.ErrTokenInvalid, "会话已失效"))
			return
		}

		// 将操作员信息存入上下文
		c.Set("operatorID", claims.OperatorID)
		c.Set("username", claims.Username)
		c.Set("nickname", claims.Nickname)
		c.Set("sessionID", claims.SessionID)
		c.Set("token", token)

		c.Next()
	}
}

// OptionalAuth 可选认证的中间件（不强制要求登录）
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.auth.Enabled() {
			c.Next()
			return
		}

		token := m.extractToken(c)
		if token != "" {
			if claims, err := m.jwt.ValidateAccessToken(token); err == nil {
				if _, err := m.auth.ValidateSession(c.Request.Context(), claims.SessionID); err == nil {
					c.Set("operatorID", claims.OperatorID)
					c.Set("username", claims.Username)
					c.Set("nickname", claims.Nickname)
					c.Set("sessionID", claims.SessionID)
					c.Set("token", token)
				}
			}
		}

		c.Next()
	}
}

// reject 拒绝请求
func (m *AuthMiddleware) reject(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.HTTPStatus(), apperrors.NewErrorResponse(err, c.GetString("request_id")))
	c.Abort()
}

// extractToken 从请求中提取令牌
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	// 1. 从Authorization Header获取 (Bearer Token)
	bearerToken := c.GetHeader("Authorization")
	if bearerToken != "" {
		parts := strings.Split(bearerToken, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// 2. 从X-Access-Token Header获取
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}

	// 3. 从Query参数获取，浏览器WebSocket握手无法携带Header
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// GetOperatorID 从上下文获取操作员ID
func GetOperatorID(c *gin.Context) (uint, bool) {
	if operatorID, exists := c.Get("operatorID"); exists {
		if id, ok := operatorID.(uint); ok {
			return id, true
		}
	}
	return 0, false
}

// GetUsername 从上下文获取用户名
func GetUsername(c *gin.Context) (string, bool) {
	if username, exists := c.Get("username"); exists {
		if name, ok := username.(string); ok {
			return name, true
		}
	}
	return "", false
}

// GetSessionID 从上下文获取会话ID
func GetSessionID(c *gin.Context) (string, bool) {
	if sessionID, exists := c.Get("sessionID"); exists {
		if id, ok := sessionID.(string); ok {
			return id, true
		}
	}
	return "", false
}

// IsAuthenticated 检查是否已认证
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("operatorID")
	return exists
}
