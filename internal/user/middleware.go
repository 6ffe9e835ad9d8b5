package user

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/pkg/apperr"
)

// tokenKey 是当前请求令牌原文在Gin上下文中的键，注销时使用。
const tokenKey = "sessionToken"

// extractToken 依次从 Authorization 头和会话Cookie中读取令牌。
func extractToken(c *gin.Context, cookieName string) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if tok, err := c.Cookie(cookieName); err == nil {
		return tok
	}
	return ""
}

// LoadSessionMiddleware 解析请求携带的令牌并把用户ID放入Gin上下文中。
// 没有令牌的请求照常放行；令牌无效时同样放行，由 RequireAuthMiddleware 决定是否拒绝。
func LoadSessionMiddleware(sessions *SessionStore, status *database.Status, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := extractToken(c, cookieName)
		if tok == "" {
			c.Next()
			return
		}
		if !status.IsRedisHealthy() {
			httpx.Fail(c, apperr.Unavailable("会话服务暂时不可用", nil))
			return
		}

		userID, err := sessions.Resolve(c.Request.Context(), tok)
		switch {
		case err == nil:
			httpx.SetUserID(c, userID)
			c.Set(tokenKey, tok)
		case errors.Is(err, apperr.ErrUnavailable):
			httpx.Fail(c, err)
			return
		}
		c.Next()
	}
}

// RequireAuthMiddleware 拒绝未登录的请求。
func RequireAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpx.UserID(c) == "" {
			httpx.Fail(c, apperr.Authentication("请先登录"))
			return
		}
		c.Next()
	}
}
