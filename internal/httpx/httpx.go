// Package httpx 收集各资源处理函数共用的Gin辅助函数。
package httpx

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/rs/zerolog/log"
)

// UserIDKey 是当前登录用户ID在Gin上下文中的键。
const UserIDKey = "userID"

// Fail 根据错误类别写出 {"error": "..."} 响应。
// 未分类的错误只记录日志，不把内部信息返回给客户端。
func Fail(c *gin.Context, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("请求处理失败")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}

// BindJSON 绑定并校验请求体，失败时写出400响应并返回false。
func BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		Fail(c, apperr.Validation("请求格式错误: "+err.Error()))
		return false
	}
	return true
}

// SetUserID 记录当前请求的登录用户。
func SetUserID(c *gin.Context, userID string) {
	c.Set(UserIDKey, userID)
}

// UserID 返回当前请求的登录用户ID，未登录时返回空字符串。
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// RequireQuery 读取必填的查询参数，缺失时写出400响应。
func RequireQuery(c *gin.Context, name string) (string, bool) {
	v := c.Query(name)
	if v == "" {
		Fail(c, apperr.Validation("缺少参数: "+name))
		return "", false
	}
	return v, true
}

// TargetUserID 读取 userId 查询参数，缺省为当前登录用户。
func TargetUserID(c *gin.Context) (string, bool) {
	if v := c.Query("userId"); v != "" {
		return v, true
	}
	if v := UserID(c); v != "" {
		return v, true
	}
	Fail(c, apperr.Validation("缺少参数: userId"))
	return "", false
}

// Page 是分页参数。
type Page struct {
	Limit  int
	Offset int
}

// ParsePage 解析 limit/offset，limit 被限制在 [1, max] 内。
func ParsePage(c *gin.Context, def, max int) Page {
	p := Page{Limit: def}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > max {
		p.Limit = max
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		p.Offset = v
	}
	return p
}
