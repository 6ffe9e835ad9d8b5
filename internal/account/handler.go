package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
)

// Handler 暴露账号删除接口
type Handler struct {
	svc        *Service
	cookieName string
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service, cookieName string) *Handler {
	return &Handler{svc: svc, cookieName: cookieName}
}

// RegisterRoutes 注册 DELETE /users
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	api.DELETE("/users", requireAuth, h.Delete)
}

// Delete 删除当前登录的账号
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), httpx.UserID(c)); err != nil {
		httpx.Fail(c, err)
		return
	}
	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
