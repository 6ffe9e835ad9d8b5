package activity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
)

// Handler 暴露动态流的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /activities 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, _ gin.HandlerFunc) {
	api.GET("/activities", h.Feed)
}

// Feed 返回动态流
func (h *Handler) Feed(c *gin.Context) {
	scope := Scope(c.DefaultQuery("type", string(ScopeFollowing)))
	userID := c.Query("userId")
	if userID == "" {
		userID = httpx.UserID(c)
	}
	page := httpx.ParsePage(c, 20, 100)
	activities, err := h.svc.Feed(c.Request.Context(), userID, scope, page.Limit, page.Offset)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}
