package watchlist

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/internal/rating"
)

// Handler 暴露待看列表相关的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /watchlist 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := api.Group("/watchlist")
	{
		g.GET("", h.List)
		g.POST("", requireAuth, h.Add)
		g.DELETE("", requireAuth, h.Remove)
	}
}

// List 返回用户的待看列表
func (h *Handler) List(c *gin.Context) {
	userID, ok := httpx.TargetUserID(c)
	if !ok {
		return
	}
	items, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"watchlist": items})
}

// Add 加入待看列表
func (h *Handler) Add(c *gin.Context) {
	var body AddInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	item, err := h.svc.Add(c.Request.Context(), httpx.UserID(c), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// Remove 移出待看列表
func (h *Handler) Remove(c *gin.Context) {
	mediaID, ok := rating.MediaIDQuery(c)
	if !ok {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), httpx.UserID(c), mediaID); err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
