package watched

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/internal/rating"
)

// Handler 暴露已看记录相关的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /watched 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := api.Group("/watched")
	{
		g.GET("", h.List)
		g.POST("", requireAuth, h.Mark)
		g.DELETE("", requireAuth, h.Remove)
	}
}

// List 返回用户的已看记录
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
	c.JSON(http.StatusOK, gin.H{"watched": items})
}

// Mark 标记已看
func (h *Handler) Mark(c *gin.Context) {
	var body MarkInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	res, err := h.svc.Mark(c.Request.Context(), httpx.UserID(c), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// Remove 删除已看记录
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
