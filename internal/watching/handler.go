package watching

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/internal/rating"
)

// Handler 暴露正在观看相关的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /currently-watching 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := api.Group("/currently-watching")
	{
		g.GET("", h.List)
		g.POST("", requireAuth, h.Upsert)
		g.DELETE("", requireAuth, h.Remove)
	}
}

// List 返回正在观看的列表
func (h *Handler) List(c *gin.Context) {
	opts := ListOptions{UserID: c.Query("userId"), Following: c.Query("following") == "true"}
	if opts.Following && opts.UserID == "" {
		opts.UserID = httpx.UserID(c)
	}
	views, err := h.svc.List(c.Request.Context(), opts)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currentlyWatching": views})
}

// Upsert 上报当前观看状态
func (h *Handler) Upsert(c *gin.Context) {
	var body UpsertInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	entry, err := h.svc.Upsert(c.Request.Context(), httpx.UserID(c), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// Remove 结束观看
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
