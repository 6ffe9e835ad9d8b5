package rating

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/pkg/apperr"
)

// Handler 暴露评分相关的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /ratings 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := api.Group("/ratings")
	{
		g.GET("", h.List)
		g.POST("", requireAuth, h.Upsert)
		g.DELETE("", requireAuth, h.Delete)
	}
}

// MediaIDQuery 读取并解析 mediaId 查询参数
func MediaIDQuery(c *gin.Context) (int64, bool) {
	raw, ok := httpx.RequireQuery(c, "mediaId")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(c, apperr.Validation("mediaId 格式错误"))
		return 0, false
	}
	return id, true
}

// List 返回用户的评分
func (h *Handler) List(c *gin.Context) {
	userID, ok := httpx.TargetUserID(c)
	if !ok {
		return
	}
	ratings, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": ratings})
}

// Upsert 创建或覆盖评分
func (h *Handler) Upsert(c *gin.Context) {
	var body UpsertInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	r, created, err := h.svc.Upsert(c.Request.Context(), httpx.UserID(c), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"rating": r, "created": created})
}

// Delete 删除评分
func (h *Handler) Delete(c *gin.Context) {
	mediaID, ok := MediaIDQuery(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), httpx.UserID(c), mediaID); err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
