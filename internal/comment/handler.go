package comment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
)

// Handler 暴露评论相关的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /comments 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := api.Group("/comments")
	{
		g.GET("", h.List)
		g.POST("", requireAuth, h.Create)
		g.DELETE("", requireAuth, h.Delete)
	}
}

// List 返回动态下的评论
func (h *Handler) List(c *gin.Context) {
	postID, ok := httpx.RequireQuery(c, "postId")
	if !ok {
		return
	}
	page := httpx.ParsePage(c, 50, 200)
	comments, err := h.svc.List(c.Request.Context(), postID, page.Limit, page.Offset)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// Create 发表评论
func (h *Handler) Create(c *gin.Context) {
	var body CreateInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	comment, err := h.svc.Create(c.Request.Context(), httpx.UserID(c), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "comment": comment})
}

// Delete 删除评论
func (h *Handler) Delete(c *gin.Context) {
	commentID, ok := httpx.RequireQuery(c, "commentId")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), commentID, httpx.UserID(c)); err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
