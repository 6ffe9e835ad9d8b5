package post

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/pkg/apperr"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler 暴露动态相关的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /posts 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := api.Group("/posts")
	{
		g.GET("", h.List)
		g.POST("", requireAuth, h.Create)
		g.PUT("", requireAuth, h.Update)
		g.DELETE("", requireAuth, h.Delete)
	}
}

// List 返回单条动态(postId)、某个用户的动态(userId)或全站动态
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	viewer := httpx.UserID(c)

	if postID := c.Query("postId"); postID != "" {
		v, err := h.svc.Get(ctx, postID, viewer)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"post": v})
		return
	}

	page := httpx.ParsePage(c, defaultPageSize, maxPageSize)
	// 兼容按页码翻页
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 1 {
		page.Offset = (n - 1) * page.Limit
	}
	views, total, err := h.svc.List(ctx, ListOptions{
		UserID: c.Query("userId"),
		Viewer: viewer,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts": views,
		"pagination": gin.H{
			"limit":  page.Limit,
			"offset": page.Offset,
			"total":  total,
		},
	})
}

// Create 发布动态
func (h *Handler) Create(c *gin.Context) {
	var body CreateInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	p, err := h.svc.Create(c.Request.Context(), httpx.UserID(c), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": p})
}

type updateBody struct {
	PostID  string `json:"postId" binding:"required"`
	Action  string `json:"action" binding:"required"`
	Content string `json:"content" binding:"max=2000"`
}

// Update 点赞/取消点赞(action=like)或修改内容(action=update)
func (h *Handler) Update(c *gin.Context) {
	var body updateBody
	if !httpx.BindJSON(c, &body) {
		return
	}
	ctx := c.Request.Context()
	userID := httpx.UserID(c)

	switch body.Action {
	case "like":
		liked, count, err := h.svc.ToggleLike(ctx, body.PostID, userID)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "liked": liked, "likeCount": count})
	case "update":
		p, err := h.svc.Update(ctx, body.PostID, userID, body.Content)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "post": p})
	default:
		httpx.Fail(c, apperr.Validation("action 必须是 like 或 update"))
	}
}

// Delete 删除动态
func (h *Handler) Delete(c *gin.Context) {
	postID, ok := httpx.RequireQuery(c, "postId")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), postID, httpx.UserID(c)); err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
