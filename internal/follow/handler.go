package follow

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/pkg/apperr"
)

// CreateRequestBody 定义了关注请求体。followerId 可省略，省略时为当前用户。
type CreateRequestBody struct {
	FollowerID  string `json:"followerId"`
	FollowingID string `json:"followingId" binding:"required"`
}

// Handler 暴露关注相关的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /follows 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := api.Group("/follows")
	{
		g.GET("", h.List)
		g.GET("/status", h.Status)
		g.POST("", requireAuth, h.Create)
		g.DELETE("", requireAuth, h.Delete)
	}
}

// List 返回关注列表或粉丝列表
func (h *Handler) List(c *gin.Context) {
	userID, ok := httpx.TargetUserID(c)
	if !ok {
		return
	}
	dir := Direction(c.DefaultQuery("type", string(Following)))
	views, err := h.svc.List(c.Request.Context(), userID, dir)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"follows": views})
}

// Status 查询一对用户之间是否存在关注关系
func (h *Handler) Status(c *gin.Context) {
	followingID, ok := httpx.RequireQuery(c, "followingId")
	if !ok {
		return
	}
	followerID := c.Query("followerId")
	if followerID == "" {
		followerID = httpx.UserID(c)
	}
	if followerID == "" {
		httpx.Fail(c, apperr.Validation("缺少参数: followerId"))
		return
	}
	following, err := h.svc.IsFollowing(c.Request.Context(), followerID, followingID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": following})
}

// Create 关注一个用户
func (h *Handler) Create(c *gin.Context) {
	var body CreateRequestBody
	if !httpx.BindJSON(c, &body) {
		return
	}
	me := httpx.UserID(c)
	if body.FollowerID != "" && body.FollowerID != me {
		httpx.Fail(c, apperr.Forbidden("只能以自己的身份关注"))
		return
	}
	f, err := h.svc.Create(c.Request.Context(), me, body.FollowingID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "follow": f})
}

// Delete 取消关注
func (h *Handler) Delete(c *gin.Context) {
	followingID, ok := httpx.RequireQuery(c, "followingId")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), httpx.UserID(c), followingID); err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
