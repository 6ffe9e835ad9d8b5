package notification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/pkg/apperr"
)

// PatchRequestBody 定义了批量修改通知状态的请求体
type PatchRequestBody struct {
	Action          string   `json:"action" binding:"required,oneof=markRead markAllRead"`
	NotificationIDs []string `json:"notificationIds"`
}

// Handler 暴露通知相关的HTTP接口
type Handler struct {
	svc    *Service
	admins map[string]bool
}

// NewHandler 创建处理函数集合。admins 中的用户可以发广播或给他人发系统通知。
func NewHandler(svc *Service, admins ...string) *Handler {
	h := &Handler{svc: svc, admins: make(map[string]bool, len(admins))}
	for _, id := range admins {
		if id != "" {
			h.admins[id] = true
		}
	}
	return h
}

// RegisterRoutes 注册 /notifications 路由，全部需要登录
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g := api.Group("/notifications", requireAuth)
	{
		g.GET("", h.List)
		g.POST("", h.Create)
		g.PATCH("", h.Patch)
		g.DELETE("", h.Delete)
	}
}

// selfOnly 确保查询参数中的 userId（如果给出）就是当前用户
func selfOnly(c *gin.Context) (string, bool) {
	me := httpx.UserID(c)
	if q := c.Query("userId"); q != "" && q != me {
		httpx.Fail(c, apperr.Forbidden("只能访问自己的通知"))
		return "", false
	}
	return me, true
}

// List 返回当前用户的通知
func (h *Handler) List(c *gin.Context) {
	me, ok := selfOnly(c)
	if !ok {
		return
	}
	page := httpx.ParsePage(c, 50, 100)
	views, err := h.svc.List(c.Request.Context(), me, ListOptions{
		Limit:      page.Limit,
		Offset:     page.Offset,
		UnreadOnly: c.Query("unreadOnly") == "true",
	})
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": views})
}

// Create 创建一条通知。关注、评分类通知只由服务器内部产生；
// 广播和发给他人的通知只有管理员可以创建，广播只允许系统类通知。
func (h *Handler) Create(c *gin.Context) {
	var body CreateInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	if body.Type != TypeSystem && body.Type != TypeAPIChange {
		if body.Type.Valid() {
			httpx.Fail(c, apperr.Forbidden("该类型的通知只能由服务器产生"))
		} else {
			httpx.Fail(c, apperr.Validation("未知的通知类型"))
		}
		return
	}
	me := httpx.UserID(c)
	if body.UserID != me && !h.admins[me] {
		httpx.Fail(c, apperr.Forbidden("只有管理员可以发送广播或给其他用户发通知"))
		return
	}
	body.ActorID = me
	n, err := h.svc.Create(c.Request.Context(), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notification": View{Notification: *n, Read: n.Read}})
}

// Patch 标记已读
func (h *Handler) Patch(c *gin.Context) {
	var body PatchRequestBody
	if !httpx.BindJSON(c, &body) {
		return
	}
	me := httpx.UserID(c)

	var modified int64
	var err error
	switch body.Action {
	case "markRead":
		modified, err = h.svc.MarkRead(c.Request.Context(), me, body.NotificationIDs)
	case "markAllRead":
		modified, err = h.svc.MarkAllRead(c.Request.Context(), me)
	}
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "modifiedCount": modified})
}

// Delete 删除或隐藏一条通知
func (h *Handler) Delete(c *gin.Context) {
	id, ok := httpx.RequireQuery(c, "notificationId")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), httpx.UserID(c), id); err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
