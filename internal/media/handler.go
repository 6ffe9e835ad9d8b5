package media

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
)

// Handler 暴露影视详情代理接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /media 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, _ gin.HandlerFunc) {
	api.GET("/media/:type/:id", h.Details)
}

// Details 返回作品详情
func (h *Handler) Details(c *gin.Context) {
	mediaType, id, err := ParseID(c.Param("type"), c.Param("id"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	body, err := h.svc.Details(c.Request.Context(), mediaType, id)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
