package person

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/pkg/apperr"
)

// Handler 暴露演职人员评分和收藏的HTTP接口
type Handler struct {
	svc *Service
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册 /person-ratings 和 /person-favorites 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	ratings := api.Group("/person-ratings")
	{
		ratings.GET("", h.ListRatings)
		ratings.POST("", requireAuth, h.Rate)
		ratings.DELETE("", requireAuth, h.DeleteRating)
	}
	favorites := api.Group("/person-favorites")
	{
		favorites.GET("", h.ListFavorites)
		favorites.POST("", requireAuth, h.AddFavorite)
		favorites.DELETE("", requireAuth, h.RemoveFavorite)
	}
}

func personIDQuery(c *gin.Context) (int64, bool) {
	raw, ok := httpx.RequireQuery(c, "personId")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(c, apperr.Validation("personId 格式错误"))
		return 0, false
	}
	return id, true
}

// ListRatings 返回用户的演职人员评分
func (h *Handler) ListRatings(c *gin.Context) {
	userID, ok := httpx.TargetUserID(c)
	if !ok {
		return
	}
	ratings, err := h.svc.ListRatings(c.Request.Context(), userID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": ratings})
}

// Rate 创建或覆盖演职人员评分
func (h *Handler) Rate(c *gin.Context) {
	var body RateInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	r, created, err := h.svc.Rate(c.Request.Context(), httpx.UserID(c), body)
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

// DeleteRating 删除演职人员评分
func (h *Handler) DeleteRating(c *gin.Context) {
	personID, ok := personIDQuery(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteRating(c.Request.Context(), httpx.UserID(c), personID); err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListFavorites 返回用户收藏的演职人员
func (h *Handler) ListFavorites(c *gin.Context) {
	userID, ok := httpx.TargetUserID(c)
	if !ok {
		return
	}
	favorites, err := h.svc.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

// AddFavorite 收藏演职人员
func (h *Handler) AddFavorite(c *gin.Context) {
	var body FavoriteInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	f, err := h.svc.AddFavorite(c.Request.Context(), httpx.UserID(c), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"favorite": f})
}

// RemoveFavorite 取消收藏
func (h *Handler) RemoveFavorite(c *gin.Context) {
	personID, ok := personIDQuery(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveFavorite(c.Request.Context(), httpx.UserID(c), personID); err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
