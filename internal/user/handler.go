package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/rs/zerolog/log"
)

// LoginRequestBody 定义了登录请求体
type LoginRequestBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse 是登录和注册成功后的响应
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Handler 暴露用户与认证相关的HTTP接口
type Handler struct {
	svc        *Service
	sessions   *SessionStore
	cookieName string
	limit      gin.HandlerFunc
}

// NewHandler 创建处理函数集合
func NewHandler(svc *Service, sessions *SessionStore, cookieName string) *Handler {
	return &Handler{svc: svc, sessions: sessions, cookieName: cookieName}
}

// WithRateLimit 为登录和注册接口加上限流中间件
func (h *Handler) WithRateLimit(mw gin.HandlerFunc) *Handler {
	h.limit = mw
	return h
}

// RegisterRoutes 注册 /auth 和 /users 路由
func (h *Handler) RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	limit := h.limit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	auth := api.Group("/auth")
	{
		auth.POST("/register", limit, h.Register)
		auth.POST("/login", limit, h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", requireAuth, h.Me)
	}

	users := api.Group("/users")
	{
		users.GET("", h.GetUser)
		users.GET("/search", h.Search)
		users.PUT("", requireAuth, h.Update)
	}
}

func (h *Handler) issueSession(c *gin.Context, status int, u *User) {
	tok, err := h.sessions.Create(c.Request.Context(), u.ID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, tok, int(h.sessions.TTL().Seconds()), "/", "", false, true)
	c.JSON(status, AuthResponse{User: u, Token: tok})
}

// Register 处理注册请求
func (h *Handler) Register(c *gin.Context) {
	var body RegisterInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	u, err := h.svc.Register(c.Request.Context(), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	log.Info().Str("userID", u.ID).Str("username", u.Username).Msg("新用户注册")
	h.issueSession(c, http.StatusCreated, u)
}

// Login 处理登录请求
func (h *Handler) Login(c *gin.Context) {
	var body LoginRequestBody
	if !httpx.BindJSON(c, &body) {
		return
	}
	u, err := h.svc.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	h.issueSession(c, http.StatusOK, u)
}

// Logout 注销当前令牌，重复注销不会报错
func (h *Handler) Logout(c *gin.Context) {
	if tok := c.GetString(tokenKey); tok != "" {
		if err := h.sessions.Revoke(c.Request.Context(), tok); err != nil {
			httpx.Fail(c, err)
			return
		}
	}
	c.SetCookie(h.cookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me 返回当前登录用户
func (h *Handler) Me(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), httpx.UserID(c))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// GetUser 按 userId、email 或 username 查询用户
func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.svc.GetBy(c.Request.Context(), c.Query("userId"), c.Query("email"), c.Query("username"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// Search 按前缀搜索用户
func (h *Handler) Search(c *gin.Context) {
	page := httpx.ParsePage(c, 20, 50)
	users, err := h.svc.Search(c.Request.Context(), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Update 修改当前用户的资料
func (h *Handler) Update(c *gin.Context) {
	var body UpdateInput
	if !httpx.BindJSON(c, &body) {
		return
	}
	u, err := h.svc.Update(c.Request.Context(), httpx.UserID(c), body)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
