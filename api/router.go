// Package api 组装HTTP路由。
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/account"
	"github.com/haider-9/tvdom/internal/activity"
	"github.com/haider-9/tvdom/internal/comment"
	"github.com/haider-9/tvdom/internal/follow"
	"github.com/haider-9/tvdom/internal/media"
	"github.com/haider-9/tvdom/internal/notification"
	"github.com/haider-9/tvdom/internal/person"
	"github.com/haider-9/tvdom/internal/platform/config"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/internal/platform/health"
	"github.com/haider-9/tvdom/internal/platform/logging"
	"github.com/haider-9/tvdom/internal/platform/metrics"
	"github.com/haider-9/tvdom/internal/post"
	"github.com/haider-9/tvdom/internal/ratelimit"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/internal/watched"
	"github.com/haider-9/tvdom/internal/watching"
	"github.com/haider-9/tvdom/internal/watchlist"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps 是构建路由所需的全部依赖。
type Deps struct {
	Config config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Status *database.Status
}

// routeRegistrar 是各模块Handler的共同形状。
type routeRegistrar interface {
	RegisterRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc)
}

// NewRouter 创建gin引擎并注册项目的所有路由
func NewRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(logging.GinLogger(), gin.Recovery(), metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", health.Handler(deps.Status))
	r.GET("/metrics", metrics.Handler())

	sessions := user.NewSessionStore(deps.Redis, cfg.Session.TTL)
	notifications := notification.NewService(deps.DB, notification.Options{
		Retention:   cfg.Notifications.Retention,
		MaxDataKeys: cfg.Notifications.MaxDataKeys,
	})

	var loginLimiter *ratelimit.Limiter
	if cfg.Session.LoginAttempts > 0 {
		loginLimiter = ratelimit.New(deps.Redis, deps.Status, "login_attempts:", cfg.Session.LoginAttempts, cfg.Session.LoginWindow)
	}

	handlers := []routeRegistrar{
		user.NewHandler(user.NewService(deps.DB), sessions, cfg.Session.CookieName).
			WithRateLimit(ratelimit.Middleware(loginLimiter)),
		account.NewHandler(account.NewService(deps.DB, sessions), cfg.Session.CookieName),
		rating.NewHandler(rating.NewService(deps.DB)),
		watchlist.NewHandler(watchlist.NewService(deps.DB)),
		watched.NewHandler(watched.NewService(deps.DB)),
		person.NewHandler(person.NewService(deps.DB)),
		follow.NewHandler(follow.NewService(deps.DB, notifications)),
		notification.NewHandler(notifications, cfg.Notifications.Admins...),
		activity.NewHandler(activity.NewService(deps.DB)),
		watching.NewHandler(watching.NewService(deps.DB, cfg.Watching.StaleAfter)),
		media.NewHandler(media.NewService(deps.Redis, cfg.TMDB)),
		post.NewHandler(post.NewService(deps.DB)),
		comment.NewHandler(comment.NewService(deps.DB)),
	}

	api := r.Group("/api", user.LoadSessionMiddleware(sessions, deps.Status, cfg.Session.CookieName))
	requireAuth := user.RequireAuthMiddleware()
	for _, h := range handlers {
		h.RegisterRoutes(api, requireAuth)
	}
	return r
}
