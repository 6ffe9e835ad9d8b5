package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/haider-9/tvdom/api"
	"github.com/haider-9/tvdom/internal/notification"
	"github.com/haider-9/tvdom/internal/platform/config"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/internal/platform/health"
	"github.com/haider-9/tvdom/internal/platform/logging"
	"github.com/haider-9/tvdom/internal/platform/shutdown"
	"github.com/haider-9/tvdom/internal/platform/startup"
	"github.com/haider-9/tvdom/pkg/lifecycle"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("无法加载配置")
	}
	logging.Setup(cfg.Log)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("无法连接数据库")
	}
	rdb, err := database.OpenRedis(context.Background(), cfg.Database.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("无法连接Redis")
	}

	// 1. 阻塞式获取初始Run ID
	status := database.NewStatus()
	checker := health.NewChecker(rdb, status)
	if err := checker.InitializeRunID(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("无法获取Redis run_id")
	}

	// 2. 迁移表结构
	if err := startup.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("应用初始化失败，无法启动")
	}

	// 3. 启动后台服务
	gracefulMgr := lifecycle.NewManager("graceful")
	forcefulMgr := lifecycle.NewManager("forceful")

	if err := gracefulMgr.Go("redis-health", checker.Run); err != nil {
		log.Fatal().Err(err).Msg("无法启动健康检查器")
	}

	notifications := notification.NewService(db, notification.Options{
		Retention:   cfg.Notifications.Retention,
		MaxDataKeys: cfg.Notifications.MaxDataKeys,
	})
	sweeperForceful, err := forcefulMgr.NewServiceHandle("notification-sweeper")
	if err != nil {
		log.Fatal().Err(err).Msg("无法注册通知清理调度器")
	}
	err = gracefulMgr.Go("notification-sweeper", func(h *lifecycle.Handle) {
		notifications.RunSweeper(h, sweeperForceful, cfg.Notifications.SweepInterval)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("无法启动通知清理调度器")
	}

	// 4. HTTP服务
	router := api.NewRouter(api.Deps{Config: *cfg, DB: db, Redis: rdb, Status: status})
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("服务器已准备就绪，开始监听")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP服务器启动失败")
		}
	}()

	shutdown.NewCoordinator(gracefulMgr, forcefulMgr).ListenForSignalsAndShutdown(server)

	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭Redis连接失败")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("优雅停机完成。")
}
