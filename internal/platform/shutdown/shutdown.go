// Package shutdown 编排两阶段的优雅停机。
package shutdown

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haider-9/tvdom/pkg/lifecycle"
	"github.com/rs/zerolog/log"
)

// Timeouts 定义停机各阶段的最长等待时间。
type Timeouts struct {
	HTTP     time.Duration
	Graceful time.Duration
	Forceful time.Duration
}

// DefaultTimeouts 是生产环境使用的超时。
var DefaultTimeouts = Timeouts{
	HTTP:     15 * time.Second,
	Graceful: 30 * time.Second,
	Forceful: time.Second,
}

// Coordinator 负责编排应用程序的优雅停机流程。
// 它接收外部创建的生命周期管理器，并使用它们来协调停机。
type Coordinator struct {
	GracefulManager *lifecycle.Manager
	ForcefulManager *lifecycle.Manager
	Timeouts        Timeouts
}

// NewCoordinator 创建一个新的停机协调器。
func NewCoordinator(gracefulMgr, forcefulMgr *lifecycle.Manager) *Coordinator {
	return &Coordinator{
		GracefulManager: gracefulMgr,
		ForcefulManager: forcefulMgr,
		Timeouts:        DefaultTimeouts,
	}
}

// ListenForSignalsAndShutdown 启动信号监听并阻塞，直到停机流程完成。
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("收到关闭信号，开始优雅停机...")
	c.Shutdown(server)
}

// Shutdown 先关闭HTTP服务器，再分两阶段停止后台服务。
// 返回第二阶段结束后仍未退出的服务名。
func (c *Coordinator) Shutdown(server *http.Server) []string {
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.Timeouts.HTTP)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP服务器关闭错误")
		} else {
			log.Info().Msg("HTTP服务器已关闭。")
		}
	}

	// --- 阶段一: 优雅停机 ---
	log.Info().Dur("timeout", c.Timeouts.Graceful).Msg("第一阶段停机：等待后台任务完成...")
	c.GracefulManager.Shutdown()
	remaining := c.GracefulManager.WaitWithTimeout(c.Timeouts.Graceful)
	if len(remaining) == 0 {
		log.Info().Msg("所有服务已在第一阶段优雅关闭。")
		c.ForcefulManager.Shutdown()
		return nil
	}

	// --- 阶段二: 强制停机 ---
	log.Warn().Strs("services", remaining).Dur("timeout", c.Timeouts.Forceful).Msg("第一阶段超时，发送强制停机信号")
	c.ForcefulManager.Shutdown()
	stuck := c.ForcefulManager.WaitWithTimeout(c.Timeouts.Forceful)
	if len(stuck) > 0 {
		log.Error().Strs("services", stuck).Msg("强制停机后仍有服务未退出")
	}
	return stuck
}
