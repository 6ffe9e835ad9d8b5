package health

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultCheckInterval = 5 * time.Second
	pingTimeout          = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// Checker 定期检查Redis的可用性，并把结果写入 database.Status。
type Checker struct {
	rdb      *redis.Client
	status   *database.Status
	interval time.Duration
}

// NewChecker 创建一个健康检查器。
func NewChecker(rdb *redis.Client, status *database.Status) *Checker {
	return &Checker{rdb: rdb, status: status, interval: defaultCheckInterval}
}

// getRedisRunID 从Redis服务器信息中提取run_id
func (c *Checker) getRedisRunID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	info, err := c.rdb.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	matches := runIDPattern.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("无法在Redis INFO中找到run_id")
	}
	return matches[1], nil
}

// InitializeRunID 在应用启动时执行一次，获取并设置初始的run_id。
func (c *Checker) InitializeRunID(ctx context.Context) error {
	runID, err := c.getRedisRunID(ctx)
	if err != nil {
		return fmt.Errorf("无法在启动时获取Redis Run ID，请检查Redis服务: %w", err)
	}
	c.status.SetInitialRunID(runID)
	log.Info().Str("runID", runID).Msg("获取初始Redis Run ID成功")
	return nil
}

// PerformCheck 执行一次健康检查。
// Redis重启意味着所有会话都已丢失，用户需要重新登录。
func (c *Checker) PerformCheck(ctx context.Context) {
	currentRunID, err := c.getRedisRunID(ctx)
	if err != nil {
		c.status.Update(false, "")
		return
	}
	if c.status.Update(true, currentRunID) {
		log.Warn().Str("runID", currentRunID).Msg("健康检查: 检测到Redis重启，已有登录会话全部失效")
	}
}

// Run 阻塞式地循环执行健康检查，直到收到停机信号。
func (c *Checker) Run(handle *lifecycle.Handle) {
	defer handle.Close()
	log.Info().Msg("Redis健康检查器已启动。")

	for {
		if err := handle.Sleep(c.interval); err != nil {
			log.Info().Msg("Redis健康检查器: 收到停机信号，正在关闭...")
			return
		}
		c.PerformCheck(handle.Ctx())
	}
}

// Handler 返回 /healthz 的处理函数。
func Handler(status *database.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !status.IsRedisHealthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": true})
	}
}
