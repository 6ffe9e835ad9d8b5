// Package ratelimit 用Redis有序集合实现按键的滑动窗口计数，
// 用来限制同一IP的登录和注册频率。
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/httpx"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter 在 window 内最多放行 limit 次。
type Limiter struct {
	rdb    *redis.Client
	status *database.Status
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// New 创建一个限流器，prefix 是Redis键名前缀。
func New(rdb *redis.Client, status *database.Status, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		rdb:    rdb,
		status: status,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
		now:    time.Now,
	}
}

// Compensator 封装一次计数的回滚逻辑，在请求失败时通过defer撤销计数。
type Compensator struct {
	rdb       *redis.Client
	key       string
	member    string
	committed bool
}

// Commit 保留本次计数。
func (c *Compensator) Commit() {
	c.committed = true
}

// RollbackUnlessCommitted 在没有 Commit 时从有序集合中移除本次计数。
func (c *Compensator) RollbackUnlessCommitted() {
	if c.committed {
		return
	}
	// 请求上下文可能已经取消，补偿使用独立的上下文
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.rdb.ZRem(ctx, c.key, c.member).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.key).Msg("限流计数补偿失败")
	}
}

// Acquire 为 ip 记录一次尝试。超过上限时返回 ErrRateLimited，且不占用名额。
func (l *Limiter) Acquire(ctx context.Context, ip string) (*Compensator, error) {
	if net.ParseIP(ip) == nil {
		return nil, apperr.Validation("无效的客户端IP")
	}
	if !l.status.IsRedisHealthy() {
		return nil, apperr.Unavailable("服务暂时不可用，请稍后重试", nil)
	}

	now := l.now()
	key := l.prefix + ip
	member := uuid.Must(uuid.NewV7()).String()
	minScore := now.Add(-l.window).UnixMicro()

	// 清理窗口外的记录、加入本次记录并读取计数，在一个事务中完成
	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", minScore))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	pipe.Expire(ctx, key, l.window+time.Minute)
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, apperr.Unavailable("服务暂时不可用，请稍后重试", fmt.Errorf("执行限流计数事务失败: %w", err))
	}

	comp := &Compensator{rdb: l.rdb, key: key, member: member}
	if countCmd.Val() > l.limit {
		comp.RollbackUnlessCommitted()
		return nil, apperr.RateLimited("尝试次数过多，请稍后再试")
	}
	return comp, nil
}

// Middleware 按客户端IP限流。服务端错误（5xx）的请求不计入次数。
// l 为 nil 时直接放行。
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.limit <= 0 {
			c.Next()
			return
		}
		comp, err := l.Acquire(c.Request.Context(), c.ClientIP())
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		defer comp.RollbackUnlessCommitted()

		c.Next()
		if c.Writer.Status() < http.StatusInternalServerError {
			comp.Commit()
		}
	}
}
