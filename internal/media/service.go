// Package media 代理外部影视元数据服务（TMDB），带Redis缓存和熔断器。
package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/haider-9/tvdom/internal/platform/config"
	"github.com/haider-9/tvdom/internal/platform/metrics"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
)

const cacheKeyPrefix = "tmdb:"

// Service 获取影视详情。
type Service struct {
	rdb     *redis.Client
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	ttl     time.Duration
}

// NewService 根据配置创建服务。
func NewService(rdb *redis.Client, cfg config.TMDBConfig) *Service {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.AccessToken != "" {
		client.SetAuthToken(cfg.AccessToken)
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "tmdb",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// 上游明确回答“不存在”不算故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, apperr.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("熔断器状态变化")
		},
	})

	return &Service{rdb: rdb, client: client, breaker: breaker, ttl: cfg.CacheTTL}
}

func cacheKey(mediaType rating.MediaType, id int64) string {
	return fmt.Sprintf("%s%s:%d", cacheKeyPrefix, mediaType, id)
}

// ParseID 校验媒体类型和ID。
func ParseID(mediaType, rawID string) (rating.MediaType, int64, error) {
	t := rating.MediaType(mediaType)
	if t != rating.Movie && t != rating.TV {
		return "", 0, apperr.Validation("type 必须是 movie 或 tv")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, apperr.Validation("id 格式错误")
	}
	return t, id, nil
}

// Details 返回作品详情的原始JSON。
// 缓存不可用时直接请求上游；熔断器打开时返回Unavailable。
func (s *Service) Details(ctx context.Context, mediaType rating.MediaType, id int64) ([]byte, error) {
	key := cacheKey(mediaType, id)

	cached, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		metrics.MediaCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	case errors.Is(err, redis.Nil):
		metrics.MediaCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.MediaCacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("key", key).Msg("读取影视缓存失败")
	}

	body, err := s.breaker.Execute(func() ([]byte, error) {
		return s.fetch(ctx, mediaType, id)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperr.Unavailable("影视数据服务暂不可用", err)
		}
		return nil, err
	}

	if err := s.rdb.Set(ctx, key, body, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("写入影视缓存失败")
	}
	return body, nil
}

func (s *Service) fetch(ctx context.Context, mediaType rating.MediaType, id int64) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"type": string(mediaType), "id": strconv.FormatInt(id, 10)}).
		Get("/{type}/{id}")
	if err != nil {
		return nil, apperr.Unavailable("无法连接影视数据服务", err)
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
		return resp.Body(), nil
	case code == http.StatusNotFound:
		return nil, apperr.NotFound(fmt.Sprintf("找不到 %s %d", mediaType, id))
	default:
		return nil, apperr.Unavailable(fmt.Sprintf("影视数据服务返回 %d", code), nil)
	}
}
