package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/haider-9/tvdom/pkg/token"
	"github.com/redis/go-redis/v9"
)

// 会话相关的Redis键
const (
	// sessionKeyPrefix + 令牌摘要 -> 用户ID (String, 带TTL)
	sessionKeyPrefix = "session:"
	// userSessionsKeyPrefix + 用户ID -> 该用户所有令牌摘要 (Set)
	userSessionsKeyPrefix = "user:sessions:"
)

// SessionStore 把登录令牌保存在Redis中，令牌原文从不落盘。
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionStore 创建会话存储，ttl 是令牌的有效期。
func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// TTL 返回会话有效期。
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create 为用户签发一个新令牌。
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	tok, err := token.Generate()
	if err != nil {
		return "", err
	}
	hash := token.Hash(tok)

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+hash, userID, s.ttl)
	pipe.SAdd(ctx, userSessionsKeyPrefix+userID, hash)
	pipe.Expire(ctx, userSessionsKeyPrefix+userID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", apperr.Unavailable("无法创建会话", err)
	}
	return tok, nil
}

// Resolve 返回令牌对应的用户ID，令牌无效或已过期时返回认证错误。
func (s *SessionStore) Resolve(ctx context.Context, tok string) (string, error) {
	if !token.WellFormed(tok) {
		return "", apperr.Authentication("会话无效")
	}
	userID, err := s.rdb.Get(ctx, sessionKeyPrefix+token.Hash(tok)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.Authentication("会话已过期，请重新登录")
	}
	if err != nil {
		return "", apperr.Unavailable("无法读取会话", err)
	}
	return userID, nil
}

// Revoke 使一个令牌失效，令牌不存在时无操作。
func (s *SessionStore) Revoke(ctx context.Context, tok string) error {
	if !token.WellFormed(tok) {
		return nil
	}
	hash := token.Hash(tok)
	userID, err := s.rdb.Get(ctx, sessionKeyPrefix+hash).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return apperr.Unavailable("无法读取会话", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+hash)
	pipe.SRem(ctx, userSessionsKeyPrefix+userID, hash)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Unavailable("无法注销会话", err)
	}
	return nil
}

// RevokeAll 使一个用户的所有令牌失效，返回失效的数量。
func (s *SessionStore) RevokeAll(ctx context.Context, userID string) (int, error) {
	indexKey := userSessionsKeyPrefix + userID
	hashes, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("无法读取用户会话列表: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	for _, h := range hashes {
		pipe.Del(ctx, sessionKeyPrefix+h)
	}
	pipe.Del(ctx, indexKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("无法注销用户会话: %w", err)
	}
	return len(hashes), nil
}
