package database

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Status 负责线程安全地记录Redis的健康状态。
// 会话相关的接口在Redis不可用时直接返回503。
type Status struct {
	mu             sync.RWMutex
	isRedisHealthy bool
	lastKnownRunID string
}

// NewStatus 创建一个状态记录，默认启动时是健康的。
func NewStatus() *Status {
	return &Status{isRedisHealthy: true}
}

// IsRedisHealthy 返回当前Redis的健康状态。
func (s *Status) IsRedisHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRedisHealthy
}

// SetInitialRunID 在应用启动时设置初始的Redis run_id。
func (s *Status) SetInitialRunID(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKnownRunID = runID
}

// Update 更新健康状态，并返回Redis是否在两次检查之间重启过。
func (s *Status) Update(isHealthy bool, newRunID string) (restarted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 只有当状态发生变化时才打印日志
	if s.isRedisHealthy != isHealthy {
		s.isRedisHealthy = isHealthy
		if isHealthy {
			log.Info().Msg("健康检查: Redis服务状态已更新为 [可用]")
		} else {
			log.Warn().Msg("健康检查警告: Redis服务状态已更新为 [不可用]")
		}
	}

	// 只有在健康状态下，才更新已知的run_id
	if isHealthy {
		restarted = s.lastKnownRunID != "" && s.lastKnownRunID != newRunID
		s.lastKnownRunID = newRunID
	}
	return restarted
}

// LastKnownRunID 返回最近一次健康时的run_id。
func (s *Status) LastKnownRunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastKnownRunID
}
