package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/haider-9/tvdom/internal/platform/metadata"
	"github.com/haider-9/tvdom/internal/platform/metrics"
	"github.com/haider-9/tvdom/pkg/lifecycle"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Sweep 删除超过保留期的通知及其回执，返回删除的通知数量。
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.cutoff()
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&Notification{}).Select("id").Where("created_at < ?", cutoff)
		if err := tx.Where("notification_id IN (?)", expired).Delete(&Receipt{}).Error; err != nil {
			return fmt.Errorf("删除过期通知回执失败: %w", err)
		}
		res := tx.Where("created_at < ?", cutoff).Delete(&Notification{})
		if res.Error != nil {
			return fmt.Errorf("删除过期通知失败: %w", res.Error)
		}
		removed = res.RowsAffected
		return metadata.SetTime(tx, metadata.LastNotificationSweepKey, s.now())
	})
	if err != nil {
		return 0, err
	}
	metrics.NotificationsPurged.Add(float64(removed))
	return removed, nil
}

// RunSweeper 定期执行 Sweep，直到收到第一阶段停机信号。
// 正在进行的清理只会被第二阶段（强制）停机信号中断。
// 启动时如果距离上次清理已超过一个周期，则立即清理一次。
func (s *Service) RunSweeper(gracefulHandle, forcefulHandle *lifecycle.Handle, interval time.Duration) {
	defer forcefulHandle.Close()
	log.Info().Dur("interval", interval).Msg("通知清理调度器已启动。")

	last, err := metadata.GetTime(s.db.WithContext(forcefulHandle.Ctx()), metadata.LastNotificationSweepKey)
	if err != nil {
		log.Warn().Err(err).Msg("通知清理调度器: 无法读取上次清理时间")
	}
	wait := interval
	if last.IsZero() || s.now().Sub(last) >= interval {
		wait = 0
	}

	for {
		if err := gracefulHandle.Sleep(wait); err != nil {
			log.Info().Msg("通知清理调度器: 休眠被中断，正在关闭...")
			return
		}
		wait = interval

		removed, err := s.Sweep(forcefulHandle.Ctx())
		if err != nil {
			if forcefulHandle.Err() == nil {
				log.Error().Err(err).Msg("通知清理调度器: 清理失败")
			}
			continue
		}
		if removed > 0 {
			log.Info().Int64("removed", removed).Msg("通知清理调度器: 已删除过期通知")
		}
	}
}
