// Package watching 维护“正在观看”状态，闲置超过阈值的记录在读取前清理。
package watching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/follow"
	"github.com/haider-9/tvdom/internal/platform/metadata"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListLimit 是单次返回的最大条目数。
const ListLimit = 50

// UpsertInput 是上报观看状态的数据。
type UpsertInput struct {
	MediaID       int64            `json:"mediaId" binding:"required"`
	MediaType     rating.MediaType `json:"mediaType" binding:"required,oneof=movie tv"`
	MediaTitle    string           `json:"mediaTitle" binding:"max=255"`
	MediaPoster   string           `json:"mediaPoster"`
	SeasonNumber  *int             `json:"seasonNumber" binding:"omitempty,min=0"`
	EpisodeNumber *int             `json:"episodeNumber" binding:"omitempty,min=0"`
}

// ListOptions 控制列表范围。
type ListOptions struct {
	// UserID 为空时列出全站
	UserID string
	// Following 为 true 时列出 UserID 关注的人
	Following bool
}

// Service 维护正在观看记录。
type Service struct {
	db         *gorm.DB
	staleAfter time.Duration
	now        func() time.Time
}

// NewService 创建服务，staleAfter 是记录的最大闲置时间。
func NewService(db *gorm.DB, staleAfter time.Duration) *Service {
	return &Service{db: db, staleAfter: staleAfter, now: func() time.Time { return time.Now().UTC() }}
}

// Purge 删除闲置超时的记录，返回删除数量。
func (s *Service) Purge(ctx context.Context) (int64, error) {
	now := s.now()
	db := s.db.WithContext(ctx)
	result := db.Where("last_active_at < ?", now.Add(-s.staleAfter)).Delete(&Entry{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理过期观看记录失败: %w", result.Error)
	}
	if err := metadata.SetTime(db, metadata.LastWatchingPurgeKey, now); err != nil {
		// 记录时间失败不影响本次清理
		log.Warn().Err(err).Msg("无法记录观看记录的清理时间")
	}
	return result.RowsAffected, nil
}

// List 先清理过期记录，再按最近活跃时间返回列表。
func (s *Service) List(ctx context.Context, opts ListOptions) ([]View, error) {
	if _, err := s.Purge(ctx); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	query := db.Model(&Entry{})
	switch {
	case opts.Following:
		if opts.UserID == "" {
			return nil, apperr.Validation("缺少参数: userId")
		}
		ids, err := follow.FollowingIDs(db, opts.UserID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []View{}, nil
		}
		query = query.Where("user_id IN ?", ids)
	case opts.UserID != "":
		query = query.Where("user_id = ?", opts.UserID)
	}

	var entries []Entry
	if err := query.Order("last_active_at DESC").Limit(ListLimit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("查询观看记录失败: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	summaries, err := user.Summaries(db, ids)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(entries))
	for _, e := range entries {
		v := View{Entry: e}
		if sum, ok := summaries[e.UserID]; ok {
			v.User = &sum
		}
		views = append(views, v)
	}
	return views, nil
}

// Upsert 上报观看状态。StartedAt 只在首次插入时写入。
func (s *Service) Upsert(ctx context.Context, userID string, in UpsertInput) (*Entry, error) {
	if in.MediaID <= 0 {
		return nil, apperr.Validation("缺少mediaId")
	}
	if in.MediaType != rating.Movie && in.MediaType != rating.TV {
		return nil, apperr.Validation("mediaType 必须是 movie 或 tv")
	}

	now := s.now()
	entry := Entry{
		ID:            uuid.NewString(),
		UserID:        userID,
		MediaID:       in.MediaID,
		MediaType:     in.MediaType,
		MediaTitle:    in.MediaTitle,
		MediaPoster:   in.MediaPoster,
		SeasonNumber:  in.SeasonNumber,
		EpisodeNumber: in.EpisodeNumber,
		StartedAt:     now,
		LastActiveAt:  now,
	}
	db := s.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "media_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"media_type", "media_title", "media_poster", "season_number", "episode_number", "last_active_at",
		}),
	}).Create(&entry).Error
	if err != nil {
		return nil, fmt.Errorf("写入观看记录失败: %w", err)
	}

	var saved Entry
	if err := db.Where("user_id = ? AND media_id = ?", userID, in.MediaID).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("读取观看记录失败: %w", err)
	}
	return &saved, nil
}

// Remove 删除观看记录，不存在时返回NotFound。
func (s *Service) Remove(ctx context.Context, userID string, mediaID int64) error {
	result := s.db.WithContext(ctx).Where("user_id = ? AND media_id = ?", userID, mediaID).Delete(&Entry{})
	if result.Error != nil {
		return fmt.Errorf("删除观看记录失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("观看记录不存在")
	}
	return nil
}

// DeleteForUserTx 在账户删除事务中清除该用户的观看记录。
func DeleteForUserTx(tx *gorm.DB, userID string) error {
	if err := tx.Where("user_id = ?", userID).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("删除观看记录失败: %w", err)
	}
	return nil
}
