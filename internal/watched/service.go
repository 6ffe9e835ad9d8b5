package watched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/internal/watchlist"
	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/gorm"
)

// MarkInput 是标记已看请求的数据。
type MarkInput struct {
	MediaID       int64            `json:"mediaId" binding:"required"`
	MediaType     rating.MediaType `json:"mediaType" binding:"required,oneof=movie tv"`
	MediaTitle    string           `json:"mediaTitle" binding:"max=255"`
	MediaPoster   string           `json:"mediaPoster"`
	Rating        *int             `json:"rating" binding:"omitempty,min=1,max=10"`
	IsFavorite    bool             `json:"isFavorite"`
	SeasonNumber  *int             `json:"seasonNumber" binding:"omitempty,min=0"`
	EpisodeNumber *int             `json:"episodeNumber" binding:"omitempty,min=0"`
	Progress      *int             `json:"progress" binding:"omitempty,min=0,max=100"`
}

// MarkResult 描述一次标记已看的结果。
type MarkResult struct {
	Item                 *Item `json:"item"`
	Created              bool  `json:"created"`
	RemovedFromWatchlist bool  `json:"removedFromWatchlist"`
}

// Service 维护已看记录，并在首次标记时把作品移出待看列表。
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService 创建已看记录服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Mark 标记一部作品为已看。
// 已存在的记录只增加重看次数；新记录会删除同一作品的待看记录，计数在同一事务中调整。
func (s *Service) Mark(ctx context.Context, userID string, in MarkInput) (*MarkResult, error) {
	if in.MediaID <= 0 {
		return nil, apperr.Validation("缺少mediaId")
	}
	if in.MediaType != rating.Movie && in.MediaType != rating.TV {
		return nil, apperr.Validation("mediaType 必须是 movie 或 tv")
	}
	if in.Rating != nil && (*in.Rating < rating.MinScore || *in.Rating > rating.MaxScore) {
		return nil, apperr.Validation("评分必须在1到10之间")
	}
	if in.Progress != nil && (*in.Progress < 0 || *in.Progress > 100) {
		return nil, apperr.Validation("progress 必须在0到100之间")
	}

	result := &MarkResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		var item Item
		err := tx.Where("user_id = ? AND media_id = ?", userID, in.MediaID).First(&item).Error
		switch {
		case err == nil:
			// 重看：只更新重看信息，不改变任何计数
			item.RewatchCount++
			item.LastRewatchedAt = &now
			if in.Rating != nil {
				item.Rating = in.Rating
			}
			if in.IsFavorite {
				item.IsFavorite = true
			}
			if err := tx.Save(&item).Error; err != nil {
				return fmt.Errorf("更新已看记录失败: %w", err)
			}
			result.Item = &item
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("查询已看记录失败: %w", err)
		}

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("无法生成UUID v7: %w", err)
		}
		progress := 100
		if in.Progress != nil {
			progress = *in.Progress
		}
		item = Item{
			ID:            id.String(),
			UserID:        userID,
			MediaID:       in.MediaID,
			MediaType:     in.MediaType,
			WatchedAt:     now,
			Rating:        in.Rating,
			IsFavorite:    in.IsFavorite,
			MediaTitle:    in.MediaTitle,
			MediaPoster:   in.MediaPoster,
			SeasonNumber:  in.SeasonNumber,
			EpisodeNumber: in.EpisodeNumber,
			Progress:      progress,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if err := user.AdjustCounter(tx, userID, user.WatchedCount, 1); err != nil {
			return err
		}
		removed, err := watchlist.RemoveTx(tx, userID, in.MediaID)
		if err != nil {
			return err
		}
		result.Item = &item
		result.Created = true
		result.RemovedFromWatchlist = removed
		return nil
	})
	if err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("已看记录正在被并发修改，请重试")
		}
		return nil, err
	}
	return result, nil
}

// Remove 删除一条已看记录。
func (s *Service) Remove(ctx context.Context, userID string, mediaID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND media_id = ?", userID, mediaID).Delete(&Item{})
		if res.Error != nil {
			return fmt.Errorf("删除已看记录失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("没有该已看记录")
		}
		return user.AdjustCounter(tx, userID, user.WatchedCount, -1)
	})
}

// List 返回用户的已看记录，最近观看的在前。
func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	var items []Item
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("watched_at DESC").Order("id DESC").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("查询已看记录失败: %w", err)
	}
	return items, nil
}

// DeleteForUserTx 删除用户的全部已看记录，用于注销账号。
func DeleteForUserTx(tx *gorm.DB, userID string) error {
	if err := tx.Where("user_id = ?", userID).Delete(&Item{}).Error; err != nil {
		return fmt.Errorf("删除已看记录失败: %w", err)
	}
	return nil
}
