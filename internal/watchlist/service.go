package watchlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AddInput 是加入待看列表请求的数据。
type AddInput struct {
	MediaID      int64            `json:"mediaId" binding:"required"`
	MediaType    rating.MediaType `json:"mediaType" binding:"required,oneof=movie tv"`
	Priority     Priority         `json:"priority" binding:"omitempty,oneof=low medium high"`
	Notes        string           `json:"notes" binding:"max=1000"`
	ReminderDate *time.Time       `json:"reminderDate"`
	MediaTitle   string           `json:"mediaTitle" binding:"max=255"`
	MediaPoster  string           `json:"mediaPoster"`
	Year         int              `json:"year"`
	Genres       []string         `json:"genres" binding:"max=20"`
}

// Service 维护待看列表以及用户的待看计数。
type Service struct {
	db *gorm.DB
}

// NewService 创建待看列表服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Add 把一部作品加入待看列表，重复加入返回冲突错误。
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (*Item, error) {
	if in.MediaID <= 0 {
		return nil, apperr.Validation("缺少mediaId")
	}
	if in.MediaType != rating.Movie && in.MediaType != rating.TV {
		return nil, apperr.Validation("mediaType 必须是 movie 或 tv")
	}
	priority := in.Priority
	switch priority {
	case "":
		priority = Medium
	case Low, Medium, High:
	default:
		return nil, apperr.Validation("priority 必须是 low、medium 或 high")
	}
	genres := in.Genres
	if genres == nil {
		genres = []string{}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}
	item := &Item{
		ID:           id.String(),
		UserID:       userID,
		MediaID:      in.MediaID,
		MediaType:    in.MediaType,
		Priority:     priority,
		Notes:        in.Notes,
		ReminderDate: in.ReminderDate,
		MediaTitle:   in.MediaTitle,
		MediaPoster:  in.MediaPoster,
		Year:         in.Year,
		Genres:       datatypes.JSONSlice[string](genres),
		AddedAt:      time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Item{}).Where("user_id = ? AND media_id = ?", userID, in.MediaID).Count(&count).Error; err != nil {
			return fmt.Errorf("查询待看列表失败: %w", err)
		}
		if count > 0 {
			return apperr.Conflict("已在待看列表中")
		}
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		return user.AdjustCounter(tx, userID, user.WatchlistCount, 1)
	})
	if err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("已在待看列表中")
		}
		return nil, err
	}
	return item, nil
}

// Remove 把一部作品移出待看列表。
func (s *Service) Remove(ctx context.Context, userID string, mediaID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed, err := RemoveTx(tx, userID, mediaID)
		if err != nil {
			return err
		}
		if !removed {
			return apperr.NotFound("不在待看列表中")
		}
		return nil
	})
}

// RemoveTx 在调用方的事务中删除一条待看记录并维护计数，返回是否确实删除了记录。
func RemoveTx(tx *gorm.DB, userID string, mediaID int64) (bool, error) {
	res := tx.Where("user_id = ? AND media_id = ?", userID, mediaID).Delete(&Item{})
	if res.Error != nil {
		return false, fmt.Errorf("删除待看记录失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := user.AdjustCounter(tx, userID, user.WatchlistCount, -1); err != nil {
		return false, err
	}
	return true, nil
}

// List 返回用户的待看列表，最近加入的在前。
func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	var items []Item
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("added_at DESC").Order("id DESC").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("查询待看列表失败: %w", err)
	}
	return items, nil
}

// DeleteForUserTx 删除用户的全部待看记录，用于注销账号。
func DeleteForUserTx(tx *gorm.DB, userID string) error {
	if err := tx.Where("user_id = ?", userID).Delete(&Item{}).Error; err != nil {
		return fmt.Errorf("删除待看记录失败: %w", err)
	}
	return nil
}
