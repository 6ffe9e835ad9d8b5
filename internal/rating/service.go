package rating

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UpsertInput 是评分请求的数据。
type UpsertInput struct {
	MediaID     int64      `json:"mediaId" binding:"required"`
	MediaType   MediaType  `json:"mediaType" binding:"required,oneof=movie tv"`
	Rating      int        `json:"rating" binding:"required"`
	Review      string     `json:"review"`
	IsSpoiler   bool       `json:"isSpoiler"`
	Tags        []string   `json:"tags" binding:"max=20"`
	Rewatched   bool       `json:"rewatched"`
	WatchedDate *time.Time `json:"watchedDate"`
	MediaTitle  string     `json:"mediaTitle" binding:"max=255"`
	MediaPoster string     `json:"mediaPoster"`
}

// Service 维护评分以及用户的评分总数和平均分。
type Service struct {
	db *gorm.DB
}

// NewService 创建评分服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func validate(in *UpsertInput) error {
	in.Review = strings.TrimSpace(in.Review)
	switch {
	case in.MediaID <= 0:
		return apperr.Validation("缺少mediaId")
	case in.MediaType != Movie && in.MediaType != TV:
		return apperr.Validation("mediaType 必须是 movie 或 tv")
	case in.Rating < MinScore || in.Rating > MaxScore:
		return apperr.Validation(fmt.Sprintf("评分必须在%d到%d之间", MinScore, MaxScore))
	case len([]rune(in.Review)) > MaxReviewLength:
		return apperr.Validation(fmt.Sprintf("评论最长%d字", MaxReviewLength))
	}
	return nil
}

// Upsert 创建或覆盖用户对一部作品的评分，返回评分以及是否为新建。
func (s *Service) Upsert(ctx context.Context, userID string, in UpsertInput) (*Rating, bool, error) {
	if err := validate(&in); err != nil {
		return nil, false, err
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	var r Rating
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND media_id = ?", userID, in.MediaID).First(&r).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("无法生成UUID v7: %w", err)
			}
			created = true
			r = Rating{ID: id.String(), UserID: userID, MediaID: in.MediaID}
		case err != nil:
			return fmt.Errorf("查询评分失败: %w", err)
		}

		r.MediaType = in.MediaType
		r.Rating = in.Rating
		r.Review = in.Review
		r.IsSpoiler = in.IsSpoiler
		r.Tags = datatypes.JSONSlice[string](tags)
		r.Rewatched = in.Rewatched
		r.WatchedDate = in.WatchedDate
		if in.MediaTitle != "" {
			r.MediaTitle = in.MediaTitle
		}
		if in.MediaPoster != "" {
			r.MediaPoster = in.MediaPoster
		}

		if created {
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
			if err := user.AdjustCounter(tx, userID, user.TotalRatings, 1); err != nil {
				return err
			}
		} else if err := tx.Save(&r).Error; err != nil {
			return fmt.Errorf("更新评分失败: %w", err)
		}
		return RecomputeAverageTx(tx, userID)
	})
	if err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, false, apperr.Conflict("评分正在被并发修改，请重试")
		}
		return nil, false, err
	}
	return &r, created, nil
}

// Delete 删除用户对一部作品的评分。
func (s *Service) Delete(ctx context.Context, userID string, mediaID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND media_id = ?", userID, mediaID).Delete(&Rating{})
		if res.Error != nil {
			return fmt.Errorf("删除评分失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("评分不存在")
		}
		if err := user.AdjustCounter(tx, userID, user.TotalRatings, -1); err != nil {
			return err
		}
		return RecomputeAverageTx(tx, userID)
	})
}

// List 返回用户的全部评分，最新的在前。
func (s *Service) List(ctx context.Context, userID string) ([]Rating, error) {
	var ratings []Rating
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("查询评分失败: %w", err)
	}
	return ratings, nil
}

// RecomputeAverageTx 重新计算用户的平均评分，保留一位小数。
func RecomputeAverageTx(tx *gorm.DB, userID string) error {
	var avg sql.NullFloat64
	err := tx.Model(&Rating{}).Where("user_id = ?", userID).Select("AVG(rating)").Row().Scan(&avg)
	if err != nil {
		return fmt.Errorf("计算平均评分失败: %w", err)
	}
	value := 0.0
	if avg.Valid {
		value = Round1(avg.Float64)
	}
	return user.SetAverageRating(tx, userID, value)
}

// Round1 四舍五入到一位小数。
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// DeleteForUserTx 删除用户的全部评分，用于注销账号。
func DeleteForUserTx(tx *gorm.DB, userID string) error {
	if err := tx.Where("user_id = ?", userID).Delete(&Rating{}).Error; err != nil {
		return fmt.Errorf("删除评分失败: %w", err)
	}
	return nil
}
