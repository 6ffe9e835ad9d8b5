package person

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RateInput 是演职人员评分请求的数据。
type RateInput struct {
	PersonID    int64    `json:"personId" binding:"required"`
	Rating      int      `json:"rating" binding:"required"`
	Review      string   `json:"review"`
	IsSpoiler   bool     `json:"isSpoiler"`
	Tags        []string `json:"tags" binding:"max=20"`
	PersonName  string   `json:"personName" binding:"max=255"`
	PersonImage string   `json:"personImage"`
}

// FavoriteInput 是收藏演职人员请求的数据。
type FavoriteInput struct {
	PersonID       int64  `json:"personId" binding:"required"`
	PersonName     string `json:"personName" binding:"max=255"`
	PersonImage    string `json:"personImage"`
	PersonKnownFor string `json:"personKnownFor" binding:"max=255"`
}

// Service 维护演职人员的评分与收藏。它们不影响用户的任何计数。
type Service struct {
	db *gorm.DB
}

// NewService 创建演职人员服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Rate 创建或覆盖对一位演职人员的评分，返回评分以及是否为新建。
func (s *Service) Rate(ctx context.Context, userID string, in RateInput) (*Rating, bool, error) {
	in.Review = strings.TrimSpace(in.Review)
	switch {
	case in.PersonID <= 0:
		return nil, false, apperr.Validation("缺少personId")
	case in.Rating < rating.MinScore || in.Rating > rating.MaxScore:
		return nil, false, apperr.Validation(fmt.Sprintf("评分必须在%d到%d之间", rating.MinScore, rating.MaxScore))
	case len([]rune(in.Review)) > rating.MaxReviewLength:
		return nil, false, apperr.Validation(fmt.Sprintf("评论最长%d字", rating.MaxReviewLength))
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}

	var r Rating
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND person_id = ?", userID, in.PersonID).First(&r).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("无法生成UUID v7: %w", err)
			}
			created = true
			r = Rating{ID: id.String(), UserID: userID, PersonID: in.PersonID}
		case err != nil:
			return fmt.Errorf("查询演职人员评分失败: %w", err)
		}

		r.Rating = in.Rating
		r.Review = in.Review
		r.IsSpoiler = in.IsSpoiler
		r.Tags = datatypes.JSONSlice[string](tags)
		if in.PersonName != "" {
			r.PersonName = in.PersonName
		}
		if in.PersonImage != "" {
			r.PersonImage = in.PersonImage
		}
		if created {
			return tx.Create(&r).Error
		}
		return tx.Save(&r).Error
	})
	if err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, false, apperr.Conflict("评分正在被并发修改，请重试")
		}
		return nil, false, err
	}
	return &r, created, nil
}

// DeleteRating 删除对一位演职人员的评分。
func (s *Service) DeleteRating(ctx context.Context, userID string, personID int64) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND person_id = ?", userID, personID).Delete(&Rating{})
	if res.Error != nil {
		return fmt.Errorf("删除演职人员评分失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("评分不存在")
	}
	return nil
}

// ListRatings 返回用户的演职人员评分。
func (s *Service) ListRatings(ctx context.Context, userID string) ([]Rating, error) {
	var ratings []Rating
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("查询演职人员评分失败: %w", err)
	}
	return ratings, nil
}

// AddFavorite 收藏一位演职人员，重复收藏返回冲突错误。
func (s *Service) AddFavorite(ctx context.Context, userID string, in FavoriteInput) (*Favorite, error) {
	if in.PersonID <= 0 {
		return nil, apperr.Validation("缺少personId")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}
	f := &Favorite{
		ID:             id.String(),
		UserID:         userID,
		PersonID:       in.PersonID,
		PersonName:     in.PersonName,
		PersonImage:    in.PersonImage,
		PersonKnownFor: in.PersonKnownFor,
		AddedAt:        time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("已收藏该演职人员")
		}
		return nil, fmt.Errorf("收藏演职人员失败: %w", err)
	}
	return f, nil
}

// RemoveFavorite 取消收藏。
func (s *Service) RemoveFavorite(ctx context.Context, userID string, personID int64) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND person_id = ?", userID, personID).Delete(&Favorite{})
	if res.Error != nil {
		return fmt.Errorf("取消收藏失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("未收藏该演职人员")
	}
	return nil
}

// ListFavorites 返回用户收藏的演职人员，最近收藏的在前。
func (s *Service) ListFavorites(ctx context.Context, userID string) ([]Favorite, error) {
	var favorites []Favorite
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("added_at DESC").Order("id DESC").Find(&favorites).Error
	if err != nil {
		return nil, fmt.Errorf("查询收藏失败: %w", err)
	}
	return favorites, nil
}

// DeleteForUserTx 删除用户的全部演职人员评分和收藏，用于注销账号。
func DeleteForUserTx(tx *gorm.DB, userID string) error {
	if err := tx.Where("user_id = ?", userID).Delete(&Rating{}).Error; err != nil {
		return fmt.Errorf("删除演职人员评分失败: %w", err)
	}
	if err := tx.Where("user_id = ?", userID).Delete(&Favorite{}).Error; err != nil {
		return fmt.Errorf("删除演职人员收藏失败: %w", err)
	}
	return nil
}
