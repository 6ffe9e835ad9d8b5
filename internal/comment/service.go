// Package comment 负责动态下的评论，并在同一事务内维护动态的评论数。
package comment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/post"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/gorm"
)

// CreateInput 是发表评论请求的数据。
type CreateInput struct {
	PostID  string `json:"postId" binding:"required"`
	Content string `json:"content" binding:"required,max=1000"`
}

// View 是附带作者信息的评论。
type View struct {
	post.Comment
	User *user.Summary `json:"user"`
}

// Service 维护评论。
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService 创建评论服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Create 发表评论，动态的评论数加一；动态不存在时整个操作回滚。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*post.Comment, error) {
	postID := strings.TrimSpace(in.PostID)
	content := strings.TrimSpace(in.Content)
	if postID == "" {
		return nil, apperr.Validation("缺少postId")
	}
	if content == "" {
		return nil, apperr.Validation("评论内容不能为空")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}
	now := s.now().UTC()
	c := &post.Comment{
		ID:        id.String(),
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := post.AdjustCounter(tx, postID, post.CommentCount, 1); err != nil {
			return err
		}
		if err := tx.Create(c).Error; err != nil {
			return fmt.Errorf("发表评论失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List 返回动态下的评论，最新的在前。
func (s *Service) List(ctx context.Context, postID string, limit, offset int) ([]View, error) {
	db := s.db.WithContext(ctx)
	var comments []post.Comment
	err := db.Where("post_id = ?", postID).Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("查询评论失败: %w", err)
	}

	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	summaries, err := user.Summaries(db, ids)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(comments))
	for i, c := range comments {
		views[i] = View{Comment: c}
		if sum, ok := summaries[c.UserID]; ok {
			views[i].User = &sum
		}
	}
	return views, nil
}

// Delete 删除评论并把动态的评论数减一，只有评论者可以删除。
func (s *Service) Delete(ctx context.Context, commentID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c post.Comment
		if err := tx.Where("id = ?", commentID).First(&c).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("评论不存在")
			}
			return fmt.Errorf("查询评论失败: %w", err)
		}
		if c.UserID != userID {
			return apperr.Forbidden("只能删除自己的评论")
		}
		if err := tx.Delete(&c).Error; err != nil {
			return fmt.Errorf("删除评论失败: %w", err)
		}
		err := post.AdjustCounter(tx, c.PostID, post.CommentCount, -1)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		return err
	})
}
