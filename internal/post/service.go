package post

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Counter 是 Post 上可增量维护的计数列名。
type Counter string

const (
	LikeCount    Counter = "like_count"
	CommentCount Counter = "comment_count"
)

// AdjustCounter 在调用方的事务中增减动态的计数，结果不会低于0。
func AdjustCounter(tx *gorm.DB, postID string, col Counter, delta int) error {
	expr := gorm.Expr(fmt.Sprintf("CASE WHEN %[1]s + ? < 0 THEN 0 ELSE %[1]s + ? END", col), delta, delta)
	res := tx.Model(&Post{}).Where("id = ?", postID).UpdateColumn(string(col), expr)
	if res.Error != nil {
		return fmt.Errorf("无法更新动态 %s 的 %s: %w", postID, col, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("动态不存在")
	}
	return nil
}

// CreateInput 是发布动态请求的数据。
type CreateInput struct {
	Content     string            `json:"content" binding:"max=2000"`
	Images      []string          `json:"images" binding:"max=10,dive,url"`
	MediaID     *int64            `json:"mediaId"`
	MediaType   *rating.MediaType `json:"mediaType" binding:"omitempty,oneof=movie tv"`
	MediaTitle  string            `json:"mediaTitle" binding:"max=255"`
	MediaPoster string            `json:"mediaPoster"`
	Spoiler     bool              `json:"spoiler"`
}

// ListOptions 是动态列表的查询条件，UserID 为空时返回全站动态。
type ListOptions struct {
	UserID string
	Viewer string
	Limit  int
	Offset int
}

// Service 维护动态、点赞以及动态上的计数。
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService 创建动态服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Create 发布一条动态，文字与图片至少要有一项。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Post, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Images) == 0 {
		return nil, apperr.Validation("动态内容不能为空")
	}
	if (in.MediaID == nil) != (in.MediaType == nil) {
		return nil, apperr.Validation("mediaId 与 mediaType 必须同时提供")
	}
	if in.MediaType != nil {
		if *in.MediaType != rating.Movie && *in.MediaType != rating.TV {
			return nil, apperr.Validation("mediaType 必须是 movie 或 tv")
		}
		if *in.MediaID <= 0 {
			return nil, apperr.Validation("mediaId 格式错误")
		}
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}
	now := s.now().UTC()
	p := &Post{
		ID:          id.String(),
		UserID:      userID,
		Content:     content,
		Images:      datatypes.JSONSlice[string](images),
		MediaID:     in.MediaID,
		MediaType:   in.MediaType,
		MediaTitle:  in.MediaTitle,
		MediaPoster: in.MediaPoster,
		Spoiler:     in.Spoiler,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("发布动态失败: %w", err)
	}
	return p, nil
}

// Find 在给定的连接或事务中查找动态。
func Find(db *gorm.DB, postID string) (*Post, error) {
	var p Post
	if err := db.Where("id = ?", postID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("动态不存在")
		}
		return nil, fmt.Errorf("查询动态失败: %w", err)
	}
	return &p, nil
}

// Get 返回单条动态。
func (s *Service) Get(ctx context.Context, postID, viewer string) (*View, error) {
	db := s.db.WithContext(ctx)
	p, err := Find(db, postID)
	if err != nil {
		return nil, err
	}
	views, err := s.views(db, []Post{*p}, viewer)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List 返回动态列表及总数，最新的在前。
func (s *Service) List(ctx context.Context, opts ListOptions) ([]View, int64, error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&Post{})
	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计动态失败: %w", err)
	}

	var posts []Post
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(opts.Limit).Offset(opts.Offset).Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询动态失败: %w", err)
	}
	views, err := s.views(db, posts, opts.Viewer)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// views 为动态填充作者信息和当前用户的点赞状态。
func (s *Service) views(db *gorm.DB, posts []Post, viewer string) ([]View, error) {
	views := make([]View, len(posts))
	if len(posts) == 0 {
		return views, nil
	}
	authors := make([]string, 0, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		authors = append(authors, p.UserID)
		ids = append(ids, p.ID)
	}
	summaries, err := user.Summaries(db, authors)
	if err != nil {
		return nil, err
	}
	liked := map[string]bool{}
	if viewer != "" {
		var likedIDs []string
		err := db.Model(&Like{}).Where("user_id = ? AND post_id IN ?", viewer, ids).Pluck("post_id", &likedIDs).Error
		if err != nil {
			return nil, fmt.Errorf("查询点赞状态失败: %w", err)
		}
		for _, id := range likedIDs {
			liked[id] = true
		}
	}
	for i, p := range posts {
		views[i] = View{Post: p, Liked: liked[p.ID]}
		if sum, ok := summaries[p.UserID]; ok {
			views[i].User = &sum
		}
	}
	return views, nil
}

// ToggleLike 切换当前用户对动态的点赞，返回切换后的状态和点赞数。
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (bool, int, error) {
	var liked bool
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := Find(tx, postID); err != nil {
			return err
		}
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&Like{})
		if res.Error != nil {
			return fmt.Errorf("取消点赞失败: %w", res.Error)
		}
		delta := -1
		if res.RowsAffected == 0 {
			like := &Like{PostID: postID, UserID: userID, CreatedAt: s.now().UTC()}
			if err := tx.Create(like).Error; err != nil {
				return fmt.Errorf("点赞失败: %w", err)
			}
			delta, liked = 1, true
		}
		if err := AdjustCounter(tx, postID, LikeCount, delta); err != nil {
			return err
		}
		p, err := Find(tx, postID)
		if err != nil {
			return err
		}
		count = p.LikeCount
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return liked, count, nil
}

// Update 修改动态的文字内容，只有作者可以修改。
func (s *Service) Update(ctx context.Context, postID, userID, content string) (*Post, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation("动态内容不能为空")
	}
	var out *Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := Find(tx, postID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return apperr.Forbidden("只能修改自己的动态")
		}
		p.Content = content
		p.UpdatedAt = s.now().UTC()
		if err := tx.Model(p).Select("content", "updated_at").Updates(p).Error; err != nil {
			return fmt.Errorf("修改动态失败: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete 删除动态及挂在它上面的点赞与评论，只有作者可以删除。
func (s *Service) Delete(ctx context.Context, postID, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := Find(tx, postID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return apperr.Forbidden("只能删除自己的动态")
		}
		return deleteTx(tx, []string{postID})
	})
}

func deleteTx(tx *gorm.DB, postIDs []string) error {
	if err := tx.Where("post_id IN ?", postIDs).Delete(&Comment{}).Error; err != nil {
		return fmt.Errorf("删除评论失败: %w", err)
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&Like{}).Error; err != nil {
		return fmt.Errorf("删除点赞失败: %w", err)
	}
	if err := tx.Where("id IN ?", postIDs).Delete(&Post{}).Error; err != nil {
		return fmt.Errorf("删除动态失败: %w", err)
	}
	return nil
}

// DeleteForUserTx 删除用户发布的动态、评论与点赞，用于注销账号。
// 其他动态上的点赞数和评论数同步扣减。
func DeleteForUserTx(tx *gorm.DB, userID string) error {
	var own []string
	if err := tx.Model(&Post{}).Where("user_id = ?", userID).Pluck("id", &own).Error; err != nil {
		return fmt.Errorf("查询动态失败: %w", err)
	}
	if len(own) > 0 {
		if err := deleteTx(tx, own); err != nil {
			return err
		}
	}

	var liked []string
	if err := tx.Model(&Like{}).Where("user_id = ?", userID).Pluck("post_id", &liked).Error; err != nil {
		return fmt.Errorf("查询点赞失败: %w", err)
	}
	if len(liked) > 0 {
		expr := gorm.Expr("CASE WHEN like_count > 0 THEN like_count - 1 ELSE 0 END")
		if err := tx.Model(&Post{}).Where("id IN ?", liked).UpdateColumn(string(LikeCount), expr).Error; err != nil {
			return fmt.Errorf("更新点赞数失败: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&Like{}).Error; err != nil {
			return fmt.Errorf("删除点赞失败: %w", err)
		}
	}

	var counts []struct {
		PostID string
		N      int
	}
	err := tx.Model(&Comment{}).Select("post_id, COUNT(*) AS n").
		Where("user_id = ?", userID).Group("post_id").Scan(&counts).Error
	if err != nil {
		return fmt.Errorf("统计评论失败: %w", err)
	}
	for _, c := range counts {
		if err := AdjustCounter(tx, c.PostID, CommentCount, -c.N); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	if err := tx.Where("user_id = ?", userID).Delete(&Comment{}).Error; err != nil {
		return fmt.Errorf("删除评论失败: %w", err)
	}
	return nil
}
