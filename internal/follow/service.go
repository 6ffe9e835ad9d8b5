package follow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/notification"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/internal/platform/metrics"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/gorm"
)

// Service 维护关注关系以及双方的关注计数。
// 关系、计数和通知总是在同一个事务中写入。
type Service struct {
	db            *gorm.DB
	notifications *notification.Service
}

// NewService 创建关注服务。
func NewService(db *gorm.DB, notifications *notification.Service) *Service {
	return &Service{db: db, notifications: notifications}
}

func displayName(u *user.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Create 让 followerID 关注 followingID。
func (s *Service) Create(ctx context.Context, followerID, followingID string) (*Follow, error) {
	f, err := s.create(ctx, followerID, followingID)
	metrics.FollowOperations.WithLabelValues("follow", metrics.Result(err)).Inc()
	return f, err
}

func (s *Service) create(ctx context.Context, followerID, followingID string) (*Follow, error) {
	if followerID == "" || followingID == "" {
		return nil, apperr.Validation("缺少关注双方的用户ID")
	}
	if followerID == followingID {
		return nil, apperr.Validation("不能关注自己")
	}

	var f *Follow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 双方必须存在
		follower, err := user.FindByID(tx, followerID)
		if err != nil {
			return err
		}
		if _, err := user.FindByID(tx, followingID); err != nil {
			return err
		}

		// 2. 已存在的关系直接拒绝；并发的重复请求由唯一索引兜底
		var count int64
		if err := tx.Model(&Follow{}).Where("follower_id = ? AND following_id = ?", followerID, followingID).Count(&count).Error; err != nil {
			return fmt.Errorf("查询关注关系失败: %w", err)
		}
		if count > 0 {
			return apperr.Conflict("已经关注了该用户")
		}

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("无法生成UUID v7: %w", err)
		}
		f = &Follow{ID: id.String(), FollowerID: followerID, FollowingID: followingID}
		if err := tx.Create(f).Error; err != nil {
			return err
		}

		// 3. 双方计数同时变化
		if err := user.AdjustCounter(tx, followerID, user.FollowingCount, 1); err != nil {
			return err
		}
		if err := user.AdjustCounter(tx, followingID, user.FollowerCount, 1); err != nil {
			return err
		}

		// 4. 通知被关注者
		name := displayName(follower)
		_, err = s.notifications.CreateTx(tx, notification.CreateInput{
			UserID:  followingID,
			ActorID: followerID,
			Type:    notification.TypeFollow,
			Title:   "New Follower",
			Message: name + " started following you",
			Data: map[string]any{
				"actorId":     follower.ID,
				"actorName":   name,
				"actorAvatar": follower.Avatar,
				"followId":    f.ID,
			},
		})
		return err
	})
	if err != nil {
		if database.IsDuplicateKeyError(err) {
			return nil, apperr.Conflict("已经关注了该用户")
		}
		return nil, err
	}
	return f, nil
}

// Delete 取消 followerID 对 followingID 的关注。
func (s *Service) Delete(ctx context.Context, followerID, followingID string) error {
	err := s.delete(ctx, followerID, followingID)
	metrics.FollowOperations.WithLabelValues("unfollow", metrics.Result(err)).Inc()
	return err
}

func (s *Service) delete(ctx context.Context, followerID, followingID string) error {
	if followerID == "" || followingID == "" {
		return apperr.Validation("缺少关注双方的用户ID")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&Follow{})
		if res.Error != nil {
			return fmt.Errorf("删除关注关系失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("没有关注该用户")
		}

		if err := user.AdjustCounter(tx, followerID, user.FollowingCount, -1); err != nil {
			return err
		}
		if err := user.AdjustCounter(tx, followingID, user.FollowerCount, -1); err != nil {
			return err
		}

		follower, err := user.FindByID(tx, followerID)
		if err != nil {
			return err
		}
		name := displayName(follower)
		_, err = s.notifications.CreateTx(tx, notification.CreateInput{
			UserID:  followingID,
			ActorID: followerID,
			Type:    notification.TypeUnfollow,
			Title:   "Follower Lost",
			Message: name + " unfollowed you",
			Data: map[string]any{
				"actorId":   follower.ID,
				"actorName": name,
			},
		})
		return err
	})
}

// IsFollowing 判断 followerID 是否关注了 followingID。
func (s *Service) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询关注关系失败: %w", err)
	}
	return count > 0, nil
}

// List 返回用户的关注列表或粉丝列表，最新的在前，附带对方的简要信息。
func (s *Service) List(ctx context.Context, userID string, dir Direction) ([]View, error) {
	q := s.db.WithContext(ctx).Model(&Follow{})
	switch dir {
	case Following:
		q = q.Where("follower_id = ?", userID)
	case Followers:
		q = q.Where("following_id = ?", userID)
	default:
		return nil, apperr.Validation("type 必须是 following 或 followers")
	}

	var follows []Follow
	if err := q.Order("created_at DESC").Order("id DESC").Find(&follows).Error; err != nil {
		return nil, fmt.Errorf("查询关注列表失败: %w", err)
	}

	ids := make([]string, 0, len(follows)*2)
	for _, f := range follows {
		ids = append(ids, f.FollowerID, f.FollowingID)
	}
	summaries, err := user.Summaries(s.db.WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}

	views := make([]View, len(follows))
	for i, f := range follows {
		views[i] = View{Follow: f}
		if sum, ok := summaries[f.FollowerID]; ok {
			views[i].Follower = &sum
		}
		if sum, ok := summaries[f.FollowingID]; ok {
			views[i].Following = &sum
		}
	}
	return views, nil
}

// FollowingIDs 返回用户关注的所有用户ID。
func FollowingIDs(db *gorm.DB, userID string) ([]string, error) {
	var ids []string
	err := db.Model(&Follow{}).Where("follower_id = ?", userID).Pluck("following_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("查询关注列表失败: %w", err)
	}
	return ids, nil
}

// DeleteForUserTx 删除用户参与的所有关注关系，并修正对方的计数。
func DeleteForUserTx(tx *gorm.DB, userID string) error {
	var edges []Follow
	err := tx.Where("follower_id = ? OR following_id = ?", userID, userID).Find(&edges).Error
	if err != nil {
		return fmt.Errorf("查询关注关系失败: %w", err)
	}
	for _, e := range edges {
		var err error
		if e.FollowerID == userID {
			err = user.AdjustCounter(tx, e.FollowingID, user.FollowerCount, -1)
		} else {
			err = user.AdjustCounter(tx, e.FollowerID, user.FollowingCount, -1)
		}
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}
	if err := tx.Where("follower_id = ? OR following_id = ?", userID, userID).Delete(&Follow{}).Error; err != nil {
		return fmt.Errorf("删除关注关系失败: %w", err)
	}
	return nil
}
