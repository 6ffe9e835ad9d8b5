// Package account 负责注销账号：在一个事务中删除用户的全部数据，然后吊销其会话。
package account

import (
	"context"
	"fmt"

	"github.com/haider-9/tvdom/internal/follow"
	"github.com/haider-9/tvdom/internal/notification"
	"github.com/haider-9/tvdom/internal/person"
	"github.com/haider-9/tvdom/internal/post"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/internal/watched"
	"github.com/haider-9/tvdom/internal/watching"
	"github.com/haider-9/tvdom/internal/watchlist"
	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service 执行账号删除。
type Service struct {
	db       *gorm.DB
	sessions *user.SessionStore
}

// NewService 创建账号服务。
func NewService(db *gorm.DB, sessions *user.SessionStore) *Service {
	return &Service{db: db, sessions: sessions}
}

// cascade 按顺序列出随用户一起删除的数据。
var cascade = []struct {
	name string
	fn   func(tx *gorm.DB, userID string) error
}{
	{"follows", follow.DeleteForUserTx},
	{"ratings", rating.DeleteForUserTx},
	{"watchlist", watchlist.DeleteForUserTx},
	{"watched", watched.DeleteForUserTx},
	{"person", person.DeleteForUserTx},
	{"watching", watching.DeleteForUserTx},
	{"notifications", notification.DeleteForUserTx},
	{"posts", post.DeleteForUserTx},
}

// Delete 删除用户及其全部数据。
// 数据删除是原子的；会话吊销在事务提交之后进行，失败只记录日志。
func (s *Service) Delete(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := user.Exists(tx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound("用户不存在")
		}
		for _, step := range cascade {
			if err := step.fn(tx, userID); err != nil {
				return fmt.Errorf("删除用户数据(%s)失败: %w", step.name, err)
			}
		}
		if err := tx.Delete(&user.User{}, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("删除用户失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	revoked, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("账号已删除，但吊销会话失败")
		return nil
	}
	log.Info().Str("userID", userID).Int("sessions", revoked).Msg("账号已删除")
	return nil
}
