// Package startup 在服务启动时按依赖顺序迁移所有模块的表结构。
package startup

import (
	"github.com/haider-9/tvdom/internal/follow"
	"github.com/haider-9/tvdom/internal/notification"
	"github.com/haider-9/tvdom/internal/person"
	"github.com/haider-9/tvdom/internal/platform/metadata"
	"github.com/haider-9/tvdom/internal/post"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/internal/watched"
	"github.com/haider-9/tvdom/internal/watching"
	"github.com/haider-9/tvdom/internal/watchlist"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// migrations 中 user 必须排在最前面。
var migrations = []struct {
	name string
	fn   func(db *gorm.DB) error
}{
	{"metadata", metadata.Migrate},
	{"user", user.Migrate},
	{"follow", follow.Migrate},
	{"rating", rating.Migrate},
	{"watchlist", watchlist.Migrate},
	{"watched", watched.Migrate},
	{"person", person.Migrate},
	{"watching", watching.Migrate},
	{"notification", notification.Migrate},
	{"post", post.Migrate},
}

// Migrate 是应用启动时执行的总入口
func Migrate(db *gorm.DB) error {
	log.Info().Msg("开始迁移数据库表结构...")
	for _, m := range migrations {
		if err := m.fn(db); err != nil {
			return err
		}
		log.Debug().Str("module", m.name).Msg("表结构迁移完成")
	}
	log.Info().Msg("数据库表结构迁移完成")
	return nil
}
