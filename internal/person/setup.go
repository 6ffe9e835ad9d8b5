package person

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移演职人员评分和收藏的表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Rating{}, &Favorite{}); err != nil {
		return fmt.Errorf("无法迁移person表: %w", err)
	}
	return nil
}
