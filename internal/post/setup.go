package post

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移posts、post_likes与comments表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Post{}, &Like{}, &Comment{}); err != nil {
		return fmt.Errorf("无法迁移post表: %w", err)
	}
	return nil
}
