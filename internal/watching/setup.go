package watching

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移currently_watching表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return fmt.Errorf("无法迁移currently_watching表: %w", err)
	}
	return nil
}
