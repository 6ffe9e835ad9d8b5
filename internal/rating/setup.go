package rating

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移rating表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Rating{}); err != nil {
		return fmt.Errorf("无法迁移rating表: %w", err)
	}
	return nil
}
