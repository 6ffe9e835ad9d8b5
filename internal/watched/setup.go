package watched

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移watched表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Item{}); err != nil {
		return fmt.Errorf("无法迁移watched表: %w", err)
	}
	return nil
}
