package follow

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移follow表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Follow{}); err != nil {
		return fmt.Errorf("无法迁移follow表: %w", err)
	}
	return nil
}
