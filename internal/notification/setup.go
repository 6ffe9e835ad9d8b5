package notification

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移通知相关的表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Notification{}, &Receipt{}); err != nil {
		return fmt.Errorf("无法迁移notification表: %w", err)
	}
	return nil
}
