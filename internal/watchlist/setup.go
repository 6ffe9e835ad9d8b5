package watchlist

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate 负责自动迁移watchlist表结构
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Item{}); err != nil {
		return fmt.Errorf("无法迁移watchlist表: %w", err)
	}
	return nil
}
