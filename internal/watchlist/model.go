package watchlist

import (
	"time"

	"github.com/haider-9/tvdom/internal/rating"
	"gorm.io/datatypes"
)

// Priority 是待看条目的优先级。
type Priority string

const (
	Low    Priority = "low"
	Medium Priority = "medium"
	High   Priority = "high"
)

// Item 是一条待看记录，(UserID, MediaID) 唯一。
type Item struct {
	ID           string                      `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID       string                      `gorm:"not null;type:varchar(36);uniqueIndex:idx_watchlist_user_media,priority:1" json:"userId"`
	MediaID      int64                       `gorm:"not null;uniqueIndex:idx_watchlist_user_media,priority:2" json:"mediaId"`
	MediaType    rating.MediaType            `gorm:"not null;size:10" json:"mediaType"`
	Priority     Priority                    `gorm:"not null;size:10;default:medium" json:"priority"`
	Notes        string                      `gorm:"size:1000" json:"notes"`
	ReminderDate *time.Time                  `json:"reminderDate,omitempty"`
	MediaTitle   string                      `gorm:"size:255" json:"mediaTitle"`
	MediaPoster  string                      `json:"mediaPoster"`
	Year         int                         `json:"year,omitempty"`
	Genres       datatypes.JSONSlice[string] `gorm:"type:json" json:"genres"`
	AddedAt      time.Time                   `gorm:"index" json:"addedAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

// TableName 固定表名
func (Item) TableName() string {
	return "watchlist_items"
}
