package watched

import (
	"time"

	"github.com/haider-9/tvdom/internal/rating"
)

// Item 是一条已看记录，(UserID, MediaID) 唯一。重复标记只增加重看次数。
type Item struct {
	ID              string           `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID          string           `gorm:"not null;type:varchar(36);uniqueIndex:idx_watched_user_media,priority:1" json:"userId"`
	MediaID         int64            `gorm:"not null;uniqueIndex:idx_watched_user_media,priority:2" json:"mediaId"`
	MediaType       rating.MediaType `gorm:"not null;size:10" json:"mediaType"`
	WatchedAt       time.Time        `gorm:"index" json:"watchedAt"`
	Rating          *int             `json:"rating,omitempty"`
	IsFavorite      bool             `json:"isFavorite"`
	RewatchCount    int              `gorm:"not null;default:0" json:"rewatchCount"`
	LastRewatchedAt *time.Time       `json:"lastRewatchedAt,omitempty"`
	MediaTitle      string           `gorm:"size:255" json:"mediaTitle"`
	MediaPoster     string           `json:"mediaPoster"`
	SeasonNumber    *int             `json:"seasonNumber,omitempty"`
	EpisodeNumber   *int             `json:"episodeNumber,omitempty"`
	Progress        int              `gorm:"not null" json:"progress"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// TableName 固定表名
func (Item) TableName() string {
	return "watched_items"
}
