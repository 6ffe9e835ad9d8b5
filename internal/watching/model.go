package watching

import (
	"time"

	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
)

// Entry 表示某个用户当前正在观看某部作品，(UserID, MediaID) 唯一。
type Entry struct {
	ID            string           `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID        string           `gorm:"not null;type:varchar(36);uniqueIndex:idx_watching_user_media,priority:1" json:"userId"`
	MediaID       int64            `gorm:"not null;uniqueIndex:idx_watching_user_media,priority:2" json:"mediaId"`
	MediaType     rating.MediaType `gorm:"not null;size:10" json:"mediaType"`
	MediaTitle    string           `gorm:"size:255" json:"mediaTitle"`
	MediaPoster   string           `json:"mediaPoster"`
	SeasonNumber  *int             `json:"seasonNumber,omitempty"`
	EpisodeNumber *int             `json:"episodeNumber,omitempty"`
	StartedAt     time.Time        `json:"startedAt"`
	LastActiveAt  time.Time        `gorm:"index" json:"lastActiveAt"`
}

// TableName 固定表名
func (Entry) TableName() string {
	return "currently_watching"
}

// View 是附带用户简要信息的条目。
type View struct {
	Entry
	User *user.Summary `json:"user,omitempty"`
}
