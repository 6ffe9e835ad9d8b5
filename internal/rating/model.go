package rating

import (
	"time"

	"gorm.io/datatypes"
)

// MediaType 是被评分内容的类型。
type MediaType string

const (
	Movie MediaType = "movie"
	TV    MediaType = "tv"
)

const (
	MinScore        = 1
	MaxScore        = 10
	MaxReviewLength = 5000
)

// Rating 是用户对一部影视作品的评分，(UserID, MediaID) 唯一。
type Rating struct {
	ID          string                      `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID      string                      `gorm:"not null;type:varchar(36);uniqueIndex:idx_rating_user_media,priority:1" json:"userId"`
	MediaID     int64                       `gorm:"not null;uniqueIndex:idx_rating_user_media,priority:2;index" json:"mediaId"`
	MediaType   MediaType                   `gorm:"not null;size:10" json:"mediaType"`
	Rating      int                         `gorm:"not null" json:"rating"`
	Review      string                      `gorm:"size:5000" json:"review"`
	IsSpoiler   bool                        `json:"isSpoiler"`
	Likes       int                         `gorm:"not null;default:0" json:"likes"`
	Dislikes    int                         `gorm:"not null;default:0" json:"dislikes"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:json" json:"tags"`
	Rewatched   bool                        `json:"rewatched"`
	WatchedDate *time.Time                  `json:"watchedDate,omitempty"`
	MediaTitle  string                      `gorm:"size:255" json:"mediaTitle"`
	MediaPoster string                      `json:"mediaPoster"`
	CreatedAt   time.Time                   `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}
