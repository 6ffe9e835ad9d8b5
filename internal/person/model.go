package person

import (
	"time"

	"gorm.io/datatypes"
)

// Rating 是用户对一位演职人员的评分，(UserID, PersonID) 唯一。
type Rating struct {
	ID          string                      `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID      string                      `gorm:"not null;type:varchar(36);uniqueIndex:idx_person_rating_user_person,priority:1" json:"userId"`
	PersonID    int64                       `gorm:"not null;uniqueIndex:idx_person_rating_user_person,priority:2" json:"personId"`
	Rating      int                         `gorm:"not null" json:"rating"`
	Review      string                      `gorm:"size:5000" json:"review"`
	IsSpoiler   bool                        `json:"isSpoiler"`
	Likes       int                         `gorm:"not null;default:0" json:"likes"`
	Dislikes    int                         `gorm:"not null;default:0" json:"dislikes"`
	Tags        datatypes.JSONSlice[string] `gorm:"type:json" json:"tags"`
	PersonName  string                      `gorm:"size:255" json:"personName"`
	PersonImage string                      `json:"personImage"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
}

// TableName 固定表名
func (Rating) TableName() string {
	return "person_ratings"
}

// Favorite 是用户收藏的演职人员，(UserID, PersonID) 唯一。
type Favorite struct {
	ID             string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID         string    `gorm:"not null;type:varchar(36);uniqueIndex:idx_person_favorite_user_person,priority:1" json:"userId"`
	PersonID       int64     `gorm:"not null;uniqueIndex:idx_person_favorite_user_person,priority:2" json:"personId"`
	PersonName     string    `gorm:"size:255" json:"personName"`
	PersonImage    string    `json:"personImage"`
	PersonKnownFor string    `gorm:"size:255" json:"personKnownFor"`
	AddedAt        time.Time `gorm:"index" json:"addedAt"`
}

// TableName 固定表名
func (Favorite) TableName() string {
	return "person_favorites"
}
