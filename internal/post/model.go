package post

import (
	"time"

	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"gorm.io/datatypes"
)

// Post 是用户发布的一条动态，可以关联一部作品。
// LikeCount 与 CommentCount 随点赞、评论的写操作在同一事务内维护。
type Post struct {
	ID           string                      `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID       string                      `gorm:"not null;type:varchar(36);index" json:"userId"`
	Content      string                      `gorm:"size:2000" json:"content"`
	Images       datatypes.JSONSlice[string] `gorm:"type:json" json:"images"`
	MediaID      *int64                      `json:"mediaId"`
	MediaType    *rating.MediaType           `gorm:"size:10" json:"mediaType"`
	MediaTitle   string                      `gorm:"size:255" json:"mediaTitle"`
	MediaPoster  string                      `json:"mediaPoster"`
	Spoiler      bool                        `json:"spoiler"`
	LikeCount    int                         `gorm:"not null;default:0" json:"likeCount"`
	CommentCount int                         `gorm:"not null;default:0" json:"commentCount"`
	CreatedAt    time.Time                   `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time                   `json:"updatedAt"`
}

// TableName 固定表名
func (Post) TableName() string {
	return "posts"
}

// Like 是一次点赞，(PostID, UserID) 唯一。
type Like struct {
	PostID    string    `gorm:"primarykey;type:varchar(36)" json:"postId"`
	UserID    string    `gorm:"primarykey;type:varchar(36);index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 固定表名
func (Like) TableName() string {
	return "post_likes"
}

// Comment 是动态下的一条评论。评论的增删由 comment 包负责，并维护 Post.CommentCount。
type Comment struct {
	ID        string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	PostID    string    `gorm:"not null;type:varchar(36);index" json:"postId"`
	UserID    string    `gorm:"not null;type:varchar(36);index" json:"userId"`
	Content   string    `gorm:"not null;size:1000" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 固定表名
func (Comment) TableName() string {
	return "comments"
}

// View 是返回给客户端的动态，附带作者信息以及当前用户是否已点赞。
type View struct {
	Post
	User  *user.Summary `json:"user"`
	Liked bool          `json:"liked"`
}
