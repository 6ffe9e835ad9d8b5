package follow

import (
	"time"

	"github.com/haider-9/tvdom/internal/user"
)

// Follow 是一条有向的关注关系，(FollowerID, FollowingID) 唯一。
type Follow struct {
	ID          string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	FollowerID  string    `gorm:"not null;type:varchar(36);uniqueIndex:idx_follow_pair,priority:1" json:"followerId"`
	FollowingID string    `gorm:"not null;type:varchar(36);uniqueIndex:idx_follow_pair,priority:2;index" json:"followingId"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

// View 是带有双方用户简要信息的关注关系。
type View struct {
	Follow
	Follower  *user.Summary `json:"follower,omitempty"`
	Following *user.Summary `json:"following,omitempty"`
}

// Direction 区分关注列表和粉丝列表。
type Direction string

const (
	Following Direction = "following"
	Followers Direction = "followers"
)
