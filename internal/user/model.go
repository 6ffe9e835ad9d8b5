package user

import (
	"time"

	"gorm.io/datatypes"
)

// User 是用户的持久化模型。
// 计数字段由各资源的写操作在同一事务内增量维护，客户端不可直接写入。
type User struct {
	ID           string `gorm:"primarykey;type:varchar(36)" json:"id"`
	Username     string `gorm:"uniqueIndex;not null;size:30" json:"username"`
	Email        string `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	DisplayName    string                      `gorm:"size:50" json:"displayName"`
	Avatar         string                      `json:"avatar"`
	Banner         string                      `json:"banner"`
	Bio            string                      `gorm:"size:500" json:"bio"`
	Location       string                      `gorm:"size:100" json:"location"`
	Website        string                      `json:"website"`
	IsVerified     bool                        `json:"isVerified"`
	IsPrivate      bool                        `json:"isPrivate"`
	FavoriteGenres datatypes.JSONSlice[string] `gorm:"type:json" json:"favoriteGenres"`

	FollowerCount  int     `gorm:"not null;default:0" json:"followerCount"`
	FollowingCount int     `gorm:"not null;default:0" json:"followingCount"`
	TotalRatings   int     `gorm:"not null;default:0" json:"totalRatings"`
	AverageRating  float64 `gorm:"not null;default:0" json:"averageRating"`
	WatchlistCount int     `gorm:"not null;default:0" json:"watchlistCount"`
	WatchedCount   int     `gorm:"not null;default:0" json:"watchedCount"`

	JoinedAt     time.Time `json:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Summary 是嵌入到关注列表、动态等响应中的用户简要信息。
type Summary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	IsVerified  bool   `json:"isVerified"`
}

// Summary 提取用户的简要信息。
func (u *User) Summary() Summary {
	return Summary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		IsVerified:  u.IsVerified,
	}
}

// Counter 是 User 上可增量维护的计数列名。
type Counter string

const (
	FollowerCount  Counter = "follower_count"
	FollowingCount Counter = "following_count"
	TotalRatings   Counter = "total_ratings"
	WatchlistCount Counter = "watchlist_count"
	WatchedCount   Counter = "watched_count"
)
