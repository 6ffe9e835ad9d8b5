package client

import "time"

// MediaType 是影视作品的类型。
type MediaType string

const (
	Movie MediaType = "movie"
	TV    MediaType = "tv"
)

// User 是用户资料和计数。
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"displayName"`
	Avatar         string    `json:"avatar"`
	Banner         string    `json:"banner"`
	Bio            string    `json:"bio"`
	Location       string    `json:"location"`
	Website        string    `json:"website"`
	IsVerified     bool      `json:"isVerified"`
	IsPrivate      bool      `json:"isPrivate"`
	FavoriteGenres []string  `json:"favoriteGenres"`
	FollowerCount  int       `json:"followerCount"`
	FollowingCount int       `json:"followingCount"`
	TotalRatings   int       `json:"totalRatings"`
	AverageRating  float64   `json:"averageRating"`
	WatchlistCount int       `json:"watchlistCount"`
	WatchedCount   int       `json:"watchedCount"`
	JoinedAt       time.Time `json:"joinedAt"`
	LastActiveAt   time.Time `json:"lastActiveAt"`
}

// UserSummary 是嵌入在其他对象中的用户简要信息。
type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	IsVerified  bool   `json:"isVerified"`
}

// RegisterRequest 是注册请求。
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	DisplayName     string `json:"displayName,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AuthResponse 是登录或注册成功后的响应。
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// ProfileUpdate 是资料修改请求，nil 字段不修改。
type ProfileUpdate struct {
	DisplayName    *string   `json:"displayName,omitempty"`
	Avatar         *string   `json:"avatar,omitempty"`
	Banner         *string   `json:"banner,omitempty"`
	Bio            *string   `json:"bio,omitempty"`
	Location       *string   `json:"location,omitempty"`
	Website        *string   `json:"website,omitempty"`
	IsPrivate      *bool     `json:"isPrivate,omitempty"`
	FavoriteGenres *[]string `json:"favoriteGenres,omitempty"`
}

// Rating 是对一部作品的评分。
type Rating struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	MediaID     int64      `json:"mediaId"`
	MediaType   MediaType  `json:"mediaType"`
	Rating      int        `json:"rating"`
	Review      string     `json:"review"`
	IsSpoiler   bool       `json:"isSpoiler"`
	Likes       int        `json:"likes"`
	Dislikes    int        `json:"dislikes"`
	Tags        []string   `json:"tags"`
	Rewatched   bool       `json:"rewatched"`
	WatchedDate *time.Time `json:"watchedDate,omitempty"`
	MediaTitle  string     `json:"mediaTitle"`
	MediaPoster string     `json:"mediaPoster"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// RatingInput 是评分请求。
type RatingInput struct {
	MediaID     int64      `json:"mediaId"`
	MediaType   MediaType  `json:"mediaType"`
	Rating      int        `json:"rating"`
	Review      string     `json:"review,omitempty"`
	IsSpoiler   bool       `json:"isSpoiler,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Rewatched   bool       `json:"rewatched,omitempty"`
	WatchedDate *time.Time `json:"watchedDate,omitempty"`
	MediaTitle  string     `json:"mediaTitle,omitempty"`
	MediaPoster string     `json:"mediaPoster,omitempty"`
}

// Priority 是待看条目的优先级。
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// WatchlistItem 是一条待看记录。
type WatchlistItem struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	MediaID      int64      `json:"mediaId"`
	MediaType    MediaType  `json:"mediaType"`
	Priority     Priority   `json:"priority"`
	Notes        string     `json:"notes"`
	ReminderDate *time.Time `json:"reminderDate,omitempty"`
	MediaTitle   string     `json:"mediaTitle"`
	MediaPoster  string     `json:"mediaPoster"`
	Year         int        `json:"year,omitempty"`
	Genres       []string   `json:"genres"`
	AddedAt      time.Time  `json:"addedAt"`
}

// WatchlistInput 是加入待看列表的请求。
type WatchlistInput struct {
	MediaID      int64      `json:"mediaId"`
	MediaType    MediaType  `json:"mediaType"`
	Priority     Priority   `json:"priority,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	ReminderDate *time.Time `json:"reminderDate,omitempty"`
	MediaTitle   string     `json:"mediaTitle,omitempty"`
	MediaPoster  string     `json:"mediaPoster,omitempty"`
	Year         int        `json:"year,omitempty"`
	Genres       []string   `json:"genres,omitempty"`
}

// WatchedItem 是一条已看记录。
type WatchedItem struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	MediaID         int64      `json:"mediaId"`
	MediaType       MediaType  `json:"mediaType"`
	WatchedAt       time.Time  `json:"watchedAt"`
	Rating          *int       `json:"rating,omitempty"`
	IsFavorite      bool       `json:"isFavorite"`
	RewatchCount    int        `json:"rewatchCount"`
	LastRewatchedAt *time.Time `json:"lastRewatchedAt,omitempty"`
	MediaTitle      string     `json:"mediaTitle"`
	MediaPoster     string     `json:"mediaPoster"`
	SeasonNumber    *int       `json:"seasonNumber,omitempty"`
	EpisodeNumber   *int       `json:"episodeNumber,omitempty"`
	Progress        int        `json:"progress"`
}

// WatchedInput 是标记已看的请求。
type WatchedInput struct {
	MediaID       int64     `json:"mediaId"`
	MediaType     MediaType `json:"mediaType"`
	MediaTitle    string    `json:"mediaTitle,omitempty"`
	MediaPoster   string    `json:"mediaPoster,omitempty"`
	Rating        *int      `json:"rating,omitempty"`
	IsFavorite    bool      `json:"isFavorite,omitempty"`
	SeasonNumber  *int      `json:"seasonNumber,omitempty"`
	EpisodeNumber *int      `json:"episodeNumber,omitempty"`
	Progress      *int      `json:"progress,omitempty"`
}

// MarkResult 是标记已看的结果。RemovedFromWatchlist 表示服务端同时删除了待看记录。
type MarkResult struct {
	Item                 *WatchedItem `json:"item"`
	Created              bool         `json:"created"`
	RemovedFromWatchlist bool         `json:"removedFromWatchlist"`
}

// PersonRating 是对演职人员的评分。
type PersonRating struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	PersonID    int64     `json:"personId"`
	Rating      int       `json:"rating"`
	Review      string    `json:"review"`
	IsSpoiler   bool      `json:"isSpoiler"`
	Tags        []string  `json:"tags"`
	PersonName  string    `json:"personName"`
	PersonImage string    `json:"personImage"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PersonRatingInput 是演职人员评分请求。
type PersonRatingInput struct {
	PersonID    int64    `json:"personId"`
	Rating      int      `json:"rating"`
	Review      string   `json:"review,omitempty"`
	IsSpoiler   bool     `json:"isSpoiler,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	PersonName  string   `json:"personName,omitempty"`
	PersonImage string   `json:"personImage,omitempty"`
}

// PersonFavorite 是收藏的演职人员。
type PersonFavorite struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	PersonID       int64     `json:"personId"`
	PersonName     string    `json:"personName"`
	PersonImage    string    `json:"personImage"`
	PersonKnownFor string    `json:"personKnownFor"`
	AddedAt        time.Time `json:"addedAt"`
}

// PersonFavoriteInput 是收藏演职人员的请求。
type PersonFavoriteInput struct {
	PersonID       int64  `json:"personId"`
	PersonName     string `json:"personName,omitempty"`
	PersonImage    string `json:"personImage,omitempty"`
	PersonKnownFor string `json:"personKnownFor,omitempty"`
}

// Direction 选择关注列表的方向。
type Direction string

const (
	Following Direction = "following"
	Followers Direction = "followers"
)

// Follow 是一条关注关系。
type Follow struct {
	ID          string       `json:"id"`
	FollowerID  string       `json:"followerId"`
	FollowingID string       `json:"followingId"`
	CreatedAt   time.Time    `json:"createdAt"`
	Follower    *UserSummary `json:"follower,omitempty"`
	Following   *UserSummary `json:"following,omitempty"`
}

// NotificationType 是通知类型。
type NotificationType string

const (
	NotificationFollow    NotificationType = "follow"
	NotificationUnfollow  NotificationType = "unfollow"
	NotificationRating    NotificationType = "rating"
	NotificationReview    NotificationType = "review"
	NotificationSystem    NotificationType = "system"
	NotificationAPIChange NotificationType = "api_change"
)

// Broadcast 是广播通知的收件人。
const Broadcast = "all"

// Notification 是一条通知。Read 已经按当前用户计算。
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	ActorID   string           `json:"actorId,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      map[string]any   `json:"data,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// NotificationInput 是创建通知的请求。
type NotificationInput struct {
	UserID  string           `json:"userId"`
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Data    map[string]any   `json:"data,omitempty"`
}

// NotificationQuery 控制通知列表。
type NotificationQuery struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// ActivityScope 是动态流的范围。
type ActivityScope string

const (
	ScopeFollowing ActivityScope = "following"
	ScopeAll       ActivityScope = "all"
)

// Activity 是动态流中的一条记录。
type Activity struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	UserID    string       `json:"userId"`
	User      *UserSummary `json:"user,omitempty"`
	Rating    *Rating      `json:"rating,omitempty"`
	Target    *UserSummary `json:"target,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// WatchingEntry 是一条“正在观看”记录。
type WatchingEntry struct {
	ID            string       `json:"id"`
	UserID        string       `json:"userId"`
	MediaID       int64        `json:"mediaId"`
	MediaType     MediaType    `json:"mediaType"`
	MediaTitle    string       `json:"mediaTitle"`
	MediaPoster   string       `json:"mediaPoster"`
	SeasonNumber  *int         `json:"seasonNumber,omitempty"`
	EpisodeNumber *int         `json:"episodeNumber,omitempty"`
	StartedAt     time.Time    `json:"startedAt"`
	LastActiveAt  time.Time    `json:"lastActiveAt"`
	User          *UserSummary `json:"user,omitempty"`
}

// WatchingInput 是上报观看状态的请求。
type WatchingInput struct {
	MediaID       int64     `json:"mediaId"`
	MediaType     MediaType `json:"mediaType"`
	MediaTitle    string    `json:"mediaTitle,omitempty"`
	MediaPoster   string    `json:"mediaPoster,omitempty"`
	SeasonNumber  *int      `json:"seasonNumber,omitempty"`
	EpisodeNumber *int      `json:"episodeNumber,omitempty"`
}
