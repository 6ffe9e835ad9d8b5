// Package store 是客户端的会话和通知状态。
// 状态只在服务器确认成功之后才变化，每次变化由一个纯函数计算出完整的新状态。
package store

import (
	"context"

	"github.com/haider-9/tvdom/pkg/client"
)

// API 是 Session 需要的资源API。*client.Client 实现了它。
type API interface {
	SetToken(token string, user *client.User) error

	Register(ctx context.Context, in client.RegisterRequest) (*client.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*client.AuthResponse, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*client.User, error)
	GetUser(ctx context.Context, userID string) (*client.User, error)
	UpdateProfile(ctx context.Context, in client.ProfileUpdate) (*client.User, error)

	ListRatings(ctx context.Context, userID string) ([]client.Rating, error)
	UpsertRating(ctx context.Context, in client.RatingInput) (*client.Rating, bool, error)
	DeleteRating(ctx context.Context, mediaID int64) error

	ListWatchlist(ctx context.Context, userID string) ([]client.WatchlistItem, error)
	AddToWatchlist(ctx context.Context, in client.WatchlistInput) (*client.WatchlistItem, error)
	RemoveFromWatchlist(ctx context.Context, mediaID int64) error

	ListWatched(ctx context.Context, userID string) ([]client.WatchedItem, error)
	MarkWatched(ctx context.Context, in client.WatchedInput) (*client.MarkResult, error)

	ListPersonRatings(ctx context.Context, userID string) ([]client.PersonRating, error)
	RatePerson(ctx context.Context, in client.PersonRatingInput) (*client.PersonRating, bool, error)
	DeletePersonRating(ctx context.Context, personID int64) error
	ListPersonFavorites(ctx context.Context, userID string) ([]client.PersonFavorite, error)
	AddPersonFavorite(ctx context.Context, in client.PersonFavoriteInput) (*client.PersonFavorite, error)
	RemovePersonFavorite(ctx context.Context, personID int64) error

	ListFollows(ctx context.Context, userID string, dir client.Direction) ([]client.Follow, error)
	FollowStatus(ctx context.Context, followerID, followingID string) (bool, error)
	Follow(ctx context.Context, followingID string) (*client.Follow, error)
	Unfollow(ctx context.Context, followingID string) error
}

// NotificationAPI 是 Notifications 需要的资源API。*client.Client 实现了它。
type NotificationAPI interface {
	ListNotifications(ctx context.Context, opts client.NotificationQuery) ([]client.Notification, error)
	MarkNotificationsRead(ctx context.Context, ids []string) (int64, error)
	MarkAllNotificationsRead(ctx context.Context) (int64, error)
	DeleteNotification(ctx context.Context, id string) error
	CreateNotification(ctx context.Context, in client.NotificationInput) (*client.Notification, error)
	Activities(ctx context.Context, userID string, scope client.ActivityScope, limit, offset int) ([]client.Activity, error)
}

var (
	_ API             = (*client.Client)(nil)
	_ NotificationAPI = (*client.Client)(nil)
)
