package client

import (
	"context"
	"net/http"
	"strconv"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

// --- 认证 ---

// Register 注册新用户。
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*AuthResponse, error) {
	var out AuthResponse
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/register", body: in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login 用邮箱和密码登录。
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/login", body: body, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout 注销当前令牌。
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/logout"})
	return err
}

// Me 返回令牌对应的用户。
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/auth/me", out: &out}); err != nil {
		return nil, err
	}
	return out.User, nil
}

// --- 用户 ---

// GetUser 按ID查询用户。
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	q := map[string]string{"userId": userID}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/users", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.User, nil
}

// SearchUsers 按用户名或昵称搜索。
func (c *Client) SearchUsers(ctx context.Context, query string, limit, offset int) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	q := map[string]string{"q": query, "limit": strconv.Itoa(limit), "offset": strconv.Itoa(offset)}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/users/search", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// UpdateProfile 修改当前用户资料。
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if _, err := c.do(ctx, request{method: http.MethodPut, path: "/api/users", body: in, out: &out}); err != nil {
		return nil, err
	}
	return out.User, nil
}

// DeleteAccount 删除当前账号及其全部数据。
func (c *Client) DeleteAccount(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/users"})
	return err
}

// --- 评分 ---

// ListRatings 返回用户的评分。
func (c *Client) ListRatings(ctx context.Context, userID string) ([]Rating, error) {
	var out struct {
		Ratings []Rating `json:"ratings"`
	}
	q := map[string]string{"userId": userID}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/ratings", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Ratings, nil
}

// UpsertRating 创建或覆盖评分，created 表示是否新建。
func (c *Client) UpsertRating(ctx context.Context, in RatingInput) (*Rating, bool, error) {
	var out struct {
		Rating  *Rating `json:"rating"`
		Created bool    `json:"created"`
	}
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/ratings", body: in, out: &out}); err != nil {
		return nil, false, err
	}
	return out.Rating, out.Created, nil
}

// DeleteRating 删除对某部作品的评分。
func (c *Client) DeleteRating(ctx context.Context, mediaID int64) error {
	q := map[string]string{"mediaId": itoa(mediaID)}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/ratings", query: q})
	return err
}

// --- 待看列表 ---

// ListWatchlist 返回用户的待看列表。
func (c *Client) ListWatchlist(ctx context.Context, userID string) ([]WatchlistItem, error) {
	var out struct {
		Watchlist []WatchlistItem `json:"watchlist"`
	}
	q := map[string]string{"userId": userID}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/watchlist", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Watchlist, nil
}

// AddToWatchlist 加入待看列表，重复加入返回Conflict。
func (c *Client) AddToWatchlist(ctx context.Context, in WatchlistInput) (*WatchlistItem, error) {
	var out struct {
		Item *WatchlistItem `json:"item"`
	}
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/watchlist", body: in, out: &out}); err != nil {
		return nil, err
	}
	return out.Item, nil
}

// RemoveFromWatchlist 移出待看列表。
func (c *Client) RemoveFromWatchlist(ctx context.Context, mediaID int64) error {
	q := map[string]string{"mediaId": itoa(mediaID)}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/watchlist", query: q})
	return err
}

// --- 已看 ---

// ListWatched 返回用户的已看记录。
func (c *Client) ListWatched(ctx context.Context, userID string) ([]WatchedItem, error) {
	var out struct {
		Watched []WatchedItem `json:"watched"`
	}
	q := map[string]string{"userId": userID}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/watched", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Watched, nil
}

// MarkWatched 标记已看。
func (c *Client) MarkWatched(ctx context.Context, in WatchedInput) (*MarkResult, error) {
	var out MarkResult
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/watched", body: in, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveWatched 删除已看记录。
func (c *Client) RemoveWatched(ctx context.Context, mediaID int64) error {
	q := map[string]string{"mediaId": itoa(mediaID)}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/watched", query: q})
	return err
}

// --- 演职人员 ---

// ListPersonRatings 返回用户的演职人员评分。
func (c *Client) ListPersonRatings(ctx context.Context, userID string) ([]PersonRating, error) {
	var out struct {
		Ratings []PersonRating `json:"ratings"`
	}
	q := map[string]string{"userId": userID}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/person-ratings", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Ratings, nil
}

// RatePerson 创建或覆盖演职人员评分。
func (c *Client) RatePerson(ctx context.Context, in PersonRatingInput) (*PersonRating, bool, error) {
	var out struct {
		Rating  *PersonRating `json:"rating"`
		Created bool          `json:"created"`
	}
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/person-ratings", body: in, out: &out}); err != nil {
		return nil, false, err
	}
	return out.Rating, out.Created, nil
}

// DeletePersonRating 删除演职人员评分。
func (c *Client) DeletePersonRating(ctx context.Context, personID int64) error {
	q := map[string]string{"personId": itoa(personID)}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/person-ratings", query: q})
	return err
}

// ListPersonFavorites 返回用户收藏的演职人员。
func (c *Client) ListPersonFavorites(ctx context.Context, userID string) ([]PersonFavorite, error) {
	var out struct {
		Favorites []PersonFavorite `json:"favorites"`
	}
	q := map[string]string{"userId": userID}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/person-favorites", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Favorites, nil
}

// AddPersonFavorite 收藏演职人员。
func (c *Client) AddPersonFavorite(ctx context.Context, in PersonFavoriteInput) (*PersonFavorite, error) {
	var out struct {
		Favorite *PersonFavorite `json:"favorite"`
	}
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/person-favorites", body: in, out: &out}); err != nil {
		return nil, err
	}
	return out.Favorite, nil
}

// RemovePersonFavorite 取消收藏演职人员。
func (c *Client) RemovePersonFavorite(ctx context.Context, personID int64) error {
	q := map[string]string{"personId": itoa(personID)}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/person-favorites", query: q})
	return err
}

// --- 关注 ---

// ListFollows 返回用户的关注列表或粉丝列表。
func (c *Client) ListFollows(ctx context.Context, userID string, dir Direction) ([]Follow, error) {
	var out struct {
		Follows []Follow `json:"follows"`
	}
	q := map[string]string{"userId": userID, "type": string(dir)}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/follows", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Follows, nil
}

// FollowStatus 查询 followerID 是否关注了 followingID。
func (c *Client) FollowStatus(ctx context.Context, followerID, followingID string) (bool, error) {
	var out struct {
		Following bool `json:"following"`
	}
	q := map[string]string{"followerId": followerID, "followingId": followingID}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/follows/status", query: q, out: &out}); err != nil {
		return false, err
	}
	return out.Following, nil
}

// Follow 关注一个用户。
func (c *Client) Follow(ctx context.Context, followingID string) (*Follow, error) {
	var out struct {
		Follow *Follow `json:"follow"`
	}
	body := map[string]string{"followingId": followingID}
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/follows", body: body, out: &out}); err != nil {
		return nil, err
	}
	return out.Follow, nil
}

// Unfollow 取消关注。
func (c *Client) Unfollow(ctx context.Context, followingID string) error {
	q := map[string]string{"followingId": followingID}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/follows", query: q})
	return err
}

// --- 通知 ---

// ListNotifications 返回当前用户的通知，包括广播。
func (c *Client) ListNotifications(ctx context.Context, opts NotificationQuery) ([]Notification, error) {
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	q := map[string]string{}
	if opts.Limit > 0 {
		q["limit"] = strconv.Itoa(opts.Limit)
	}
	if opts.Offset > 0 {
		q["offset"] = strconv.Itoa(opts.Offset)
	}
	if opts.UnreadOnly {
		q["unreadOnly"] = "true"
	}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/notifications", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

type patchResult struct {
	ModifiedCount int64 `json:"modifiedCount"`
}

// MarkNotificationsRead 把指定通知标记为已读，返回实际修改的数量。
func (c *Client) MarkNotificationsRead(ctx context.Context, ids []string) (int64, error) {
	var out patchResult
	body := map[string]any{"action": "markRead", "notificationIds": ids}
	if _, err := c.do(ctx, request{method: http.MethodPatch, path: "/api/notifications", body: body, out: &out}); err != nil {
		return 0, err
	}
	return out.ModifiedCount, nil
}

// MarkAllNotificationsRead 把全部通知标记为已读。
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	var out patchResult
	body := map[string]any{"action": "markAllRead"}
	if _, err := c.do(ctx, request{method: http.MethodPatch, path: "/api/notifications", body: body, out: &out}); err != nil {
		return 0, err
	}
	return out.ModifiedCount, nil
}

// DeleteNotification 删除一条通知，广播通知只对当前用户隐藏。
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	q := map[string]string{"notificationId": id}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/notifications", query: q})
	return err
}

// CreateNotification 创建一条通知。
func (c *Client) CreateNotification(ctx context.Context, in NotificationInput) (*Notification, error) {
	var out struct {
		Notification *Notification `json:"notification"`
	}
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/notifications", body: in, out: &out}); err != nil {
		return nil, err
	}
	return out.Notification, nil
}

// --- 动态与正在观看 ---

// Activities 返回动态流。
func (c *Client) Activities(ctx context.Context, userID string, scope ActivityScope, limit, offset int) ([]Activity, error) {
	var out struct {
		Activities []Activity `json:"activities"`
	}
	q := map[string]string{"type": string(scope), "limit": strconv.Itoa(limit), "offset": strconv.Itoa(offset)}
	if userID != "" {
		q["userId"] = userID
	}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/activities", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Activities, nil
}

// CurrentlyWatching 返回正在观看的列表。following 为 true 时只列出 userID 关注的人。
func (c *Client) CurrentlyWatching(ctx context.Context, userID string, following bool) ([]WatchingEntry, error) {
	var out struct {
		Entries []WatchingEntry `json:"currentlyWatching"`
	}
	q := map[string]string{}
	if userID != "" {
		q["userId"] = userID
	}
	if following {
		q["following"] = "true"
	}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/currently-watching", query: q, out: &out}); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// ReportWatching 上报正在观看的作品。
func (c *Client) ReportWatching(ctx context.Context, in WatchingInput) (*WatchingEntry, error) {
	var out struct {
		Entry *WatchingEntry `json:"entry"`
	}
	if _, err := c.do(ctx, request{method: http.MethodPost, path: "/api/currently-watching", body: in, out: &out}); err != nil {
		return nil, err
	}
	return out.Entry, nil
}

// StopWatching 结束观看。
func (c *Client) StopWatching(ctx context.Context, mediaID int64) error {
	q := map[string]string{"mediaId": itoa(mediaID)}
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/currently-watching", query: q})
	return err
}

// --- 影视详情 ---

// MediaDetails 返回影视详情的原始JSON。
func (c *Client) MediaDetails(ctx context.Context, mediaType MediaType, id int64) ([]byte, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/api/media/" + string(mediaType) + "/" + itoa(id)})
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
