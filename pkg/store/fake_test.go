package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/haider-9/tvdom/pkg/client"
)

// fakeAPI 是一个内存中的服务端，维护与真实服务相同的计数器规则。
type fakeAPI struct {
	mu sync.Mutex

	users     map[string]*client.User
	passwords map[string]string // email -> password
	sessions  map[string]string // token -> userID
	token     string
	nextID    int

	ratings         map[string][]client.Rating
	watchlist       map[string][]client.WatchlistItem
	watched         map[string][]client.WatchedItem
	personRatings   map[string][]client.PersonRating
	personFavorites map[string][]client.PersonFavorite
	follows         []client.Follow
	notifications   []client.Notification
	activities      []client.Activity

	calls map[string]int
	// fail 中的错误在下一次对应调用时返回一次
	fail map[string]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users:           make(map[string]*client.User),
		passwords:       make(map[string]string),
		sessions:        make(map[string]string),
		ratings:         make(map[string][]client.Rating),
		watchlist:       make(map[string][]client.WatchlistItem),
		watched:         make(map[string][]client.WatchedItem),
		personRatings:   make(map[string][]client.PersonRating),
		personFavorites: make(map[string][]client.PersonFavorite),
		calls:           make(map[string]int),
		fail:            make(map[string]error),
	}
}

func (f *fakeAPI) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// addUser 直接在服务端创建一个用户。
func (f *fakeAPI) addUser(username, password string) *client.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &client.User{ID: f.id("user"), Username: username, Email: username + "@example.com"}
	f.users[u.ID] = u
	f.passwords[u.Email] = password
	return u
}

func (f *fakeAPI) user(id string) client.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.users[id]
}

func (f *fakeAPI) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) failNext(op string, err error) {
	f.mu.Lock()
	f.fail[op] = err
	f.mu.Unlock()
}

// enter 记录一次调用并返回注入的错误。返回时持有锁。
func (f *fakeAPI) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	if err, ok := f.fail[op]; ok {
		delete(f.fail, op)
		return err
	}
	return nil
}

func (f *fakeAPI) current() (*client.User, error) {
	u, ok := f.users[f.sessions[f.token]]
	if !ok {
		return nil, apperr.Authentication("未登录")
	}
	return u, nil
}

func (f *fakeAPI) SetToken(token string, _ *client.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	return nil
}

func (f *fakeAPI) Register(_ context.Context, in client.RegisterRequest) (*client.AuthResponse, error) {
	err := f.enter("register")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if _, taken := f.passwords[in.Email]; taken {
		return nil, apperr.Conflict("邮箱已被注册")
	}
	u := &client.User{ID: f.id("user"), Username: in.Username, Email: in.Email}
	f.users[u.ID] = u
	f.passwords[u.Email] = in.Password
	tok := f.id("token")
	f.sessions[tok] = u.ID
	cp := *u
	return &client.AuthResponse{User: &cp, Token: tok}, nil
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (*client.AuthResponse, error) {
	err := f.enter("login")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if p, ok := f.passwords[email]; !ok || p != password {
		return nil, apperr.Authentication("邮箱或密码错误")
	}
	for _, u := range f.users {
		if u.Email == email {
			tok := f.id("token")
			f.sessions[tok] = u.ID
			cp := *u
			return &client.AuthResponse{User: &cp, Token: tok}, nil
		}
	}
	return nil, apperr.Authentication("邮箱或密码错误")
}

func (f *fakeAPI) Logout(context.Context) error {
	err := f.enter("logout")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	delete(f.sessions, f.token)
	return nil
}

func (f *fakeAPI) Me(context.Context) (*client.User, error) {
	err := f.enter("me")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, err := f.current()
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (f *fakeAPI) GetUser(_ context.Context, userID string) (*client.User, error) {
	err := f.enter("getUser")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, apperr.NotFound("用户不存在")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeAPI) UpdateProfile(_ context.Context, in client.ProfileUpdate) (*client.User, error) {
	err := f.enter("updateProfile")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, err := f.current()
	if err != nil {
		return nil, err
	}
	if in.DisplayName != nil {
		u.DisplayName = *in.DisplayName
	}
	if in.Avatar != nil {
		u.Avatar = *in.Avatar
	}
	if in.Banner != nil {
		u.Banner = *in.Banner
	}
	cp := *u
	return &cp, nil
}

func (f *fakeAPI) ListRatings(_ context.Context, userID string) ([]client.Rating, error) {
	err := f.enter("listRatings")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.ratings[userID]), nil
}

func (f *fakeAPI) recomputeAverage(u *client.User) {
	list := f.ratings[u.ID]
	if len(list) == 0 {
		u.AverageRating = 0
		return
	}
	sum := 0
	for _, r := range list {
		sum += r.Rating
	}
	u.AverageRating = float64(sum) / float64(len(list))
}

func (f *fakeAPI) UpsertRating(_ context.Context, in client.RatingInput) (*client.Rating, bool, error) {
	err := f.enter("upsertRating")
	defer f.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	u, err := f.current()
	if err != nil {
		return nil, false, err
	}
	list := f.ratings[u.ID]
	if i := slices.IndexFunc(list, func(r client.Rating) bool { return r.MediaID == in.MediaID }); i >= 0 {
		list[i].Rating = in.Rating
		list[i].Review = in.Review
		f.recomputeAverage(u)
		r := list[i]
		return &r, false, nil
	}
	r := client.Rating{ID: f.id("rating"), UserID: u.ID, MediaID: in.MediaID, MediaType: in.MediaType, Rating: in.Rating, Review: in.Review}
	f.ratings[u.ID] = append([]client.Rating{r}, list...)
	u.TotalRatings++
	f.recomputeAverage(u)
	return &r, true, nil
}

func (f *fakeAPI) DeleteRating(_ context.Context, mediaID int64) error {
	err := f.enter("deleteRating")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	u, err := f.current()
	if err != nil {
		return err
	}
	list := f.ratings[u.ID]
	i := slices.IndexFunc(list, func(r client.Rating) bool { return r.MediaID == mediaID })
	if i < 0 {
		return apperr.NotFound("评分不存在")
	}
	f.ratings[u.ID] = slices.Delete(list, i, i+1)
	u.TotalRatings = max(0, u.TotalRatings-1)
	f.recomputeAverage(u)
	return nil
}

func (f *fakeAPI) ListWatchlist(_ context.Context, userID string) ([]client.WatchlistItem, error) {
	err := f.enter("listWatchlist")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.watchlist[userID]), nil
}

func (f *fakeAPI) AddToWatchlist(_ context.Context, in client.WatchlistInput) (*client.WatchlistItem, error) {
	err := f.enter("addToWatchlist")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, err := f.current()
	if err != nil {
		return nil, err
	}
	if slices.ContainsFunc(f.watchlist[u.ID], func(w client.WatchlistItem) bool { return w.MediaID == in.MediaID }) {
		return nil, apperr.Conflict("已在待看列表中")
	}
	item := client.WatchlistItem{ID: f.id("wl"), UserID: u.ID, MediaID: in.MediaID, MediaType: in.MediaType, Priority: client.PriorityMedium}
	f.watchlist[u.ID] = append([]client.WatchlistItem{item}, f.watchlist[u.ID]...)
	u.WatchlistCount++
	return &item, nil
}

func (f *fakeAPI) RemoveFromWatchlist(_ context.Context, mediaID int64) error {
	err := f.enter("removeFromWatchlist")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	u, err := f.current()
	if err != nil {
		return err
	}
	list := f.watchlist[u.ID]
	i := slices.IndexFunc(list, func(w client.WatchlistItem) bool { return w.MediaID == mediaID })
	if i < 0 {
		return apperr.NotFound("不在待看列表中")
	}
	f.watchlist[u.ID] = slices.Delete(list, i, i+1)
	u.WatchlistCount = max(0, u.WatchlistCount-1)
	return nil
}

func (f *fakeAPI) ListWatched(_ context.Context, userID string) ([]client.WatchedItem, error) {
	err := f.enter("listWatched")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.watched[userID]), nil
}

func (f *fakeAPI) MarkWatched(_ context.Context, in client.WatchedInput) (*client.MarkResult, error) {
	err := f.enter("markWatched")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, err := f.current()
	if err != nil {
		return nil, err
	}
	list := f.watched[u.ID]
	if i := slices.IndexFunc(list, func(w client.WatchedItem) bool { return w.MediaID == in.MediaID }); i >= 0 {
		list[i].RewatchCount++
		item := list[i]
		return &client.MarkResult{Item: &item}, nil
	}
	item := client.WatchedItem{ID: f.id("watched"), UserID: u.ID, MediaID: in.MediaID, MediaType: in.MediaType, WatchedAt: time.Now()}
	f.watched[u.ID] = append([]client.WatchedItem{item}, list...)
	u.WatchedCount++
	res := &client.MarkResult{Item: &item, Created: true}
	wl := f.watchlist[u.ID]
	if i := slices.IndexFunc(wl, func(w client.WatchlistItem) bool { return w.MediaID == in.MediaID }); i >= 0 {
		f.watchlist[u.ID] = slices.Delete(wl, i, i+1)
		u.WatchlistCount = max(0, u.WatchlistCount-1)
		res.RemovedFromWatchlist = true
	}
	return res, nil
}

func (f *fakeAPI) ListPersonRatings(_ context.Context, userID string) ([]client.PersonRating, error) {
	err := f.enter("listPersonRatings")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.personRatings[userID]), nil
}

func (f *fakeAPI) RatePerson(_ context.Context, in client.PersonRatingInput) (*client.PersonRating, bool, error) {
	err := f.enter("ratePerson")
	defer f.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	u, err := f.current()
	if err != nil {
		return nil, false, err
	}
	list := f.personRatings[u.ID]
	if i := slices.IndexFunc(list, func(r client.PersonRating) bool { return r.PersonID == in.PersonID }); i >= 0 {
		list[i].Rating = in.Rating
		r := list[i]
		return &r, false, nil
	}
	r := client.PersonRating{ID: f.id("pr"), UserID: u.ID, PersonID: in.PersonID, Rating: in.Rating}
	f.personRatings[u.ID] = append([]client.PersonRating{r}, list...)
	return &r, true, nil
}

func (f *fakeAPI) DeletePersonRating(_ context.Context, personID int64) error {
	err := f.enter("deletePersonRating")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	u, err := f.current()
	if err != nil {
		return err
	}
	list := f.personRatings[u.ID]
	i := slices.IndexFunc(list, func(r client.PersonRating) bool { return r.PersonID == personID })
	if i < 0 {
		return apperr.NotFound("评分不存在")
	}
	f.personRatings[u.ID] = slices.Delete(list, i, i+1)
	return nil
}

func (f *fakeAPI) ListPersonFavorites(_ context.Context, userID string) ([]client.PersonFavorite, error) {
	err := f.enter("listPersonFavorites")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.personFavorites[userID]), nil
}

func (f *fakeAPI) AddPersonFavorite(_ context.Context, in client.PersonFavoriteInput) (*client.PersonFavorite, error) {
	err := f.enter("addPersonFavorite")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, err := f.current()
	if err != nil {
		return nil, err
	}
	if slices.ContainsFunc(f.personFavorites[u.ID], func(p client.PersonFavorite) bool { return p.PersonID == in.PersonID }) {
		return nil, apperr.Conflict("已收藏")
	}
	fav := client.PersonFavorite{ID: f.id("pf"), UserID: u.ID, PersonID: in.PersonID, PersonName: in.PersonName}
	f.personFavorites[u.ID] = append([]client.PersonFavorite{fav}, f.personFavorites[u.ID]...)
	return &fav, nil
}

func (f *fakeAPI) RemovePersonFavorite(_ context.Context, personID int64) error {
	err := f.enter("removePersonFavorite")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	u, err := f.current()
	if err != nil {
		return err
	}
	list := f.personFavorites[u.ID]
	i := slices.IndexFunc(list, func(p client.PersonFavorite) bool { return p.PersonID == personID })
	if i < 0 {
		return apperr.NotFound("未收藏")
	}
	f.personFavorites[u.ID] = slices.Delete(list, i, i+1)
	return nil
}

func (f *fakeAPI) ListFollows(_ context.Context, userID string, dir client.Direction) ([]client.Follow, error) {
	err := f.enter("listFollows")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []client.Follow
	for _, edge := range f.follows {
		if (dir == client.Following && edge.FollowerID == userID) || (dir == client.Followers && edge.FollowingID == userID) {
			out = append(out, edge)
		}
	}
	return out, nil
}

func (f *fakeAPI) FollowStatus(_ context.Context, followerID, followingID string) (bool, error) {
	err := f.enter("followStatus")
	defer f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(f.follows, func(e client.Follow) bool {
		return e.FollowerID == followerID && e.FollowingID == followingID
	}), nil
}

func (f *fakeAPI) Follow(_ context.Context, followingID string) (*client.Follow, error) {
	err := f.enter("follow")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	u, err := f.current()
	if err != nil {
		return nil, err
	}
	target, ok := f.users[followingID]
	if !ok {
		return nil, apperr.NotFound("用户不存在")
	}
	if target.ID == u.ID {
		return nil, apperr.Validation("不能关注自己")
	}
	if slices.ContainsFunc(f.follows, func(e client.Follow) bool { return e.FollowerID == u.ID && e.FollowingID == followingID }) {
		return nil, apperr.Conflict("已经关注了该用户")
	}
	edge := client.Follow{ID: f.id("follow"), FollowerID: u.ID, FollowingID: followingID, CreatedAt: time.Now()}
	f.follows = append(f.follows, edge)
	u.FollowingCount++
	target.FollowerCount++
	f.notifications = append([]client.Notification{{
		ID: f.id("n"), UserID: followingID, ActorID: u.ID, Type: client.NotificationFollow,
		Title: "新关注者", Message: u.Username + " 关注了你", CreatedAt: time.Now(),
	}}, f.notifications...)
	return &edge, nil
}

func (f *fakeAPI) Unfollow(_ context.Context, followingID string) error {
	err := f.enter("unfollow")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	u, err := f.current()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(f.follows, func(e client.Follow) bool { return e.FollowerID == u.ID && e.FollowingID == followingID })
	if i < 0 {
		return apperr.NotFound("没有关注该用户")
	}
	f.follows = slices.Delete(f.follows, i, i+1)
	u.FollowingCount = max(0, u.FollowingCount-1)
	if target, ok := f.users[followingID]; ok {
		target.FollowerCount = max(0, target.FollowerCount-1)
	}
	return nil
}

func (f *fakeAPI) ListNotifications(context.Context, client.NotificationQuery) ([]client.Notification, error) {
	err := f.enter("listNotifications")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.notifications), nil
}

func (f *fakeAPI) MarkNotificationsRead(_ context.Context, ids []string) (int64, error) {
	err := f.enter("markRead")
	defer f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for i := range f.notifications {
		if !f.notifications[i].Read && slices.Contains(ids, f.notifications[i].ID) {
			f.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeAPI) MarkAllNotificationsRead(context.Context) (int64, error) {
	err := f.enter("markAllRead")
	defer f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for i := range f.notifications {
		if !f.notifications[i].Read {
			f.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeAPI) DeleteNotification(_ context.Context, id string) error {
	err := f.enter("deleteNotification")
	defer f.mu.Unlock()
	if err != nil {
		return err
	}
	i := slices.IndexFunc(f.notifications, func(n client.Notification) bool { return n.ID == id })
	if i < 0 {
		return apperr.NotFound("通知不存在")
	}
	f.notifications = slices.Delete(f.notifications, i, i+1)
	return nil
}

func (f *fakeAPI) CreateNotification(_ context.Context, in client.NotificationInput) (*client.Notification, error) {
	err := f.enter("createNotification")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	n := client.Notification{ID: f.id("n"), UserID: in.UserID, Type: in.Type, Title: in.Title, Message: in.Message, CreatedAt: time.Now()}
	f.notifications = append([]client.Notification{n}, f.notifications...)
	return &n, nil
}

func (f *fakeAPI) Activities(context.Context, string, client.ActivityScope, int, int) ([]client.Activity, error) {
	err := f.enter("activities")
	defer f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return slices.Clone(f.activities), nil
}

var (
	_ API             = (*fakeAPI)(nil)
	_ NotificationAPI = (*fakeAPI)(nil)
)
