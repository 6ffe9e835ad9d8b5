package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/haider-9/tvdom/pkg/client"
	"github.com/haider-9/tvdom/pkg/ttlcache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrSessionChanged 表示请求期间发生了登出或重新登录，结果已被丢弃。
var ErrSessionChanged = errors.New("store: session changed while the request was in flight")

// MinPasswordLength 与服务端的要求一致。
const MinPasswordLength = 6

// DefaultFollowTTL 是关注状态缓存的有效期。
const DefaultFollowTTL = 30 * time.Second

var validate = validator.New()

type followKey struct {
	follower  string
	following string
}

// Session 保存当前登录用户及其全部集合。并发安全。
type Session struct {
	api     API
	storage Storage
	logger  zerolog.Logger
	now     func() time.Time

	followTTL     time.Duration
	follows       *ttlcache.Cache[followKey, bool]
	notifications *Notifications

	mu    sync.RWMutex
	state State
	// gen 在每次登录和登出时递增，旧代的提交会被丢弃
	gen uint64
	// followEpoch 在关注缓存的条目被改写时递增，查询结果只在它未变化时写入缓存
	followEpoch uint64
	subscribers map[int]chan struct{}
	nextSubID   int
}

// SessionOption 配置 Session。
type SessionOption func(*Session)

// WithClock 替换时间来源，同时作用于关注状态缓存。
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithLogger 设置日志记录器。
func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithFollowTTL 设置关注状态缓存的有效期。
func WithFollowTTL(d time.Duration) SessionOption {
	return func(s *Session) { s.followTTL = d }
}

// WithNotifications 关联一个通知存储：登出时清空，关注关系变化时刷新动态。
func WithNotifications(n *Notifications) SessionOption {
	return func(s *Session) { s.notifications = n }
}

// NewSession 创建一个匿名会话。调用 Restore 从存储中恢复登录状态。
func NewSession(api API, storage Storage, opts ...SessionOption) *Session {
	s := &Session{
		api:         api,
		storage:     storage,
		logger:      log.Logger,
		now:         time.Now,
		followTTL:   DefaultFollowTTL,
		state:       anonymousState(),
		subscribers: make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.follows = ttlcache.New[followKey, bool](s.followTTL, ttlcache.WithClock(s.now))
	return s
}

// Snapshot 返回当前状态的深拷贝。
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe 返回一个在每次状态变化后收到信号的通道。
// 信号会合并，订阅者应在收到信号后调用 Snapshot。
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// notifyLocked 在持有写锁时调用。
func (s *Session) notifyLocked() {
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// generation 返回当前代数以及登录用户（未登录时为 nil）。
func (s *Session) generation() (uint64, *client.User) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Status != StatusAuthenticated || s.state.User == nil {
		return s.gen, nil
	}
	u := *s.state.User
	return s.gen, &u
}

// requireUser 返回当前代数和用户，未登录时返回认证错误。
func (s *Session) requireUser() (uint64, *client.User, error) {
	gen, u := s.generation()
	if u == nil {
		return 0, nil, apperr.Authentication("请先登录")
	}
	return gen, u, nil
}

// commit 在代数未变化时应用一次变化。persist 在同一把锁内执行。
func (s *Session) commit(gen uint64, a action, persist func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrSessionChanged
	}
	next := reduce(s.state, a)
	if persist != nil {
		if err := persist(); err != nil {
			return err
		}
	}
	s.state = next
	s.notifyLocked()
	return nil
}

// begin 开始一个新的会话代，之前代的所有提交都会被丢弃。
func (s *Session) begin(a action) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = reduce(s.state, a)
	s.notifyLocked()
	return s.gen
}

func (s *Session) persistIdentity(user *client.User, token string) func() error {
	return func() error {
		if err := s.storage.Save(KeyUser, user); err != nil {
			return err
		}
		if err := s.storage.Save(KeySession, token); err != nil {
			return err
		}
		return s.api.SetToken(token, user)
	}
}

// errIncompleteResponse 表示服务器返回成功但缺少必需的字段。
func errIncompleteResponse() error {
	return apperr.Unavailable("服务器返回的数据不完整", nil)
}

// commitIdentity 保存身份并进入已登录状态。
// 保存失败时回滚已写入的键、尽力注销这个令牌，并以认证失败结束，不会停留在认证中。
func (s *Session) commitIdentity(ctx context.Context, gen uint64, user *client.User, token string) error {
	err := s.commit(gen, authSucceeded{user: user, token: token}, s.persistIdentity(user, token))
	if err == nil || errors.Is(err, ErrSessionChanged) {
		return err
	}
	s.logger.Error().Err(err).Msg("保存会话失败，放弃本次认证")
	cerr := s.commit(gen, authFailed{err: err}, func() error {
		s.discardIdentity(ctx, user, token)
		return nil
	})
	if cerr != nil {
		return cerr
	}
	return err
}

// discardIdentity 删除会话键并清除客户端令牌，期间尽力在服务器上注销 token。
func (s *Session) discardIdentity(ctx context.Context, user *client.User, token string) {
	if err := s.storage.Delete(KeyUser, KeySession); err != nil {
		s.logger.Warn().Err(err).Msg("回滚会话存储失败")
	}
	if err := s.api.SetToken(token, user); err == nil {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("注销未保存的令牌失败")
		}
	}
	if err := s.api.SetToken("", nil); err != nil {
		s.logger.Warn().Err(err).Msg("清除客户端令牌失败")
	}
}

// Restore 从持久化存储中恢复会话，并向服务器确认令牌仍然有效。
// 令牌被拒绝时回到匿名状态并清空存储；网络错误时保留缓存的身份。
func (s *Session) Restore(ctx context.Context) error {
	var cached client.User
	var token string
	okUser, err := s.storage.Load(KeyUser, &cached)
	if err != nil {
		return err
	}
	okToken, err := s.storage.Load(KeySession, &token)
	if err != nil {
		return err
	}
	if !okUser || !okToken || token == "" {
		return nil
	}

	gen := s.begin(authStarted{})
	if err := s.api.SetToken(token, &cached); err != nil {
		_ = s.commit(gen, authFailed{err: err}, nil)
		return err
	}

	user, err := s.api.Me(ctx)
	if err == nil && user == nil {
		err = errIncompleteResponse()
	}
	switch {
	case err == nil:
		if err := s.commitIdentity(ctx, gen, user, token); err != nil {
			return err
		}
	case errors.Is(err, apperr.ErrAuthentication):
		s.logger.Info().Msg("会话已失效，回到匿名状态")
		return s.commit(gen, loggedOut{}, s.clearIdentity)
	default:
		s.logger.Warn().Err(err).Msg("无法验证会话，使用缓存的身份")
		if err := s.commit(gen, authSucceeded{user: &cached, token: token}, nil); err != nil {
			return err
		}
	}
	s.bindNotifications(cached.ID)
	s.LoadUserData(ctx)
	return nil
}

func (s *Session) bindNotifications(userID string) {
	if s.notifications != nil {
		s.notifications.SetViewer(userID)
	}
}

func (s *Session) clearIdentity() error {
	if err := s.storage.Delete(KeyUser, KeySession); err != nil {
		s.logger.Warn().Err(err).Msg("清空会话存储失败")
	}
	if err := s.api.SetToken("", nil); err != nil {
		s.logger.Warn().Err(err).Msg("清除客户端令牌失败")
	}
	return nil
}

// Login 用邮箱和密码登录，成功后加载全部集合。
func (s *Session) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return apperr.Validation("邮箱格式错误")
	}
	if password == "" {
		return apperr.Validation("请输入密码")
	}
	return s.authenticate(ctx, func() (*client.AuthResponse, error) {
		return s.api.Login(ctx, email, password)
	})
}

// Register 注册并登录。密码、确认密码和邮箱在本地先校验。
func (s *Session) Register(ctx context.Context, in client.RegisterRequest) error {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return apperr.Validation("请输入用户名")
	}
	if err := validate.Var(in.Email, "required,email"); err != nil {
		return apperr.Validation("邮箱格式错误")
	}
	if len(in.Password) < MinPasswordLength {
		return apperr.Validation("密码长度至少为6位")
	}
	if in.Password != in.ConfirmPassword {
		return apperr.Validation("两次输入的密码不一致")
	}
	return s.authenticate(ctx, func() (*client.AuthResponse, error) {
		return s.api.Register(ctx, in)
	})
}

func (s *Session) authenticate(ctx context.Context, call func() (*client.AuthResponse, error)) error {
	gen := s.begin(authStarted{})
	s.follows.Clear()

	resp, err := call()
	if err == nil && (resp == nil || resp.User == nil || resp.Token == "") {
		err = apperr.Unavailable("服务器返回的登录结果不完整", nil)
	}
	if err != nil {
		if cerr := s.commit(gen, authFailed{err: err}, nil); cerr != nil {
			return cerr
		}
		return err
	}
	if err := s.commitIdentity(ctx, gen, resp.User, resp.Token); err != nil {
		return err
	}
	s.bindNotifications(resp.User.ID)
	s.LoadUserData(ctx)
	return nil
}

// Logout 立即清空内存状态和持久化存储，然后尽力通知服务器注销令牌。
// 服务器调用失败不影响本地登出。
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	wasAuthenticated := s.state.Token != ""
	s.gen++
	gen := s.gen
	s.state = reduce(s.state, loggedOut{})
	if err := s.storage.Delete(KeyUser, KeySession); err != nil {
		s.logger.Warn().Err(err).Msg("清空会话存储失败")
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.follows.Clear()
	if s.notifications != nil {
		s.notifications.Clear()
	}

	if wasAuthenticated {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("服务器注销失败，本地已登出")
		}
	}

	// 期间可能已经重新登录，此时不能清除新令牌
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		if err := s.api.SetToken("", nil); err != nil {
			s.logger.Warn().Err(err).Msg("清除令牌失败")
		}
	}
}

// LoadUserData 并发加载全部集合。单个集合失败只记录日志并保留原值。
func (s *Session) LoadUserData(ctx context.Context) {
	gen, user := s.generation()
	if user == nil {
		return
	}
	if err := s.commit(gen, loadingChanged{loading: true}, nil); err != nil {
		return
	}

	var loaded userDataLoaded
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				s.logger.Warn().Err(err).Str("collection", name).Msg("加载用户数据失败")
			}
			return nil
		})
	}
	fetch("user", func(ctx context.Context) error {
		u, err := s.api.GetUser(ctx, user.ID)
		if err == nil {
			loaded.user = u
		}
		return err
	})
	fetch("ratings", func(ctx context.Context) error {
		v, err := s.api.ListRatings(ctx, user.ID)
		if err == nil {
			loaded.ratings = &v
		}
		return err
	})
	fetch("watchlist", func(ctx context.Context) error {
		v, err := s.api.ListWatchlist(ctx, user.ID)
		if err == nil {
			loaded.watchlist = &v
		}
		return err
	})
	fetch("watched", func(ctx context.Context) error {
		v, err := s.api.ListWatched(ctx, user.ID)
		if err == nil {
			loaded.watched = &v
		}
		return err
	})
	fetch("following", func(ctx context.Context) error {
		v, err := s.api.ListFollows(ctx, user.ID, client.Following)
		if err == nil {
			loaded.following = &v
		}
		return err
	})
	fetch("followers", func(ctx context.Context) error {
		v, err := s.api.ListFollows(ctx, user.ID, client.Followers)
		if err == nil {
			loaded.followers = &v
		}
		return err
	})
	fetch("personRatings", func(ctx context.Context) error {
		v, err := s.api.ListPersonRatings(ctx, user.ID)
		if err == nil {
			loaded.personRatings = &v
		}
		return err
	})
	fetch("personFavorites", func(ctx context.Context) error {
		v, err := s.api.ListPersonFavorites(ctx, user.ID)
		if err == nil {
			loaded.personFavorites = &v
		}
		return err
	})
	_ = g.Wait()

	var persist func() error
	if loaded.user != nil {
		u := loaded.user
		persist = func() error { return s.storage.Save(KeyUser, u) }
	}
	if err := s.commit(gen, loaded, persist); err != nil && !errors.Is(err, ErrSessionChanged) {
		s.logger.Warn().Err(err).Msg("保存用户数据失败")
	}
}

// UpdateProfile 修改资料，成功后同步到持久化存储和Cookie。
func (s *Session) UpdateProfile(ctx context.Context, in client.ProfileUpdate) (*client.User, error) {
	gen, _, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	user, err := s.api.UpdateProfile(ctx, in)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errIncompleteResponse()
	}
	err = s.commit(gen, profileUpdated{user: user}, func() error {
		if err := s.storage.Save(KeyUser, user); err != nil {
			return err
		}
		return s.api.SetToken(s.state.Token, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SetAvatar 保存上传服务返回的头像地址。
func (s *Session) SetAvatar(ctx context.Context, imageURL string) (*client.User, error) {
	if err := validate.Var(imageURL, "required,url"); err != nil {
		return nil, apperr.Validation("头像地址无效")
	}
	return s.UpdateProfile(ctx, client.ProfileUpdate{Avatar: &imageURL})
}

// SetBanner 保存上传服务返回的横幅地址。
func (s *Session) SetBanner(ctx context.Context, imageURL string) (*client.User, error) {
	if err := validate.Var(imageURL, "required,url"); err != nil {
		return nil, apperr.Validation("横幅地址无效")
	}
	return s.UpdateProfile(ctx, client.ProfileUpdate{Banner: &imageURL})
}

// --- 评分 ---

func validateScore(score int) error {
	if score < 1 || score > 10 {
		return apperr.Validation("评分必须在1到10之间")
	}
	return nil
}

func validateMedia(id int64, t client.MediaType) error {
	if id <= 0 {
		return apperr.Validation("缺少mediaId")
	}
	if t != client.Movie && t != client.TV {
		return apperr.Validation("mediaType 必须是 movie 或 tv")
	}
	return nil
}

// AddRating 创建或覆盖评分。已有评分原位替换且 totalRatings 不变；
// 新评分插到最前面并使 totalRatings 加一。之后从服务器重新获取平均分。
func (s *Session) AddRating(ctx context.Context, in client.RatingInput) (*client.Rating, error) {
	if err := validateMedia(in.MediaID, in.MediaType); err != nil {
		return nil, err
	}
	if err := validateScore(in.Rating); err != nil {
		return nil, err
	}
	gen, user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	r, created, err := s.api.UpsertRating(ctx, in)
	if err == nil && r == nil {
		err = errIncompleteResponse()
	}
	if err != nil {
		return nil, err
	}
	if err := s.commit(gen, ratingUpserted{rating: *r, created: created}, nil); err != nil {
		return nil, err
	}
	s.refreshAverage(ctx, gen, user.ID)
	return r, nil
}

// UpdateRating 修改一条已有评分的分数和评论。
func (s *Session) UpdateRating(ctx context.Context, ratingID string, score int, review string) (*client.Rating, error) {
	s.mu.RLock()
	i := slices.IndexFunc(s.state.Ratings, func(r client.Rating) bool { return r.ID == ratingID })
	var existing client.Rating
	if i >= 0 {
		existing = s.state.Ratings[i]
	}
	s.mu.RUnlock()
	if i < 0 {
		return nil, apperr.NotFound("评分不存在")
	}
	return s.AddRating(ctx, client.RatingInput{
		MediaID:     existing.MediaID,
		MediaType:   existing.MediaType,
		Rating:      score,
		Review:      review,
		IsSpoiler:   existing.IsSpoiler,
		Tags:        existing.Tags,
		Rewatched:   existing.Rewatched,
		WatchedDate: existing.WatchedDate,
		MediaTitle:  existing.MediaTitle,
		MediaPoster: existing.MediaPoster,
	})
}

// DeleteRating 删除评分。本地不存在的评分直接忽略。
func (s *Session) DeleteRating(ctx context.Context, ratingID string) error {
	gen, user, err := s.requireUser()
	if err != nil {
		return err
	}
	s.mu.RLock()
	i := slices.IndexFunc(s.state.Ratings, func(r client.Rating) bool { return r.ID == ratingID })
	var mediaID int64
	if i >= 0 {
		mediaID = s.state.Ratings[i].MediaID
	}
	s.mu.RUnlock()
	if i < 0 {
		return nil
	}

	if err := s.api.DeleteRating(ctx, mediaID); err != nil {
		return err
	}
	if err := s.commit(gen, ratingDeleted{id: ratingID}, nil); err != nil {
		return err
	}
	s.refreshAverage(ctx, gen, user.ID)
	return nil
}

// refreshAverage 从服务器获取权威的平均分。失败只记录日志。
func (s *Session) refreshAverage(ctx context.Context, gen uint64, userID string) {
	u, err := s.api.GetUser(ctx, userID)
	if err == nil && u == nil {
		err = errIncompleteResponse()
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("刷新平均分失败")
		return
	}
	if err := s.commit(gen, averageRefreshed{average: u.AverageRating}, nil); err != nil && !errors.Is(err, ErrSessionChanged) {
		s.logger.Warn().Err(err).Msg("刷新平均分失败")
	}
}

// --- 待看与已看 ---

// AddToWatchlist 加入待看列表。重复加入时服务器返回Conflict。
func (s *Session) AddToWatchlist(ctx context.Context, in client.WatchlistInput) (*client.WatchlistItem, error) {
	if err := validateMedia(in.MediaID, in.MediaType); err != nil {
		return nil, err
	}
	gen, _, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	item, err := s.api.AddToWatchlist(ctx, in)
	if err == nil && item == nil {
		err = errIncompleteResponse()
	}
	if err != nil {
		return nil, err
	}
	if err := s.commit(gen, watchlistAdded{item: *item}, nil); err != nil {
		return nil, err
	}
	return item, nil
}

// RemoveFromWatchlist 移出待看列表。
func (s *Session) RemoveFromWatchlist(ctx context.Context, mediaID int64) error {
	gen, _, err := s.requireUser()
	if err != nil {
		return err
	}
	if err := s.api.RemoveFromWatchlist(ctx, mediaID); err != nil {
		return err
	}
	return s.commit(gen, watchlistRemoved{mediaID: mediaID}, nil)
}

// MarkAsWatched 标记已看。首次标记时同一作品的待看记录在同一次状态变化中被移除。
func (s *Session) MarkAsWatched(ctx context.Context, in client.WatchedInput) (*client.WatchedItem, error) {
	if err := validateMedia(in.MediaID, in.MediaType); err != nil {
		return nil, err
	}
	if in.Rating != nil {
		if err := validateScore(*in.Rating); err != nil {
			return nil, err
		}
	}
	gen, _, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	res, err := s.api.MarkWatched(ctx, in)
	if err == nil && (res == nil || res.Item == nil) {
		err = errIncompleteResponse()
	}
	if err != nil {
		return nil, err
	}
	a := watchedMarked{item: *res.Item, created: res.Created, removedFromWatchlist: res.RemovedFromWatchlist}
	if err := s.commit(gen, a, nil); err != nil {
		return nil, err
	}
	return res.Item, nil
}

// --- 演职人员 ---

// AddPersonRating 创建或覆盖演职人员评分。
func (s *Session) AddPersonRating(ctx context.Context, in client.PersonRatingInput) (*client.PersonRating, error) {
	if in.PersonID <= 0 {
		return nil, apperr.Validation("缺少personId")
	}
	if err := validateScore(in.Rating); err != nil {
		return nil, err
	}
	gen, _, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	r, _, err := s.api.RatePerson(ctx, in)
	if err == nil && r == nil {
		err = errIncompleteResponse()
	}
	if err != nil {
		return nil, err
	}
	if err := s.commit(gen, personRated{rating: *r}, nil); err != nil {
		return nil, err
	}
	return r, nil
}

// DeletePersonRating 删除演职人员评分。
func (s *Session) DeletePersonRating(ctx context.Context, personID int64) error {
	gen, _, err := s.requireUser()
	if err != nil {
		return err
	}
	if err := s.api.DeletePersonRating(ctx, personID); err != nil {
		return err
	}
	return s.commit(gen, personRatingDeleted{personID: personID}, nil)
}

// AddPersonFavorite 收藏演职人员。
func (s *Session) AddPersonFavorite(ctx context.Context, in client.PersonFavoriteInput) (*client.PersonFavorite, error) {
	if in.PersonID <= 0 {
		return nil, apperr.Validation("缺少personId")
	}
	gen, _, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	f, err := s.api.AddPersonFavorite(ctx, in)
	if err == nil && f == nil {
		err = errIncompleteResponse()
	}
	if err != nil {
		return nil, err
	}
	if err := s.commit(gen, personFavoriteAdded{favorite: *f}, nil); err != nil {
		return nil, err
	}
	return f, nil
}

// RemovePersonFavorite 取消收藏演职人员。
func (s *Session) RemovePersonFavorite(ctx context.Context, personID int64) error {
	gen, _, err := s.requireUser()
	if err != nil {
		return err
	}
	if err := s.api.RemovePersonFavorite(ctx, personID); err != nil {
		return err
	}
	return s.commit(gen, personFavoriteRemove{personID: personID}, nil)
}
