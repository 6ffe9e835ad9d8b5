package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/haider-9/tvdom/pkg/client"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "secret1"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sessionFixture struct {
	session *Session
	api     *fakeAPI
	clock   *fakeClock
	storage *MemoryStorage
}

func newSessionFixture(t *testing.T, api API, fake *fakeAPI, opts ...SessionOption) *sessionFixture {
	t.Helper()
	clock := newFakeClock()
	storage := NewMemoryStorage()
	opts = append([]SessionOption{WithClock(clock.Now), WithLogger(zerolog.Nop())}, opts...)
	return &sessionFixture{
		session: NewSession(api, storage, opts...),
		api:     fake,
		clock:   clock,
		storage: storage,
	}
}

func newFixture(t *testing.T, opts ...SessionOption) *sessionFixture {
	t.Helper()
	fake := newFakeAPI()
	return newSessionFixture(t, fake, fake, opts...)
}

func (f *sessionFixture) login(t *testing.T, u *client.User) {
	t.Helper()
	require.NoError(t, f.session.Login(context.Background(), u.Email, testPassword))
}

func TestLoginPersistsTokenAndLoadsCollections(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.api.ratings[alice.ID] = []client.Rating{{ID: "r0", UserID: alice.ID, MediaID: 1, MediaType: client.Movie, Rating: 8}}

	f.login(t, alice)

	s := f.session.Snapshot()
	assert.Equal(t, StatusAuthenticated, s.Status)
	assert.Equal(t, alice.ID, s.User.ID)
	assert.NotEmpty(t, s.Token)
	assert.Len(t, s.Ratings, 1)
	assert.False(t, s.Loading)

	var token string
	found, err := f.storage.Load(KeySession, &token)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, s.Token, token)
	assert.Equal(t, s.Token, f.api.token)
}

func TestLoginFailureKinds(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	ctx := context.Background()

	err := f.session.Login(ctx, alice.Email, "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrAuthentication)
	s := f.session.Snapshot()
	assert.Equal(t, StatusAnonymous, s.Status)
	assert.Error(t, s.Err)

	f.api.failNext("login", apperr.Unavailable("网络错误", nil))
	err = f.session.Login(ctx, alice.Email, testPassword)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrAuthentication)
	assert.Equal(t, StatusAnonymous, f.session.Snapshot().Status)
}

func TestRegisterValidatesLocally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]client.RegisterRequest{
		"short password": {Username: "bob", Email: "bob@example.com", Password: "12345", ConfirmPassword: "12345"},
		"mismatch":       {Username: "bob", Email: "bob@example.com", Password: "123456", ConfirmPassword: "654321"},
		"bad email":      {Username: "bob", Email: "not-an-email", Password: "123456", ConfirmPassword: "123456"},
		"no username":    {Email: "bob@example.com", Password: "123456", ConfirmPassword: "123456"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, f.session.Register(ctx, in), apperr.ErrValidation)
		})
	}
	assert.Zero(t, f.api.callCount("register"))

	err := f.session.Register(ctx, client.RegisterRequest{
		Username: "bob", Email: " Bob@Example.com ", Password: "123456", ConfirmPassword: "123456",
	})
	require.NoError(t, err)
	s := f.session.Snapshot()
	assert.Equal(t, StatusAuthenticated, s.Status)
	assert.Equal(t, "bob@example.com", s.User.Email)
}

func TestMutationsRequireLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.session.AddRating(ctx, client.RatingInput{MediaID: 1, MediaType: client.Movie, Rating: 5})
	assert.ErrorIs(t, err, apperr.ErrAuthentication)
	_, err = f.session.AddToWatchlist(ctx, client.WatchlistInput{MediaID: 1, MediaType: client.Movie})
	assert.ErrorIs(t, err, apperr.ErrAuthentication)
	_, err = f.session.FollowUser(ctx, "someone")
	assert.ErrorIs(t, err, apperr.ErrAuthentication)
	assert.ErrorIs(t, f.session.UnfollowUser(ctx, "someone"), apperr.ErrAuthentication)
	_, err = f.session.UpdateProfile(ctx, client.ProfileUpdate{})
	assert.ErrorIs(t, err, apperr.ErrAuthentication)

	assert.Zero(t, f.api.callCount("upsertRating"))
	assert.Zero(t, f.api.callCount("follow"))
}

func TestRateTwiceReplacesEntry(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.login(t, alice)
	ctx := context.Background()
	before := f.api.callCount("getUser")

	_, err := f.session.AddRating(ctx, client.RatingInput{MediaID: 550, MediaType: client.Movie, Rating: 7})
	require.NoError(t, err)
	_, err = f.session.AddRating(ctx, client.RatingInput{MediaID: 550, MediaType: client.Movie, Rating: 9})
	require.NoError(t, err)

	s := f.session.Snapshot()
	require.Len(t, s.Ratings, 1)
	assert.Equal(t, 9, s.Ratings[0].Rating)
	assert.Equal(t, 1, s.User.TotalRatings)
	assert.InDelta(t, 9.0, s.User.AverageRating, 0.001)
	assert.Equal(t, before+2, f.api.callCount("getUser"), "每次评分后都要重新获取平均分")
}

func TestUpdateRatingKeepsMedia(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	r, err := f.session.AddRating(ctx, client.RatingInput{MediaID: 7, MediaType: client.TV, Rating: 4})
	require.NoError(t, err)
	updated, err := f.session.UpdateRating(ctx, r.ID, 6, "好多了")
	require.NoError(t, err)
	assert.Equal(t, int64(7), updated.MediaID)

	s := f.session.Snapshot()
	require.Len(t, s.Ratings, 1)
	assert.Equal(t, 6, s.Ratings[0].Rating)
	assert.Equal(t, "好多了", s.Ratings[0].Review)

	_, err = f.session.UpdateRating(ctx, "missing", 6, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.session.AddRating(ctx, client.RatingInput{MediaID: 7, MediaType: client.TV, Rating: 11})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteRating(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	require.NoError(t, f.session.DeleteRating(ctx, "does-not-exist"))
	assert.Zero(t, f.api.callCount("deleteRating"))
	assert.Equal(t, 0, f.session.Snapshot().User.TotalRatings)

	r, err := f.session.AddRating(ctx, client.RatingInput{MediaID: 3, MediaType: client.Movie, Rating: 5})
	require.NoError(t, err)
	require.NoError(t, f.session.DeleteRating(ctx, r.ID))

	s := f.session.Snapshot()
	assert.Empty(t, s.Ratings)
	assert.Equal(t, 0, s.User.TotalRatings)
	assert.Equal(t, 1, f.api.callCount("deleteRating"))
}

func TestMarkWatchedSupersedesWatchlist(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	_, err := f.session.AddToWatchlist(ctx, client.WatchlistInput{MediaID: 42, MediaType: client.Movie})
	require.NoError(t, err)
	assert.Equal(t, 1, f.session.Snapshot().User.WatchlistCount)

	_, err = f.session.MarkAsWatched(ctx, client.WatchedInput{MediaID: 42, MediaType: client.Movie})
	require.NoError(t, err)

	s := f.session.Snapshot()
	require.Len(t, s.Watched, 1)
	assert.Equal(t, int64(42), s.Watched[0].MediaID)
	assert.Empty(t, s.Watchlist)
	assert.Equal(t, 1, s.User.WatchedCount)
	assert.Equal(t, 0, s.User.WatchlistCount)

	// 重看不改变计数
	_, err = f.session.MarkAsWatched(ctx, client.WatchedInput{MediaID: 42, MediaType: client.Movie})
	require.NoError(t, err)
	s = f.session.Snapshot()
	require.Len(t, s.Watched, 1)
	assert.Equal(t, 1, s.Watched[0].RewatchCount)
	assert.Equal(t, 1, s.User.WatchedCount)
	assert.Equal(t, 0, s.User.WatchlistCount)
}

func TestWatchlistConflictAndRemove(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	_, err := f.session.AddToWatchlist(ctx, client.WatchlistInput{MediaID: 9, MediaType: client.TV})
	require.NoError(t, err)
	_, err = f.session.AddToWatchlist(ctx, client.WatchlistInput{MediaID: 9, MediaType: client.TV})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Len(t, f.session.Snapshot().Watchlist, 1)
	assert.Equal(t, 1, f.session.Snapshot().User.WatchlistCount)

	require.NoError(t, f.session.RemoveFromWatchlist(ctx, 9))
	assert.Empty(t, f.session.Snapshot().Watchlist)
	assert.Equal(t, 0, f.session.Snapshot().User.WatchlistCount)

	assert.ErrorIs(t, f.session.RemoveFromWatchlist(ctx, 9), apperr.ErrNotFound)
	assert.Equal(t, 0, f.session.Snapshot().User.WatchlistCount)
}

func TestFollowUnfollowScenario(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	bob := f.api.addUser("bob", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	_, err := f.session.FollowUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.session.Snapshot().User.FollowingCount)
	assert.Equal(t, 1, f.api.user(alice.ID).FollowingCount)
	assert.Equal(t, 1, f.api.user(bob.ID).FollowerCount)

	ok, err := f.session.CheckIfFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	f.clock.Advance(29 * time.Second)
	ok, err = f.session.CheckIfFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, f.api.callCount("followStatus"), "关注成功后的查询不应访问网络")

	require.NoError(t, f.session.UnfollowUser(ctx, bob.ID))
	assert.Equal(t, 0, f.session.Snapshot().User.FollowingCount)
	assert.Equal(t, 0, f.api.user(alice.ID).FollowingCount)
	assert.Equal(t, 0, f.api.user(bob.ID).FollowerCount)

	ok, err = f.session.CheckIfFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, f.api.callCount("followStatus"), "取消关注后必须重新查询")
}

func TestFollowTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	bob := f.api.addUser("bob", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	_, err := f.session.FollowUser(ctx, bob.ID)
	require.NoError(t, err)
	_, err = f.session.FollowUser(ctx, bob.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	assert.Len(t, f.api.follows, 1)
	assert.Equal(t, 1, f.session.Snapshot().User.FollowingCount)
	assert.Len(t, f.session.Snapshot().Following, 1)
	assert.Equal(t, 1, f.api.user(bob.ID).FollowerCount)
}

func TestSelfFollowRejected(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.login(t, alice)

	_, err := f.session.FollowUser(context.Background(), alice.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, f.api.callCount("follow"))
	assert.Equal(t, 0, f.session.Snapshot().User.FollowingCount)
	assert.Equal(t, 0, f.api.user(alice.ID).FollowerCount)
}

func TestFollowStatusCacheExpires(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	bob := f.api.addUser("bob", testPassword)
	carol := f.api.addUser("carol", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	for range 3 {
		ok, err := f.session.CheckIfFollowing(ctx, bob.ID, carol.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, f.api.callCount("followStatus"))

	f.clock.Advance(DefaultFollowTTL + time.Second)
	_, err := f.session.CheckIfFollowing(ctx, bob.ID, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.api.callCount("followStatus"))

	_, err = f.session.CheckIfFollowing(ctx, "", carol.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token", func(t *testing.T) {
		first := newFixture(t)
		alice := first.api.addUser("alice", testPassword)
		first.login(t, alice)
		_, err := first.session.AddToWatchlist(ctx, client.WatchlistInput{MediaID: 5, MediaType: client.Movie})
		require.NoError(t, err)

		restored := NewSession(first.api, first.storage, WithLogger(zerolog.Nop()))
		require.NoError(t, restored.Restore(ctx))
		s := restored.Snapshot()
		assert.Equal(t, StatusAuthenticated, s.Status)
		assert.Equal(t, alice.ID, s.User.ID)
		assert.Len(t, s.Watchlist, 1)
	})

	t.Run("rejected token", func(t *testing.T) {
		first := newFixture(t)
		alice := first.api.addUser("alice", testPassword)
		first.login(t, alice)

		first.api.failNext("me", apperr.Authentication("令牌已过期"))
		restored := NewSession(first.api, first.storage, WithLogger(zerolog.Nop()))
		require.NoError(t, restored.Restore(ctx))
		assert.Equal(t, StatusAnonymous, restored.Snapshot().Status)

		var token string
		found, err := first.storage.Load(KeySession, &token)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, first.api.token)
	})

	t.Run("server unreachable", func(t *testing.T) {
		first := newFixture(t)
		alice := first.api.addUser("alice", testPassword)
		first.login(t, alice)

		first.api.failNext("me", apperr.Unavailable("网络错误", nil))
		restored := NewSession(first.api, first.storage, WithLogger(zerolog.Nop()))
		require.NoError(t, restored.Restore(ctx))
		s := restored.Snapshot()
		assert.Equal(t, StatusAuthenticated, s.Status)
		assert.Equal(t, alice.ID, s.User.ID)
	})

	t.Run("empty storage", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.session.Restore(ctx))
		assert.Equal(t, StatusAnonymous, f.session.Snapshot().Status)
		assert.Zero(t, f.api.callCount("me"))
	})
}

// gatedAPI 在服务器完成评分之后、返回之前暂停，模拟一个进行中的请求。
type gatedAPI struct {
	*fakeAPI
	started chan struct{}
	release chan struct{}
}

func (g *gatedAPI) UpsertRating(ctx context.Context, in client.RatingInput) (*client.Rating, bool, error) {
	r, created, err := g.fakeAPI.UpsertRating(ctx, in)
	close(g.started)
	<-g.release
	return r, created, err
}

func TestLogoutDuringInFlightRequest(t *testing.T) {
	fake := newFakeAPI()
	gated := &gatedAPI{fakeAPI: fake, started: make(chan struct{}), release: make(chan struct{})}
	f := newSessionFixture(t, gated, fake)
	alice := fake.addUser("alice", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := f.session.AddRating(ctx, client.RatingInput{MediaID: 1, MediaType: client.Movie, Rating: 8})
		errCh <- err
	}()

	<-gated.started
	f.session.Logout(ctx)
	close(gated.release)

	assert.ErrorIs(t, <-errCh, ErrSessionChanged)
	s := f.session.Snapshot()
	assert.Equal(t, StatusAnonymous, s.Status)
	assert.Nil(t, s.User)
	assert.Empty(t, s.Ratings)

	var token string
	found, err := f.storage.Load(KeySession, &token)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, fake.token)
}

func TestLogoutIgnoresServerFailure(t *testing.T) {
	notifications := NewNotifications(newFakeAPI(), WithNotificationsLogger(zerolog.Nop()))
	f := newFixture(t, WithNotifications(notifications))
	alice := f.api.addUser("alice", testPassword)
	bob := f.api.addUser("bob", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	_, err := f.session.CheckIfFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	f.api.failNext("logout", apperr.Unavailable("网络错误", nil))
	f.session.Logout(ctx)

	assert.Equal(t, StatusAnonymous, f.session.Snapshot().Status)
	assert.Empty(t, f.api.token)
	_, err = f.session.CheckIfFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.api.callCount("followStatus"), "登出后关注状态缓存应被清空")
}

func TestLoadUserDataKeepsCollectionOnFailure(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.api.ratings[alice.ID] = []client.Rating{{ID: "r0", UserID: alice.ID, MediaID: 1, MediaType: client.Movie, Rating: 8}}
	f.login(t, alice)

	f.api.mu.Lock()
	f.api.ratings[alice.ID] = nil
	f.api.watchlist[alice.ID] = []client.WatchlistItem{{ID: "w0", UserID: alice.ID, MediaID: 2, MediaType: client.TV}}
	f.api.mu.Unlock()
	f.api.failNext("listRatings", apperr.Unavailable("网络错误", nil))

	f.session.LoadUserData(context.Background())
	s := f.session.Snapshot()
	assert.Len(t, s.Ratings, 1, "加载失败的集合保留原值")
	assert.Len(t, s.Watchlist, 1)
	assert.False(t, s.Loading)
}

func TestProfileUpdates(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	_, err := f.session.SetAvatar(ctx, "not a url")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.session.SetAvatar(ctx, "https://img.example.com/a.png")
	require.NoError(t, err)
	_, err = f.session.SetBanner(ctx, "https://img.example.com/b.png")
	require.NoError(t, err)
	name := "Alice A."
	_, err = f.session.UpdateProfile(ctx, client.ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)

	s := f.session.Snapshot()
	assert.Equal(t, "https://img.example.com/a.png", s.User.Avatar)
	assert.Equal(t, "https://img.example.com/b.png", s.User.Banner)
	assert.Equal(t, name, s.User.DisplayName)

	var stored client.User
	found, err := f.storage.Load(KeyUser, &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, name, stored.DisplayName)
}

func TestPersonRatingsAndFavorites(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	_, err := f.session.AddPersonRating(ctx, client.PersonRatingInput{PersonID: 31, Rating: 7})
	require.NoError(t, err)
	_, err = f.session.AddPersonRating(ctx, client.PersonRatingInput{PersonID: 31, Rating: 9})
	require.NoError(t, err)
	s := f.session.Snapshot()
	require.Len(t, s.PersonRatings, 1)
	assert.Equal(t, 9, s.PersonRatings[0].Rating)

	require.NoError(t, f.session.DeletePersonRating(ctx, 31))
	assert.Empty(t, f.session.Snapshot().PersonRatings)

	_, err = f.session.AddPersonFavorite(ctx, client.PersonFavoriteInput{PersonID: 31, PersonName: "Tom Hanks"})
	require.NoError(t, err)
	_, err = f.session.AddPersonFavorite(ctx, client.PersonFavoriteInput{PersonID: 31})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Len(t, f.session.Snapshot().PersonFavorites, 1)

	require.NoError(t, f.session.RemovePersonFavorite(ctx, 31))
	assert.Empty(t, f.session.Snapshot().PersonFavorites)
}

func TestSubscribeSignalsCommits(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	ch, unsubscribe := f.session.Subscribe()

	f.login(t, alice)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("没有收到状态变化信号")
	}
	assert.Equal(t, StatusAuthenticated, f.session.Snapshot().Status)

	unsubscribe()
	unsubscribe()
	f.session.Logout(context.Background())
	// 之前积压的信号最多一个
	select {
	case <-ch:
	default:
	}
	select {
	case <-ch:
		t.Fatal("退订后不应再收到信号")
	default:
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	f := newFixture(t)
	alice := f.api.addUser("alice", testPassword)
	f.login(t, alice)
	ctx := context.Background()

	_, err := f.session.AddRating(ctx, client.RatingInput{MediaID: 1, MediaType: client.Movie, Rating: 5})
	require.NoError(t, err)
	snap := f.session.Snapshot()
	snap.Ratings[0].Rating = 1
	snap.User.TotalRatings = 99

	s := f.session.Snapshot()
	assert.Equal(t, 5, s.Ratings[0].Rating)
	assert.Equal(t, 1, s.User.TotalRatings)
}
