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

func seedNotifications(api *fakeAPI, userID string) {
	api.notifications = []client.Notification{
		{ID: "n1", UserID: userID, Type: client.NotificationFollow, Title: "t", Message: "m"},
		{ID: "n2", UserID: userID, Type: client.NotificationRating, Title: "t", Message: "m"},
		{ID: "n3", UserID: client.Broadcast, Type: client.NotificationSystem, Title: "t", Message: "m", Read: true},
	}
}

func newNotificationsFixture(api NotificationAPI, clock *fakeClock, opts ...NotificationsOption) *Notifications {
	opts = append([]NotificationsOption{
		WithNotificationsClock(clock.Now),
		WithNotificationsLogger(zerolog.Nop()),
	}, opts...)
	return NewNotifications(api, opts...)
}

func TestFetchRecomputesUnreadAndDebounces(t *testing.T) {
	api := newFakeAPI()
	seedNotifications(api, "u1")
	clock := newFakeClock()
	n := newNotificationsFixture(api, clock)
	ctx := context.Background()

	n.FetchNotifications(ctx)
	s := n.Snapshot()
	assert.Len(t, s.Notifications, 3)
	assert.Equal(t, 2, s.UnreadCount)

	clock.Advance(5 * time.Second)
	n.FetchNotifications(ctx)
	assert.Equal(t, 1, api.callCount("listNotifications"))

	clock.Advance(6 * time.Second)
	n.FetchNotifications(ctx)
	assert.Equal(t, 2, api.callCount("listNotifications"))

	// Refresh 不受去抖限制
	n.Refresh(ctx)
	assert.Equal(t, 3, api.callCount("listNotifications"))
	assert.Equal(t, 1, api.callCount("activities"))
}

func TestFetchFailureKeepsList(t *testing.T) {
	api := newFakeAPI()
	seedNotifications(api, "u1")
	clock := newFakeClock()
	n := newNotificationsFixture(api, clock)
	ctx := context.Background()

	n.FetchNotifications(ctx)
	api.failNext("listNotifications", apperr.Unavailable("网络错误", nil))
	clock.Advance(time.Minute)
	n.FetchNotifications(ctx)

	s := n.Snapshot()
	assert.Len(t, s.Notifications, 3)
	assert.Equal(t, 2, s.UnreadCount)
}

func TestMarkAndDeleteAdjustUnread(t *testing.T) {
	api := newFakeAPI()
	seedNotifications(api, "u1")
	n := newNotificationsFixture(api, newFakeClock())
	ctx := context.Background()
	n.FetchNotifications(ctx)

	require.NoError(t, n.MarkAsRead(ctx, "n1"))
	assert.Equal(t, 1, n.Snapshot().UnreadCount)
	// 已读的通知再次标记不改变未读数
	require.NoError(t, n.MarkAsRead(ctx, "n1", "n3"))
	assert.Equal(t, 1, n.Snapshot().UnreadCount)

	// 删除已读通知不改变未读数
	require.NoError(t, n.DeleteNotification(ctx, "n3"))
	assert.Equal(t, 1, n.Snapshot().UnreadCount)
	require.NoError(t, n.DeleteNotification(ctx, "n2"))
	assert.Equal(t, 0, n.Snapshot().UnreadCount)
	assert.Len(t, n.Snapshot().Notifications, 1)

	assert.ErrorIs(t, n.DeleteNotification(ctx, "n2"), apperr.ErrNotFound)
	assert.Equal(t, 0, n.Snapshot().UnreadCount)
	assert.ErrorIs(t, n.MarkAsRead(ctx), apperr.ErrValidation)
}

func TestMarkAllAsRead(t *testing.T) {
	api := newFakeAPI()
	seedNotifications(api, "u1")
	n := newNotificationsFixture(api, newFakeClock())
	ctx := context.Background()
	n.FetchNotifications(ctx)

	api.failNext("markAllRead", apperr.Unavailable("网络错误", nil))
	assert.ErrorIs(t, n.MarkAllAsRead(ctx), apperr.ErrUnavailable)
	assert.Equal(t, 2, n.Snapshot().UnreadCount, "失败时本地状态不变")

	require.NoError(t, n.MarkAllAsRead(ctx))
	s := n.Snapshot()
	assert.Equal(t, 0, s.UnreadCount)
	for _, item := range s.Notifications {
		assert.True(t, item.Read)
	}
}

func TestUnreadNeverNegative(t *testing.T) {
	api := newFakeAPI()
	clock := newFakeClock()
	n := newNotificationsFixture(api, clock, WithFetchDebounce(0))
	ctx := context.Background()

	for round := range 20 {
		seedNotifications(api, "u1")
		api.mu.Lock()
		api.notifications = append(api.notifications,
			client.Notification{ID: "x1", UserID: "u1", Title: "t", Message: "m"},
			client.Notification{ID: "x2", UserID: "u1", Title: "t", Message: "m"},
		)
		api.mu.Unlock()
		n.FetchNotifications(ctx)

		var wg sync.WaitGroup
		ops := []func(){
			func() { _ = n.MarkAsRead(ctx, "n1", "x1") },
			func() { _ = n.DeleteNotification(ctx, "n1") },
			func() { _ = n.DeleteNotification(ctx, "x2") },
			func() { n.FetchNotifications(ctx) },
			func() { _ = n.MarkAsRead(ctx, "n2") },
			func() { _ = n.DeleteNotification(ctx, "n2") },
			func() { _ = n.MarkAllAsRead(ctx) },
		}
		if round%2 == 0 {
			ops = ops[:len(ops)-1]
		}
		for _, op := range ops {
			wg.Add(1)
			go func() {
				defer wg.Done()
				op()
			}()
		}
		wg.Wait()

		s := n.Snapshot()
		assert.GreaterOrEqual(t, s.UnreadCount, 0)
		assert.Equal(t, countUnread(s.Notifications), s.UnreadCount)
	}
}

func TestCreateNotificationVisibility(t *testing.T) {
	api := newFakeAPI()
	n := newNotificationsFixture(api, newFakeClock())
	n.SetViewer("u1")
	ctx := context.Background()

	_, err := n.NotifySystemUpdate(ctx, "维护", "今晚维护")
	require.NoError(t, err)
	_, err = n.CreateNotification(ctx, client.NotificationInput{UserID: "u1", Type: client.NotificationReview, Title: "t", Message: "m"})
	require.NoError(t, err)
	_, err = n.CreateNotification(ctx, client.NotificationInput{UserID: "u2", Type: client.NotificationReview, Title: "t", Message: "m"})
	require.NoError(t, err)

	s := n.Snapshot()
	require.Len(t, s.Notifications, 2)
	assert.Equal(t, "u1", s.Notifications[0].UserID)
	assert.Equal(t, client.NotificationSystem, s.Notifications[1].Type)
	assert.Equal(t, 2, s.UnreadCount)

	_, err = n.NotifyAPIChange(ctx, "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

// gatedNotificationAPI 让获取通知的请求在返回前暂停。
type gatedNotificationAPI struct {
	*fakeAPI
	started chan struct{}
	release chan struct{}
}

func (g *gatedNotificationAPI) ListNotifications(ctx context.Context, q client.NotificationQuery) ([]client.Notification, error) {
	list, err := g.fakeAPI.ListNotifications(ctx, q)
	close(g.started)
	<-g.release
	return list, err
}

func TestClearDiscardsInFlightFetch(t *testing.T) {
	api := newFakeAPI()
	seedNotifications(api, "u1")
	gated := &gatedNotificationAPI{fakeAPI: api, started: make(chan struct{}), release: make(chan struct{})}
	n := newNotificationsFixture(gated, newFakeClock())

	done := make(chan struct{})
	go func() {
		n.FetchNotifications(context.Background())
		close(done)
	}()
	<-gated.started
	n.Clear()
	close(gated.release)
	<-done

	s := n.Snapshot()
	assert.Empty(t, s.Notifications)
	assert.Zero(t, s.UnreadCount)
}

func TestPollerRunsUntilStopped(t *testing.T) {
	api := newFakeAPI()
	seedNotifications(api, "u1")
	n := NewNotifications(api,
		WithNotificationsLogger(zerolog.Nop()),
		WithPollInterval(5*time.Millisecond),
		WithFetchDebounce(0),
	)

	require.NoError(t, n.Start(context.Background()))
	require.NoError(t, n.Start(context.Background()))
	require.Eventually(t, func() bool {
		return api.callCount("listNotifications") >= 3
	}, time.Second, time.Millisecond)
	assert.Equal(t, 2, n.Snapshot().UnreadCount)

	n.Stop()
	stopped := api.callCount("listNotifications")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, api.callCount("listNotifications"))
	n.Stop()
}

func TestPollerStopsWithContext(t *testing.T) {
	api := newFakeAPI()
	n := NewNotifications(api,
		WithNotificationsLogger(zerolog.Nop()),
		WithPollInterval(5*time.Millisecond),
		WithFetchDebounce(0),
	)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, n.Start(ctx))
	require.Eventually(t, func() bool {
		return api.callCount("listNotifications") >= 1
	}, time.Second, time.Millisecond)

	cancel()
	// 取消后轮询最多再完成一轮
	time.Sleep(30 * time.Millisecond)
	before := api.callCount("listNotifications")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, api.callCount("listNotifications"))
	n.Stop()
}

func TestFollowRefreshesActivities(t *testing.T) {
	fake := newFakeAPI()
	notifications := newNotificationsFixture(fake, newFakeClock())
	f := newSessionFixture(t, fake, fake, WithNotifications(notifications))
	alice := fake.addUser("alice", testPassword)
	bob := fake.addUser("bob", testPassword)
	f.login(t, alice)

	fake.mu.Lock()
	fake.activities = []client.Activity{{ID: "a1", Type: "follow", UserID: alice.ID}}
	fake.mu.Unlock()

	_, err := f.session.FollowUser(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Len(t, notifications.Snapshot().Activities, 1)

	f.session.Logout(context.Background())
	assert.Empty(t, notifications.Snapshot().Activities)
}
