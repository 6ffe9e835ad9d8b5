package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/haider-9/tvdom/pkg/client"
	"github.com/haider-9/tvdom/pkg/lifecycle"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval  = 30 * time.Second
	DefaultFetchDebounce = 10 * time.Second
	// ActivityLimit 是每次获取的动态条数。
	ActivityLimit = 20
	// stopTimeout 是 Stop 等待轮询退出的上限。
	stopTimeout = 5 * time.Second
)

// NotificationsState 是通知存储的快照。
type NotificationsState struct {
	Notifications []client.Notification
	Activities    []client.Activity
	UnreadCount   int
	Loading       bool
}

func (s NotificationsState) clone() NotificationsState {
	out := s
	out.Notifications = slices.Clone(s.Notifications)
	out.Activities = slices.Clone(s.Activities)
	return out
}

// Notifications 保存当前用户的通知和关注动态，并在后台定时轮询。
type Notifications struct {
	api          NotificationAPI
	logger       zerolog.Logger
	now          func() time.Time
	pollInterval time.Duration
	debounce     time.Duration

	mu        sync.Mutex
	state     NotificationsState
	viewerID  string
	lastFetch time.Time
	// gen 在 Clear 时递增，旧代的请求结果被丢弃
	gen     uint64
	manager *lifecycle.Manager
}

// NotificationsOption 配置 Notifications。
type NotificationsOption func(*Notifications)

// WithPollInterval 设置轮询间隔。
func WithPollInterval(d time.Duration) NotificationsOption {
	return func(n *Notifications) { n.pollInterval = d }
}

// WithFetchDebounce 设置两次获取之间的最短间隔。
func WithFetchDebounce(d time.Duration) NotificationsOption {
	return func(n *Notifications) { n.debounce = d }
}

// WithNotificationsClock 替换时间来源。
func WithNotificationsClock(now func() time.Time) NotificationsOption {
	return func(n *Notifications) { n.now = now }
}

// WithNotificationsLogger 设置日志记录器。
func WithNotificationsLogger(l zerolog.Logger) NotificationsOption {
	return func(n *Notifications) { n.logger = l }
}

// NewNotifications 创建一个空的通知存储，调用 Start 开始轮询。
func NewNotifications(api NotificationAPI, opts ...NotificationsOption) *Notifications {
	n := &Notifications{
		api:          api,
		logger:       log.Logger,
		now:          time.Now,
		pollInterval: DefaultPollInterval,
		debounce:     DefaultFetchDebounce,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Snapshot 返回当前状态的拷贝。
func (n *Notifications) Snapshot() NotificationsState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.clone()
}

// SetViewer 记录当前登录的用户，用来判断新建的通知是否应出现在本地列表。
func (n *Notifications) SetViewer(userID string) {
	n.mu.Lock()
	n.viewerID = userID
	n.mu.Unlock()
}

// Start 启动后台轮询：立即获取一次，之后每个轮询间隔获取一次。
// ctx 取消或调用 Stop 后轮询退出。重复调用 Start 无副作用。
func (n *Notifications) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.manager != nil {
		n.mu.Unlock()
		return nil
	}
	m := lifecycle.NewManager("notifications")
	n.manager = m
	n.mu.Unlock()

	if err := m.Go("notification-poller", n.poll); err != nil {
		return err
	}
	context.AfterFunc(ctx, m.Shutdown)
	return nil
}

// Stop 停止轮询并等待其退出。
func (n *Notifications) Stop() {
	n.mu.Lock()
	m := n.manager
	n.manager = nil
	n.mu.Unlock()
	if m == nil {
		return
	}
	m.Shutdown()
	if remaining := m.WaitWithTimeout(stopTimeout); len(remaining) > 0 {
		n.logger.Warn().Strs("services", remaining).Msg("通知轮询未能按时退出")
	}
}

func (n *Notifications) poll(h *lifecycle.Handle) {
	n.fetch(h.Ctx(), true, false)
	n.fetchActivities(h.Ctx())
	for {
		if err := h.Sleep(n.pollInterval); err != nil {
			return
		}
		n.fetch(h.Ctx(), false, false)
		n.fetchActivities(h.Ctx())
	}
}

// FetchNotifications 获取通知列表并重新计算未读数。
// 距上一次获取不足去抖间隔时跳过。失败只记录日志并保留原列表。
func (n *Notifications) FetchNotifications(ctx context.Context) {
	n.fetch(ctx, false, false)
}

// fetch 在 force 为 false 时遵守去抖间隔。
func (n *Notifications) fetch(ctx context.Context, showLoading, force bool) {
	n.mu.Lock()
	now := n.now()
	if !force && !n.lastFetch.IsZero() && now.Sub(n.lastFetch) < n.debounce {
		n.mu.Unlock()
		return
	}
	n.lastFetch = now
	gen := n.gen
	if showLoading {
		n.state.Loading = true
	}
	n.mu.Unlock()

	list, err := n.api.ListNotifications(ctx, client.NotificationQuery{})

	n.mu.Lock()
	defer n.mu.Unlock()
	if showLoading && gen == n.gen {
		n.state.Loading = false
	}
	if err != nil {
		n.logger.Warn().Err(err).Msg("获取通知失败")
		return
	}
	if gen != n.gen {
		return
	}
	n.state.Notifications = list
	n.state.UnreadCount = countUnread(list)
}

func countUnread(list []client.Notification) int {
	unread := 0
	for _, item := range list {
		if !item.Read {
			unread++
		}
	}
	return unread
}

// FetchActivities 获取当前用户关注的人的最新动态。失败只记录日志并保留原列表。
func (n *Notifications) FetchActivities(ctx context.Context) {
	n.fetchActivities(ctx)
}

func (n *Notifications) fetchActivities(ctx context.Context) {
	n.mu.Lock()
	gen := n.gen
	n.mu.Unlock()

	list, err := n.api.Activities(ctx, "", client.ScopeFollowing, ActivityLimit, 0)
	if err != nil {
		n.logger.Warn().Err(err).Msg("获取动态失败")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return
	}
	n.state.Activities = list
}

// Refresh 忽略去抖间隔，立即获取通知和动态。
func (n *Notifications) Refresh(ctx context.Context) {
	n.fetch(ctx, true, true)
	n.fetchActivities(ctx)
}

// MarkAsRead 把通知标记为已读。只有原本未读的通知才会减少未读数。
func (n *Notifications) MarkAsRead(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return apperr.Validation("缺少通知ID")
	}
	gen := n.generation()
	if _, err := n.api.MarkNotificationsRead(ctx, ids); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return nil
	}
	list := slices.Clone(n.state.Notifications)
	for i := range list {
		if !list[i].Read && slices.Contains(ids, list[i].ID) {
			list[i].Read = true
			n.state.UnreadCount = floorAdd(n.state.UnreadCount, -1)
		}
	}
	n.state.Notifications = list
	return nil
}

// MarkAllAsRead 把全部通知标记为已读，未读数归零。
func (n *Notifications) MarkAllAsRead(ctx context.Context) error {
	gen := n.generation()
	if _, err := n.api.MarkAllNotificationsRead(ctx); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return nil
	}
	list := slices.Clone(n.state.Notifications)
	for i := range list {
		list[i].Read = true
	}
	n.state.Notifications = list
	n.state.UnreadCount = 0
	return nil
}

// DeleteNotification 删除一条通知。被删除的通知未读时未读数减一。
func (n *Notifications) DeleteNotification(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Validation("缺少通知ID")
	}
	gen := n.generation()
	if err := n.api.DeleteNotification(ctx, id); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return nil
	}
	i := slices.IndexFunc(n.state.Notifications, func(item client.Notification) bool { return item.ID == id })
	if i < 0 {
		return nil
	}
	if !n.state.Notifications[i].Read {
		n.state.UnreadCount = floorAdd(n.state.UnreadCount, -1)
	}
	n.state.Notifications = without(n.state.Notifications, i)
	return nil
}

// CreateNotification 创建一条通知。广播或发给当前用户的通知会插到本地列表最前面。
func (n *Notifications) CreateNotification(ctx context.Context, in client.NotificationInput) (*client.Notification, error) {
	if in.UserID == "" {
		return nil, apperr.Validation("缺少userId")
	}
	if in.Title == "" || in.Message == "" {
		return nil, apperr.Validation("缺少标题或内容")
	}
	gen := n.generation()
	created, err := n.api.CreateNotification(ctx, in)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return created, nil
	}
	if created.UserID == client.Broadcast || (n.viewerID != "" && created.UserID == n.viewerID) {
		n.state.Notifications = prepend(n.state.Notifications, *created)
		if !created.Read {
			n.state.UnreadCount++
		}
	}
	return created, nil
}

// NotifySystemUpdate 向所有用户广播一条系统通知。
func (n *Notifications) NotifySystemUpdate(ctx context.Context, title, message string) (*client.Notification, error) {
	return n.CreateNotification(ctx, client.NotificationInput{
		UserID:  client.Broadcast,
		Type:    client.NotificationSystem,
		Title:   title,
		Message: message,
	})
}

// NotifyAPIChange 向所有用户广播一条接口变更通知。
func (n *Notifications) NotifyAPIChange(ctx context.Context, title, message string) (*client.Notification, error) {
	return n.CreateNotification(ctx, client.NotificationInput{
		UserID:  client.Broadcast,
		Type:    client.NotificationAPIChange,
		Title:   title,
		Message: message,
	})
}

// Clear 清空全部数据并重置去抖计时，进行中的请求结果会被丢弃。登出时调用。
func (n *Notifications) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gen++
	n.state = NotificationsState{}
	n.viewerID = ""
	n.lastFetch = time.Time{}
}

func (n *Notifications) generation() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gen
}
