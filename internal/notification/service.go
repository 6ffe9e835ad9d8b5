package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateInput 是创建通知的数据。
type CreateInput struct {
	UserID  string         `json:"userId" binding:"required"`
	ActorID string         `json:"-"`
	Type    Type           `json:"type" binding:"required"`
	Title   string         `json:"title" binding:"required"`
	Message string         `json:"message" binding:"required"`
	Data    map[string]any `json:"data"`
}

// ListOptions 控制通知列表的分页和过滤。
type ListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// View 是某个用户看到的通知，广播通知的已读状态已按该用户解析。
type View struct {
	Notification
	Read bool `json:"read"`
}

// Options 配置通知服务。
type Options struct {
	Retention   time.Duration
	MaxDataKeys int
}

// Service 实现通知的读写和保留策略。
type Service struct {
	db   *gorm.DB
	opts Options
	now  func() time.Time
}

// NewService 创建通知服务。
func NewService(db *gorm.DB, opts Options) *Service {
	if opts.Retention <= 0 {
		opts.Retention = 90 * 24 * time.Hour
	}
	if opts.MaxDataKeys <= 0 {
		opts.MaxDataKeys = 20
	}
	return &Service{db: db, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) cutoff() time.Time {
	return s.now().Add(-s.opts.Retention)
}

func (s *Service) validate(in *CreateInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	switch {
	case in.UserID == "":
		return apperr.Validation("缺少收件人")
	case !in.Type.Valid():
		return apperr.Validation("无效的通知类型: " + string(in.Type))
	case in.Title == "" || len([]rune(in.Title)) > MaxTitleLength:
		return apperr.Validation(fmt.Sprintf("标题长度必须在1到%d之间", MaxTitleLength))
	case in.Message == "" || len([]rune(in.Message)) > MaxMessageLength:
		return apperr.Validation(fmt.Sprintf("内容长度必须在1到%d之间", MaxMessageLength))
	case len(in.Data) > s.opts.MaxDataKeys:
		return apperr.Validation(fmt.Sprintf("附加数据最多%d个键", s.opts.MaxDataKeys))
	}
	for k := range in.Data {
		if k == "" || len(k) > maxDataKeyLength {
			return apperr.Validation("附加数据的键不合法: " + k)
		}
	}
	return nil
}

// Create 创建一条通知。收件人必须是已存在的用户或 Broadcast。
func (s *Service) Create(ctx context.Context, in CreateInput) (*Notification, error) {
	var n *Notification
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = s.CreateTx(tx, in)
		return err
	})
	return n, err
}

// CreateTx 在调用方的事务中创建一条通知，事务回滚时通知一并撤销。
func (s *Service) CreateTx(tx *gorm.DB, in CreateInput) (*Notification, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	if in.UserID != Broadcast {
		ok, err := user.Exists(tx, in.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.NotFound("收件用户不存在")
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("无法生成UUID v7: %w", err)
	}
	n := &Notification{
		ID:      id.String(),
		UserID:  in.UserID,
		ActorID: in.ActorID,
		Type:    in.Type,
		Title:   in.Title,
		Message: in.Message,
		Data:    datatypes.JSONMap(in.Data),
	}
	if err := tx.Create(n).Error; err != nil {
		return nil, fmt.Errorf("无法创建通知: %w", err)
	}
	return n, nil
}

// visibleTo 构造用户可见通知的查询：本人的通知和未隐藏的广播，且在保留期内。
func (s *Service) visibleTo(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("notifications AS n").
		Joins("LEFT JOIN notification_receipts AS r ON r.notification_id = n.id AND r.user_id = ?", userID).
		Where("(n.user_id = ? OR n.user_id = ?)", userID, Broadcast).
		Where("n.created_at >= ?", s.cutoff()).
		Where("(r.dismissed IS NULL OR r.dismissed = ?)", false)
}

type listRow struct {
	Notification
	EffectiveRead bool
}

// List 返回用户可见的通知，最新的在前。
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]View, error) {
	q := s.visibleTo(ctx, userID).
		Select("n.*, CASE WHEN n.user_id = ? THEN COALESCE(r.read, ?) ELSE n.read END AS effective_read", Broadcast, false)
	if opts.UnreadOnly {
		q = q.Where("CASE WHEN n.user_id = ? THEN COALESCE(r.read, ?) ELSE n.read END = ?", Broadcast, false, false)
	}
	var rows []listRow
	err := q.Order("n.created_at DESC").Order("n.id DESC").
		Limit(opts.Limit).Offset(opts.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询通知失败: %w", err)
	}
	views := make([]View, len(rows))
	for i, r := range rows {
		views[i] = View{Notification: r.Notification, Read: r.EffectiveRead}
	}
	return views, nil
}

// MarkRead 把指定通知标记为已读，返回实际状态发生变化的数量。
func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.Validation("缺少通知ID")
	}
	var modified int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Notification{}).
			Where("id IN ? AND user_id = ? AND read = ?", ids, userID, false).
			UpdateColumn("read", true)
		if res.Error != nil {
			return fmt.Errorf("更新通知失败: %w", res.Error)
		}
		modified = res.RowsAffected

		var broadcastIDs []string
		err := tx.Model(&Notification{}).
			Where("id IN ? AND user_id = ?", ids, Broadcast).
			Pluck("id", &broadcastIDs).Error
		if err != nil {
			return fmt.Errorf("查询广播通知失败: %w", err)
		}
		n, err := s.markBroadcastsRead(tx, userID, broadcastIDs)
		modified += n
		return err
	})
	return modified, err
}

// MarkAllRead 把用户可见的全部通知标记为已读。
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var modified int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Notification{}).
			Where("user_id = ? AND read = ?", userID, false).
			UpdateColumn("read", true)
		if res.Error != nil {
			return fmt.Errorf("更新通知失败: %w", res.Error)
		}
		modified = res.RowsAffected

		var broadcastIDs []string
		err := tx.Model(&Notification{}).
			Where("user_id = ? AND created_at >= ?", Broadcast, s.cutoff()).
			Pluck("id", &broadcastIDs).Error
		if err != nil {
			return fmt.Errorf("查询广播通知失败: %w", err)
		}
		n, err := s.markBroadcastsRead(tx, userID, broadcastIDs)
		modified += n
		return err
	})
	return modified, err
}

// markBroadcastsRead 为尚未读过的广播写入已读回执。
func (s *Service) markBroadcastsRead(tx *gorm.DB, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var alreadyRead []string
	err := tx.Model(&Receipt{}).
		Where("user_id = ? AND notification_id IN ? AND read = ?", userID, ids, true).
		Pluck("notification_id", &alreadyRead).Error
	if err != nil {
		return 0, fmt.Errorf("查询通知回执失败: %w", err)
	}
	seen := make(map[string]bool, len(alreadyRead))
	for _, id := range alreadyRead {
		seen[id] = true
	}

	now := s.now()
	var receipts []Receipt
	for _, id := range ids {
		if !seen[id] {
			receipts = append(receipts, Receipt{NotificationID: id, UserID: userID, Read: true, UpdatedAt: now})
		}
	}
	if len(receipts) == 0 {
		return 0, nil
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "notification_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"read", "updated_at"}),
	}).Create(&receipts).Error
	if err != nil {
		return 0, fmt.Errorf("写入通知回执失败: %w", err)
	}
	return int64(len(receipts)), nil
}

// Delete 删除用户自己的通知；对广播通知则只对该用户隐藏。
func (s *Service) Delete(ctx context.Context, userID, notificationID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n Notification
		err := tx.Where("id = ? AND (user_id = ? OR user_id = ?)", notificationID, userID, Broadcast).First(&n).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("通知不存在")
			}
			return fmt.Errorf("查询通知失败: %w", err)
		}

		if n.UserID != Broadcast {
			return tx.Delete(&Notification{}, "id = ?", n.ID).Error
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"dismissed", "updated_at"}),
		}).Create(&Receipt{NotificationID: n.ID, UserID: userID, Dismissed: true, UpdatedAt: s.now()}).Error
	})
}

// DeleteForUserTx 删除与某个用户相关的全部通知和回执，用于注销账号。
func DeleteForUserTx(tx *gorm.DB, userID string) error {
	if err := tx.Where("user_id = ?", userID).Delete(&Receipt{}).Error; err != nil {
		return fmt.Errorf("删除通知回执失败: %w", err)
	}
	if err := tx.Where("user_id = ?", userID).Delete(&Notification{}).Error; err != nil {
		return fmt.Errorf("删除通知失败: %w", err)
	}
	return nil
}
