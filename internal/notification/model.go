package notification

import (
	"time"

	"gorm.io/datatypes"
)

// Broadcast 是发给所有用户的通知使用的收件人标记。
const Broadcast = "all"

// Type 是通知的类型。
type Type string

const (
	TypeFollow    Type = "follow"
	TypeUnfollow  Type = "unfollow"
	TypeRating    Type = "rating"
	TypeReview    Type = "review"
	TypeSystem    Type = "system"
	TypeAPIChange Type = "api_change"
)

// Valid 判断类型是否合法。
func (t Type) Valid() bool {
	switch t {
	case TypeFollow, TypeUnfollow, TypeRating, TypeReview, TypeSystem, TypeAPIChange:
		return true
	}
	return false
}

const (
	MaxTitleLength   = 100
	MaxMessageLength = 500
	maxDataKeyLength = 64
)

// Notification 是一条通知。UserID 为具体用户ID或 Broadcast。
// 广播通知的已读状态按用户记录在 Receipt 中，Read 字段只对个人通知有意义。
type Notification struct {
	ID        string            `gorm:"primarykey;type:varchar(36)" json:"id"`
	UserID    string            `gorm:"index;not null;type:varchar(36)" json:"userId"`
	ActorID   string            `gorm:"index;type:varchar(36)" json:"actorId,omitempty"`
	Type      Type              `gorm:"not null;size:20" json:"type"`
	Title     string            `gorm:"not null;size:100" json:"title"`
	Message   string            `gorm:"not null;size:500" json:"message"`
	Data      datatypes.JSONMap `gorm:"type:json" json:"data,omitempty"`
	Read      bool              `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Receipt 记录某个用户对一条广播通知的已读或隐藏状态。
type Receipt struct {
	NotificationID string `gorm:"primarykey;type:varchar(36)"`
	UserID         string `gorm:"primarykey;type:varchar(36);index"`
	Read           bool   `gorm:"not null;default:false"`
	Dismissed      bool   `gorm:"not null;default:false"`
	UpdatedAt      time.Time
}

// TableName 固定表名
func (Receipt) TableName() string {
	return "notification_receipts"
}
