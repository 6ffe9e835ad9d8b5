// Package activity 把评分和关注关系合并成按时间排序的动态流。
package activity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/haider-9/tvdom/internal/follow"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/pkg/apperr"
	"gorm.io/gorm"
)

// Scope 决定动态流的范围。
type Scope string

const (
	// ScopeFollowing 是用户关注的人最近7天的动态。
	ScopeFollowing Scope = "following"
	// ScopeAll 是全站最近24小时的动态。
	ScopeAll Scope = "all"
)

const (
	followingWindow = 7 * 24 * time.Hour
	allWindow       = 24 * time.Hour
)

// Kind 是动态的类型。
type Kind string

const (
	KindRating Kind = "rating"
	KindFollow Kind = "follow"
)

// Activity 是动态流中的一条记录。
type Activity struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"type"`
	UserID    string         `json:"userId"`
	User      *user.Summary  `json:"user,omitempty"`
	Rating    *rating.Rating `json:"rating,omitempty"`
	Target    *user.Summary  `json:"target,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Service 生成动态流。
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService 创建动态服务。
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Feed 返回动态流，最新的在前。
func (s *Service) Feed(ctx context.Context, userID string, scope Scope, limit, offset int) ([]Activity, error) {
	db := s.db.WithContext(ctx)

	var actors []string
	var since time.Time
	switch scope {
	case ScopeFollowing:
		if userID == "" {
			return nil, apperr.Validation("缺少参数: userId")
		}
		ids, err := follow.FollowingIDs(db, userID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []Activity{}, nil
		}
		actors = ids
		since = s.now().Add(-followingWindow)
	case ScopeAll:
		since = s.now().Add(-allWindow)
	default:
		return nil, apperr.Validation("type 必须是 following 或 all")
	}

	// 每个来源最多取 offset+limit 条，合并后再分页
	window := offset + limit

	ratingQuery := db.Model(&rating.Rating{}).Where("created_at >= ?", since)
	followQuery := db.Model(&follow.Follow{}).Where("created_at >= ?", since)
	if actors != nil {
		ratingQuery = ratingQuery.Where("user_id IN ?", actors)
		followQuery = followQuery.Where("follower_id IN ?", actors)
	}

	var ratings []rating.Rating
	if err := ratingQuery.Order("created_at DESC").Limit(window).Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("查询评分动态失败: %w", err)
	}
	var follows []follow.Follow
	if err := followQuery.Order("created_at DESC").Limit(window).Find(&follows).Error; err != nil {
		return nil, fmt.Errorf("查询关注动态失败: %w", err)
	}

	activities := make([]Activity, 0, len(ratings)+len(follows))
	ids := make([]string, 0, len(ratings)+2*len(follows))
	for i := range ratings {
		r := ratings[i]
		activities = append(activities, Activity{ID: r.ID, Kind: KindRating, UserID: r.UserID, Rating: &r, CreatedAt: r.CreatedAt})
		ids = append(ids, r.UserID)
	}
	for _, f := range follows {
		activities = append(activities, Activity{
			ID: f.ID, Kind: KindFollow, UserID: f.FollowerID,
			Target: &user.Summary{ID: f.FollowingID}, CreatedAt: f.CreatedAt,
		})
		ids = append(ids, f.FollowerID, f.FollowingID)
	}

	sort.SliceStable(activities, func(i, j int) bool {
		if activities[i].CreatedAt.Equal(activities[j].CreatedAt) {
			return activities[i].ID > activities[j].ID
		}
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
	if offset >= len(activities) {
		return []Activity{}, nil
	}
	activities = activities[offset:min(len(activities), window)]

	summaries, err := user.Summaries(db, ids)
	if err != nil {
		return nil, err
	}
	for i := range activities {
		if sum, ok := summaries[activities[i].UserID]; ok {
			activities[i].User = &sum
		}
		if activities[i].Target != nil {
			if sum, ok := summaries[activities[i].Target.ID]; ok {
				activities[i].Target = &sum
			}
		}
	}
	return activities, nil
}
