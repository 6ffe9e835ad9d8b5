package store

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/haider-9/tvdom/pkg/client"
)

// CheckIfFollowing 判断 followerID 是否关注了 followingID。
// 查询顺序：缓存，当前用户的本地关注列表，最后是服务器。结果缓存一个TTL。
// 本地列表只用来确认“已关注”，列表可能尚未加载，所以“未找到”仍需询问服务器。
func (s *Session) CheckIfFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	followerID = strings.TrimSpace(followerID)
	followingID = strings.TrimSpace(followingID)
	if followerID == "" || followingID == "" {
		return false, apperr.Validation("缺少用户ID")
	}
	if followerID == followingID {
		return false, nil
	}
	key := followKey{follower: followerID, following: followingID}
	if v, ok := s.follows.Get(key); ok {
		return v, nil
	}

	s.mu.RLock()
	local := s.state.User != nil && s.state.User.ID == followerID &&
		slices.ContainsFunc(s.state.Following, func(f client.Follow) bool { return f.FollowingID == followingID })
	gen, epoch := s.gen, s.followEpoch
	s.mu.RUnlock()
	if local {
		s.cacheFollow(key, true, gen, epoch)
		return true, nil
	}

	v, err := s.api.FollowStatus(ctx, followerID, followingID)
	if err != nil {
		return false, err
	}
	s.cacheFollow(key, v, gen, epoch)
	return v, nil
}

// cacheFollow 只在读取之后没有登录变化、也没有关注变化时写入缓存。
func (s *Session) cacheFollow(key followKey, v bool, gen, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen && epoch == s.followEpoch {
		s.follows.Set(key, v)
	}
}

// setFollow 写入服务器确认的关注状态，同时使进行中的查询结果失效。
func (s *Session) setFollow(key followKey, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followEpoch++
	s.follows.Set(key, v)
}

// FollowUser 关注一个用户。重复关注返回Conflict，关注自己在本地即被拒绝。
func (s *Session) FollowUser(ctx context.Context, followingID string) (*client.Follow, error) {
	followingID = strings.TrimSpace(followingID)
	if followingID == "" {
		return nil, apperr.Validation("缺少followingId")
	}
	gen, user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if followingID == user.ID {
		return nil, apperr.Validation("不能关注自己")
	}

	f, err := s.api.Follow(ctx, followingID)
	if err == nil && f == nil {
		err = errIncompleteResponse()
	}
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// 服务器已有这条关系，缓存以服务器为准
			s.setFollow(followKey{follower: user.ID, following: followingID}, true)
		}
		return nil, err
	}
	if err := s.commitFollowChange(gen, followed{follow: *f}, user.ID, followingID); err != nil {
		return nil, err
	}
	s.refreshActivities(ctx)
	return f, nil
}

// UnfollowUser 取消关注。关系不存在时返回NotFound。
func (s *Session) UnfollowUser(ctx context.Context, followingID string) error {
	followingID = strings.TrimSpace(followingID)
	if followingID == "" {
		return apperr.Validation("缺少followingId")
	}
	gen, user, err := s.requireUser()
	if err != nil {
		return err
	}

	if err := s.api.Unfollow(ctx, followingID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.setFollow(followKey{follower: user.ID, following: followingID}, false)
		}
		return err
	}
	if err := s.commitFollowChange(gen, unfollowed{followingID: followingID}, user.ID, followingID); err != nil {
		return err
	}
	s.refreshActivities(ctx)
	return nil
}

// commitFollowChange 应用关注列表的变化，并在同一把锁内清除两个方向的缓存条目。
// 会话已经变化时列表不再更新，但缓存仍然清除，因为服务器上的关系已经改变。
func (s *Session) commitFollowChange(gen uint64, a action, follower, following string) error {
	invalidate := func() error {
		s.invalidateFollowPairLocked(follower, following)
		return nil
	}
	err := s.commit(gen, a, invalidate)
	if errors.Is(err, ErrSessionChanged) {
		s.mu.Lock()
		s.invalidateFollowPairLocked(follower, following)
		s.mu.Unlock()
	}
	return err
}

// invalidateFollowPairLocked 清除两个方向的缓存条目。调用方持有 mu。
func (s *Session) invalidateFollowPairLocked(a, b string) {
	s.followEpoch++
	s.follows.Invalidate(followKey{follower: a, following: b})
	s.follows.Invalidate(followKey{follower: b, following: a})
}

func (s *Session) refreshActivities(ctx context.Context) {
	if s.notifications == nil {
		return
	}
	s.notifications.FetchActivities(ctx)
}
