package store

import (
	"slices"

	"github.com/haider-9/tvdom/pkg/client"
)

// Status 是会话的认证状态。
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
)

// State 是会话的完整状态。Snapshot 返回的是深拷贝，可以随意读取。
type State struct {
	Status          Status
	User            *client.User
	Token           string
	Ratings         []client.Rating
	Watchlist       []client.WatchlistItem
	Watched         []client.WatchedItem
	Following       []client.Follow
	Followers       []client.Follow
	PersonRatings   []client.PersonRating
	PersonFavorites []client.PersonFavorite
	Loading         bool
	Err             error
}

func anonymousState() State {
	return State{Status: StatusAnonymous}
}

func (s State) clone() State {
	out := s
	if s.User != nil {
		u := *s.User
		u.FavoriteGenres = slices.Clone(s.User.FavoriteGenres)
		out.User = &u
	}
	out.Ratings = slices.Clone(s.Ratings)
	out.Watchlist = slices.Clone(s.Watchlist)
	out.Watched = slices.Clone(s.Watched)
	out.Following = slices.Clone(s.Following)
	out.Followers = slices.Clone(s.Followers)
	out.PersonRatings = slices.Clone(s.PersonRatings)
	out.PersonFavorites = slices.Clone(s.PersonFavorites)
	return out
}

// withUser 复制用户记录后交给 fn 修改，保证旧快照不受影响。
func (s State) withUser(fn func(u *client.User)) State {
	if s.User == nil {
		return s
	}
	u := *s.User
	fn(&u)
	s.User = &u
	return s
}

func floorAdd(v, delta int) int {
	return max(0, v+delta)
}

// prepend 返回一个新切片，不修改原切片的底层数组。
func prepend[T any](list []T, item T) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, item)
	return append(out, list...)
}

// without 返回删除第 i 个元素后的新切片。
func without[T any](list []T, i int) []T {
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

// replaced 返回第 i 个元素被替换后的新切片。
func replaced[T any](list []T, i int, item T) []T {
	out := slices.Clone(list)
	out[i] = item
	return out
}

// action 描述一次状态变化。
type action interface{ isAction() }

type (
	authStarted   struct{}
	authSucceeded struct {
		user  *client.User
		token string
	}
	authFailed struct{ err error }
	loggedOut  struct{}

	loadingChanged struct{ loading bool }
	// userDataLoaded 中为 nil 的字段表示该集合加载失败，保留原值。
	userDataLoaded struct {
		user            *client.User
		ratings         *[]client.Rating
		watchlist       *[]client.WatchlistItem
		watched         *[]client.WatchedItem
		following       *[]client.Follow
		followers       *[]client.Follow
		personRatings   *[]client.PersonRating
		personFavorites *[]client.PersonFavorite
	}
	profileUpdated struct{ user *client.User }

	ratingUpserted struct {
		rating  client.Rating
		created bool
	}
	ratingDeleted    struct{ id string }
	averageRefreshed struct{ average float64 }

	watchlistAdded   struct{ item client.WatchlistItem }
	watchlistRemoved struct{ mediaID int64 }
	watchedMarked    struct {
		item                 client.WatchedItem
		created              bool
		removedFromWatchlist bool
	}

	personRated          struct{ rating client.PersonRating }
	personRatingDeleted  struct{ personID int64 }
	personFavoriteAdded  struct{ favorite client.PersonFavorite }
	personFavoriteRemove struct{ personID int64 }

	followed   struct{ follow client.Follow }
	unfollowed struct{ followingID string }
)

func (authStarted) isAction()          {}
func (authSucceeded) isAction()        {}
func (authFailed) isAction()           {}
func (loggedOut) isAction()            {}
func (loadingChanged) isAction()       {}
func (userDataLoaded) isAction()       {}
func (profileUpdated) isAction()       {}
func (ratingUpserted) isAction()       {}
func (ratingDeleted) isAction()        {}
func (averageRefreshed) isAction()     {}
func (watchlistAdded) isAction()       {}
func (watchlistRemoved) isAction()     {}
func (watchedMarked) isAction()        {}
func (personRated) isAction()          {}
func (personRatingDeleted) isAction()  {}
func (personFavoriteAdded) isAction()  {}
func (personFavoriteRemove) isAction() {}
func (followed) isAction()             {}
func (unfollowed) isAction()           {}

// reduce 根据当前状态和一次变化计算新状态。它不修改 s 引用的任何数据。
func reduce(s State, a action) State {
	switch a := a.(type) {
	case authStarted:
		s.Status = StatusAuthenticating
		s.Err = nil
	case authSucceeded:
		s.Status = StatusAuthenticated
		s.User = a.user
		s.Token = a.token
		s.Err = nil
	case authFailed:
		s = anonymousState()
		s.Err = a.err
	case loggedOut:
		s = anonymousState()

	case loadingChanged:
		s.Loading = a.loading
	case userDataLoaded:
		if a.user != nil {
			s.User = a.user
		}
		if a.ratings != nil {
			s.Ratings = *a.ratings
		}
		if a.watchlist != nil {
			s.Watchlist = *a.watchlist
		}
		if a.watched != nil {
			s.Watched = *a.watched
		}
		if a.following != nil {
			s.Following = *a.following
		}
		if a.followers != nil {
			s.Followers = *a.followers
		}
		if a.personRatings != nil {
			s.PersonRatings = *a.personRatings
		}
		if a.personFavorites != nil {
			s.PersonFavorites = *a.personFavorites
		}
		s.Loading = false
	case profileUpdated:
		s.User = a.user

	case ratingUpserted:
		i := slices.IndexFunc(s.Ratings, func(r client.Rating) bool { return r.MediaID == a.rating.MediaID })
		if i >= 0 {
			s.Ratings = replaced(s.Ratings, i, a.rating)
		} else {
			s.Ratings = prepend(s.Ratings, a.rating)
		}
		if a.created {
			s = s.withUser(func(u *client.User) { u.TotalRatings++ })
		}
	case ratingDeleted:
		i := slices.IndexFunc(s.Ratings, func(r client.Rating) bool { return r.ID == a.id })
		if i < 0 {
			return s
		}
		s.Ratings = without(s.Ratings, i)
		s = s.withUser(func(u *client.User) { u.TotalRatings = floorAdd(u.TotalRatings, -1) })
	case averageRefreshed:
		s = s.withUser(func(u *client.User) { u.AverageRating = a.average })

	case watchlistAdded:
		s.Watchlist = prepend(s.Watchlist, a.item)
		s = s.withUser(func(u *client.User) { u.WatchlistCount++ })
	case watchlistRemoved:
		if i := slices.IndexFunc(s.Watchlist, func(w client.WatchlistItem) bool { return w.MediaID == a.mediaID }); i >= 0 {
			s.Watchlist = without(s.Watchlist, i)
		}
		s = s.withUser(func(u *client.User) { u.WatchlistCount = floorAdd(u.WatchlistCount, -1) })
	case watchedMarked:
		if i := slices.IndexFunc(s.Watched, func(w client.WatchedItem) bool { return w.MediaID == a.item.MediaID }); i >= 0 {
			// 重看：原位替换，计数不变
			s.Watched = replaced(s.Watched, i, a.item)
			return s
		}
		s.Watched = prepend(s.Watched, a.item)
		if a.created {
			s = s.withUser(func(u *client.User) { u.WatchedCount++ })
		}
		i := slices.IndexFunc(s.Watchlist, func(w client.WatchlistItem) bool { return w.MediaID == a.item.MediaID })
		if i >= 0 {
			s.Watchlist = without(s.Watchlist, i)
		}
		if i >= 0 || a.removedFromWatchlist {
			s = s.withUser(func(u *client.User) { u.WatchlistCount = floorAdd(u.WatchlistCount, -1) })
		}

	case personRated:
		i := slices.IndexFunc(s.PersonRatings, func(r client.PersonRating) bool { return r.PersonID == a.rating.PersonID })
		if i >= 0 {
			s.PersonRatings = replaced(s.PersonRatings, i, a.rating)
		} else {
			s.PersonRatings = prepend(s.PersonRatings, a.rating)
		}
	case personRatingDeleted:
		if i := slices.IndexFunc(s.PersonRatings, func(r client.PersonRating) bool { return r.PersonID == a.personID }); i >= 0 {
			s.PersonRatings = without(s.PersonRatings, i)
		}
	case personFavoriteAdded:
		s.PersonFavorites = prepend(s.PersonFavorites, a.favorite)
	case personFavoriteRemove:
		if i := slices.IndexFunc(s.PersonFavorites, func(f client.PersonFavorite) bool { return f.PersonID == a.personID }); i >= 0 {
			s.PersonFavorites = without(s.PersonFavorites, i)
		}

	case followed:
		s.Following = prepend(s.Following, a.follow)
		s = s.withUser(func(u *client.User) { u.FollowingCount++ })
	case unfollowed:
		if i := slices.IndexFunc(s.Following, func(f client.Follow) bool { return f.FollowingID == a.followingID }); i >= 0 {
			s.Following = without(s.Following, i)
		}
		s = s.withUser(func(u *client.User) { u.FollowingCount = floorAdd(u.FollowingCount, -1) })
	}
	return s
}
