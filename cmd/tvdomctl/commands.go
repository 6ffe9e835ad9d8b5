package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/haider-9/tvdom/pkg/client"
	"github.com/haider-9/tvdom/pkg/store"
	"github.com/spf13/cobra"
)

func parseMediaID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("无效的媒体ID: " + raw)
	}
	return id, nil
}

func requireLogin(e *env) (store.State, error) {
	s := e.session.Snapshot()
	if s.Status != store.StatusAuthenticated {
		return s, apperr.Authentication("请先运行 tvdomctl login")
	}
	return s, nil
}

func init() {
	// login
	var password string
	loginCmd := &cobra.Command{
		Use:   "login EMAIL",
		Short: "登录并保存会话",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(e *env, args []string) (any, error) {
			if password == "" {
				password = os.Getenv("TVDOM_PASSWORD")
			}
			if err := e.session.Login(e.ctx, args[0], password); err != nil {
				return nil, err
			}
			return e.session.Snapshot().User, nil
		}),
	}
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "密码（默认读取 TVDOM_PASSWORD）")
	rootCmd.AddCommand(loginCmd)

	// register
	var reg client.RegisterRequest
	registerCmd := &cobra.Command{
		Use:   "register USERNAME EMAIL",
		Short: "注册新账号并登录",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(e *env, args []string) (any, error) {
			reg.Username, reg.Email = args[0], args[1]
			if reg.Password == "" {
				reg.Password = os.Getenv("TVDOM_PASSWORD")
			}
			if reg.ConfirmPassword == "" {
				reg.ConfirmPassword = reg.Password
			}
			if err := e.session.Register(e.ctx, reg); err != nil {
				return nil, err
			}
			return e.session.Snapshot().User, nil
		}),
	}
	registerCmd.Flags().StringVarP(&reg.Password, "password", "p", "", "密码（默认读取 TVDOM_PASSWORD）")
	registerCmd.Flags().StringVar(&reg.ConfirmPassword, "confirm", "", "确认密码（默认与密码相同）")
	registerCmd.Flags().StringVar(&reg.DisplayName, "name", "", "显示名称")
	rootCmd.AddCommand(registerCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "登出并清除本地会话",
		Args:  cobra.NoArgs,
		RunE: run(func(e *env, _ []string) (any, error) {
			e.session.Logout(e.ctx)
			return map[string]string{"status": string(e.session.Snapshot().Status)}, nil
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "whoami",
		Short: "显示当前登录的用户",
		Args:  cobra.NoArgs,
		RunE: run(func(e *env, _ []string) (any, error) {
			s, err := requireLogin(e)
			if err != nil {
				return nil, err
			}
			return s.User, nil
		}),
	})

	// rate
	var rateType, review string
	var spoiler bool
	rateCmd := &cobra.Command{
		Use:   "rate MEDIA_ID SCORE",
		Short: "给电影或剧集评分（1-10），已有评分会被覆盖",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(e *env, args []string) (any, error) {
			id, err := parseMediaID(args[0])
			if err != nil {
				return nil, err
			}
			score, err := strconv.Atoi(args[1])
			if err != nil {
				return nil, apperr.Validation("评分必须是整数")
			}
			return e.session.AddRating(e.ctx, client.RatingInput{
				MediaID:   id,
				MediaType: client.MediaType(rateType),
				Rating:    score,
				Review:    review,
				IsSpoiler: spoiler,
			})
		}),
	}
	rateCmd.Flags().StringVarP(&rateType, "type", "t", string(client.Movie), "movie 或 tv")
	rateCmd.Flags().StringVarP(&review, "review", "r", "", "评论")
	rateCmd.Flags().BoolVar(&spoiler, "spoiler", false, "评论包含剧透")
	rootCmd.AddCommand(rateCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "unrate MEDIA_ID",
		Short: "删除对某个作品的评分",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(e *env, args []string) (any, error) {
			id, err := parseMediaID(args[0])
			if err != nil {
				return nil, err
			}
			s, err := requireLogin(e)
			if err != nil {
				return nil, err
			}
			i := slices.IndexFunc(s.Ratings, func(r client.Rating) bool { return r.MediaID == id })
			if i < 0 {
				return nil, apperr.NotFound(fmt.Sprintf("没有对 %d 的评分", id))
			}
			if err := e.session.DeleteRating(e.ctx, s.Ratings[i].ID); err != nil {
				return nil, err
			}
			return e.session.Snapshot().User, nil
		}),
	})

	// watchlist add|rm
	watchlistCmd := &cobra.Command{Use: "watchlist", Short: "待看列表"}
	var wlType, wlPriority, wlNotes string
	addCmd := &cobra.Command{
		Use:   "add MEDIA_ID",
		Short: "加入待看列表",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(e *env, args []string) (any, error) {
			id, err := parseMediaID(args[0])
			if err != nil {
				return nil, err
			}
			return e.session.AddToWatchlist(e.ctx, client.WatchlistInput{
				MediaID:   id,
				MediaType: client.MediaType(wlType),
				Priority:  client.Priority(wlPriority),
				Notes:     wlNotes,
			})
		}),
	}
	addCmd.Flags().StringVarP(&wlType, "type", "t", string(client.Movie), "movie 或 tv")
	addCmd.Flags().StringVar(&wlPriority, "priority", string(client.PriorityMedium), "low、medium 或 high")
	addCmd.Flags().StringVar(&wlNotes, "notes", "", "备注")
	watchlistCmd.AddCommand(addCmd)
	watchlistCmd.AddCommand(&cobra.Command{
		Use:   "rm MEDIA_ID",
		Short: "移出待看列表",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(e *env, args []string) (any, error) {
			id, err := parseMediaID(args[0])
			if err != nil {
				return nil, err
			}
			if err := e.session.RemoveFromWatchlist(e.ctx, id); err != nil {
				return nil, err
			}
			return e.session.Snapshot().Watchlist, nil
		}),
	})
	rootCmd.AddCommand(watchlistCmd)

	// watched
	var watchedType string
	var favorite bool
	watchedCmd := &cobra.Command{
		Use:   "watched MEDIA_ID",
		Short: "标记为已看，同时移出待看列表",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(e *env, args []string) (any, error) {
			id, err := parseMediaID(args[0])
			if err != nil {
				return nil, err
			}
			return e.session.MarkAsWatched(e.ctx, client.WatchedInput{
				MediaID:    id,
				MediaType:  client.MediaType(watchedType),
				IsFavorite: favorite,
			})
		}),
	}
	watchedCmd.Flags().StringVarP(&watchedType, "type", "t", string(client.Movie), "movie 或 tv")
	watchedCmd.Flags().BoolVar(&favorite, "favorite", false, "设为最爱")
	rootCmd.AddCommand(watchedCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "follow USER_ID",
		Short: "关注用户",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(e *env, args []string) (any, error) {
			return e.session.FollowUser(e.ctx, args[0])
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "unfollow USER_ID",
		Short: "取消关注",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(e *env, args []string) (any, error) {
			if err := e.session.UnfollowUser(e.ctx, args[0]); err != nil {
				return nil, err
			}
			return e.session.Snapshot().User, nil
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "following? [FOLLOWER_ID] FOLLOWING_ID",
		Short: "查询关注关系，省略 FOLLOWER_ID 时使用当前用户",
		Args:  cobra.RangeArgs(1, 2),
		RunE: run(func(e *env, args []string) (any, error) {
			follower, following := "", args[len(args)-1]
			if len(args) == 2 {
				follower = args[0]
			} else {
				s, err := requireLogin(e)
				if err != nil {
					return nil, err
				}
				follower = s.User.ID
			}
			ok, err := e.session.CheckIfFollowing(e.ctx, follower, following)
			if err != nil {
				return nil, err
			}
			return map[string]bool{"isFollowing": ok}, nil
		}),
	})

	// notifications
	var readAll bool
	var markRead []string
	notificationsCmd := &cobra.Command{
		Use:   "notifications",
		Short: "列出通知和关注动态",
		Args:  cobra.NoArgs,
		RunE: run(func(e *env, _ []string) (any, error) {
			if _, err := requireLogin(e); err != nil {
				return nil, err
			}
			e.notifications.Refresh(e.ctx)
			switch {
			case readAll:
				if err := e.notifications.MarkAllAsRead(e.ctx); err != nil {
					return nil, err
				}
			case len(markRead) > 0:
				if err := e.notifications.MarkAsRead(e.ctx, markRead...); err != nil {
					return nil, err
				}
			}
			return e.notifications.Snapshot(), nil
		}),
	}
	notificationsCmd.Flags().BoolVar(&readAll, "read-all", false, "全部标记为已读")
	notificationsCmd.Flags().StringSliceVar(&markRead, "read", nil, "把指定ID的通知标记为已读")
	rootCmd.AddCommand(notificationsCmd)
}
