package account

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/haider-9/tvdom/internal/follow"
	"github.com/haider-9/tvdom/internal/notification"
	"github.com/haider-9/tvdom/internal/person"
	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/internal/post"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/internal/watched"
	"github.com/haider-9/tvdom/internal/watching"
	"github.com/haider-9/tvdom/internal/watchlist"
	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteCascadesAndRepairsCounters(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLiteMemory(t.Name())
	require.NoError(t, err)
	for _, m := range []func() error{
		func() error { return user.Migrate(db) },
		func() error { return follow.Migrate(db) },
		func() error { return rating.Migrate(db) },
		func() error { return watchlist.Migrate(db) },
		func() error { return watched.Migrate(db) },
		func() error { return person.Migrate(db) },
		func() error { return watching.Migrate(db) },
		func() error { return notification.Migrate(db) },
		func() error { return post.Migrate(db) },
	} {
		require.NoError(t, m())
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	sessions := user.NewSessionStore(rdb, time.Hour)

	for _, id := range []string{"gone", "b", "c"} {
		require.NoError(t, db.Create(&user.User{ID: id, Username: "user" + id, Email: id + "@example.com", PasswordHash: "x"}).Error)
	}
	notifications := notification.NewService(db, notification.Options{})
	follows := follow.NewService(db, notifications)
	_, err = follows.Create(ctx, "gone", "b")
	require.NoError(t, err)
	_, err = follows.Create(ctx, "c", "gone")
	require.NoError(t, err)
	_, err = follows.Create(ctx, "b", "c")
	require.NoError(t, err)

	_, _, err = rating.NewService(db).Upsert(ctx, "gone", rating.UpsertInput{MediaID: 1, MediaType: rating.Movie, Rating: 7})
	require.NoError(t, err)
	_, err = watchlist.NewService(db).Add(ctx, "gone", watchlist.AddInput{MediaID: 2, MediaType: rating.Movie})
	require.NoError(t, err)
	_, err = watching.NewService(db, time.Hour).Upsert(ctx, "gone", watching.UpsertInput{MediaID: 3, MediaType: rating.TV})
	require.NoError(t, err)

	posts := post.NewService(db)
	gonePost, err := posts.Create(ctx, "gone", post.CreateInput{Content: "bye"})
	require.NoError(t, err)
	bPost, err := posts.Create(ctx, "b", post.CreateInput{Content: "hello"})
	require.NoError(t, err)
	for _, c := range []post.Comment{
		{ID: "c1", PostID: gonePost.ID, UserID: "b", Content: "x"},
		{ID: "c2", PostID: bPost.ID, UserID: "gone", Content: "y"},
		{ID: "c3", PostID: bPost.ID, UserID: "gone", Content: "z"},
		{ID: "c4", PostID: bPost.ID, UserID: "c", Content: "w"},
	} {
		require.NoError(t, db.Create(&c).Error)
		require.NoError(t, post.AdjustCounter(db, c.PostID, post.CommentCount, 1))
	}
	_, _, err = posts.ToggleLike(ctx, bPost.ID, "gone")
	require.NoError(t, err)
	_, _, err = posts.ToggleLike(ctx, bPost.ID, "c")
	require.NoError(t, err)

	tok, err := sessions.Create(ctx, "gone")
	require.NoError(t, err)

	svc := NewService(db, sessions)
	require.NoError(t, svc.Delete(ctx, "gone"))

	exists, err := user.Exists(db, "gone")
	require.NoError(t, err)
	assert.False(t, exists)

	b, err := user.FindByID(db, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, b.FollowerCount)
	assert.Equal(t, 1, b.FollowingCount)
	c, err := user.FindByID(db, "c")
	require.NoError(t, err)
	assert.Equal(t, 0, c.FollowingCount)
	assert.Equal(t, 1, c.FollowerCount)

	var count int64
	require.NoError(t, db.Model(&follow.Follow{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.NoError(t, db.Model(&rating.Rating{}).Where("user_id = ?", "gone").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&watchlist.Item{}).Where("user_id = ?", "gone").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&watching.Entry{}).Where("user_id = ?", "gone").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&notification.Notification{}).Where("user_id = ?", "gone").Count(&count).Error)
	assert.Zero(t, count)

	_, err = post.Find(db, gonePost.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	remaining, err := post.Find(db, bPost.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining.CommentCount)
	assert.Equal(t, 1, remaining.LikeCount)
	require.NoError(t, db.Model(&post.Comment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	require.NoError(t, db.Model(&post.Like{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, err = sessions.Resolve(ctx, tok)
	assert.ErrorIs(t, err, apperr.ErrAuthentication)

	assert.ErrorIs(t, svc.Delete(ctx, "gone"), apperr.ErrNotFound)
}
