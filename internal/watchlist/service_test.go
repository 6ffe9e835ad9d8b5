package watchlist

import (
	"context"
	"testing"

	"github.com/haider-9/tvdom/internal/platform/database"
	"github.com/haider-9/tvdom/internal/rating"
	"github.com/haider-9/tvdom/internal/user"
	"github.com/haider-9/tvdom/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRemoveMaintainsCounter(t *testing.T) {
	db, err := database.OpenSQLiteMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, user.Migrate(db))
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&user.User{ID: "u1", Username: "u1", Email: "u1@example.com", PasswordHash: "x"}).Error)
	svc := NewService(db)
	ctx := context.Background()

	item, err := svc.Add(ctx, "u1", AddInput{MediaID: 603, MediaType: rating.Movie, MediaTitle: "The Matrix"})
	require.NoError(t, err)
	assert.Equal(t, Medium, item.Priority)

	_, err = svc.Add(ctx, "u1", AddInput{MediaID: 603, MediaType: rating.Movie})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Add(ctx, "u1", AddInput{MediaID: 1399, MediaType: rating.TV, Priority: High})
	require.NoError(t, err)

	items, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1399), items[0].MediaID)

	u, err := user.FindByID(db, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, u.WatchlistCount)

	require.NoError(t, svc.Remove(ctx, "u1", 603))
	assert.ErrorIs(t, svc.Remove(ctx, "u1", 603), apperr.ErrNotFound)

	u, err = user.FindByID(db, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.WatchlistCount)

	_, err = svc.Add(ctx, "u1", AddInput{MediaID: 5, MediaType: rating.Movie, Priority: "urgent"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
