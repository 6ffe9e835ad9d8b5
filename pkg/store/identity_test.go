package store

import (
	"context"
	"errors"
	"testing"

	"github.com/haider-9/tvdom/pkg/client"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

// brokenStorage 在保存 failKey 时返回错误，其余操作交给内存存储。
type brokenStorage struct {
	*MemoryStorage
	failKey string
}

func (b *brokenStorage) Save(key string, v any) error {
	if key == b.failKey {
		return errDiskFull
	}
	return b.MemoryStorage.Save(key, v)
}

func assertNoStoredIdentity(t *testing.T, storage Storage) {
	t.Helper()
	var u client.User
	found, err := storage.Load(KeyUser, &u)
	require.NoError(t, err)
	assert.False(t, found)
	var token string
	found, err = storage.Load(KeySession, &token)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoginFailsCleanlyWhenSessionCannotBeSaved(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAPI()
	alice := fake.addUser("alice", testPassword)
	storage := &brokenStorage{MemoryStorage: NewMemoryStorage(), failKey: KeySession}
	session := NewSession(fake, storage, WithLogger(zerolog.Nop()))

	err := session.Login(ctx, alice.Email, testPassword)
	assert.ErrorIs(t, err, errDiskFull)

	s := session.Snapshot()
	assert.Equal(t, StatusAnonymous, s.Status)
	assert.Nil(t, s.User)
	assert.Empty(t, s.Token)
	assert.ErrorIs(t, s.Err, errDiskFull)

	assertNoStoredIdentity(t, storage)
	assert.Empty(t, fake.token)
	assert.Equal(t, 1, fake.callCount("logout"))
	fake.mu.Lock()
	assert.Empty(t, fake.sessions)
	fake.mu.Unlock()

	// 存储恢复后可以正常登录
	storage.failKey = ""
	require.NoError(t, session.Login(ctx, alice.Email, testPassword))
	assert.Equal(t, StatusAuthenticated, session.Snapshot().Status)
}

func TestRestoreFailsCleanlyWhenIdentityCannotBeSaved(t *testing.T) {
	ctx := context.Background()
	first := newFixture(t)
	alice := first.api.addUser("alice", testPassword)
	first.login(t, alice)

	storage := &brokenStorage{MemoryStorage: first.storage, failKey: KeyUser}
	restored := NewSession(first.api, storage, WithLogger(zerolog.Nop()))

	err := restored.Restore(ctx)
	assert.ErrorIs(t, err, errDiskFull)
	s := restored.Snapshot()
	assert.Equal(t, StatusAnonymous, s.Status)
	assert.Nil(t, s.User)
	assertNoStoredIdentity(t, storage)
	assert.Empty(t, first.api.token)
}

// emptyUserAPI 模拟返回200但响应体缺少 user 字段的服务器。
type emptyUserAPI struct {
	*fakeAPI
}

func (emptyUserAPI) Me(context.Context) (*client.User, error) { return nil, nil }

func (emptyUserAPI) GetUser(context.Context, string) (*client.User, error) { return nil, nil }

func (emptyUserAPI) UpdateProfile(context.Context, client.ProfileUpdate) (*client.User, error) {
	return nil, nil
}

func TestMissingUserInResponseKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAPI()
	f := newSessionFixture(t, emptyUserAPI{fake}, fake)
	alice := fake.addUser("alice", testPassword)
	f.login(t, alice)

	_, err := f.session.AddRating(ctx, client.RatingInput{MediaID: 1, MediaType: client.Movie, Rating: 6})
	require.NoError(t, err)
	s := f.session.Snapshot()
	require.NotNil(t, s.User)
	assert.Equal(t, alice.ID, s.User.ID)
	assert.Len(t, s.Ratings, 1)

	_, err = f.session.UpdateProfile(ctx, client.ProfileUpdate{})
	assert.Error(t, err)
	require.NotNil(t, f.session.Snapshot().User)

	restored := NewSession(emptyUserAPI{fake}, f.storage, WithLogger(zerolog.Nop()))
	require.NoError(t, restored.Restore(ctx))
	s = restored.Snapshot()
	assert.Equal(t, StatusAuthenticated, s.Status)
	require.NotNil(t, s.User)
	assert.Equal(t, alice.ID, s.User.ID)
}
