package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaintalk-ai/chaintalk/internal/store"
)

type fakeUsers struct {
	byID    map[string]*store.User
	byEmail map[string]*store.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*store.User{}, byEmail: map[string]*store.User{}}
}

func (f *fakeUsers) CreateUser(_ context.Context, email, name, hash string) (*store.User, error) {
	if _, ok := f.byEmail[email]; ok {
		return nil, store.ErrEmailTaken
	}
	user := &store.User{ID: "u-" + email, Email: email, Name: name, PasswordHash: hash}
	f.byID[user.ID] = user
	f.byEmail[email] = user
	return user, nil
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*store.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id string) error {
	if u, ok := f.byID[id]; ok {
		u.LastLoginAt = time.Now().Unix()
	}
	return nil
}

func setupAuth(t *testing.T) (*Service, *fakeUsers, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	jwt := NewJWTManager("access-secret-32-chars-long!!!!!", "refresh-secret-32-chars-long!!!!", 15*time.Minute, 24*time.Hour)
	users := newFakeUsers()
	return NewService(jwt, users, rdb), users, mr
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc, _, _ := setupAuth(t)
	ctx := context.Background()

	user, pair, err := svc.Register(ctx, "a@b.io", "Ana", "hunter2hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, _, err = svc.Register(ctx, "a@b.io", "Dup", "hunter2hunter2")
	assert.ErrorIs(t, err, store.ErrEmailTaken)

	got, loginPair, err := svc.Login(ctx, "a@b.io", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, loginPair.RefreshToken)
	assert.Positive(t, got.LastLoginAt)

	_, _, err = svc.Login(ctx, "a@b.io", "wrong-password")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, _, err = svc.Login(ctx, "missing@b.io", "hunter2hunter2")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestService_RefreshRotatesToken(t *testing.T) {
	svc, _, _ := setupAuth(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "a@b.io", "Ana", "hunter2hunter2")
	require.NoError(t, err)

	rotated, err := svc.RefreshTokens(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	claims, err := svc.ValidateAccessToken(rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@b.io", claims.Email)

	// Old refresh token was revoked on rotation.
	_, err = svc.RefreshTokens(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoked")
}

func TestService_LogoutRevokesAllSessions(t *testing.T) {
	svc, _, _ := setupAuth(t)
	ctx := context.Background()

	user, first, err := svc.Register(ctx, "a@b.io", "Ana", "hunter2hunter2")
	require.NoError(t, err)
	_, second, err := svc.Login(ctx, "a@b.io", "hunter2hunter2")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.ID))

	_, err = svc.RefreshTokens(ctx, first.RefreshToken)
	assert.Error(t, err)
	_, err = svc.RefreshTokens(ctx, second.RefreshToken)
	assert.Error(t, err)
}

func TestService_RefreshExpiresWithTTL(t *testing.T) {
	svc, _, mr := setupAuth(t)
	ctx := context.Background()

	_, pair, err := svc.Register(ctx, "a@b.io", "Ana", "hunter2hunter2")
	require.NoError(t, err)

	mr.FastForward(25 * time.Hour)
	_, err = svc.RefreshTokens(ctx, pair.RefreshToken)
	assert.Error(t, err)
}
