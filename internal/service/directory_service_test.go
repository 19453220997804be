package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/leave-approval-api/internal/models"
	"github.com/noah-isme/leave-approval-api/internal/repository"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

type stubFetcher struct {
	users []models.DirectoryUser
	err   error
	calls int
}

func (f *stubFetcher) Configured() bool { return true }

func (f *stubFetcher) Fetch(ctx context.Context) ([]models.DirectoryUser, error) {
	f.calls++
	return f.users, f.err
}

func newRedisCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheService(repository.NewCacheRepository(client, "leave", nil), NewMetricsService(), time.Minute, nil, true), mr
}

func sheetUsers() []models.DirectoryUser {
	return []models.DirectoryUser{
		{ID: "e1", Name: "Nadia Operator", Role: models.RoleOperator, Username: "nadia", Credential: "pw-1"},
		{ID: "e2", Name: "Omar Reliever", Role: models.RoleReliever, Username: "Omar", Credential: "pw-2"},
	}
}

func TestDirectoryServiceServesSheetAndCaches(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw-2"), bcrypt.MinCost)
	require.NoError(t, err)
	users := sheetUsers()
	users[1].Credential = string(hash)

	fetcher := &stubFetcher{users: users}
	cache, mr := newRedisCache(t)
	svc := NewDirectoryService(fetcher, cache, nil, nil, DirectoryConfig{RefreshInterval: time.Hour})
	ctx := context.Background()

	require.Len(t, svc.Users(ctx), 2)
	svc.Users(ctx)
	assert.Equal(t, 1, fetcher.calls)

	raw, err := mr.Get("leave:" + directoryCacheKey)
	require.NoError(t, err)
	assert.NotContains(t, raw, "pw-1")
	assert.Contains(t, raw, string(hash))

	// A failing sheet falls back to the cached snapshot, which only keeps hashed credentials.
	fetcher.err = errors.New("sheet unpublished")
	restarted := NewDirectoryService(fetcher, cache, nil, nil, DirectoryConfig{})
	user, err := restarted.Authenticate(ctx, "  OMAR ", "pw-2")
	require.NoError(t, err)
	assert.Equal(t, "e2", user.ID)

	_, err = restarted.Authenticate(ctx, "nadia", "pw-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
	assert.Len(t, restarted.Users(ctx), 2)
}

func TestDirectoryServiceFallsBackToDefaults(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("offline")}
	metrics := NewMetricsService()
	svc := NewDirectoryService(fetcher, nil, metrics, nil, DirectoryConfig{DefaultCredential: "demo"})
	ctx := context.Background()

	users := svc.Users(ctx)
	require.Len(t, users, 6)
	assert.Equal(t, "John Operator", users[0].Name)

	user, err := svc.Authenticate(ctx, "david", "demo")
	require.NoError(t, err)
	assert.Equal(t, models.RoleProjectManager, user.Role)
}

func TestDirectoryServiceEmptySheetFallsBack(t *testing.T) {
	svc := NewDirectoryService(&stubFetcher{}, nil, nil, nil, DirectoryConfig{})
	users := svc.Users(context.Background())
	assert.Len(t, users, 6)

	_, err := svc.Authenticate(context.Background(), "john", "")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
	_, err = svc.Authenticate(context.Background(), "john", "anything")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestDirectoryServiceAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	users := sheetUsers()
	users[0].Credential = string(hash)
	svc := NewDirectoryService(&stubFetcher{users: users}, nil, nil, nil, DirectoryConfig{})
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "nadia", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "e1", user.ID)

	_, err = svc.Authenticate(ctx, "nadia", "wrong")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	// Credentials are compared exactly.
	_, err = svc.Authenticate(ctx, "omar", "PW-2")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Authenticate(ctx, "nobody", "pw-2")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestDirectoryServiceRelieversAndLookup(t *testing.T) {
	svc := NewDirectoryService(&stubFetcher{users: sheetUsers()}, nil, nil, nil, DirectoryConfig{})
	ctx := context.Background()

	relievers := svc.Relievers(ctx, models.Identity{ID: "e1", Name: "Nadia Operator"})
	require.Len(t, relievers, 1)
	assert.Equal(t, "Omar Reliever", relievers[0].Name)

	user, err := svc.Lookup(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, "Omar Reliever", user.Name)

	_, err = svc.Lookup(ctx, "zz")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
