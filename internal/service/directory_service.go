package service

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/leave-approval-api/internal/approval"
	"github.com/noah-isme/leave-approval-api/internal/models"
	appErrors "github.com/noah-isme/leave-approval-api/pkg/errors"
)

const directoryCacheKey = "directory:snapshot"

type directoryFetcher interface {
	Configured() bool
	Fetch(ctx context.Context) ([]models.DirectoryUser, error)
}

type directoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DirectoryConfig tunes directory refresh and the built-in fallback users.
type DirectoryConfig struct {
	RefreshInterval   time.Duration
	DefaultCredential string
}

// directoryRecord is the cached form of a DirectoryUser. Only bcrypt hashed credentials are
// kept; users with plain credentials cannot sign in from a cached snapshot.
type directoryRecord struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Role       models.Role `json:"role"`
	Username   string      `json:"username"`
	Credential string      `json:"credential"`
}

// DirectoryService serves the user directory with layered fallbacks: the published sheet,
// the last cached snapshot, then the built-in users.
type DirectoryService struct {
	fetcher directoryFetcher
	cache   directoryCache
	metrics *MetricsService
	logger  *zap.Logger
	cfg     DirectoryConfig
	now     func() time.Time

	mu       sync.RWMutex
	users    []models.DirectoryUser
	loadedAt time.Time
}

// NewDirectoryService constructs a DirectoryService. fetcher and cache may be nil.
func NewDirectoryService(fetcher directoryFetcher, cache directoryCache, metrics *MetricsService, logger *zap.Logger, cfg DirectoryConfig) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Minute
	}
	return &DirectoryService{fetcher: fetcher, cache: cache, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// DefaultUsers returns the built-in directory used when no other source is available.
func DefaultUsers(credential string) []models.DirectoryUser {
	base := []models.DirectoryUser{
		{ID: "u1", Name: "John Operator", Role: models.RoleOperator, Username: "john"},
		{ID: "u6", Name: "Lisa Tech", Role: models.RoleOperator, Username: "lisa"},
		{ID: "u2", Name: "Sarah Leader", Role: models.RoleTeamLeader, Username: "sarah"},
		{ID: "u3", Name: "Mike Incharge", Role: models.RoleIncharge, Username: "mike"},
		{ID: "u4", Name: "David PM", Role: models.RoleProjectManager, Username: "david"},
		{ID: "u5", Name: "Alex Reliever", Role: models.RoleReliever, Username: "alex"},
	}
	for i := range base {
		base[i].Credential = credential
	}
	return base
}

// Users returns the current directory, refreshing it when the snapshot is older than the
// refresh interval.
func (s *DirectoryService) Users(ctx context.Context) []models.DirectoryUser {
	s.mu.RLock()
	fresh := s.users != nil && s.now().Sub(s.loadedAt) < s.cfg.RefreshInterval
	users := s.users
	s.mu.RUnlock()
	if fresh {
		return copyUsers(users)
	}
	return copyUsers(s.Refresh(ctx))
}

// Refresh reloads the directory from the first source that yields users.
func (s *DirectoryService) Refresh(ctx context.Context) []models.DirectoryUser {
	users, source := s.load(ctx)
	if source != "sheet" {
		s.metrics.RecordDirectoryFallback(source)
	}

	s.mu.Lock()
	s.users = users
	s.loadedAt = s.now()
	s.mu.Unlock()
	return users
}

func (s *DirectoryService) load(ctx context.Context) ([]models.DirectoryUser, string) {
	if s.fetcher != nil && s.fetcher.Configured() {
		users, err := s.fetcher.Fetch(ctx)
		switch {
		case err != nil:
			s.logger.Warn("directory fetch failed, falling back", zap.Error(err))
		case len(users) == 0:
			s.logger.Warn("directory sheet returned no users, falling back")
		default:
			s.store(ctx, users)
			return users, "sheet"
		}
	}

	if s.cache != nil {
		var records []directoryRecord
		hit, err := s.cache.Get(ctx, directoryCacheKey, &records)
		if err != nil {
			s.logger.Warn("directory cache read failed", zap.Error(err))
		}
		if hit && len(records) > 0 {
			return fromRecords(records), "cache"
		}
	}

	s.mu.RLock()
	previous := s.users
	s.mu.RUnlock()
	if len(previous) > 0 {
		return previous, "memory"
	}

	return DefaultUsers(s.cfg.DefaultCredential), "defaults"
}

func (s *DirectoryService) store(ctx context.Context, users []models.DirectoryUser) {
	if s.cache == nil {
		return
	}
	// The last good snapshot is kept until the next successful fetch overwrites it.
	if err := s.cache.Set(ctx, directoryCacheKey, toRecords(users), -1); err != nil {
		s.logger.Warn("directory cache write failed", zap.Error(err))
	}
}

// Authenticate resolves a user by username (trimmed, case-insensitive) and credential.
func (s *DirectoryService) Authenticate(ctx context.Context, username, credential string) (*models.DirectoryUser, error) {
	wanted := strings.ToLower(strings.TrimSpace(username))
	if wanted == "" || credential == "" {
		return nil, appErrors.ErrInvalidCredentials
	}
	for _, user := range s.Users(ctx) {
		if strings.ToLower(strings.TrimSpace(user.Username)) != wanted {
			continue
		}
		if credentialMatches(user.Credential, credential) {
			u := user
			return &u, nil
		}
		break
	}
	return nil, appErrors.ErrInvalidCredentials
}

// Lookup returns the directory user with the given id.
func (s *DirectoryService) Lookup(ctx context.Context, id string) (*models.DirectoryUser, error) {
	for _, user := range s.Users(ctx) {
		if user.ID == id {
			u := user
			return &u, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
}

// Relievers lists the users the viewer may nominate as reliever.
func (s *DirectoryService) Relievers(ctx context.Context, viewer models.Identity) []models.DirectoryUser {
	return approval.Relievers(s.Users(ctx), viewer)
}

// credentialMatches compares credentials as opaque strings unless the stored value is a
// bcrypt hash.
func credentialMatches(stored, supplied string) bool {
	if stored == "" {
		return false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

func isBcryptHash(credential string) bool {
	_, err := bcrypt.Cost([]byte(credential))
	return err == nil
}

func copyUsers(users []models.DirectoryUser) []models.DirectoryUser {
	out := make([]models.DirectoryUser, len(users))
	copy(out, users)
	return out
}

func toRecords(users []models.DirectoryUser) []directoryRecord {
	out := make([]directoryRecord, len(users))
	for i, u := range users {
		out[i] = directoryRecord{ID: u.ID, Name: u.Name, Role: u.Role, Username: u.Username}
		if isBcryptHash(u.Credential) {
			out[i].Credential = u.Credential
		}
	}
	return out
}

func fromRecords(records []directoryRecord) []models.DirectoryUser {
	out := make([]models.DirectoryUser, len(records))
	for i, r := range records {
		out[i] = models.DirectoryUser{ID: r.ID, Name: r.Name, Role: r.Role, Username: r.Username, Credential: r.Credential}
	}
	return out
}
