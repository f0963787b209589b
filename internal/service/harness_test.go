package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/hoangtu0812/pocketfile-lite/internal/auth/password"
	"github.com/hoangtu0812/pocketfile-lite/internal/auth/token"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
	"github.com/hoangtu0812/pocketfile-lite/internal/storage/filestore"
)

// testParams — облегчённые параметры argon2id.
var testParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

// memRevoker — in-memory хранилище отозванных токенов.
type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newMemRevoker() *memRevoker {
	return &memRevoker{revoked: map[string]time.Time{}}
}

func (m *memRevoker) Revoke(_ context.Context, jti string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.revoked[jti] = exp
	return nil
}

func (m *memRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.revoked[jti]
	return ok, nil
}

// testEnv — собранные сервисы поверх memDB и временного каталога.
type testEnv struct {
	db        *memDB
	store     *filestore.FileStore
	tokens    *token.Manager
	hasher    *password.Hasher
	revoker   *memRevoker
	cache     *ArtifactCache
	authn     *Authenticator
	auth      *AuthService
	users     *UserService
	projects  *ProjectService
	artifacts *ArtifactService
	auditor   *DownloadAuditor
	dashboard *DashboardService
}

func defaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{MaxUploadSize: 1 << 20, UniqueFilenames: true, UploadRequiresGrant: true}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, defaultArtifactConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg ArtifactConfig) *testEnv {
	t.Helper()
	logger := testLogger()

	store, err := filestore.New(filepath.Join(t.TempDir(), "storage"), logger)
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	tokens, err := token.New("test-secret", "HS256", "pocketfile", time.Hour)
	if err != nil {
		t.Fatalf("ошибка создания token.Manager: %v", err)
	}

	e := &testEnv{
		db:      newMemDB(),
		store:   store,
		tokens:  tokens,
		hasher:  password.New(testParams),
		revoker: newMemRevoker(),
		cache:   NewArtifactCache(100, time.Minute),
	}
	e.authn = NewAuthenticator(tokens, e.db.userRepo(), e.db.grantRepo(), e.revoker, logger)
	e.auth = NewAuthService(e.db.userRepo(), e.hasher, tokens, e.revoker, logger)
	e.users = NewUserService(e.db.userRepo(), e.db.grantRepo(), e.hasher, logger)
	e.projects = NewProjectService(e.db.projectRepo(), e.db.versionRepo(), store, e.cache, logger)
	e.auditor = NewDownloadAuditor(e.db.downloadRepo(), logger)
	e.artifacts = NewArtifactService(e.db.projectRepo(), e.db.versionRepo(), e.db.artifactRepo(),
		store, e.auditor, e.cache, cfg, logger)
	e.dashboard = NewDashboardService(e.db.projectRepo(), e.db.versionRepo(), e.db.artifactRepo(), e.auditor, logger)
	return e
}

// createUser создаёт пользователя с паролем "password123".
func (e *testEnv) createUser(t *testing.T, username, role string) *model.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("ошибка создания пользователя %s: %v", username, err)
	}
	return u
}

// principal аутентифицирует пользователя через выпущенный токен.
func (e *testEnv) principal(t *testing.T, u *model.User) *model.Principal {
	t.Helper()
	raw, _, err := e.tokens.Issue(u.ID, u.Role)
	if err != nil {
		t.Fatalf("ошибка выпуска токена: %v", err)
	}
	p, err := e.authn.Authenticate(context.Background(), raw)
	if err != nil {
		t.Fatalf("ошибка аутентификации: %v", err)
	}
	return p
}

// admin создаёт администратора и возвращает его principal.
func (e *testEnv) admin(t *testing.T) *model.Principal {
	t.Helper()
	return e.principal(t, e.createUser(t, "admin", rbac.RoleAdmin))
}

// projectWithVersion создаёт проект и версию.
func (e *testEnv) projectWithVersion(t *testing.T, name, label string) (*model.Project, *model.Version) {
	t.Helper()
	ctx := context.Background()
	p, err := e.projects.Create(ctx, name, nil)
	if err != nil {
		t.Fatalf("ошибка создания проекта: %v", err)
	}
	v, err := e.projects.CreateVersion(ctx, p.ID, label)
	if err != nil {
		t.Fatalf("ошибка создания версии: %v", err)
	}
	return p, v
}

// grant выдаёт пользователю доступ к проектам и возвращает обновлённый principal.
func (e *testEnv) grant(t *testing.T, u *model.User, projectIDs ...int64) *model.Principal {
	t.Helper()
	if _, err := e.users.SetGrants(context.Background(), u.ID, projectIDs); err != nil {
		t.Fatalf("ошибка выдачи грантов: %v", err)
	}
	return e.principal(t, u)
}
