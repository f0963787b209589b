package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hoangtu0812/pocketfile-lite/internal/api/middleware"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
	"github.com/hoangtu0812/pocketfile-lite/internal/service"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Фейковые сервисы: поведение задаётся полями-функциями ---

type fakeAuth struct {
	login    func(username, password string) (*service.LoginResult, error)
	register func(in service.RegisterInput) (*model.User, error)
	me       func(p *model.Principal) (*model.User, error)
	logout   func(p *model.Principal) error
}

func (f *fakeAuth) Login(_ context.Context, u, p string) (*service.LoginResult, error) {
	return f.login(u, p)
}

func (f *fakeAuth) Register(_ context.Context, in service.RegisterInput) (*model.User, error) {
	return f.register(in)
}

func (f *fakeAuth) Me(_ context.Context, p *model.Principal) (*model.User, error) { return f.me(p) }

func (f *fakeAuth) Logout(_ context.Context, p *model.Principal) error { return f.logout(p) }

type fakeUsers struct {
	list           func() ([]*model.User, error)
	deleteUser     func(actor *model.Principal, id int64) error
	changePassword func(id int64, password string) error
	grants         func(id int64) ([]int64, error)
	setGrants      func(id int64, ids []int64) ([]int64, error)
}

func (f *fakeUsers) List(context.Context) ([]*model.User, error) { return f.list() }

func (f *fakeUsers) Delete(_ context.Context, actor *model.Principal, id int64) error {
	return f.deleteUser(actor, id)
}

func (f *fakeUsers) ChangePassword(_ context.Context, id int64, p string) error {
	return f.changePassword(id, p)
}

func (f *fakeUsers) Grants(_ context.Context, id int64) ([]int64, error) { return f.grants(id) }

func (f *fakeUsers) SetGrants(_ context.Context, id int64, ids []int64) ([]int64, error) {
	return f.setGrants(id, ids)
}

type fakeProjects struct {
	list          func(p *model.Principal) ([]*model.Project, error)
	get           func(p *model.Principal, id int64) (*model.Project, error)
	create        func(name string, desc *string) (*model.Project, error)
	update        func(id int64, in service.UpdateProjectInput) (*model.Project, error)
	deleteProject func(id int64) error
	listVersions  func(p *model.Principal, projectID int64) ([]*model.Version, error)
	createVersion func(projectID int64, label string) (*model.Version, error)
	deleteVersion func(id int64) error
}

func (f *fakeProjects) List(_ context.Context, p *model.Principal) ([]*model.Project, error) {
	return f.list(p)
}

func (f *fakeProjects) Get(_ context.Context, p *model.Principal, id int64) (*model.Project, error) {
	return f.get(p, id)
}

func (f *fakeProjects) Create(_ context.Context, name string, desc *string) (*model.Project, error) {
	return f.create(name, desc)
}

func (f *fakeProjects) Update(_ context.Context, id int64, in service.UpdateProjectInput) (*model.Project, error) {
	return f.update(id, in)
}

func (f *fakeProjects) Delete(_ context.Context, id int64) error { return f.deleteProject(id) }

func (f *fakeProjects) ListVersions(_ context.Context, p *model.Principal, id int64) ([]*model.Version, error) {
	return f.listVersions(p, id)
}

func (f *fakeProjects) CreateVersion(_ context.Context, id int64, label string) (*model.Version, error) {
	return f.createVersion(id, label)
}

func (f *fakeProjects) DeleteVersion(_ context.Context, id int64) error { return f.deleteVersion(id) }

type fakeArtifacts struct {
	maxSize    int64
	upload     func(p *model.Principal, versionID int64, filename string, body io.Reader) (*model.Artifact, error)
	list       func(p *model.Principal, versionID int64) ([]*model.Artifact, error)
	download   func(p *model.Principal, id int64, address string) (*service.ArtifactDownload, error)
	deleteFile func(id int64) error
}

func (f *fakeArtifacts) MaxUploadSize() int64 { return f.maxSize }

func (f *fakeArtifacts) Upload(_ context.Context, p *model.Principal, versionID int64, filename string, body io.Reader) (*model.Artifact, error) {
	return f.upload(p, versionID, filename, body)
}

func (f *fakeArtifacts) List(_ context.Context, p *model.Principal, versionID int64) ([]*model.Artifact, error) {
	return f.list(p, versionID)
}

func (f *fakeArtifacts) Download(_ context.Context, p *model.Principal, id int64, address string) (*service.ArtifactDownload, error) {
	return f.download(p, id, address)
}

func (f *fakeArtifacts) Delete(_ context.Context, id int64) error { return f.deleteFile(id) }

type fakeDashboard struct {
	stats func() (*model.DashboardStats, error)
}

func (f *fakeDashboard) Stats(context.Context) (*model.DashboardStats, error) { return f.stats() }

// --- Окружение теста ---

type testHandler struct {
	api       *APIHandler
	auth      *fakeAuth
	users     *fakeUsers
	projects  *fakeProjects
	artifacts *fakeArtifacts
	dashboard *fakeDashboard
}

func newTestHandler() *testHandler {
	th := &testHandler{
		auth:      &fakeAuth{},
		users:     &fakeUsers{},
		projects:  &fakeProjects{},
		artifacts: &fakeArtifacts{maxSize: 1 << 20},
		dashboard: &fakeDashboard{},
	}
	th.api = NewAPIHandler(th.auth, th.users, th.projects, th.artifacts, th.dashboard, testLogger())
	return th
}

var (
	adminPrincipal = &model.Principal{UserID: 1, Username: "admin", Role: rbac.RoleAdmin}
	userPrincipal  = &model.Principal{UserID: 2, Username: "alice", Role: rbac.RoleUser, ProjectIDs: []int64{7}}
)

// call выполняет запрос к обработчику через chi, чтобы работали параметры маршрута.
func call(
	t *testing.T,
	method, pattern, target string,
	body io.Reader,
	p *model.Principal,
	handler http.HandlerFunc,
	prepare ...func(*http.Request),
) *httptest.ResponseRecorder {
	t.Helper()

	router := chi.NewRouter()
	router.MethodFunc(method, pattern, handler)

	req := httptest.NewRequest(method, target, body)
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), p))
	}
	for _, fn := range prepare {
		fn(req)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

// envelope — конверт ответа с сырыми данными.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("некорректный JSON ответа: %v", err)
	}
	return env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("некорректное поле data %s: %v", env.Data, err)
	}
}

// expectError проверяет статус и код ошибки в конверте.
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) envelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("статус = %d, ожидается %d, тело: %s", rec.Code, status, rec.Body.String())
	}
	env := decode(t, rec)
	if env.Success {
		t.Error("success = true для ошибки")
	}
	if env.Code != code {
		t.Errorf("код = %q, ожидается %q", env.Code, code)
	}
	if env.Error == nil || *env.Error == "" {
		t.Error("пустое сообщение об ошибке")
	}
	if string(env.Data) != "null" {
		t.Errorf("data = %s, ожидается null", env.Data)
	}
	return env
}
