package service

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
	"github.com/hoangtu0812/pocketfile-lite/internal/repository"
)

// testLogger — логгер, не засоряющий вывод тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memDB — in-memory реализация репозиториев с тем же порядком
// каскадного удаления, что и в PostgreSQL-реализации.
type memDB struct {
	mu        sync.Mutex
	nextID    int64
	now       func() time.Time
	users     map[int64]*model.User
	grants    map[int64][]int64
	projects  map[int64]*model.Project
	versions  map[int64]*model.Version
	artifacts map[int64]*model.Artifact
	downloads []model.DownloadEvent

	// recordErr — ошибка, которую вернёт Record (имитация сбоя журнала)
	recordErr error
	// beforeArtifactCreate вызывается перед вставкой файла (без блокировки)
	beforeArtifactCreate func()
}

func newMemDB() *memDB {
	return &memDB{
		now:       time.Now,
		users:     map[int64]*model.User{},
		grants:    map[int64][]int64{},
		projects:  map[int64]*model.Project{},
		versions:  map[int64]*model.Version{},
		artifacts: map[int64]*model.Artifact{},
	}
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func (db *memDB) userRepo() repository.UserRepository         { return &memUsers{db} }
func (db *memDB) grantRepo() repository.GrantRepository       { return &memGrants{db} }
func (db *memDB) projectRepo() repository.ProjectRepository   { return &memProjects{db} }
func (db *memDB) versionRepo() repository.VersionRepository   { return &memVersions{db} }
func (db *memDB) artifactRepo() repository.ArtifactRepository { return &memArtifacts{db} }
func (db *memDB) downloadRepo() repository.DownloadRepository { return &memDownloads{db} }

// deleteArtifactsLocked удаляет события и файлы, возвращает пути.
func (db *memDB) deleteArtifactsLocked(match func(*model.Artifact) bool) []string {
	var paths []string
	for id, a := range db.artifacts {
		if !match(a) {
			continue
		}
		db.downloads = slices.DeleteFunc(db.downloads, func(d model.DownloadEvent) bool {
			return d.ArtifactID == id
		})
		paths = append(paths, a.StoragePath)
		delete(db.artifacts, id)
	}
	return paths
}

// --- users ---

type memUsers struct{ db *memDB }

func (r *memUsers) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ex := range r.db.users {
		if ex.Username == u.Username || ex.Email == u.Email {
			return repository.ErrConflict
		}
	}
	u.ID = r.db.id()
	u.CreatedAt = r.db.now()
	cp := *u
	r.db.users[u.ID] = &cp
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) List(_ context.Context) ([]*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := make([]*model.User, 0, len(r.db.users))
	for _, u := range r.db.users {
		cp := *u
		result = append(result, &cp)
	}
	slices.SortFunc(result, func(a, b *model.User) int { return strings.Compare(a.Username, b.Username) })
	return result, nil
}

func (r *memUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memUsers) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.Role == rbac.RoleAdmin {
		admins := 0
		for _, x := range r.db.users {
			if x.Role == rbac.RoleAdmin {
				admins++
			}
		}
		if admins <= 1 {
			return repository.ErrLastAdmin
		}
	}
	for _, a := range r.db.artifacts {
		if a.UploadedBy != nil && *a.UploadedBy == id {
			a.UploadedBy = nil
		}
	}
	delete(r.db.grants, id)
	delete(r.db.users, id)
	return nil
}

// --- grants ---

type memGrants struct{ db *memDB }

func (r *memGrants) ListProjectIDs(_ context.Context, userID int64) ([]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return slices.Clone(r.db.grants[userID]), nil
}

func (r *memGrants) Replace(_ context.Context, userID int64, projectIDs []int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[userID]; !ok {
		return repository.ErrForeignKey
	}
	ids := make([]int64, 0, len(projectIDs))
	for _, id := range projectIDs {
		if _, ok := r.db.projects[id]; ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	r.db.grants[userID] = ids
	return nil
}

// --- projects ---

type memProjects struct{ db *memDB }

func (r *memProjects) withCount(p *model.Project) *model.Project {
	cp := *p
	cp.VersionCount = 0
	for _, v := range r.db.versions {
		if v.ProjectID == p.ID {
			cp.VersionCount++
		}
	}
	return &cp
}

func (r *memProjects) Create(_ context.Context, p *model.Project) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ex := range r.db.projects {
		if ex.Name == p.Name {
			return repository.ErrConflict
		}
	}
	p.ID = r.db.id()
	p.CreatedAt = r.db.now()
	cp := *p
	r.db.projects[p.ID] = &cp
	return nil
}

func (r *memProjects) GetByID(_ context.Context, id int64) (*model.Project, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withCount(p), nil
}

func (r *memProjects) List(_ context.Context, filter repository.ProjectFilter) ([]*model.Project, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := make([]*model.Project, 0)
	for _, p := range r.db.projects {
		if filter.All || slices.Contains(filter.IDs, p.ID) {
			result = append(result, r.withCount(p))
		}
	}
	slices.SortFunc(result, func(a, b *model.Project) int { return strings.Compare(a.Name, b.Name) })
	return result, nil
}

func (r *memProjects) Update(_ context.Context, p *model.Project) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ex, ok := r.db.projects[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, other := range r.db.projects {
		if other.ID != p.ID && other.Name == p.Name {
			return repository.ErrConflict
		}
	}
	ex.Name = p.Name
	ex.Description = p.Description
	p.CreatedAt = ex.CreatedAt
	return nil
}

func (r *memProjects) Delete(_ context.Context, id int64) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.projects[id]; !ok {
		return nil, repository.ErrNotFound
	}
	paths := r.db.deleteArtifactsLocked(func(a *model.Artifact) bool {
		v, ok := r.db.versions[a.VersionID]
		return ok && v.ProjectID == id
	})
	for vid, v := range r.db.versions {
		if v.ProjectID == id {
			delete(r.db.versions, vid)
		}
	}
	for uid, ids := range r.db.grants {
		r.db.grants[uid] = slices.DeleteFunc(ids, func(pid int64) bool { return pid == id })
	}
	delete(r.db.projects, id)
	return paths, nil
}

func (r *memProjects) Count(_ context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return int64(len(r.db.projects)), nil
}

// --- versions ---

type memVersions struct{ db *memDB }

func (r *memVersions) withCount(v *model.Version) *model.Version {
	cp := *v
	cp.FileCount = 0
	for _, a := range r.db.artifacts {
		if a.VersionID == v.ID {
			cp.FileCount++
		}
	}
	return &cp
}

func (r *memVersions) Create(_ context.Context, v *model.Version) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.projects[v.ProjectID]; !ok {
		return repository.ErrNotFound
	}
	for _, ex := range r.db.versions {
		if ex.ProjectID == v.ProjectID && ex.Label == v.Label {
			return repository.ErrConflict
		}
	}
	v.ID = r.db.id()
	v.CreatedAt = r.db.now()
	cp := *v
	r.db.versions[v.ID] = &cp
	return nil
}

func (r *memVersions) GetByID(_ context.Context, id int64) (*model.Version, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v, ok := r.db.versions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withCount(v), nil
}

func (r *memVersions) ListByProject(_ context.Context, projectID int64) ([]*model.Version, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := make([]*model.Version, 0)
	for _, v := range r.db.versions {
		if v.ProjectID == projectID {
			result = append(result, r.withCount(v))
		}
	}
	slices.SortFunc(result, func(a, b *model.Version) int { return cmp.Compare(b.ID, a.ID) })
	return result, nil
}

func (r *memVersions) Delete(_ context.Context, id int64) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.versions[id]; !ok {
		return nil, repository.ErrNotFound
	}
	paths := r.db.deleteArtifactsLocked(func(a *model.Artifact) bool { return a.VersionID == id })
	delete(r.db.versions, id)
	return paths, nil
}

func (r *memVersions) Count(_ context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return int64(len(r.db.versions)), nil
}

// --- artifacts ---

type memArtifacts struct{ db *memDB }

func (r *memArtifacts) Create(_ context.Context, a *model.Artifact) error {
	if hook := r.db.beforeArtifactCreate; hook != nil {
		hook()
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.versions[a.VersionID]; !ok {
		return repository.ErrForeignKey
	}
	for _, ex := range r.db.artifacts {
		if ex.StoragePath == a.StoragePath {
			return repository.ErrConflict
		}
	}
	a.ID = r.db.id()
	a.UploadedAt = r.db.now()
	cp := *a
	cp.UploaderName = nil
	r.db.artifacts[a.ID] = &cp
	return nil
}

func (r *memArtifacts) location(a *model.Artifact) *model.ArtifactLocation {
	loc := &model.ArtifactLocation{Artifact: *a}
	if a.UploadedBy != nil {
		if u, ok := r.db.users[*a.UploadedBy]; ok {
			name := u.Username
			loc.Artifact.UploaderName = &name
		}
	}
	if v, ok := r.db.versions[a.VersionID]; ok {
		loc.ProjectID = v.ProjectID
	}
	return loc
}

func (r *memArtifacts) GetByID(_ context.Context, id int64) (*model.ArtifactLocation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.artifacts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.location(a), nil
}

func (r *memArtifacts) ListByVersion(_ context.Context, versionID int64) ([]*model.Artifact, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := make([]*model.Artifact, 0)
	for _, a := range r.db.artifacts {
		if a.VersionID == versionID {
			result = append(result, &r.location(a).Artifact)
		}
	}
	slices.SortFunc(result, func(a, b *model.Artifact) int { return cmp.Compare(b.ID, a.ID) })
	return result, nil
}

func (r *memArtifacts) Delete(_ context.Context, id int64) (string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.artifacts[id]; !ok {
		return "", repository.ErrNotFound
	}
	paths := r.db.deleteArtifactsLocked(func(a *model.Artifact) bool { return a.ID == id })
	return paths[0], nil
}

func (r *memArtifacts) TotalBytes(_ context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, a := range r.db.artifacts {
		n += a.Size
	}
	return n, nil
}

func (r *memArtifacts) Count(_ context.Context) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return int64(len(r.db.artifacts)), nil
}

// --- downloads ---

type memDownloads struct{ db *memDB }

func (r *memDownloads) Record(_ context.Context, artifactID int64, ip string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.recordErr != nil {
		return r.db.recordErr
	}
	if _, ok := r.db.artifacts[artifactID]; !ok {
		return repository.ErrForeignKey
	}
	r.db.downloads = append(r.db.downloads, model.DownloadEvent{
		ID:           r.db.id(),
		ArtifactID:   artifactID,
		IPAddress:    ip,
		DownloadedAt: r.db.now(),
	})
	return nil
}

func (r *memDownloads) Recent(_ context.Context, limit int) ([]model.RecentDownload, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	result := make([]model.RecentDownload, 0, limit)
	for i := len(r.db.downloads) - 1; i >= 0 && len(result) < limit; i-- {
		d := r.db.downloads[i]
		rd := model.RecentDownload{DownloadEvent: d}
		if a, ok := r.db.artifacts[d.ArtifactID]; ok {
			rd.Filename = a.Filename
		}
		result = append(result, rd)
	}
	return result, nil
}

func (r *memDownloads) Buckets(_ context.Context, since time.Time) ([]model.DownloadBucket, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := map[time.Time]int64{}
	for _, d := range r.db.downloads {
		if d.DownloadedAt.Before(since) {
			continue
		}
		counts[d.DownloadedAt.UTC().Truncate(15*time.Minute)]++
	}
	result := make([]model.DownloadBucket, 0, len(counts))
	for start, n := range counts {
		result = append(result, model.DownloadBucket{Start: start, Count: n})
	}
	slices.SortFunc(result, func(a, b model.DownloadBucket) int { return a.Start.Compare(b.Start) })
	return result, nil
}
