// projects.go — проекты и версии.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
	"github.com/hoangtu0812/pocketfile-lite/internal/repository"
	"github.com/hoangtu0812/pocketfile-lite/internal/storage/filestore"
)

// UpdateProjectInput — изменяемые поля проекта (nil — без изменений).
type UpdateProjectInput struct {
	Name        *string
	Description *string
}

// ProjectService — сервис проектов и версий.
type ProjectService struct {
	projects repository.ProjectRepository
	versions repository.VersionRepository
	store    *filestore.FileStore
	cache    *ArtifactCache
	logger   *slog.Logger
}

// NewProjectService создаёт сервис проектов. cache может быть nil.
func NewProjectService(
	projects repository.ProjectRepository,
	versions repository.VersionRepository,
	store *filestore.FileStore,
	cache *ArtifactCache,
	logger *slog.Logger,
) *ProjectService {
	return &ProjectService{
		projects: projects,
		versions: versions,
		store:    store,
		cache:    cache,
		logger:   logger.With(slog.String("component", "project_service")),
	}
}

// List возвращает проекты, видимые principal: ADMIN — все, USER — по грантам.
func (s *ProjectService) List(ctx context.Context, p *model.Principal) ([]*model.Project, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	ids, all := rbac.VisibleProjects(p.Role, p.ProjectIDs)
	projects, err := s.projects.List(ctx, repository.ProjectFilter{All: all, IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("получение списка проектов: %w", err)
	}
	return projects, nil
}

// Get возвращает проект при наличии доступа.
func (s *ProjectService) Get(ctx context.Context, p *model.Principal, id int64) (*model.Project, error) {
	if _, err := RequireProjectAccess(p, id); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

func (s *ProjectService) get(ctx context.Context, id int64) (*model.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: проект %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение проекта: %w", err)
	}
	return project, nil
}

// Create создаёт проект.
func (s *ProjectService) Create(ctx context.Context, name string, description *string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: имя проекта не может быть пустым", ErrValidation)
	}

	project := &model.Project{Name: name, Description: description}
	if err := s.projects.Create(ctx, project); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: проект %q уже существует", ErrConflict, name)
		}
		return nil, fmt.Errorf("создание проекта: %w", err)
	}

	s.logger.Info("Проект создан",
		slog.Int64("project_id", project.ID),
		slog.String("name", project.Name),
	)
	return project, nil
}

// Update изменяет имя и/или описание проекта. Уже загруженные файлы
// остаются по старому пути: путь вычисляется только при загрузке.
func (s *ProjectService) Update(ctx context.Context, id int64, in UpdateProjectInput) (*model.Project, error) {
	project, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: имя проекта не может быть пустым", ErrValidation)
		}
		project.Name = name
	}
	if in.Description != nil {
		project.Description = in.Description
	}

	if err := s.projects.Update(ctx, project); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: проект %d", ErrNotFound, id)
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%w: проект %q уже существует", ErrConflict, project.Name)
		}
		return nil, fmt.Errorf("обновление проекта: %w", err)
	}

	s.logger.Info("Проект обновлён", slog.Int64("project_id", id))
	return project, nil
}

// Delete удаляет проект со всеми версиями и файлами.
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	paths, err := s.projects.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: проект %d", ErrNotFound, id)
		}
		return fmt.Errorf("удаление проекта: %w", err)
	}

	s.cache.Purge()
	removed := s.removeFiles(paths)

	s.logger.Info("Проект удалён",
		slog.Int64("project_id", id),
		slog.Int("files", len(paths)),
		slog.Int("files_removed", removed),
	)
	return nil
}

// ListVersions возвращает версии проекта, новые первыми.
func (s *ProjectService) ListVersions(ctx context.Context, p *model.Principal, projectID int64) ([]*model.Version, error) {
	if _, err := RequireProjectAccess(p, projectID); err != nil {
		return nil, err
	}
	if _, err := s.get(ctx, projectID); err != nil {
		return nil, err
	}

	versions, err := s.versions.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("получение списка версий: %w", err)
	}
	return versions, nil
}

// CreateVersion создаёт версию в проекте.
func (s *ProjectService) CreateVersion(ctx context.Context, projectID int64, label string) (*model.Version, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: метка версии не может быть пустой", ErrValidation)
	}

	v := &model.Version{ProjectID: projectID, Label: label}
	if err := s.versions.Create(ctx, v); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: проект %d", ErrNotFound, projectID)
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%w: версия %q уже существует в проекте", ErrConflict, label)
		}
		return nil, fmt.Errorf("создание версии: %w", err)
	}

	s.logger.Info("Версия создана",
		slog.Int64("project_id", projectID),
		slog.Int64("version_id", v.ID),
		slog.String("label", v.Label),
	)
	return v, nil
}

// DeleteVersion удаляет версию и её файлы.
func (s *ProjectService) DeleteVersion(ctx context.Context, id int64) error {
	paths, err := s.versions.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: версия %d", ErrNotFound, id)
		}
		return fmt.Errorf("удаление версии: %w", err)
	}

	s.cache.Purge()
	removed := s.removeFiles(paths)

	s.logger.Info("Версия удалена",
		slog.Int64("version_id", id),
		slog.Int("files", len(paths)),
		slog.Int("files_removed", removed),
	)
	return nil
}

// removeFiles удаляет файлы после коммита каскадного удаления.
// Ошибки только логируются: каталог уже не ссылается на эти файлы.
func (s *ProjectService) removeFiles(paths []string) int {
	removed := 0
	for _, path := range paths {
		if err := s.store.Delete(path); err != nil {
			s.logger.Error("Не удалось удалить файл с диска",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}
	return removed
}
