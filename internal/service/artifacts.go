// artifacts.go — загрузка, список, скачивание и удаление APK-файлов.
//
// Загрузка: проверка версии и гранта → вычисление пути → потоковая
// запись с лимитом → регистрация в каталоге. Если версия удалена во
// время записи, файл удаляется и возвращается ErrUploadConflict.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/repository"
	"github.com/hoangtu0812/pocketfile-lite/internal/storage/filestore"
)

// Prometheus-метрики загрузок и скачиваний.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pf_uploads_total",
		Help: "Общее количество загрузок (по результату).",
	}, []string{"result"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pf_upload_bytes_total",
		Help: "Общее количество байт, записанных при загрузках.",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pf_downloads_total",
		Help: "Общее количество скачиваний (по результату).",
	}, []string{"result"})
)

// ArtifactConfig — параметры загрузки.
type ArtifactConfig struct {
	// MaxUploadSize — лимит размера файла в байтах
	MaxUploadSize int64
	// UniqueFilenames — добавлять случайный суффикс к имени файла
	UniqueFilenames bool
	// UploadRequiresGrant — проверять грант на проект при загрузке
	UploadRequiresGrant bool
}

// ArtifactDownload — открытый файл для отдачи клиенту.
// Вызывающий код обязан закрыть Content.
type ArtifactDownload struct {
	Content  io.ReadCloser
	Filename string
	Size     int64
}

// ArtifactService — сервис APK-файлов.
type ArtifactService struct {
	projects  repository.ProjectRepository
	versions  repository.VersionRepository
	artifacts repository.ArtifactRepository
	store     *filestore.FileStore
	auditor   *DownloadAuditor
	cache     *ArtifactCache
	cfg       ArtifactConfig
	newToken  func() string
	logger    *slog.Logger
}

// NewArtifactService создаёт сервис файлов. cache может быть nil.
func NewArtifactService(
	projects repository.ProjectRepository,
	versions repository.VersionRepository,
	artifacts repository.ArtifactRepository,
	store *filestore.FileStore,
	auditor *DownloadAuditor,
	cache *ArtifactCache,
	cfg ArtifactConfig,
	logger *slog.Logger,
) *ArtifactService {
	return &ArtifactService{
		projects:  projects,
		versions:  versions,
		artifacts: artifacts,
		store:     store,
		auditor:   auditor,
		cache:     cache,
		cfg:       cfg,
		newToken:  func() string { return uuid.NewString()[:8] },
		logger:    logger.With(slog.String("component", "artifact_service")),
	}
}

// MaxUploadSize возвращает лимит размера загрузки.
func (s *ArtifactService) MaxUploadSize() int64 { return s.cfg.MaxUploadSize }

// Upload сохраняет файл в версию. Размер в каталоге — фактически
// записанное количество байт.
func (s *ArtifactService) Upload(
	ctx context.Context,
	p *model.Principal,
	versionID int64,
	rawFilename string,
	body io.Reader,
) (*model.Artifact, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}

	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		uploadsTotal.WithLabelValues("not_found").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: версия %d", ErrNotFound, versionID)
		}
		return nil, fmt.Errorf("получение версии: %w", err)
	}

	if s.cfg.UploadRequiresGrant {
		if _, err := RequireProjectAccess(p, version.ProjectID); err != nil {
			uploadsTotal.WithLabelValues("forbidden").Inc()
			return nil, err
		}
	}

	project, err := s.projects.GetByID(ctx, version.ProjectID)
	if err != nil {
		uploadsTotal.WithLabelValues("not_found").Inc()
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: проект %d", ErrNotFound, version.ProjectID)
		}
		return nil, fmt.Errorf("получение проекта: %w", err)
	}

	path, err := s.store.DerivePath(project.Name, version.Label, rawFilename)
	if err != nil {
		uploadsTotal.WithLabelValues("invalid_type").Inc()
		return nil, err
	}

	// Отображаемое имя — очищенное имя без суффикса уникальности
	displayName := filepath.Base(path)
	if s.cfg.UniqueFilenames {
		path = filestore.WithUniqueSuffix(path, s.newToken())
	} else {
		exists, err := s.store.Exists(path)
		if err != nil {
			uploadsTotal.WithLabelValues("storage_error").Inc()
			return nil, err
		}
		if exists {
			uploadsTotal.WithLabelValues("conflict").Inc()
			return nil, fmt.Errorf("%w: файл %q уже есть в версии", ErrConflict, displayName)
		}
	}

	written, err := s.store.Save(ctx, body, path, s.cfg.MaxUploadSize)
	if err != nil {
		uploadsTotal.WithLabelValues(uploadResult(err)).Inc()
		return nil, err
	}

	uploaderID := p.UserID
	artifact := &model.Artifact{
		VersionID:    version.ID,
		Filename:     displayName,
		Size:         written,
		StoragePath:  path,
		UploadedBy:   &uploaderID,
		UploaderName: &p.Username,
	}

	if err := s.artifacts.Create(ctx, artifact); err != nil {
		switch {
		case errors.Is(err, repository.ErrForeignKey):
			// Версию удалили, пока шла запись
			s.removeFile(path)
			uploadsTotal.WithLabelValues("upload_conflict").Inc()
			return nil, ErrUploadConflict
		case errors.Is(err, repository.ErrConflict):
			// Параллельная загрузка с тем же именем уже зарегистрирована,
			// байты на диске принадлежат последнему писателю
			uploadsTotal.WithLabelValues("conflict").Inc()
			return nil, fmt.Errorf("%w: файл %q уже есть в версии", ErrConflict, artifact.Filename)
		}
		s.removeFile(path)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("регистрация файла: %w", err)
	}

	uploadsTotal.WithLabelValues("success").Inc()
	uploadBytesTotal.Add(float64(written))

	s.logger.Info("Файл загружен",
		slog.Int64("file_id", artifact.ID),
		slog.Int64("version_id", version.ID),
		slog.String("path", path),
		slog.Int64("size", written),
		slog.Int64("user_id", p.UserID),
	)
	return artifact, nil
}

// uploadResult — лейбл метрики для ошибки записи.
func uploadResult(err error) string {
	var tooLarge *PayloadTooLargeError
	switch {
	case errors.As(err, &tooLarge):
		return "too_large"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "aborted"
	}
	return "storage_error"
}

// List возвращает файлы версии, новые первыми.
func (s *ArtifactService) List(ctx context.Context, p *model.Principal, versionID int64) ([]*model.Artifact, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}

	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: версия %d", ErrNotFound, versionID)
		}
		return nil, fmt.Errorf("получение версии: %w", err)
	}

	if _, err := RequireProjectAccess(p, version.ProjectID); err != nil {
		return nil, err
	}

	artifacts, err := s.artifacts.ListByVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("получение списка файлов: %w", err)
	}
	return artifacts, nil
}

// Download открывает файл и записывает событие скачивания.
// Отсутствующий на диске файл — ErrNotFound.
func (s *ArtifactService) Download(ctx context.Context, p *model.Principal, id int64, address string) (*ArtifactDownload, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}

	loc, err := s.location(ctx, id)
	if err != nil {
		downloadsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	if _, err := RequireProjectAccess(p, loc.ProjectID); err != nil {
		downloadsTotal.WithLabelValues("forbidden").Inc()
		return nil, err
	}

	f, err := s.store.Open(loc.Artifact.StoragePath)
	if err != nil {
		if errors.Is(err, filestore.ErrFileNotFound) {
			s.logger.Warn("Файл есть в каталоге, но отсутствует на диске",
				slog.Int64("file_id", id),
				slog.String("path", loc.Artifact.StoragePath),
			)
			s.cache.Delete(id)
			downloadsTotal.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%w: файл %d", ErrNotFound, id)
		}
		downloadsTotal.WithLabelValues("storage_error").Inc()
		return nil, err
	}

	size := loc.Artifact.Size
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	s.auditor.Record(ctx, id, address)
	downloadsTotal.WithLabelValues("success").Inc()

	return &ArtifactDownload{
		Content:  f,
		Filename: loc.Artifact.Filename,
		Size:     size,
	}, nil
}

// location возвращает запись файла из кэша или БД.
func (s *ArtifactService) location(ctx context.Context, id int64) (*model.ArtifactLocation, error) {
	if loc, ok := s.cache.Get(id); ok {
		return loc, nil
	}

	loc, err := s.artifacts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}

	s.cache.Set(id, loc)
	return loc, nil
}

// Delete удаляет запись каталога, затем файл на диске. Ошибка удаления
// файла не откатывает удаление записи.
func (s *ArtifactService) Delete(ctx context.Context, id int64) error {
	path, err := s.artifacts.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %d", ErrNotFound, id)
		}
		return fmt.Errorf("удаление файла: %w", err)
	}

	s.cache.Delete(id)
	s.removeFile(path)

	s.logger.Info("Файл удалён",
		slog.Int64("file_id", id),
		slog.String("path", path),
	)
	return nil
}

// removeFile удаляет файл с диска, ошибка только логируется.
func (s *ArtifactService) removeFile(path string) {
	if err := s.store.Delete(path); err != nil {
		s.logger.Error("Не удалось удалить файл с диска",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
