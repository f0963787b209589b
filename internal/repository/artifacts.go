package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
)

// ArtifactRepository — каталог APK-файлов (таблица apk_files).
type ArtifactRepository interface {
	// Create регистрирует файл, заполняет ID и UploadedAt.
	// Версия удалена параллельно — ErrForeignKey, путь занят — ErrConflict.
	Create(ctx context.Context, a *model.Artifact) error
	// GetByID возвращает файл вместе с ID проекта.
	GetByID(ctx context.Context, id int64) (*model.ArtifactLocation, error)
	// ListByVersion возвращает файлы версии с именем загрузившего,
	// новые первыми.
	ListByVersion(ctx context.Context, versionID int64) ([]*model.Artifact, error)
	// Delete удаляет запись файла и его события скачивания.
	// Возвращает путь файла на диске.
	Delete(ctx context.Context, id int64) (string, error)
	// TotalBytes возвращает суммарный размер всех файлов (0, если файлов нет).
	TotalBytes(ctx context.Context) (int64, error)
	// Count возвращает количество файлов.
	Count(ctx context.Context) (int64, error)
}

// artifactRepo — реализация ArtifactRepository.
type artifactRepo struct {
	db DBTX
}

// NewArtifactRepository создаёт репозиторий каталога файлов.
func NewArtifactRepository(db DBTX) ArtifactRepository {
	return &artifactRepo{db: db}
}

// artifactSelect — базовая выборка файлов с именем загрузившего и ID проекта.
func artifactSelect() sq.SelectBuilder {
	return psql.Select(
		"f.id", "f.version_id", "f.filename", "f.file_size", "f.file_path",
		"f.uploaded_by", "u.username", "f.uploaded_at", "v.project_id",
	).
		From("apk_files f").
		Join("versions v ON v.id = f.version_id").
		LeftJoin("users u ON u.id = f.uploaded_by")
}

func scanArtifact(row pgx.Row) (*model.ArtifactLocation, error) {
	loc := &model.ArtifactLocation{}
	a := &loc.Artifact
	err := row.Scan(&a.ID, &a.VersionID, &a.Filename, &a.Size, &a.StoragePath,
		&a.UploadedBy, &a.UploaderName, &a.UploadedAt, &loc.ProjectID)
	return loc, err
}

func (r *artifactRepo) Create(ctx context.Context, a *model.Artifact) error {
	query := `
		INSERT INTO apk_files (version_id, filename, file_size, file_path, uploaded_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_at`

	err := r.db.QueryRow(ctx, query, a.VersionID, a.Filename, a.Size, a.StoragePath, a.UploadedBy).
		Scan(&a.ID, &a.UploadedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: версия %d удалена", ErrForeignKey, a.VersionID)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл %q уже зарегистрирован", ErrConflict, a.StoragePath)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	return nil
}

func (r *artifactRepo) GetByID(ctx context.Context, id int64) (*model.ArtifactLocation, error) {
	query, args, err := artifactSelect().Where(sq.Eq{"f.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	loc, err := scanArtifact(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return loc, nil
}

func (r *artifactRepo) ListByVersion(ctx context.Context, versionID int64) ([]*model.Artifact, error) {
	query, args, err := artifactSelect().
		Where(sq.Eq{"f.version_id": versionID}).
		OrderBy("f.uploaded_at DESC", "f.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Artifact, 0)
	for rows.Next() {
		loc, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, &loc.Artifact)
	}
	return result, rows.Err()
}

func (r *artifactRepo) Delete(ctx context.Context, id int64) (string, error) {
	var path string
	err := inTx(ctx, r.db, func(tx DBTX) error {
		err := tx.QueryRow(ctx, `SELECT file_path FROM apk_files WHERE id = $1 FOR UPDATE`, id).Scan(&path)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("ошибка блокировки файла: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM file_download_logs WHERE file_id = $1`, id); err != nil {
			return fmt.Errorf("ошибка удаления событий скачивания: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM apk_files WHERE id = $1`, id); err != nil {
			return fmt.Errorf("ошибка удаления файла: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (r *artifactRepo) TotalBytes(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(file_size), 0)::BIGINT FROM apk_files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта объёма: %w", err)
	}
	return n, nil
}

func (r *artifactRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM apk_files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return n, nil
}
