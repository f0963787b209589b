package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
)

// VersionRepository — интерфейс CRUD для таблицы versions.
type VersionRepository interface {
	// Create создаёт версию, заполняет ID и CreatedAt.
	// Несуществующий проект — ErrNotFound, дубликат метки — ErrConflict.
	Create(ctx context.Context, v *model.Version) error
	// GetByID возвращает версию по ID.
	GetByID(ctx context.Context, id int64) (*model.Version, error)
	// ListByProject возвращает версии проекта (с количеством файлов),
	// новые первыми.
	ListByProject(ctx context.Context, projectID int64) ([]*model.Version, error)
	// Delete удаляет версию с файлами и событиями скачивания.
	// Возвращает пути файлов, которые нужно удалить с диска.
	Delete(ctx context.Context, id int64) ([]string, error)
	// Count возвращает количество версий.
	Count(ctx context.Context) (int64, error)
}

// versionRepo — реализация VersionRepository.
type versionRepo struct {
	db DBTX
}

// NewVersionRepository создаёт репозиторий версий.
func NewVersionRepository(db DBTX) VersionRepository {
	return &versionRepo{db: db}
}

const versionColumns = `
	v.id, v.project_id, v.version_string, v.created_at,
	(SELECT COUNT(*) FROM apk_files f WHERE f.version_id = v.id)`

func scanVersion(row pgx.Row) (*model.Version, error) {
	v := &model.Version{}
	err := row.Scan(&v.ID, &v.ProjectID, &v.Label, &v.CreatedAt, &v.FileCount)
	return v, err
}

func (r *versionRepo) Create(ctx context.Context, v *model.Version) error {
	query := `
		INSERT INTO versions (project_id, version_string)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, v.ProjectID, v.Label).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: версия %q уже существует в проекте", ErrConflict, v.Label)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: проект %d", ErrNotFound, v.ProjectID)
		}
		return fmt.Errorf("ошибка создания версии: %w", err)
	}
	return nil
}

func (r *versionRepo) GetByID(ctx context.Context, id int64) (*model.Version, error) {
	v, err := scanVersion(r.db.QueryRow(ctx, `SELECT `+versionColumns+` FROM versions v WHERE v.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения версии: %w", err)
	}
	return v, nil
}

func (r *versionRepo) ListByProject(ctx context.Context, projectID int64) ([]*model.Version, error) {
	query := `SELECT ` + versionColumns + `
		FROM versions v
		WHERE v.project_id = $1
		ORDER BY v.created_at DESC, v.id DESC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка версий: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования версии: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (r *versionRepo) Delete(ctx context.Context, id int64) ([]string, error) {
	var paths []string
	err := inTx(ctx, r.db, func(tx DBTX) error {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM versions WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("ошибка блокировки версии: %w", err)
		}

		// Строки файлов блокируются до удаления журнала скачиваний:
		// параллельная запись события ждёт коммита и получает нарушение
		// внешнего ключа у себя, а не у каскада.
		rows, err := tx.Query(ctx, `SELECT file_path FROM apk_files WHERE version_id = $1 FOR UPDATE`, id)
		if err != nil {
			return fmt.Errorf("ошибка получения файлов версии: %w", err)
		}
		if paths, err = collectPaths(rows); err != nil {
			return fmt.Errorf("ошибка сканирования файлов версии: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			DELETE FROM file_download_logs
			WHERE file_id IN (SELECT id FROM apk_files WHERE version_id = $1)`, id); err != nil {
			return fmt.Errorf("ошибка удаления событий скачивания: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM apk_files WHERE version_id = $1`, id); err != nil {
			return fmt.Errorf("ошибка удаления файлов: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM versions WHERE id = $1`, id); err != nil {
			return fmt.Errorf("ошибка удаления версии: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *versionRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM versions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта версий: %w", err)
	}
	return n, nil
}
