package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
)

// ProjectRepository — интерфейс CRUD для таблицы projects.
type ProjectRepository interface {
	// Create создаёт проект, заполняет ID и CreatedAt.
	Create(ctx context.Context, p *model.Project) error
	// GetByID возвращает проект по ID (с количеством версий).
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	// List возвращает проекты, упорядоченные по имени.
	List(ctx context.Context, filter ProjectFilter) ([]*model.Project, error)
	// Update обновляет имя и описание.
	Update(ctx context.Context, p *model.Project) error
	// Delete удаляет проект со всеми версиями, файлами, событиями
	// и грантами. Возвращает пути файлов, которые нужно удалить с диска.
	Delete(ctx context.Context, id int64) ([]string, error)
	// Count возвращает количество проектов.
	Count(ctx context.Context) (int64, error)
}

// ProjectFilter — ограничение выборки проектов.
// All == true — все проекты, иначе только IDs (пустой список — ничего).
type ProjectFilter struct {
	All bool
	IDs []int64
}

// projectRepo — реализация ProjectRepository.
type projectRepo struct {
	db DBTX
}

// NewProjectRepository создаёт репозиторий проектов.
func NewProjectRepository(db DBTX) ProjectRepository {
	return &projectRepo{db: db}
}

// projectSelect — базовая выборка проектов с количеством версий.
func projectSelect() sq.SelectBuilder {
	return psql.Select(
		"p.id", "p.name", "p.description", "p.created_at",
		"(SELECT COUNT(*) FROM versions v WHERE v.project_id = p.id)",
	).From("projects p")
}

func scanProject(row pgx.Row) (*model.Project, error) {
	p := &model.Project{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.VersionCount)
	return p, err
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	query := `
		INSERT INTO projects (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, p.Name, p.Description).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: проект с именем %q уже существует", ErrConflict, p.Name)
		}
		return fmt.Errorf("ошибка создания проекта: %w", err)
	}
	return nil
}

func (r *projectRepo) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	query, args, err := projectSelect().Where(sq.Eq{"p.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	p, err := scanProject(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения проекта: %w", err)
	}
	return p, nil
}

func (r *projectRepo) List(ctx context.Context, filter ProjectFilter) ([]*model.Project, error) {
	b := projectSelect().OrderBy("p.name")
	if !filter.All {
		// sq.Eq с пустым срезом даёт (1=0)
		b = b.Where(sq.Eq{"p.id": filter.IDs})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка проектов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования проекта: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *projectRepo) Update(ctx context.Context, p *model.Project) error {
	query := `
		UPDATE projects SET name = $2, description = $3
		WHERE id = $1
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, p.ID, p.Name, p.Description).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: проект с именем %q уже существует", ErrConflict, p.Name)
		}
		return fmt.Errorf("ошибка обновления проекта: %w", err)
	}
	return nil
}

func (r *projectRepo) Delete(ctx context.Context, id int64) ([]string, error) {
	var paths []string
	err := inTx(ctx, r.db, func(tx DBTX) error {
		// Блокируем проект, его версии и файлы: параллельная вставка
		// файла или события скачивания дождётся коммита и получит
		// нарушение внешнего ключа.
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("ошибка блокировки проекта: %w", err)
		}
		if _, err := tx.Exec(ctx, `SELECT id FROM versions WHERE project_id = $1 FOR UPDATE`, id); err != nil {
			return fmt.Errorf("ошибка блокировки версий: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT f.file_path FROM apk_files f
			JOIN versions v ON v.id = f.version_id
			WHERE v.project_id = $1
			FOR UPDATE OF f`, id)
		if err != nil {
			return fmt.Errorf("ошибка получения файлов проекта: %w", err)
		}
		if paths, err = collectPaths(rows); err != nil {
			return fmt.Errorf("ошибка сканирования файлов проекта: %w", err)
		}

		steps := []struct {
			query string
			what  string
		}{
			{`DELETE FROM file_download_logs WHERE file_id IN (
				SELECT f.id FROM apk_files f JOIN versions v ON v.id = f.version_id
				WHERE v.project_id = $1)`, "событий скачивания"},
			{`DELETE FROM apk_files WHERE version_id IN (
				SELECT id FROM versions WHERE project_id = $1)`, "файлов"},
			{`DELETE FROM versions WHERE project_id = $1`, "версий"},
			{`DELETE FROM user_project_access WHERE project_id = $1`, "грантов"},
			{`DELETE FROM projects WHERE id = $1`, "проекта"},
		}
		for _, s := range steps {
			if _, err := tx.Exec(ctx, s.query, id); err != nil {
				return fmt.Errorf("ошибка удаления %s: %w", s.what, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *projectRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта проектов: %w", err)
	}
	return n, nil
}
