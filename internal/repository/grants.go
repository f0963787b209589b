package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GrantRepository — гранты доступа пользователей к проектам
// (таблица user_project_access).
type GrantRepository interface {
	// ListProjectIDs возвращает ID проектов, доступных пользователю.
	ListProjectIDs(ctx context.Context, userID int64) ([]int64, error)
	// Replace заменяет набор грантов пользователя.
	// Несуществующие ID проектов пропускаются.
	Replace(ctx context.Context, userID int64, projectIDs []int64) error
}

// grantRepo — реализация GrantRepository.
type grantRepo struct {
	db DBTX
}

// NewGrantRepository создаёт репозиторий грантов.
func NewGrantRepository(db DBTX) GrantRepository {
	return &grantRepo{db: db}
}

func (r *grantRepo) ListProjectIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT project_id FROM user_project_access WHERE user_id = $1 ORDER BY project_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения грантов: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования грантов: %w", err)
	}
	return ids, nil
}

func (r *grantRepo) Replace(ctx context.Context, userID int64, projectIDs []int64) error {
	return inTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_project_access WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("ошибка удаления грантов: %w", err)
		}
		if len(projectIDs) == 0 {
			return nil
		}

		query := `
			INSERT INTO user_project_access (user_id, project_id)
			SELECT $1, id FROM projects WHERE id = ANY($2)
			ON CONFLICT DO NOTHING`
		if _, err := tx.Exec(ctx, query, userID, projectIDs); err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: пользователь или проект удалён", ErrForeignKey)
			}
			return fmt.Errorf("ошибка назначения грантов: %w", err)
		}
		return nil
	})
}
