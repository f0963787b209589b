// Пакет repository — слой доступа к данным PostgreSQL.
// Запросы — SQL через pgx, динамические выборки собираются squirrel.
// Каскадное удаление выполняется явно, в порядке
// события → файлы → версии → гранты → проект, в одной транзакции.
package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrForeignKey — связанная запись удалена (нарушение внешнего ключа).
	ErrForeignKey = errors.New("связанная запись не существует")
	// ErrLastAdmin — попытка удалить последнего администратора.
	ErrLastAdmin = errors.New("нельзя удалить последнего администратора")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner — DBTX, умеющий открывать транзакцию (pool) или savepoint (tx).
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// psql — построитель запросов squirrel с плейсхолдерами $1, $2, ...
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// inTx выполняет fn в транзакции, если db её поддерживает.
// Внутри уже открытой pgx.Tx создаётся savepoint.
func inTx(ctx context.Context, db DBTX, fn func(tx DBTX) error) error {
	b, ok := db.(beginner)
	if !ok {
		return fn(db)
	}
	return runInTx(ctx, b, func(tx pgx.Tx) error { return fn(tx) })
}

func runInTx(ctx context.Context, b beginner, fn func(tx pgx.Tx) error) error {
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505" // unique_violation
}

// isForeignKeyViolation проверяет нарушение внешнего ключа.
func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503" // foreign_key_violation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// collectPaths читает столбец file_path из результата запроса.
func collectPaths(rows pgx.Rows) ([]string, error) {
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
