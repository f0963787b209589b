package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
)

// DownloadRepository — журнал скачиваний (таблица file_download_logs).
type DownloadRepository interface {
	// Record добавляет событие скачивания.
	Record(ctx context.Context, artifactID int64, ipAddress string) error
	// Recent возвращает последние limit событий с именем файла, новые первыми.
	Recent(ctx context.Context, limit int) ([]model.RecentDownload, error)
	// Buckets возвращает количество скачиваний по 15-минутным интервалам
	// начиная с since, в хронологическом порядке.
	Buckets(ctx context.Context, since time.Time) ([]model.DownloadBucket, error)
}

// downloadRepo — реализация DownloadRepository.
type downloadRepo struct {
	db DBTX
}

// NewDownloadRepository создаёт репозиторий журнала скачиваний.
func NewDownloadRepository(db DBTX) DownloadRepository {
	return &downloadRepo{db: db}
}

func (r *downloadRepo) Record(ctx context.Context, artifactID int64, ipAddress string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO file_download_logs (file_id, ip_address) VALUES ($1, $2)`,
		artifactID, ipAddress)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: файл %d удалён", ErrForeignKey, artifactID)
		}
		return fmt.Errorf("ошибка записи события скачивания: %w", err)
	}
	return nil
}

func (r *downloadRepo) Recent(ctx context.Context, limit int) ([]model.RecentDownload, error) {
	query := `
		SELECT d.id, d.file_id, d.ip_address, d.downloaded_at, f.filename
		FROM file_download_logs d
		JOIN apk_files f ON f.id = d.file_id
		ORDER BY d.downloaded_at DESC, d.id DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения последних скачиваний: %w", err)
	}
	defer rows.Close()

	result := make([]model.RecentDownload, 0, limit)
	for rows.Next() {
		var d model.RecentDownload
		if err := rows.Scan(&d.ID, &d.ArtifactID, &d.IPAddress, &d.DownloadedAt, &d.Filename); err != nil {
			return nil, fmt.Errorf("ошибка сканирования события: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// Buckets группирует события по 15 минутам в UTC: любое смещение часового
// пояса кратно 15 минутам, поэтому интервал целиком попадает в один
// локальный календарный день.
func (r *downloadRepo) Buckets(ctx context.Context, since time.Time) ([]model.DownloadBucket, error) {
	query := `
		SELECT date_bin('15 minutes', downloaded_at, TIMESTAMPTZ '2000-01-01 00:00:00+00') AS bucket,
			COUNT(*)
		FROM file_download_logs
		WHERE downloaded_at >= $1
		GROUP BY bucket
		ORDER BY bucket`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка агрегации скачиваний: %w", err)
	}
	defer rows.Close()

	var result []model.DownloadBucket
	for rows.Next() {
		var b model.DownloadBucket
		if err := rows.Scan(&b.Start, &b.Count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования интервала: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}
