// auditor.go — журнал скачиваний: запись событий и агрегаты для dashboard.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/repository"
)

const (
	// recordTimeout — таймаут записи события, не зависящий от отмены запроса.
	recordTimeout = 2 * time.Second
	// maxRecentLimit — верхняя граница выборки последних событий.
	maxRecentLimit = 100
)

// DownloadAuditor записывает события скачивания и отдаёт агрегаты.
// Ошибки записи только логируются: скачивание от них не зависит.
type DownloadAuditor struct {
	downloads repository.DownloadRepository
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// NewDownloadAuditor создаёт аудитор. Дни считаются в локальном
// часовом поясе сервера.
func NewDownloadAuditor(downloads repository.DownloadRepository, logger *slog.Logger) *DownloadAuditor {
	return &DownloadAuditor{
		downloads: downloads,
		loc:       time.Local,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "download_auditor")),
	}
}

// Record добавляет событие скачивания. Ничего не возвращает.
func (a *DownloadAuditor) Record(ctx context.Context, artifactID int64, address string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := a.downloads.Record(ctx, artifactID, address); err != nil {
		a.logger.Warn("Не удалось записать событие скачивания",
			slog.Int64("file_id", artifactID),
			slog.String("ip_address", address),
			slog.String("error", err.Error()),
		)
	}
}

// Recent возвращает последние limit событий, новые первыми.
func (a *DownloadAuditor) Recent(ctx context.Context, limit int) ([]model.RecentDownload, error) {
	limit = max(1, min(limit, maxRecentLimit))
	events, err := a.downloads.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("получение последних скачиваний: %w", err)
	}
	return events, nil
}

// DailyCounts возвращает число скачиваний по календарным дням
// (локальное время сервера) за последние windowDays дней, включая
// сегодняшний. Дни без событий пропускаются, порядок хронологический.
func (a *DownloadAuditor) DailyCounts(ctx context.Context, windowDays int) ([]model.DailyCount, error) {
	if windowDays < 1 {
		windowDays = 1
	}
	now := a.now().In(a.loc)
	since := time.Date(now.Year(), now.Month(), now.Day()-(windowDays-1), 0, 0, 0, 0, a.loc)

	buckets, err := a.downloads.Buckets(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("агрегация скачиваний: %w", err)
	}

	result := make([]model.DailyCount, 0)
	for _, b := range buckets {
		day := b.Start.In(a.loc).Format(time.DateOnly)
		if n := len(result); n > 0 && result[n-1].Day == day {
			result[n-1].Count += b.Count
			continue
		}
		result = append(result, model.DailyCount{Day: day, Count: b.Count})
	}
	return result, nil
}

// ClientIP определяет адрес клиента: первый адрес из X-Forwarded-For,
// иначе адрес соединения без порта. Значение не проверяется.
func ClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
