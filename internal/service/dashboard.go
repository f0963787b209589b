// dashboard.go — сводная статистика для главной страницы.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/repository"
)

const (
	// recentDownloadsLimit — количество последних скачиваний на dashboard.
	recentDownloadsLimit = 10
	// trendWindowDays — окно графика скачиваний.
	trendWindowDays = 30
)

// DashboardService — агрегаты по каталогу и журналу скачиваний.
type DashboardService struct {
	projects  repository.ProjectRepository
	versions  repository.VersionRepository
	artifacts repository.ArtifactRepository
	auditor   *DownloadAuditor
	logger    *slog.Logger
}

// NewDashboardService создаёт сервис dashboard.
func NewDashboardService(
	projects repository.ProjectRepository,
	versions repository.VersionRepository,
	artifacts repository.ArtifactRepository,
	auditor *DownloadAuditor,
	logger *slog.Logger,
) *DashboardService {
	return &DashboardService{
		projects:  projects,
		versions:  versions,
		artifacts: artifacts,
		auditor:   auditor,
		logger:    logger.With(slog.String("component", "dashboard_service")),
	}
}

// Stats собирает статистику.
func (s *DashboardService) Stats(ctx context.Context) (*model.DashboardStats, error) {
	var (
		stats model.DashboardStats
		err   error
	)

	if stats.TotalProjects, err = s.projects.Count(ctx); err != nil {
		return nil, fmt.Errorf("подсчёт проектов: %w", err)
	}
	if stats.TotalVersions, err = s.versions.Count(ctx); err != nil {
		return nil, fmt.Errorf("подсчёт версий: %w", err)
	}
	if stats.TotalFiles, err = s.artifacts.Count(ctx); err != nil {
		return nil, fmt.Errorf("подсчёт файлов: %w", err)
	}
	if stats.TotalBytes, err = s.artifacts.TotalBytes(ctx); err != nil {
		return nil, fmt.Errorf("подсчёт объёма: %w", err)
	}
	if stats.RecentDownloads, err = s.auditor.Recent(ctx, recentDownloadsLimit); err != nil {
		return nil, err
	}
	if stats.DownloadTrends, err = s.auditor.DailyCounts(ctx, trendWindowDays); err != nil {
		return nil, err
	}

	return &stats, nil
}
