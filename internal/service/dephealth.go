// dephealth.go — мониторинг PostgreSQL через topologymetrics.
// Метрики app_dependency_health и app_dependency_latency_seconds
// отдаются на /metrics.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа (pocketfile)
	ServiceID string
	// Group — PF_DEPHEALTH_GROUP
	Group string
	// PostgresURL — URL без учётных данных, идёт только в лейблы
	PostgresURL string
	// CheckInterval — PF_DEPHEALTH_CHECK_INTERVAL
	CheckInterval time.Duration
	// Entry — сервис принимает внешний трафик (лейбл isentry=yes)
	Entry bool
	// Registerer — по умолчанию глобальный registry Prometheus
	Registerer prometheus.Registerer
}

// DephealthService — периодические проверки зависимостей.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService регистрирует PostgreSQL как критичную зависимость.
// db — *sql.DB поверх pgxpool (stdlib.OpenDBFromPool), проверки идут
// через существующий пул.
func NewDephealthService(cfg DephealthConfig, db *sql.DB, logger *slog.Logger) (*DephealthService, error) {
	if db == nil {
		return nil, errors.New("dephealth: не задано подключение к PostgreSQL")
	}
	if cfg.CheckInterval <= 0 {
		return nil, errors.New("dephealth: интервал проверки должен быть > 0")
	}

	pgOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.PostgresURL),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if cfg.Entry {
		pgOpts = append(pgOpts, dephealth.WithLabel("isentry", "yes"))
	}

	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)), pgOpts...),
	}
	if cfg.Registerer != nil {
		opts = append(opts, dephealth.WithRegisterer(cfg.Registerer))
	}

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает проверки в фоне.
func (ds *DephealthService) Start(ctx context.Context) error {
	if err := ds.dh.Start(ctx); err != nil {
		return err
	}
	ds.logger.Info("Мониторинг зависимостей запущен")
	return nil
}

func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}
