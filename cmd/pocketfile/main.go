// Точка входа pocketfile — реестр APK-артефактов.
//
// Команды:
//
//	pocketfile [serve]  — HTTP API (по умолчанию)
//	pocketfile seed     — создать администратора и пример проекта
//
// serve загружает конфигурацию, применяет миграции, подключается к
// PostgreSQL (и Redis, если задан), собирает сервисный слой и запускает
// HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/hoangtu0812/pocketfile-lite/internal/api/handlers"
	"github.com/hoangtu0812/pocketfile-lite/internal/auth/blacklist"
	"github.com/hoangtu0812/pocketfile-lite/internal/auth/password"
	"github.com/hoangtu0812/pocketfile-lite/internal/auth/token"
	"github.com/hoangtu0812/pocketfile-lite/internal/config"
	"github.com/hoangtu0812/pocketfile-lite/internal/database"
	"github.com/hoangtu0812/pocketfile-lite/internal/repository"
	"github.com/hoangtu0812/pocketfile-lite/internal/server"
	"github.com/hoangtu0812/pocketfile-lite/internal/service"
	"github.com/hoangtu0812/pocketfile-lite/internal/storage/filestore"
)

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)

	switch command {
	case "serve":
		err = serve(cfg, logger)
	case "seed":
		err = seed(cfg, logger)
	default:
		err = fmt.Errorf("неизвестная команда %q (допустимо: serve, seed)", command)
	}
	if err != nil {
		logger.Error("Завершение с ошибкой",
			slog.String("command", command),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
}

// components — общие зависимости команд serve и seed.
type components struct {
	pool   *pgxpool.Pool
	store  *filestore.FileStore
	tokens *token.Manager
	hasher *password.Hasher

	users     repository.UserRepository
	grants    repository.GrantRepository
	projects  repository.ProjectRepository
	versions  repository.VersionRepository
	artifacts repository.ArtifactRepository
	downloads repository.DownloadRepository
}

// setup применяет миграции, подключается к PostgreSQL и создаёт репозитории.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return nil, fmt.Errorf("миграции БД: %w", err)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// 5. Файловое хранилище
	store, err := filestore.New(cfg.StoragePath, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("файловое хранилище: %w", err)
	}

	// 6. Токены
	tokens, err := token.New(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("настройка токенов: %w", err)
	}

	// 7. Repositories
	return &components{
		pool:      pool,
		store:     store,
		tokens:    tokens,
		hasher:    password.NewDefault(),
		users:     repository.NewUserRepository(pool),
		grants:    repository.NewGrantRepository(pool),
		projects:  repository.NewProjectRepository(pool),
		versions:  repository.NewVersionRepository(pool),
		artifacts: repository.NewArtifactRepository(pool),
		downloads: repository.NewDownloadRepository(pool),
	}, nil
}

// serve запускает HTTP API.
func serve(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("pocketfile запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage", cfg.StoragePath),
		slog.Int64("max_upload_mb", cfg.MaxUploadSizeMB()),
	)

	ctx := context.Background()
	c, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.pool.Close()

	// 7.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(c.pool)
	defer pgDB.Close()

	// 8. Отзыв токенов в Redis (опционально)
	var revoker service.TokenRevoker
	readiness := []handlers.ReadinessChecker{
		database.NewReadinessChecker(c.pool),
		c.store,
	}
	if cfg.RedisAddr != "" {
		bl := blacklist.New(blacklist.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer bl.Close()

		if status, msg := bl.CheckReady(); status != "ok" {
			logger.Warn("Redis недоступен при старте, проверка токенов будет отклонять запросы до восстановления",
				slog.String("addr", cfg.RedisAddr),
				slog.String("message", msg),
			)
		}
		revoker = bl
		readiness = append(readiness, bl)
		logger.Info("Отзыв токенов включён", slog.String("redis", cfg.RedisAddr))
	} else {
		logger.Warn("PF_REDIS_ADDR не задан, logout не отзывает токены")
	}

	// 9. Services
	cache := service.NewArtifactCache(cfg.CacheSize, cfg.CacheTTL)
	auditor := service.NewDownloadAuditor(c.downloads, logger)

	authn := service.NewAuthenticator(c.tokens, c.users, c.grants, revoker, logger)
	authSvc := service.NewAuthService(c.users, c.hasher, c.tokens, revoker, logger)
	usersSvc := service.NewUserService(c.users, c.grants, c.hasher, logger)
	projectsSvc := service.NewProjectService(c.projects, c.versions, c.store, cache, logger)
	artifactsSvc := service.NewArtifactService(
		c.projects, c.versions, c.artifacts,
		c.store, auditor, cache,
		service.ArtifactConfig{
			MaxUploadSize:       cfg.MaxUploadSize,
			UniqueFilenames:     cfg.UniqueFilenames,
			UploadRequiresGrant: cfg.UploadRequiresGrant,
		},
		logger,
	)
	dashboardSvc := service.NewDashboardService(c.projects, c.versions, c.artifacts, auditor, logger)

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL)
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "pocketfile",
		Group:         cfg.DephealthGroup,
		PostgresURL:   cfg.DatabaseURL(),
		CheckInterval: cfg.DephealthCheckInterval,
		Entry:         true,
	}, pgDB, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
	} else {
		defer dephealthSvc.Stop()
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 11. HTTP-сервер
	apiHandler := handlers.NewAPIHandler(authSvc, usersSvc, projectsSvc, artifactsSvc, dashboardSvc, logger)
	healthHandler := handlers.NewHealthHandler(readiness...)

	srv := server.New(cfg, logger, apiHandler, healthHandler, authn)
	return srv.Run()
}

// seed создаёт начальные данные и завершается.
func seed(cfg *config.Config, logger *slog.Logger) error {
	if cfg.SeedAdminPassword == "" {
		return fmt.Errorf("PF_SEED_ADMIN_PASSWORD: обязательная переменная окружения не задана")
	}

	ctx := context.Background()
	c, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.pool.Close()

	authSvc := service.NewAuthService(c.users, c.hasher, c.tokens, nil, logger)
	projectsSvc := service.NewProjectService(c.projects, c.versions, c.store, nil, logger)

	res, err := service.NewSeeder(authSvc, projectsSvc, logger).Seed(ctx, service.SeedInput{
		AdminPassword:     cfg.SeedAdminPassword,
		DeveloperPassword: cfg.SeedDeveloperPassword,
	})
	if err != nil {
		return err
	}

	logger.Info("Начальное наполнение завершено",
		slog.Bool("admin_created", res.AdminCreated),
		slog.Bool("developer_created", res.DeveloperCreated),
		slog.Bool("project_created", res.ProjectCreated),
	)
	return nil
}
