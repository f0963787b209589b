// Пакет server — HTTP-сервер pocketfile с graceful shutdown.
// Без TLS: TLS termination выполняет reverse proxy перед сервисом.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hoangtu0812/pocketfile-lite/internal/api/handlers"
	"github.com/hoangtu0812/pocketfile-lite/internal/api/middleware"
	"github.com/hoangtu0812/pocketfile-lite/internal/config"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
)

// Server — HTTP-сервер pocketfile.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	health *handlers.HealthHandler,
	authn middleware.Authenticator,
) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(cfg, logger, api, health, authn),
		ReadHeaderTimeout: 10 * time.Second,
		// ReadTimeout и WriteTimeout не заданы: APK в сотни мегабайт
		// на медленном канале передаются дольше любого разумного лимита.
		IdleTimeout: 120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты API.
// Публичные: /health/*, /metrics, POST /api/auth/login.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	health *handlers.HealthHandler,
	authn middleware.Authenticator,
) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health и metrics проверяются Kubernetes напрямую, без аутентификации
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", api.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authn))

			r.Get("/auth/me", api.Me)
			r.Post("/auth/logout", api.Logout)

			// Доступ к проекту проверяет сервисный слой по грантам
			r.Get("/projects", api.ListProjects)
			r.Get("/projects/{projectID}", api.GetProject)
			r.Get("/projects/{projectID}/versions", api.ListVersions)
			r.Post("/versions/{versionID}/upload", api.UploadFile)
			r.Get("/versions/{versionID}/files", api.ListFiles)
			r.Get("/files/{fileID}/download", api.DownloadFile)
			r.Get("/dashboard/stats", api.DashboardStats)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(rbac.RoleAdmin))

				r.Post("/auth/register", api.Register)

				r.Post("/projects", api.CreateProject)
				r.Put("/projects/{projectID}", api.UpdateProject)
				r.Delete("/projects/{projectID}", api.DeleteProject)
				r.Post("/projects/{projectID}/versions", api.CreateVersion)
				r.Delete("/versions/{versionID}", api.DeleteVersion)
				r.Delete("/files/{fileID}", api.DeleteFile)

				r.Get("/users", api.ListUsers)
				r.Delete("/users/{userID}", api.DeleteUser)
				r.Patch("/users/{userID}/password", api.ChangePassword)
				r.Get("/users/{userID}/projects", api.GetUserProjects)
				r.Put("/users/{userID}/projects", api.SetUserProjects)
			})
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
