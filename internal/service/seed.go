// seed.go — начальное наполнение: администратор, разработчик и пример проекта.
// Повторный запуск ничего не меняет.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
)

const (
	seedAdminUsername     = "admin"
	seedAdminEmail        = "admin@company.com"
	seedDeveloperUsername = "developer"
	seedDeveloperEmail    = "dev@company.com"
	seedProjectName       = "SampleApp"
	seedProjectDesc       = "Sample Android application"
	seedVersionLabel      = "1.0.0"
)

// SeedInput — пароли учётных записей. Пустой DeveloperPassword —
// разработчик не создаётся.
type SeedInput struct {
	AdminPassword     string
	DeveloperPassword string
}

// SeedResult — что было создано при запуске.
type SeedResult struct {
	AdminCreated     bool
	DeveloperCreated bool
	ProjectCreated   bool
}

// Seeder создаёт начальные данные через сервисный слой.
type Seeder struct {
	auth     *AuthService
	projects *ProjectService
	logger   *slog.Logger
}

// NewSeeder создаёт Seeder.
func NewSeeder(auth *AuthService, projects *ProjectService, logger *slog.Logger) *Seeder {
	return &Seeder{
		auth:     auth,
		projects: projects,
		logger:   logger.With(slog.String("component", "seeder")),
	}
}

// Seed создаёт отсутствующие записи. Версия примера создаётся
// только вместе с проектом.
func (s *Seeder) Seed(ctx context.Context, in SeedInput) (*SeedResult, error) {
	if in.AdminPassword == "" {
		return nil, fmt.Errorf("%w: пароль администратора не задан", ErrValidation)
	}

	res := &SeedResult{}
	var err error

	res.AdminCreated, err = s.ensureUser(ctx, RegisterInput{
		Username: seedAdminUsername,
		Email:    seedAdminEmail,
		Password: in.AdminPassword,
		Role:     rbac.RoleAdmin,
	})
	if err != nil {
		return nil, err
	}

	if in.DeveloperPassword != "" {
		res.DeveloperCreated, err = s.ensureUser(ctx, RegisterInput{
			Username: seedDeveloperUsername,
			Email:    seedDeveloperEmail,
			Password: in.DeveloperPassword,
			Role:     rbac.RoleUser,
		})
		if err != nil {
			return nil, err
		}
	}

	desc := seedProjectDesc
	project, err := s.projects.Create(ctx, seedProjectName, &desc)
	switch {
	case errors.Is(err, ErrConflict):
		s.logger.Info("Пример проекта уже существует, пропуск", slog.String("name", seedProjectName))
	case err != nil:
		return nil, fmt.Errorf("создание примера проекта: %w", err)
	default:
		res.ProjectCreated = true
		if _, err := s.projects.CreateVersion(ctx, project.ID, seedVersionLabel); err != nil {
			return nil, fmt.Errorf("создание примера версии: %w", err)
		}
	}

	return res, nil
}

// ensureUser создаёт пользователя, если его ещё нет.
func (s *Seeder) ensureUser(ctx context.Context, in RegisterInput) (bool, error) {
	_, err := s.auth.Register(ctx, in)
	if errors.Is(err, ErrConflict) {
		s.logger.Info("Пользователь уже существует, пропуск", slog.String("username", in.Username))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("создание пользователя %s: %w", in.Username, err)
	}
	return true, nil
}
