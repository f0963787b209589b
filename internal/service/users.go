// users.go — управление пользователями и грантами (только ADMIN).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hoangtu0812/pocketfile-lite/internal/auth/password"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/repository"
)

// UserService — сервис управления пользователями.
type UserService struct {
	users  repository.UserRepository
	grants repository.GrantRepository
	hasher *password.Hasher
	logger *slog.Logger
}

// NewUserService создаёт сервис управления пользователями.
func NewUserService(
	users repository.UserRepository,
	grants repository.GrantRepository,
	hasher *password.Hasher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:  users,
		grants: grants,
		hasher: hasher,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// List возвращает всех пользователей.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка пользователей: %w", err)
	}
	return users, nil
}

// Delete удаляет пользователя. Удалить себя или последнего ADMIN нельзя.
// Загруженные пользователем файлы остаются, uploaded_by обнуляется.
func (s *UserService) Delete(ctx context.Context, actor *model.Principal, id int64) error {
	if actor != nil && actor.UserID == id {
		return ErrSelfDelete
	}

	if err := s.users.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%w: пользователь %d", ErrNotFound, id)
		case errors.Is(err, repository.ErrLastAdmin):
			return ErrLastAdmin
		}
		return fmt.Errorf("удаление пользователя: %w", err)
	}

	s.logger.Info("Пользователь удалён", slog.Int64("user_id", id))
	return nil
}

// ChangePassword устанавливает новый пароль.
func (s *UserService) ChangePassword(ctx context.Context, id int64, plain string) error {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return fmt.Errorf("хэширование пароля: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, id, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: пользователь %d", ErrNotFound, id)
		}
		return fmt.Errorf("обновление пароля: %w", err)
	}

	s.logger.Info("Пароль пользователя изменён", slog.Int64("user_id", id))
	return nil
}

// Grants возвращает ID проектов, доступных пользователю.
func (s *UserService) Grants(ctx context.Context, id int64) ([]int64, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	ids, err := s.grants.ListProjectIDs(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("получение грантов: %w", err)
	}
	return ids, nil
}

// SetGrants заменяет гранты пользователя. Несуществующие проекты
// пропускаются. Возвращает итоговый список.
func (s *UserService) SetGrants(ctx context.Context, id int64, projectIDs []int64) ([]int64, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	ids := slices.Clone(projectIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if err := s.grants.Replace(ctx, id, ids); err != nil {
		if errors.Is(err, repository.ErrForeignKey) {
			return nil, fmt.Errorf("%w: пользователь %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("обновление грантов: %w", err)
	}

	s.logger.Info("Гранты пользователя обновлены",
		slog.Int64("user_id", id),
		slog.Int("requested", len(ids)),
	)
	return s.Grants(ctx, id)
}
