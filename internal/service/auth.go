// auth.go — вход, регистрация и выход пользователей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hoangtu0812/pocketfile-lite/internal/auth/password"
	"github.com/hoangtu0812/pocketfile-lite/internal/auth/token"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
	"github.com/hoangtu0812/pocketfile-lite/internal/repository"
)

// LoginResult — выпущенный токен и данные пользователя.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// RegisterInput — данные нового пользователя.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	// Role — ADMIN или USER, пустая строка — USER
	Role string
}

// AuthService — сервис аутентификации.
type AuthService struct {
	users   repository.UserRepository
	hasher  *password.Hasher
	tokens  *token.Manager
	revoked TokenRevoker
	logger  *slog.Logger
}

// NewAuthService создаёт сервис аутентификации. revoked может быть nil.
func NewAuthService(
	users repository.UserRepository,
	hasher *password.Hasher,
	tokens *token.Manager,
	revoked TokenRevoker,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		revoked: revoked,
		logger:  logger.With(slog.String("component", "auth_service")),
	}
}

// Login проверяет пароль и выпускает токен.
func (s *AuthService) Login(ctx context.Context, username, plain string) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	if !s.hasher.Verify(plain, user.PasswordHash) {
		s.logger.Info("Неудачная попытка входа", slog.String("username", user.Username))
		return nil, ErrInvalidCredentials
	}

	raw, claims, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("выпуск токена: %w", err)
	}

	s.logger.Info("Пользователь вошёл в систему",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return &LoginResult{Token: raw, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

// Register создаёт пользователя. Имя приводится к нижнему регистру.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	role := in.Role
	if role == "" {
		role = rbac.RoleUser
	}
	if !rbac.IsValidRole(role) {
		return nil, fmt.Errorf("%w: некорректная роль %q (допустимо ADMIN, USER)", ErrValidation, role)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("хэширование пароля: %w", err)
	}

	user := &model.User{
		Username:     strings.ToLower(strings.TrimSpace(in.Username)),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: пользователь с таким именем или email уже существует", ErrConflict)
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("role", user.Role),
	)
	return user, nil
}

// Me возвращает текущего пользователя.
func (s *AuthService) Me(ctx context.Context, p *model.Principal) (*model.User, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return user, nil
}

// Logout отзывает токен текущего запроса. Без хранилища отзыва
// ничего не делает: токен остаётся валидным до истечения срока.
func (s *AuthService) Logout(ctx context.Context, p *model.Principal) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if s.revoked == nil || p.TokenID == "" {
		s.logger.Debug("Отзыв токенов выключен, logout без отзыва",
			slog.Int64("user_id", p.UserID),
		)
		return nil
	}

	if err := s.revoked.Revoke(ctx, p.TokenID, p.TokenExpiresAt); err != nil {
		return fmt.Errorf("отзыв токена: %w", err)
	}

	s.logger.Info("Токен отозван",
		slog.Int64("user_id", p.UserID),
		slog.String("jti", p.TokenID),
	)
	return nil
}
