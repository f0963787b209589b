// authz.go — аутентификация по bearer-токену и guards авторизации.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hoangtu0812/pocketfile-lite/internal/auth/token"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
	"github.com/hoangtu0812/pocketfile-lite/internal/repository"
)

// TokenRevoker — хранилище отозванных токенов (logout).
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, exp time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Authenticator проверяет bearer-токен и восстанавливает Principal.
type Authenticator struct {
	tokens  *token.Manager
	users   repository.UserRepository
	grants  repository.GrantRepository
	revoked TokenRevoker
	logger  *slog.Logger
}

// NewAuthenticator создаёт Authenticator. revoked может быть nil
// (отзыв токенов выключен).
func NewAuthenticator(
	tokens *token.Manager,
	users repository.UserRepository,
	grants repository.GrantRepository,
	revoked TokenRevoker,
	logger *slog.Logger,
) *Authenticator {
	return &Authenticator{
		tokens:  tokens,
		users:   users,
		grants:  grants,
		revoked: revoked,
		logger:  logger.With(slog.String("component", "authenticator")),
	}
}

// Authenticate проверяет подпись и срок токена, отзыв и существование
// пользователя. Роль берётся из БД, а не из токена. Для USER
// загружается список грантов.
//
// Любая ошибка возвращается как ErrUnauthenticated, причина только в логе.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*model.Principal, error) {
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := a.tokens.Parse(raw)
	if err != nil {
		a.logger.Debug("Токен отклонён", slog.String("error", err.Error()))
		return nil, ErrUnauthenticated
	}

	if a.revoked != nil && claims.JTI != "" {
		revoked, err := a.revoked.IsRevoked(ctx, claims.JTI)
		if err != nil {
			a.logger.Error("Ошибка проверки отзыва токена",
				slog.String("jti", claims.JTI),
				slog.String("error", err.Error()),
			)
			return nil, ErrUnauthenticated
		}
		if revoked {
			a.logger.Debug("Токен отозван", slog.String("jti", claims.JTI))
			return nil, ErrUnauthenticated
		}
	}

	user, err := a.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			a.logger.Error("Ошибка получения пользователя по токену",
				slog.Int64("user_id", claims.UserID),
				slog.String("error", err.Error()),
			)
		}
		return nil, ErrUnauthenticated
	}

	if claims.Role != "" && claims.Role != user.Role {
		a.logger.Info("Роль пользователя изменилась после выпуска токена",
			slog.Int64("user_id", user.ID),
			slog.String("token_role", claims.Role),
			slog.String("role", user.Role),
		)
	}

	p := &model.Principal{
		UserID:         user.ID,
		Username:       user.Username,
		Role:           user.Role,
		TokenID:        claims.JTI,
		TokenExpiresAt: claims.ExpiresAt,
	}

	if !rbac.IsAdmin(user.Role) {
		ids, err := a.grants.ListProjectIDs(ctx, user.ID)
		if err != nil {
			a.logger.Error("Ошибка загрузки грантов",
				slog.Int64("user_id", user.ID),
				slog.String("error", err.Error()),
			)
			return nil, ErrUnauthenticated
		}
		p.ProjectIDs = ids
	}

	return p, nil
}

// RequireRole возвращает principal, если его роль не ниже role,
// иначе ErrForbidden. nil principal — ErrUnauthenticated.
func RequireRole(p *model.Principal, role string) (*model.Principal, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	if !rbac.HasRole(p.Role, role) {
		return nil, ErrForbidden
	}
	return p, nil
}

// RequireProjectAccess возвращает principal, если он ADMIN или имеет
// грант на проект, иначе ErrForbidden.
func RequireProjectAccess(p *model.Principal, projectID int64) (*model.Principal, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	if !rbac.CanAccessProject(p.Role, p.ProjectIDs, projectID) {
		return nil, ErrForbidden
	}
	return p, nil
}
