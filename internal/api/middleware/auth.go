// auth.go — аутентификация по bearer-токену и проверка роли.
// Токен берётся из заголовка Authorization: Bearer <token>
// или из query-параметра token (ссылки на скачивание из браузера).
package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "github.com/hoangtu0812/pocketfile-lite/internal/api/errors"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/rbac"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyPrincipal — аутентифицированный пользователь в контексте запроса.
const ContextKeyPrincipal contextKey = "principal"

// unauthenticatedMessage — единое сообщение для любой ошибки аутентификации.
const unauthenticatedMessage = "Требуется аутентификация"

// Authenticator проверяет токен и возвращает principal.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*model.Principal, error)
}

// Auth возвращает middleware, требующий валидный токен.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				apierrors.Unauthenticated(w, unauthenticatedMessage)
				return
			}

			p, err := authn.Authenticate(r.Context(), raw)
			if err != nil || p == nil {
				apierrors.Unauthenticated(w, unauthenticatedMessage)
				return
			}

			noteUser(r.Context(), p.UserID)
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// extractToken достаёт токен из заголовка или query-параметра.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(raw)
	}
	return r.URL.Query().Get("token")
}

// RequireRole возвращает middleware, пропускающий только пользователей
// с ролью не ниже role. Должен стоять после Auth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				apierrors.Unauthenticated(w, unauthenticatedMessage)
				return
			}

			if !rbac.HasRole(p.Role, role) {
				apierrors.Forbidden(w, "Недостаточно прав: требуется роль "+role)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext возвращает principal из контекста (nil, если нет).
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(ContextKeyPrincipal).(*model.Principal)
	return p
}

// WithPrincipal кладёт principal в контекст.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}
