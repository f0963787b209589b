// handler.go — основной обработчик API.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/hoangtu0812/pocketfile-lite/internal/api/errors"
	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
	"github.com/hoangtu0812/pocketfile-lite/internal/service"
)

// maxJSONBody — ограничение размера JSON-тела запроса.
const maxJSONBody = 1 << 20

// AuthService — вход, регистрация и выход.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Register(ctx context.Context, in service.RegisterInput) (*model.User, error)
	Me(ctx context.Context, p *model.Principal) (*model.User, error)
	Logout(ctx context.Context, p *model.Principal) error
}

// UserService — управление пользователями и грантами.
type UserService interface {
	List(ctx context.Context) ([]*model.User, error)
	Delete(ctx context.Context, actor *model.Principal, id int64) error
	ChangePassword(ctx context.Context, id int64, password string) error
	Grants(ctx context.Context, id int64) ([]int64, error)
	SetGrants(ctx context.Context, id int64, projectIDs []int64) ([]int64, error)
}

// ProjectService — проекты и версии.
type ProjectService interface {
	List(ctx context.Context, p *model.Principal) ([]*model.Project, error)
	Get(ctx context.Context, p *model.Principal, id int64) (*model.Project, error)
	Create(ctx context.Context, name string, description *string) (*model.Project, error)
	Update(ctx context.Context, id int64, in service.UpdateProjectInput) (*model.Project, error)
	Delete(ctx context.Context, id int64) error
	ListVersions(ctx context.Context, p *model.Principal, projectID int64) ([]*model.Version, error)
	CreateVersion(ctx context.Context, projectID int64, label string) (*model.Version, error)
	DeleteVersion(ctx context.Context, id int64) error
}

// ArtifactService — загрузка, список, скачивание и удаление файлов.
type ArtifactService interface {
	MaxUploadSize() int64
	Upload(ctx context.Context, p *model.Principal, versionID int64, filename string, body io.Reader) (*model.Artifact, error)
	List(ctx context.Context, p *model.Principal, versionID int64) ([]*model.Artifact, error)
	Download(ctx context.Context, p *model.Principal, id int64, address string) (*service.ArtifactDownload, error)
	Delete(ctx context.Context, id int64) error
}

// DashboardService — агрегированная статистика.
type DashboardService interface {
	Stats(ctx context.Context) (*model.DashboardStats, error)
}

// APIHandler — основной обработчик API pocketfile.
type APIHandler struct {
	auth      AuthService
	users     UserService
	projects  ProjectService
	artifacts ArtifactService
	dashboard DashboardService
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	auth AuthService,
	users UserService,
	projects ProjectService,
	artifacts ArtifactService,
	dashboard DashboardService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		auth:      auth,
		users:     users,
		projects:  projects,
		artifacts: artifacts,
		dashboard: dashboard,
		validate:  newValidator(),
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// decodeJSON читает и валидирует тело запроса. При ошибке пишет ответ
// VALIDATION_ERROR и возвращает false.
func (h *APIHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		apierrors.ValidationError(w, validationMessage(err))
		return false
	}
	return true
}

// pathID извлекает числовой идентификатор из параметра маршрута.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		apierrors.ValidationError(w, "Некорректный идентификатор "+name)
		return 0, false
	}
	return id, true
}

// writeServiceError переводит ошибку сервисного слоя в ответ API.
// Для 5xx клиент получает общее сообщение, подробности уходят в лог.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var tooLarge *service.PayloadTooLargeError

	switch {
	case errors.As(err, &tooLarge):
		apierrors.PayloadTooLarge(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.Unauthenticated(w, "Неверное имя пользователя или пароль")
	case errors.Is(err, service.ErrUnauthenticated):
		apierrors.Unauthenticated(w, "Требуется аутентификация")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrUploadConflict):
		apierrors.UploadConflict(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidFileType):
		apierrors.InvalidFileType(w, err.Error())
	case errors.Is(err, service.ErrLastAdmin):
		apierrors.WriteError(w, http.StatusConflict, apierrors.CodeLastAdmin, err.Error())
	case errors.Is(err, service.ErrSelfDelete):
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeSelfDelete, err.Error())
	case errors.Is(err, service.ErrStorageFailure):
		h.logger.Error("Ошибка файлового хранилища",
			slog.String("op", op),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.StorageFailure(w, "Ошибка файлового хранилища")
	case errors.Is(err, context.Canceled):
		// Клиент закрыл соединение, ответ уже никто не прочитает
		h.logger.Debug("Запрос отменён клиентом", slog.String("op", op))
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("op", op),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
