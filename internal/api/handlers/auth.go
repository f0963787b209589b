// auth.go — обработчики /api/auth.
package handlers

import (
	"net/http"

	apierrors "github.com/hoangtu0812/pocketfile-lite/internal/api/errors"
	"github.com/hoangtu0812/pocketfile-lite/internal/api/middleware"
	"github.com/hoangtu0812/pocketfile-lite/internal/service"
)

// Login — POST /api/auth/login.
// Доступ: публичный.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.Token,
		TokenType:   "bearer",
		ExpiresAt:   res.ExpiresAt,
		User:        mapUser(res.User),
	})
}

// Register — POST /api/auth/register.
// Доступ: ADMIN.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.writeServiceError(w, r, "register", err)
		return
	}

	apierrors.WriteJSON(w, http.StatusCreated, mapUser(user))
}

// Me — GET /api/auth/me.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "me", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, mapUser(user))
}

// Logout — POST /api/auth/logout.
// Отзывает текущий токен, если настроено хранилище отзыва.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.PrincipalFromContext(r.Context())); err != nil {
		h.writeServiceError(w, r, "logout", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, nil)
}
