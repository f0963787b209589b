// users.go — обработчики /api/users (только ADMIN).
package handlers

import (
	"net/http"

	apierrors "github.com/hoangtu0812/pocketfile-lite/internal/api/errors"
	"github.com/hoangtu0812/pocketfile-lite/internal/api/middleware"
)

// ListUsers — GET /api/users.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list_users", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, mapSlice(users, mapUser))
}

// DeleteUser — DELETE /api/users/{userID}.
// Нельзя удалить себя и последнего администратора.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), middleware.PrincipalFromContext(r.Context()), id); err != nil {
		h.writeServiceError(w, r, "delete_user", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, nil)
}

// ChangePassword — PATCH /api/users/{userID}/password.
func (h *APIHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req passwordRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.users.ChangePassword(r.Context(), id, req.Password); err != nil {
		h.writeServiceError(w, r, "change_password", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, nil)
}

// GetUserProjects — GET /api/users/{userID}/projects.
func (h *APIHandler) GetUserProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	ids, err := h.users.Grants(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get_grants", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, grantsResponse{UserID: id, ProjectIDs: nonNil(ids)})
}

// SetUserProjects — PUT /api/users/{userID}/projects.
// Заменяет гранты пользователя целиком.
func (h *APIHandler) SetUserProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userID")
	if !ok {
		return
	}

	var req grantsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ids, err := h.users.SetGrants(r.Context(), id, req.ProjectIDs)
	if err != nil {
		h.writeServiceError(w, r, "set_grants", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, grantsResponse{UserID: id, ProjectIDs: nonNil(ids)})
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
