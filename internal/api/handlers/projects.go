// projects.go — обработчики /api/projects и /api/versions.
package handlers

import (
	"net/http"

	apierrors "github.com/hoangtu0812/pocketfile-lite/internal/api/errors"
	"github.com/hoangtu0812/pocketfile-lite/internal/api/middleware"
	"github.com/hoangtu0812/pocketfile-lite/internal/service"
)

// ListProjects — GET /api/projects.
// USER видит только проекты со своими грантами.
func (h *APIHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context(), middleware.PrincipalFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "list_projects", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, mapSlice(projects, mapProject))
}

// CreateProject — POST /api/projects.
// Доступ: ADMIN.
func (h *APIHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projects.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		h.writeServiceError(w, r, "create_project", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusCreated, mapProject(project))
}

// GetProject — GET /api/projects/{projectID}.
func (h *APIHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	project, err := h.projects.Get(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, "get_project", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, mapProject(project))
}

// UpdateProject — PUT /api/projects/{projectID}.
// Доступ: ADMIN. Изменяются только переданные поля.
func (h *APIHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	var req projectUpdateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	project, err := h.projects.Update(r.Context(), id, service.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, "update_project", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, mapProject(project))
}

// DeleteProject — DELETE /api/projects/{projectID}.
// Доступ: ADMIN. Удаляет версии и файлы проекта.
func (h *APIHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	if err := h.projects.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete_project", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, nil)
}

// ListVersions — GET /api/projects/{projectID}/versions.
func (h *APIHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	versions, err := h.projects.ListVersions(r.Context(), middleware.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.writeServiceError(w, r, "list_versions", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, mapSlice(versions, mapVersion))
}

// CreateVersion — POST /api/projects/{projectID}/versions.
// Доступ: ADMIN.
func (h *APIHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	var req versionCreateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	version, err := h.projects.CreateVersion(r.Context(), id, req.VersionString)
	if err != nil {
		h.writeServiceError(w, r, "create_version", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusCreated, mapVersion(version))
}

// DeleteVersion — DELETE /api/versions/{versionID}.
// Доступ: ADMIN.
func (h *APIHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}

	if err := h.projects.DeleteVersion(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete_version", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, nil)
}
