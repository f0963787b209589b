// files.go — обработчики загрузки, списка, скачивания и удаления APK-файлов.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	apierrors "github.com/hoangtu0812/pocketfile-lite/internal/api/errors"
	"github.com/hoangtu0812/pocketfile-lite/internal/api/middleware"
	"github.com/hoangtu0812/pocketfile-lite/internal/service"
)

const (
	// apkContentType — MIME-тип APK-файлов.
	apkContentType = "application/vnd.android.package-archive"
	// uploadFormField — имя поля multipart-формы с файлом.
	uploadFormField = "file"
	// multipartOverhead — запас на заголовки и прочие поля формы.
	multipartOverhead = 1 << 20
)

// UploadFile — POST /api/versions/{versionID}/upload.
// Тело — multipart/form-data с полем file. Файл читается потоком,
// без буферизации формы в памяти или на диске.
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}

	limit := h.artifacts.MaxUploadSize()
	if r.ContentLength > limit+multipartOverhead {
		h.writeServiceError(w, r, "upload", &service.PayloadTooLargeError{Limit: limit})
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ожидается multipart/form-data: "+err.Error())
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			apierrors.ValidationError(w, "Отсутствует поле file")
			return
		}
		if err != nil {
			apierrors.ValidationError(w, "Некорректное multipart-тело: "+err.Error())
			return
		}

		if part.FormName() != uploadFormField {
			part.Close()
			continue
		}

		filename := part.FileName()
		if filename == "" {
			part.Close()
			apierrors.ValidationError(w, "Поле file должно содержать файл")
			return
		}

		artifact, err := h.artifacts.Upload(r.Context(), middleware.PrincipalFromContext(r.Context()), versionID, filename, part)
		part.Close()
		if err != nil {
			h.writeServiceError(w, r, "upload", err)
			return
		}

		apierrors.WriteJSON(w, http.StatusCreated, mapFile(artifact))
		return
	}
}

// ListFiles — GET /api/versions/{versionID}/files.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}

	artifacts, err := h.artifacts.List(r.Context(), middleware.PrincipalFromContext(r.Context()), versionID)
	if err != nil {
		h.writeServiceError(w, r, "list_files", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, mapSlice(artifacts, mapFile))
}

// DownloadFile — GET /api/files/{fileID}/download.
// Отдаёт байты файла как вложение. Событие скачивания записывается
// до отдачи содержимого.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "fileID")
	if !ok {
		return
	}

	address := service.ClientIP(r.Header.Get("X-Forwarded-For"), r.RemoteAddr)
	d, err := h.artifacts.Download(r.Context(), middleware.PrincipalFromContext(r.Context()), id, address)
	if err != nil {
		h.writeServiceError(w, r, "download", err)
		return
	}
	defer d.Content.Close()

	w.Header().Set("Content-Type", apkContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))

	// Range не поддерживается: файл всегда отдаётся целиком
	w.Header().Set("Accept-Ranges", "none")
	w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, d.Content); err != nil {
		h.logger.Warn("Обрыв отдачи файла",
			slog.Int64("file_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteFile — DELETE /api/files/{fileID}.
// Доступ: ADMIN.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "fileID")
	if !ok {
		return
	}

	if err := h.artifacts.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete_file", err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, nil)
}
