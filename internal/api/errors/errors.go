// Пакет errors — единый конверт ответов API.
// Формат: {"success": bool, "data": ..., "error": "...", "code": "..."}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeStorageFailure  = "STORAGE_FAILURE"
	CodeUploadConflict  = "UPLOAD_CONFLICT"
	CodeLastAdmin       = "LAST_ADMIN"
	CodeSelfDelete      = "SELF_DELETE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// Envelope — конверт любого ответа API.
type Envelope struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Error   *string `json:"error"`
	Code    string  `json:"code,omitempty"`
}

// WriteRaw записывает v как JSON без конверта (health endpoints).
func WriteRaw(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteJSON записывает успешный ответ в конверте.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	WriteRaw(w, statusCode, Envelope{Success: true, Data: data})
}

// WriteError записывает ответ ошибки в конверте.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteRaw(w, statusCode, Envelope{Success: false, Error: &message, Code: code})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// Unauthenticated — 401 требуется аутентификация.
func Unauthenticated(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, CodeUnauthenticated, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// InvalidFileType — 400 недопустимое расширение файла.
func InvalidFileType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidFileType, message)
}

// PayloadTooLarge — 413 превышен лимит размера загрузки.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// StorageFailure — 500 ошибка файлового хранилища.
func StorageFailure(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeStorageFailure, message)
}

// UploadConflict — 409 версия удалена во время загрузки.
func UploadConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeUploadConflict, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
