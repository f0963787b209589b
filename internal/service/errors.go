// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/hoangtu0812/pocketfile-lite/internal/storage/filestore"
)

var (
	// ErrUnauthenticated — нет токена, токен невалиден, истёк, отозван
	// или пользователь удалён. Причина наружу не раскрывается.
	ErrUnauthenticated = errors.New("требуется аутентификация")
	// ErrInvalidCredentials — неверное имя пользователя или пароль.
	ErrInvalidCredentials = fmt.Errorf("%w: неверное имя пользователя или пароль", ErrUnauthenticated)
	// ErrForbidden — недостаточно прав (роль или грант).
	ErrForbidden = errors.New("недостаточно прав")
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт уникальности (имя проекта, метка версии, пользователь).
	ErrConflict = errors.New("конфликт: ресурс уже существует")
	// ErrInvalidFileType — расширение файла не .apk.
	ErrInvalidFileType = filestore.ErrInvalidFileType
	// ErrStorageFailure — ошибка ввода-вывода файлового хранилища.
	ErrStorageFailure = filestore.ErrStorageFailure
	// ErrUploadConflict — версия или проект удалены во время загрузки.
	ErrUploadConflict = errors.New("версия была удалена во время загрузки")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrLastAdmin — попытка удалить последнего администратора.
	ErrLastAdmin = errors.New("нельзя удалить последнего администратора")
	// ErrSelfDelete — попытка удалить собственную учётную запись.
	ErrSelfDelete = errors.New("нельзя удалить собственную учётную запись")
)

// PayloadTooLargeError — загрузка превысила настроенный лимит (Limit, байт).
type PayloadTooLargeError = filestore.PayloadTooLargeError
