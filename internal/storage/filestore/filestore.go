// Пакет filestore — операции с APK-файлами на диске.
// Вычисляет безопасный путь хранения, выполняет потоковую запись
// с ограничением размера (всё или ничего), чтение и удаление.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ChunkSize — размер блока потоковой записи (1 MiB).
const ChunkSize = 1 << 20

var (
	// ErrStorageFailure — ошибка ввода-вывода при записи или чтении файла.
	ErrStorageFailure = errors.New("ошибка файлового хранилища")
	// ErrFileNotFound — файл отсутствует на диске.
	ErrFileNotFound = errors.New("файл не найден в хранилище")
	// ErrOutsideRoot — путь не лежит внутри корня хранилища.
	ErrOutsideRoot = errors.New("путь вне корня хранилища")
)

// PayloadTooLargeError — размер загрузки превысил лимит.
type PayloadTooLargeError struct {
	// Limit — настроенный лимит в байтах
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("размер файла превышает лимит %d байт", e.Limit)
}

// FileStore — управление APK-файлами в корневом каталоге хранилища.
type FileStore struct {
	root   string
	logger *slog.Logger
}

// New создаёт FileStore. Создаёт корневой каталог, если его нет.
func New(root string, logger *slog.Logger) (*FileStore, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог хранилища %s: %w", root, err)
	}
	return &FileStore{
		root:   root,
		logger: logger.With(slog.String("component", "filestore")),
	}, nil
}

// Root возвращает корневой каталог хранилища.
func (fs *FileStore) Root() string {
	return fs.root
}

// DerivePath вычисляет путь хранения внутри корня FileStore.
func (fs *FileStore) DerivePath(projectName, versionLabel, rawFilename string) (string, error) {
	return DerivePath(fs.root, projectName, versionLabel, rawFilename)
}

// Chunks разбивает поток на блоки по size байт.
// Последний блок может быть короче. Конец потока — только io.EOF;
// любая другая ошибка чтения (в том числе io.ErrUnexpectedEOF от
// оборванного multipart) выдаётся вторым значением и завершает
// последовательность. Блок переиспользуется между итерациями.
func Chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, size)
		for {
			n := 0
			var err error
			for n < size && err == nil {
				var m int
				m, err = r.Read(buf[n:])
				n += m
			}

			if err != nil && err != io.EOF {
				yield(nil, err)
				return
			}
			if n > 0 && !yield(buf[:n], nil) {
				return
			}
			if err == io.EOF {
				return
			}
		}
	}
}

// Save записывает поток в dest блоками по ChunkSize и возвращает
// количество записанных байт.
//
// Запись идёт во временный файл рядом с dest, который после fsync
// атомарно переименовывается. При превышении limit возвращается
// *PayloadTooLargeError, при ошибке ввода-вывода — ErrStorageFailure,
// при отмене ctx — ошибка контекста. В любом из этих случаев
// временный файл удаляется и dest не создаётся.
func (fs *FileStore) Save(ctx context.Context, r io.Reader, dest string, limit int64) (int64, error) {
	if err := fs.checkInRoot(dest); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return 0, fmt.Errorf("%w: создание каталога: %v", ErrStorageFailure, err)
	}

	tmpPath := dest + ".tmp-" + uuid.NewString()[:8]
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("%w: создание временного файла: %v", ErrStorageFailure, err)
	}

	abort := func(cause error) (int64, error) {
		f.Close()
		fs.removeQuietly(tmpPath)
		return 0, cause
	}

	var total int64
	for chunk, readErr := range Chunks(r, ChunkSize) {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		if readErr != nil {
			return abort(fmt.Errorf("%w: чтение данных: %v", ErrStorageFailure, readErr))
		}

		total += int64(len(chunk))
		if total > limit {
			fs.logger.Warn("Превышен лимит размера загрузки",
				slog.String("path", dest),
				slog.Int64("limit", limit),
			)
			return abort(&PayloadTooLargeError{Limit: limit})
		}

		if _, err := f.Write(chunk); err != nil {
			return abort(fmt.Errorf("%w: запись данных: %v", ErrStorageFailure, err))
		}
	}
	// Поток мог оборваться после последнего блока
	if err := ctx.Err(); err != nil {
		return abort(err)
	}

	if err := f.Sync(); err != nil {
		return abort(fmt.Errorf("%w: fsync: %v", ErrStorageFailure, err))
	}
	if err := f.Close(); err != nil {
		fs.removeQuietly(tmpPath)
		return 0, fmt.Errorf("%w: закрытие файла: %v", ErrStorageFailure, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		fs.removeQuietly(tmpPath)
		return 0, fmt.Errorf("%w: атомарное переименование: %v", ErrStorageFailure, err)
	}

	return total, nil
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(path string) (*os.File, error) {
	if err := fs.checkInRoot(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("%w: открытие %s: %v", ErrStorageFailure, path, err)
	}
	return f, nil
}

// Exists проверяет, существует ли файл.
func (fs *FileStore) Exists(path string) (bool, error) {
	if err := fs.checkInRoot(path); err != nil {
		return false, err
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", ErrStorageFailure, path, err)
}

// Delete удаляет файл. Отсутствие файла ошибкой не считается.
func (fs *FileStore) Delete(path string) error {
	if err := fs.checkInRoot(path); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: удаление %s: %v", ErrStorageFailure, path, err)
	}
	return nil
}

// Name — имя проверки в ответе /health/ready.
func (fs *FileStore) Name() string { return "storage" }

// CheckReady проверяет, что корень хранилища доступен на запись.
func (fs *FileStore) CheckReady() (status string, message string) {
	f, err := os.CreateTemp(fs.root, ".ready-*")
	if err != nil {
		return "fail", fmt.Sprintf("каталог хранилища недоступен на запись: %v", err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return "ok", "каталог доступен на запись"
}

// checkInRoot проверяет, что путь лежит строго внутри корня.
func (fs *FileStore) checkInRoot(path string) error {
	rel, err := filepath.Rel(fs.root, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return nil
}

// removeQuietly удаляет файл, ошибки только логируются.
func (fs *FileStore) removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fs.logger.Error("Не удалось удалить частично записанный файл",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
