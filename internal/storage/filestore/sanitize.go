package filestore

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ArtifactExt — единственное допустимое расширение загружаемых файлов.
const ArtifactExt = ".apk"

// maxStemBytes — ограничение длины имени файла без расширения
// (колонка filename в БД — 255 символов, оставляем место под суффикс).
const maxStemBytes = 200

// ErrInvalidFileType — расширение файла не .apk.
var ErrInvalidFileType = errors.New("допускаются только файлы .apk")

// DerivePath вычисляет путь хранения root/проект/версия/имя из
// недоверенных имён. Не обращается к файловой системе.
//
// В имени проекта сохраняются буквы, цифры, '_' и '-'; в метке версии
// и в имени файла дополнительно '.'; остальные символы заменяются на '_'.
// Сегменты из одних точек переписываются, поэтому результат всегда
// лежит строго внутри root.
func DerivePath(root, projectName, versionLabel, rawFilename string) (string, error) {
	base := baseName(rawFilename)
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, ArtifactExt) {
		return "", ErrInvalidFileType
	}
	stem := strings.TrimSuffix(base, ext)

	safeProject := sanitizeSegment(projectName, false)
	safeVersion := sanitizeSegment(versionLabel, true)
	safeName := truncateBytes(sanitizeSegment(stem, true), maxStemBytes) + ext

	return filepath.Join(root, safeProject, safeVersion, safeName), nil
}

// WithUniqueSuffix вставляет "_token" перед расширением:
// app.apk → app_1a2b3c4d.apk.
func WithUniqueSuffix(path, token string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + token + ext
}

// baseName возвращает последний компонент имени, разделители — '/' и '\'.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

// sanitizeSegment заменяет недопустимые символы на '_'.
// Пустой результат и сегменты из одних точек ('.', '..') заменяются
// на строку из '_' той же длины (минимум один символ).
func sanitizeSegment(s string, allowDot bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		case r == '.' && allowDot:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	if strings.Trim(out, ".") == "" {
		return strings.Repeat("_", max(1, len(out)))
	}
	return out
}

// truncateBytes обрезает строку до n байт, не разрывая UTF-8 символ.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
