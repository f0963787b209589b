package model

import "time"

// Artifact — сохранённый APK-файл.
// Хранится в таблице apk_files, байты лежат по пути StoragePath.
type Artifact struct {
	// ID — идентификатор файла
	ID int64
	// VersionID — версия, к которой относится файл
	VersionID int64
	// Filename — отображаемое имя (имя файла на диске)
	Filename string
	// Size — размер в байтах, фактически записанный на диск
	Size int64
	// StoragePath — путь к файлу в хранилище
	StoragePath string
	// UploadedBy — загрузивший пользователь (nil, если пользователь удалён)
	UploadedBy *int64
	// UploaderName — имя загрузившего (заполняется при выборке списка)
	UploaderName *string
	// UploadedAt — время загрузки
	UploadedAt time.Time
}

// ArtifactLocation — файл вместе с проектом, к которому он относится.
// Используется для проверки доступа при скачивании и удалении.
type ArtifactLocation struct {
	Artifact  Artifact
	ProjectID int64
}
