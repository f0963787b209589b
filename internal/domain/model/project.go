package model

import "time"

// Project — проект, объединяющий версии приложения.
// Хранится в таблице projects.
type Project struct {
	// ID — идентификатор проекта
	ID int64
	// Name — уникальное имя проекта
	Name string
	// Description — описание (опционально)
	Description *string
	// CreatedAt — время создания
	CreatedAt time.Time
	// VersionCount — количество версий (заполняется при выборке списка)
	VersionCount int
}

// Version — версия проекта.
// Хранится в таблице versions, метка уникальна в пределах проекта.
type Version struct {
	// ID — идентификатор версии
	ID int64
	// ProjectID — проект, которому принадлежит версия
	ProjectID int64
	// Label — метка версии (например, 1.0.0)
	Label string
	// CreatedAt — время создания
	CreatedAt time.Time
	// FileCount — количество файлов (заполняется при выборке списка)
	FileCount int
}
