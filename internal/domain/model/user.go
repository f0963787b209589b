package model

import "time"

// User — учётная запись пользователя (принципал).
// Хранится в таблице users.
type User struct {
	// ID — идентификатор пользователя
	ID int64
	// Username — уникальное имя для входа (в нижнем регистре)
	Username string
	// Email — уникальный адрес почты
	Email string
	// PasswordHash — хэш пароля argon2id
	PasswordHash string
	// Role — глобальная роль (ADMIN, USER)
	Role string
	// CreatedAt — время создания
	CreatedAt time.Time
}

// Principal — аутентифицированный пользователь в контексте запроса.
// ProjectIDs заполняется только для роли USER.
type Principal struct {
	// UserID — идентификатор пользователя
	UserID int64
	// Username — имя пользователя
	Username string
	// Role — глобальная роль
	Role string
	// ProjectIDs — проекты, на которые у пользователя есть грант
	ProjectIDs []int64
	// TokenID — jti токена, по которому пришёл запрос
	TokenID string
	// TokenExpiresAt — срок действия токена
	TokenExpiresAt time.Time
}
