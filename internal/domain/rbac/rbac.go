// Пакет rbac — предикаты авторизации.
// Глобальная роль — закрытое перечисление {ADMIN, USER}; доступ USER
// к содержимому проекта определяется списком грантов.
// ADMIN видит все проекты, гранты для него не проверяются.
package rbac

import "slices"

// Роли в порядке возрастания привилегий.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// roleWeight — вес роли для сравнения.
var roleWeight = map[string]int{
	RoleUser:  1,
	RoleAdmin: 2,
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// IsAdmin — true для глобальной роли ADMIN.
func IsAdmin(role string) bool {
	return role == RoleAdmin
}

// HasRole проверяет, что роль не ниже требуемой.
// Неизвестная роль не удовлетворяет никакому требованию.
func HasRole(role, required string) bool {
	w, ok := roleWeight[role]
	if !ok {
		return false
	}
	return w >= roleWeight[required]
}

// CanAccessProject проверяет доступ к содержимому проекта:
// ADMIN — всегда, USER — только при наличии гранта.
func CanAccessProject(role string, grants []int64, projectID int64) bool {
	if IsAdmin(role) {
		return true
	}
	if role != RoleUser {
		return false
	}
	return slices.Contains(grants, projectID)
}

// VisibleProjects возвращает фильтр списка проектов.
// all == true означает «без фильтра» (ADMIN), иначе список ограничен грантами.
func VisibleProjects(role string, grants []int64) (ids []int64, all bool) {
	if IsAdmin(role) {
		return nil, true
	}
	if role != RoleUser {
		return []int64{}, false
	}
	return grants, false
}
