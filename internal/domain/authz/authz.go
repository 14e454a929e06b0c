// Пакет authz — политика авторизации доступа к файлам.
// Единое правило owner-or-admin применяется одинаково при чтении
// метаданных, прямом скачивании, выдаче signed URL и её погашении.
package authz

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal — действующий субъект: разрешённая пара (id, роль).
// Формируется из свежей записи users, а не из кэша в токене.
type Principal struct {
	// UserID — идентификатор пользователя
	UserID int64
	// Role — текущая роль (user, admin)
	Role string
}

// IsAdmin проверяет, что субъект — администратор.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// CanAccessFile проверяет доступ субъекта к файлу с владельцем ownerID.
// Разрешено, если субъект — администратор или владелец файла.
func CanAccessFile(p Principal, ownerID int64) bool {
	return p.IsAdmin() || p.UserID == ownerID
}
