// Пакет model — доменные модели Filevault.
package model

import "time"

// User — учётная запись пользователя.
// Соответствует строке таблицы users.
type User struct {
	// ID — уникальный идентификатор пользователя (bigserial)
	ID int64

	// Email — адрес электронной почты (уникальный)
	Email string

	// PasswordHash — bcrypt-хэш пароля. Никогда не попадает в API-ответы.
	PasswordHash string

	// Role — роль пользователя (user, admin). Неизменяема после создания.
	Role string

	// CreatedAt — время регистрации (UTC)
	CreatedAt time.Time
}
