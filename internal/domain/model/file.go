package model

import (
	"time"

	"github.com/bigkaa/gofilevault/internal/domain/scan"
)

// FileMeta — метаданные загруженного файла.
// Соответствует строке таблицы files. Байты файла лежат в blob-хранилище
// под ключом StoredName; это единственное значение, по которому
// адресуется хранилище.
type FileMeta struct {
	// ID — уникальный идентификатор файла (bigserial)
	ID int64

	// OwnerID — идентификатор владельца (users.id)
	OwnerID int64

	// OriginalName — имя файла при загрузке. Пользовательский ввод,
	// не доверяется и никогда не используется как путь на диске.
	OriginalName string

	// StoredName — системный ключ blob-хранилища (uuid hex, уникальный).
	// Не выводится из пользовательского ввода — исключает path traversal.
	StoredName string

	// Size — размер файла в байтах
	Size int64

	// ContentType — заявленный MIME-тип файла
	ContentType string

	// Checksum — SHA-256 хэш содержимого
	Checksum string

	// ScanStatus — статус антивирусной проверки (PENDING, CLEAN, INFECTED)
	ScanStatus scan.Status

	// CreatedAt — время завершения загрузки (UTC)
	CreatedAt time.Time
}
