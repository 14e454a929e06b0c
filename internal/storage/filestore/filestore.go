// Пакет filestore — blob-хранилище байтов файлов на диске.
//
// Ключи — непрозрачные системные идентификаторы (uuid hex), никогда
// не выводятся из пользовательского ввода: пользовательское имя файла
// не участвует в адресации и не может дать path traversal.
// Запись — streaming с подсчётом SHA-256 на лету:
// temp файл → запись + хэш → fsync → atomic rename.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStore — blob-хранилище на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (FV_DATA_DIR)
	dataDir string
}

// SaveResult — результат сохранения blob-а.
type SaveResult struct {
	// StoredName — системный ключ blob-а (uuid hex)
	StoredName string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// New создаёт FileStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// Save записывает данные из reader на диск под новым системным ключом.
// Метаданные файла должны создаваться только после успешного Save:
// atomic rename гарантирует, что по ключу никогда не виден
// частично записанный blob.
//
// При ошибке temp файл удаляется, ключ не существует.
func (fs *FileStore) Save(reader io.Reader) (*SaveResult, error) {
	storedName := newStoredName()
	fullPath := filepath.Join(fs.dataDir, storedName)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoredName: storedName,
		Size:       size,
		Checksum:   hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Read открывает blob для чтения и возвращает *os.File.
// Вызывающий код обязан закрыть файл; чтение read-only, разрыв
// соединения клиентом безопасен для хранилища.
func (fs *FileStore) Read(storedName string) (*os.File, error) {
	fullPath := filepath.Join(fs.dataDir, storedName)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob не найден: %s", storedName)
		}
		return nil, fmt.Errorf("ошибка открытия blob %s: %w", storedName, err)
	}

	return f, nil
}

// Exists проверяет существование blob-а.
func (fs *FileStore) Exists(storedName string) bool {
	_, err := os.Stat(filepath.Join(fs.dataDir, storedName))
	return err == nil
}

// Delete удаляет blob. Возвращает nil, если blob уже не существует.
func (fs *FileStore) Delete(storedName string) error {
	err := os.Remove(filepath.Join(fs.dataDir, storedName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления blob %s: %w", storedName, err)
	}
	return nil
}

// DataDir возвращает путь к директории данных.
func (fs *FileStore) DataDir() string {
	return fs.dataDir
}

// newStoredName генерирует новый системный ключ blob-а: uuid v4 в hex
// без разделителей (32 символа).
func newStoredName() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
