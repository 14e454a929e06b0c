package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"
)

func TestSaveAndRead(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}

	content := "содержимое тестового файла"
	result, err := fs.Save(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}

	if result.Size != int64(len(content)) {
		t.Errorf("Size = %d, ожидалось %d", result.Size, len(content))
	}

	sum := sha256.Sum256([]byte(content))
	if result.Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("Checksum = %s не совпадает с ожидаемым SHA-256", result.Checksum)
	}

	if len(result.StoredName) != 32 {
		t.Errorf("StoredName %q должен быть uuid hex длиной 32", result.StoredName)
	}

	f, err := fs.Read(result.StoredName)
	if err != nil {
		t.Fatalf("Ошибка чтения: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("Ошибка чтения содержимого: %v", err)
	}
	if string(data) != content {
		t.Errorf("Прочитанное содержимое не совпадает с записанным")
	}
}

func TestSaveEmptyFile(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}

	result, err := fs.Save(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Ошибка сохранения пустого файла: %v", err)
	}
	if result.Size != 0 {
		t.Errorf("Size = %d, ожидалось 0", result.Size)
	}
	if !fs.Exists(result.StoredName) {
		t.Error("Пустой blob должен существовать после сохранения")
	}
}

func TestUniqueStoredNames(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		result, err := fs.Save(strings.NewReader("data"))
		if err != nil {
			t.Fatalf("Ошибка сохранения: %v", err)
		}
		if seen[result.StoredName] {
			t.Fatalf("Повтор системного ключа: %s", result.StoredName)
		}
		seen[result.StoredName] = true
	}
}

func TestReadMissing(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}

	if _, err := fs.Read("deadbeefdeadbeefdeadbeefdeadbeef"); err == nil {
		t.Error("Чтение несуществующего blob-а должно вернуть ошибку")
	}
}

func TestDelete(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}

	result, err := fs.Save(strings.NewReader("to delete"))
	if err != nil {
		t.Fatalf("Ошибка сохранения: %v", err)
	}

	if err := fs.Delete(result.StoredName); err != nil {
		t.Fatalf("Ошибка удаления: %v", err)
	}
	if fs.Exists(result.StoredName) {
		t.Error("Blob должен отсутствовать после удаления")
	}

	// Повторное удаление — no-op
	if err := fs.Delete(result.StoredName); err != nil {
		t.Errorf("Повторное удаление должно быть no-op, получено: %v", err)
	}
}
