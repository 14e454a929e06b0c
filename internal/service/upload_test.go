package service

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/config"
	"github.com/bigkaa/gofilevault/internal/domain/authz"
	"github.com/bigkaa/gofilevault/internal/domain/scan"
	"github.com/bigkaa/gofilevault/internal/storage/filestore"
)

func newTestUploadService(t *testing.T, maxFileSize int64) (*UploadService, *fakeFileRepo, *fakeScheduler, *filestore.FileStore) {
	t.Helper()

	cfg := &config.Config{
		MaxFileSize:         maxFileSize,
		AllowedContentTypes: []string{"application/pdf", "text/plain"},
	}

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}

	files := newFakeFileRepo()
	scheduler := &fakeScheduler{}
	svc := NewUploadService(cfg, store, files, scheduler, slog.Default())
	return svc, files, scheduler, store
}

var testPrincipal = authz.Principal{UserID: 1, Role: authz.RoleUser}

func TestUploadSuccess(t *testing.T) {
	svc, files, scheduler, store := newTestUploadService(t, 1024)

	meta, svcErr := svc.Upload(context.Background(), testPrincipal,
		"report.pdf", "application/pdf", strings.NewReader("pdf content"))
	if svcErr != nil {
		t.Fatalf("Ошибка загрузки: %v", svcErr)
	}

	if meta.ScanStatus != scan.StatusPending {
		t.Errorf("ScanStatus = %s, ожидалось PENDING", meta.ScanStatus)
	}
	if meta.OwnerID != testPrincipal.UserID {
		t.Errorf("OwnerID = %d, ожидалось %d", meta.OwnerID, testPrincipal.UserID)
	}
	if meta.Size != int64(len("pdf content")) {
		t.Errorf("Size = %d, ожидалось %d", meta.Size, len("pdf content"))
	}
	if !store.Exists(meta.StoredName) {
		t.Error("Blob должен существовать после загрузки")
	}
	if files.status(meta.ID) != scan.StatusPending {
		t.Error("Метаданные должны быть зарегистрированы в статусе PENDING")
	}

	ids := scheduler.ids()
	if len(ids) != 1 || ids[0] != meta.ID {
		t.Errorf("Файл должен быть поставлен в очередь проверки, получено: %v", ids)
	}
}

func TestUploadUnsupportedContentType(t *testing.T) {
	svc, _, scheduler, _ := newTestUploadService(t, 1024)

	_, svcErr := svc.Upload(context.Background(), testPrincipal,
		"archive.zip", "application/zip", strings.NewReader("zip content"))
	if svcErr == nil {
		t.Fatal("Недопустимый тип содержимого должен быть отклонён")
	}
	if svcErr.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("StatusCode = %d, ожидалось 415", svcErr.StatusCode)
	}
	if svcErr.Code != errors.CodeUnsupportedMediaType {
		t.Errorf("Code = %q, ожидалось UNSUPPORTED_MEDIA_TYPE", svcErr.Code)
	}
	if len(scheduler.ids()) != 0 {
		t.Error("Отклонённый файл не должен попадать в очередь проверки")
	}
}

func TestUploadTooLarge(t *testing.T) {
	svc, _, scheduler, store := newTestUploadService(t, 10)

	_, svcErr := svc.Upload(context.Background(), testPrincipal,
		"big.txt", "text/plain", strings.NewReader(strings.Repeat("x", 11)))
	if svcErr == nil {
		t.Fatal("Файл сверх лимита должен быть отклонён")
	}
	if svcErr.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("StatusCode = %d, ожидалось 413", svcErr.StatusCode)
	}
	if svcErr.Code != errors.CodeFileTooLarge {
		t.Errorf("Code = %q, ожидалось FILE_TOO_LARGE", svcErr.Code)
	}
	if len(scheduler.ids()) != 0 {
		t.Error("Отклонённый файл не должен попадать в очередь проверки")
	}

	// Blob удалён, директория данных пуста
	entries, err := os.ReadDir(store.DataDir())
	if err != nil {
		t.Fatalf("Ошибка чтения директории данных: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Blob сверх лимита должен быть удалён, в директории осталось %d файлов", len(entries))
	}
}

func TestUploadExactlyAtLimit(t *testing.T) {
	svc, _, _, _ := newTestUploadService(t, 10)

	meta, svcErr := svc.Upload(context.Background(), testPrincipal,
		"exact.txt", "text/plain", strings.NewReader(strings.Repeat("x", 10)))
	if svcErr != nil {
		t.Fatalf("Файл ровно на лимите должен быть принят: %v", svcErr)
	}
	if meta.Size != 10 {
		t.Errorf("Size = %d, ожидалось 10", meta.Size)
	}
}

func TestUploadRepoFailureCleansBlob(t *testing.T) {
	svc, files, scheduler, store := newTestUploadService(t, 1024)
	files.createErr = context.DeadlineExceeded

	_, svcErr := svc.Upload(context.Background(), testPrincipal,
		"doc.txt", "text/plain", strings.NewReader("content"))
	if svcErr == nil {
		t.Fatal("Отказ БД должен приводить к ошибке загрузки")
	}
	if svcErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, ожидалось 500", svcErr.StatusCode)
	}
	if len(scheduler.ids()) != 0 {
		t.Error("Незарегистрированный файл не должен попадать в очередь проверки")
	}

	entries, err := os.ReadDir(store.DataDir())
	if err != nil {
		t.Fatalf("Ошибка чтения директории данных: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Осиротевший blob должен быть удалён, осталось %d файлов", len(entries))
	}
}

func TestGetFileAuthorization(t *testing.T) {
	svc, _, _, _ := newTestUploadService(t, 1024)
	ctx := context.Background()

	meta, svcErr := svc.Upload(ctx, testPrincipal, "doc.txt", "text/plain", strings.NewReader("x"))
	if svcErr != nil {
		t.Fatalf("Ошибка загрузки: %v", svcErr)
	}

	// Владелец видит свой файл
	if _, svcErr := svc.GetFile(ctx, testPrincipal, meta.ID); svcErr != nil {
		t.Errorf("Владелец должен видеть свой файл: %v", svcErr)
	}

	// Посторонний получает 403
	stranger := authz.Principal{UserID: 99, Role: authz.RoleUser}
	if _, svcErr := svc.GetFile(ctx, stranger, meta.ID); svcErr == nil || svcErr.StatusCode != http.StatusForbidden {
		t.Errorf("Посторонний должен получать 403, получено: %v", svcErr)
	}

	// Администратор видит любой файл
	admin := authz.Principal{UserID: 100, Role: authz.RoleAdmin}
	if _, svcErr := svc.GetFile(ctx, admin, meta.ID); svcErr != nil {
		t.Errorf("Администратор должен видеть любой файл: %v", svcErr)
	}

	// Несуществующий файл — 404
	if _, svcErr := svc.GetFile(ctx, testPrincipal, 9999); svcErr == nil || svcErr.StatusCode != http.StatusNotFound {
		t.Errorf("Несуществующий файл должен давать 404, получено: %v", svcErr)
	}
}

func TestListFilesVisibility(t *testing.T) {
	svc, _, _, _ := newTestUploadService(t, 1024)
	ctx := context.Background()

	alice := authz.Principal{UserID: 1, Role: authz.RoleUser}
	bob := authz.Principal{UserID: 2, Role: authz.RoleUser}
	admin := authz.Principal{UserID: 3, Role: authz.RoleAdmin}

	for _, p := range []authz.Principal{alice, alice, bob} {
		if _, svcErr := svc.Upload(ctx, p, "doc.txt", "text/plain", strings.NewReader("x")); svcErr != nil {
			t.Fatalf("Ошибка загрузки: %v", svcErr)
		}
	}

	aliceFiles, svcErr := svc.ListFiles(ctx, alice)
	if svcErr != nil {
		t.Fatalf("Ошибка списка: %v", svcErr)
	}
	if len(aliceFiles) != 2 {
		t.Errorf("Пользователь видит %d файлов, ожидалось 2 своих", len(aliceFiles))
	}

	adminFiles, svcErr := svc.ListFiles(ctx, admin)
	if svcErr != nil {
		t.Fatalf("Ошибка списка: %v", svcErr)
	}
	if len(adminFiles) != 3 {
		t.Errorf("Администратор видит %d файлов, ожидалось все 3", len(adminFiles))
	}
}
