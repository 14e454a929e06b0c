package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/gofilevault/internal/auth"
	"github.com/bigkaa/gofilevault/internal/domain/authz"
	"github.com/bigkaa/gofilevault/internal/domain/model"
	"github.com/bigkaa/gofilevault/internal/domain/scan"
	"github.com/bigkaa/gofilevault/internal/storage/filestore"
)

// signedURLFixture — полный набор для тестов подписанных ссылок.
type signedURLFixture struct {
	svc   *SignedURLService
	codec *auth.Codec
	users *fakeUserRepo
	files *fakeFileRepo
	meta  *model.FileMeta
	owner *model.User
}

func newSignedURLFixture(t *testing.T, status scan.Status) *signedURLFixture {
	t.Helper()

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}
	result, err := store.Save(strings.NewReader("file bytes"))
	if err != nil {
		t.Fatalf("Ошибка сохранения blob-а: %v", err)
	}

	users := newFakeUserRepo()
	owner := &model.User{Email: "owner@example.com", PasswordHash: "hash", Role: authz.RoleUser}
	if err := users.Create(context.Background(), owner); err != nil {
		t.Fatalf("Ошибка создания пользователя: %v", err)
	}

	files := newFakeFileRepo()
	meta := &model.FileMeta{
		OwnerID:      owner.ID,
		OriginalName: "report.pdf",
		StoredName:   result.StoredName,
		Size:         result.Size,
		ContentType:  "application/pdf",
		Checksum:     result.Checksum,
		ScanStatus:   status,
	}
	if err := files.Create(context.Background(), meta); err != nil {
		t.Fatalf("Ошибка создания метаданных: %v", err)
	}

	codec, err := auth.NewCodec("test-secret", "HS256", time.Hour, 5*time.Minute)
	if err != nil {
		t.Fatalf("Ошибка создания кодека: %v", err)
	}

	download := NewDownloadService(files, store, slog.Default())
	svc := NewSignedURLService(files, users, codec, download, slog.Default())

	return &signedURLFixture{
		svc:   svc,
		codec: codec,
		users: users,
		files: files,
		meta:  meta,
		owner: owner,
	}
}

func (f *signedURLFixture) ownerPrincipal() authz.Principal {
	return authz.Principal{UserID: f.owner.ID, Role: f.owner.Role}
}

// tokenFromURL извлекает токен из download_url.
func tokenFromURL(t *testing.T, downloadURL string) string {
	t.Helper()

	u, err := url.Parse(downloadURL)
	if err != nil {
		t.Fatalf("Ошибка разбора download_url: %v", err)
	}
	token := u.Query().Get("token")
	if token == "" {
		t.Fatalf("download_url %q не содержит token", downloadURL)
	}
	return token
}

func TestIssueAndRedeem(t *testing.T) {
	f := newSignedURLFixture(t, scan.StatusClean)

	signed, svcErr := f.svc.Issue(context.Background(), f.ownerPrincipal(), f.meta.ID)
	if svcErr != nil {
		t.Fatalf("Ошибка выпуска ссылки: %v", svcErr)
	}

	if !strings.HasPrefix(signed.DownloadURL, TokenDownloadPath+"?token=") {
		t.Errorf("DownloadURL = %q, ожидался путь %s", signed.DownloadURL, TokenDownloadPath)
	}
	if signed.ExpiresInMinutes != 5 {
		t.Errorf("ExpiresInMinutes = %d, ожидалось 5", signed.ExpiresInMinutes)
	}

	// Погашение без сессионной аутентификации
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, signed.DownloadURL, nil)
	f.svc.Redeem(rec, req, tokenFromURL(t, signed.DownloadURL))

	if rec.Code != http.StatusOK {
		t.Fatalf("Статус погашения = %d, ожидалось 200 (тело: %s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "file bytes" {
		t.Error("Погашение должно отдавать содержимое файла")
	}
}

func TestRedeemIsRepeatable(t *testing.T) {
	f := newSignedURLFixture(t, scan.StatusClean)

	signed, svcErr := f.svc.Issue(context.Background(), f.ownerPrincipal(), f.meta.ID)
	if svcErr != nil {
		t.Fatalf("Ошибка выпуска ссылки: %v", svcErr)
	}
	token := tokenFromURL(t, signed.DownloadURL)

	// Токен действует до истечения срока, а не до первого использования
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, signed.DownloadURL, nil)
		f.svc.Redeem(rec, req, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("Погашение #%d: статус %d, ожидалось 200", i+1, rec.Code)
		}
	}
}

func TestIssueBlockedByGate(t *testing.T) {
	for _, tt := range []struct {
		status   scan.Status
		wantCode int
	}{
		{scan.StatusPending, http.StatusConflict},
		{scan.StatusInfected, http.StatusForbidden},
	} {
		f := newSignedURLFixture(t, tt.status)

		_, svcErr := f.svc.Issue(context.Background(), f.ownerPrincipal(), f.meta.ID)
		if svcErr == nil {
			t.Fatalf("Выпуск ссылки на файл %s должен быть отклонён", tt.status)
		}
		if svcErr.StatusCode != tt.wantCode {
			t.Errorf("%s: StatusCode = %d, ожидалось %d", tt.status, svcErr.StatusCode, tt.wantCode)
		}
	}
}

func TestIssueForbiddenForStranger(t *testing.T) {
	f := newSignedURLFixture(t, scan.StatusClean)

	stranger := authz.Principal{UserID: 999, Role: authz.RoleUser}
	_, svcErr := f.svc.Issue(context.Background(), stranger, f.meta.ID)
	if svcErr == nil || svcErr.StatusCode != http.StatusForbidden {
		t.Errorf("Посторонний должен получать 403, получено: %v", svcErr)
	}
}

func TestIssueNotFound(t *testing.T) {
	f := newSignedURLFixture(t, scan.StatusClean)

	_, svcErr := f.svc.Issue(context.Background(), f.ownerPrincipal(), 9999)
	if svcErr == nil || svcErr.StatusCode != http.StatusNotFound {
		t.Errorf("Несуществующий файл должен давать 404, получено: %v", svcErr)
	}
}

func TestRedeemInvalidToken(t *testing.T) {
	f := newSignedURLFixture(t, scan.StatusClean)

	for _, token := range []string{"garbage", "a.b.c"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, TokenDownloadPath, nil)
		f.svc.Redeem(rec, req, token)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Мусорный токен %q: статус %d, ожидалось 401", token, rec.Code)
		}
	}
}

func TestRedeemSessionTokenRejected(t *testing.T) {
	f := newSignedURLFixture(t, scan.StatusClean)

	// Сессионный токен не годится как download-токен
	sessionToken, err := f.codec.IssueSession(f.owner.ID, f.owner.Role)
	if err != nil {
		t.Fatalf("Ошибка выпуска сессионного токена: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, TokenDownloadPath, nil)
	f.svc.Redeem(rec, req, sessionToken)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Статус = %d, ожидалось 401 для сессионного токена", rec.Code)
	}
}

func TestRedeemExpiredToken(t *testing.T) {
	f := newSignedURLFixture(t, scan.StatusClean)

	// Кодек с отрицательным TTL download-токена: токен просрочен сразу
	expiredCodec, err := auth.NewCodec("test-secret", "HS256", time.Hour, -time.Minute)
	if err != nil {
		t.Fatalf("Ошибка создания кодека: %v", err)
	}
	token, err := expiredCodec.IssueDownload(f.meta.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("Ошибка выпуска токена: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, TokenDownloadPath, nil)
	f.svc.Redeem(rec, req, token)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Статус = %d, ожидалось 401 для просроченного токена", rec.Code)
	}
}

func TestRedeemDeletedUser(t *testing.T) {
	f := newSignedURLFixture(t, scan.StatusClean)

	signed, svcErr := f.svc.Issue(context.Background(), f.ownerPrincipal(), f.meta.ID)
	if svcErr != nil {
		t.Fatalf("Ошибка выпуска ссылки: %v", svcErr)
	}

	// Пользователь удалён между выпуском и погашением
	f.users.delete(f.owner.ID)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, signed.DownloadURL, nil)
	f.svc.Redeem(rec, req, tokenFromURL(t, signed.DownloadURL))

	if rec.Code != http.StatusForbidden {
		t.Errorf("Статус = %d, ожидалось 403 для удалённого пользователя", rec.Code)
	}
}

func TestRedeemUsesCurrentRole(t *testing.T) {
	f := newSignedURLFixture(t, scan.StatusClean)

	// Администратор выпускает ссылку на чужой файл
	admin := &model.User{Email: "admin@example.com", PasswordHash: "hash", Role: authz.RoleAdmin}
	if err := f.users.Create(context.Background(), admin); err != nil {
		t.Fatalf("Ошибка создания администратора: %v", err)
	}

	signed, svcErr := f.svc.Issue(context.Background(),
		authz.Principal{UserID: admin.ID, Role: admin.Role}, f.meta.ID)
	if svcErr != nil {
		t.Fatalf("Ошибка выпуска ссылки: %v", svcErr)
	}
	token := tokenFromURL(t, signed.DownloadURL)

	// Понижение роли до обычного пользователя: права перепроверяются
	// при погашении по текущей роли, а не зафиксированной в момент выпуска
	f.users.setRole(admin.ID, authz.RoleUser)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, signed.DownloadURL, nil)
	f.svc.Redeem(rec, req, token)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Статус = %d, ожидалось 403 после понижения роли", rec.Code)
	}
}
