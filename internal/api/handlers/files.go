// files.go — обработчики файловых операций: загрузка, списки,
// метаданные, скачивание, подписанные ссылки.
package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/domain/authz"
	"github.com/bigkaa/gofilevault/internal/service"
)

// multipartOverhead — запас к лимиту тела запроса на заголовки
// multipart-частей и boundary.
const multipartOverhead = 1 << 20

// FilesHandler реализует endpoints /api/v1/files*.
type FilesHandler struct {
	upload   *service.UploadService
	download *service.DownloadService
	signed   *service.SignedURLService
	// maxFileSize — лимит размера файла для ограничения тела запроса
	maxFileSize int64
}

// NewFilesHandler создаёт обработчик файловых операций.
func NewFilesHandler(
	upload *service.UploadService,
	download *service.DownloadService,
	signed *service.SignedURLService,
	maxFileSize int64,
) *FilesHandler {
	return &FilesHandler{
		upload:      upload,
		download:    download,
		signed:      signed,
		maxFileSize: maxFileSize,
	}
}

// UploadFile обрабатывает POST /api/v1/files/upload.
// Ожидает multipart/form-data с полем file.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	// Ограничиваем тело запроса целиком: лимит размера файла плюс
	// запас на multipart-обвязку. Точная проверка размера — в сервисе
	// по фактически записанным байтам.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, "Файл превышает допустимый размер")
			return
		}
		apierrors.ValidationError(w, "Ожидается multipart/form-data с полем file")
		return
	}
	defer file.Close()

	// Только базовое имя: путь из имени файла клиента не принимается.
	originalName := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")

	meta, svcErr := h.upload.Upload(r.Context(), principal, originalName, contentType, file)
	if svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusCreated, newFileResponse(meta))
}

// listFilesResponse — ответ GET /api/v1/files.
type listFilesResponse struct {
	Files []fileResponse `json:"files"`
	Total int            `json:"total"`
}

// ListFiles обрабатывает GET /api/v1/files.
// Администратор видит все файлы, обычный пользователь — только свои.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	files, svcErr := h.upload.ListFiles(r.Context(), principal)
	if svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}

	resp := listFilesResponse{
		Files: make([]fileResponse, 0, len(files)),
		Total: len(files),
	}
	for _, f := range files {
		resp.Files = append(resp.Files, newFileResponse(f))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetFileMetadata обрабатывает GET /api/v1/files/{fileID}.
func (h *FilesHandler) GetFileMetadata(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	fileID, ok := fileIDOr400(w, r)
	if !ok {
		return
	}

	meta, svcErr := h.upload.GetFile(r.Context(), principal, fileID)
	if svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, newFileResponse(meta))
}

// DownloadFile обрабатывает GET /api/v1/files/{fileID}/download.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	fileID, ok := fileIDOr400(w, r)
	if !ok {
		return
	}

	h.download.Serve(w, r, fileID, principal)
}

// CreateSignedURL обрабатывает POST /api/v1/files/{fileID}/signed-url.
func (h *FilesHandler) CreateSignedURL(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOr401(w, r)
	if !ok {
		return
	}

	fileID, ok := fileIDOr400(w, r)
	if !ok {
		return
	}

	signed, svcErr := h.signed.Issue(r.Context(), principal, fileID)
	if svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, signed)
}

// DownloadWithToken обрабатывает GET /api/v1/files/token-download?token=...
// Единственный файловый endpoint без сессионной аутентификации:
// предъявитель валидного download-токена действует от имени
// зафиксированного в токене пользователя.
func (h *FilesHandler) DownloadWithToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		apierrors.ValidationError(w, "Отсутствует обязательный параметр token")
		return
	}

	h.signed.Redeem(w, r, token)
}

// principalOr401 извлекает субъекта из контекста или пишет 401.
func principalOr401(w http.ResponseWriter, r *http.Request) (authz.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return authz.Principal{}, false
	}
	return principal, true
}

// fileIDOr400 извлекает fileID из пути или пишет 400.
func fileIDOr400(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "fileID")
	fileID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || fileID <= 0 {
		apierrors.ValidationError(w, "Некорректный идентификатор файла")
		return 0, false
	}
	return fileID, true
}
