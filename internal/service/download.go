// download.go — отдача содержимого файлов.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/domain/authz"
	"github.com/bigkaa/gofilevault/internal/domain/scan"
	"github.com/bigkaa/gofilevault/internal/repository"
	"github.com/bigkaa/gofilevault/internal/storage/filestore"
)

// DownloadService — отдача содержимого файлов с проверкой прав
// и гейтом статуса антивирусной проверки.
type DownloadService struct {
	files  repository.FileRepository
	store  *filestore.FileStore
	logger *slog.Logger
}

// NewDownloadService создаёт сервис скачивания.
func NewDownloadService(files repository.FileRepository, store *filestore.FileStore, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		files:  files,
		store:  store,
		logger: logger.With(slog.String("component", "download_service")),
	}
}

// Serve отдаёт содержимое файла fileID от имени principal.
//
// Порядок проверок фиксирован: существование (404) → права (403) →
// гейт статуса проверки (409 PENDING / 403 INFECTED) → отдача байтов.
// Ответ с ошибкой пишется внутри; возвращаемое значение — только
// признак успеха для метрик и логов вызывающего кода.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, fileID int64, principal authz.Principal) {
	meta, err := s.files.GetByID(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
		} else {
			s.logger.Error("Ошибка чтения метаданных файла", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Внутренняя ошибка")
		}
		middleware.OperationsTotal.WithLabelValues("download", "failure").Inc()
		return
	}

	if !authz.CanAccessFile(principal, meta.OwnerID) {
		apierrors.Forbidden(w, "Недостаточно прав для доступа к файлу")
		middleware.OperationsTotal.WithLabelValues("download", "denied").Inc()
		return
	}

	if ge := scan.Gate(meta.ScanStatus); ge != nil {
		apierrors.WriteError(w, ge.StatusCode, ge.Code, ge.Message)
		middleware.OperationsTotal.WithLabelValues("download", "denied").Inc()
		return
	}

	f, err := s.store.Read(meta.StoredName)
	if err != nil {
		// Метаданные есть, blob-а нет: рассинхронизация хранилища.
		// Клиенту — 404, в лог — полная картина.
		s.logger.Error("Blob отсутствует при наличии метаданных",
			slog.Int64("file_id", meta.ID),
			slog.String("stored_name", meta.StoredName),
			slog.String("error", err.Error()),
		)
		apierrors.NotFound(w, "Файл не найден")
		middleware.OperationsTotal.WithLabelValues("download", "failure").Inc()
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": meta.OriginalName}))
	w.Header().Set("ETag", fmt.Sprintf("%q", meta.Checksum))
	w.Header().Set("X-Checksum-SHA256", meta.Checksum)

	// http.ServeContent обрабатывает Range, If-Range и ETag сам.
	http.ServeContent(w, r, meta.OriginalName, meta.CreatedAt, f)

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

	s.logger.Info("Файл отдан",
		slog.Int64("file_id", meta.ID),
		slog.Int64("user_id", principal.UserID),
	)
}
