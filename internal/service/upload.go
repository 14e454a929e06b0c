// upload.go — приём файлов: валидация, durable запись, регистрация метаданных.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/config"
	"github.com/bigkaa/gofilevault/internal/domain/authz"
	"github.com/bigkaa/gofilevault/internal/domain/model"
	"github.com/bigkaa/gofilevault/internal/domain/scan"
	"github.com/bigkaa/gofilevault/internal/repository"
	"github.com/bigkaa/gofilevault/internal/storage/filestore"
)

// UploadService — приём файлов в хранилище.
//
// Порядок гарантий:
//  1. тип содержимого проверяется до записи хоть одного байта;
//  2. метаданные создаются только после durable записи blob-а;
//  3. при любом отказе после записи blob удаляется — осиротевших
//     байтов без метаданных не остаётся.
type UploadService struct {
	cfg       *config.Config
	store     *filestore.FileStore
	files     repository.FileRepository
	scheduler Scheduler
	logger    *slog.Logger
}

// NewUploadService создаёт сервис приёма файлов.
func NewUploadService(
	cfg *config.Config,
	store *filestore.FileStore,
	files repository.FileRepository,
	scheduler Scheduler,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		cfg:       cfg,
		store:     store,
		files:     files,
		scheduler: scheduler,
		logger:    logger.With(slog.String("component", "upload_service")),
	}
}

// Upload принимает файл от пользователя.
//
// Содержимое читается потоково: лимит размера применяется к фактически
// записанным байтам, а не к заявленному клиентом Content-Length.
// Файл регистрируется в статусе PENDING и ставится в очередь проверки.
func (s *UploadService) Upload(
	ctx context.Context,
	principal authz.Principal,
	originalName, contentType string,
	reader io.Reader,
) (*model.FileMeta, *Error) {
	if originalName == "" {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, errValidation("Имя файла не может быть пустым")
	}

	if !s.cfg.IsContentTypeAllowed(contentType) {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, &Error{
			StatusCode: http.StatusUnsupportedMediaType,
			Code:       apierrors.CodeUnsupportedMediaType,
			Message:    fmt.Sprintf("Тип содержимого %q не поддерживается", contentType),
		}
	}

	// Читаем на один байт больше лимита: ровно лимит — допустимо,
	// лимит+1 — превышение.
	limited := io.LimitReader(reader, s.cfg.MaxFileSize+1)

	result, err := s.store.Save(limited)
	if err != nil {
		s.logger.Error("Ошибка записи blob-а", slog.String("error", err.Error()))
		middleware.OperationsTotal.WithLabelValues("upload", "failure").Inc()
		return nil, errInternal("Внутренняя ошибка при сохранении файла")
	}

	if result.Size > s.cfg.MaxFileSize {
		if err := s.store.Delete(result.StoredName); err != nil {
			s.logger.Error("Ошибка удаления blob-а сверх лимита",
				slog.String("stored_name", result.StoredName),
				slog.String("error", err.Error()),
			)
		}
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, &Error{
			StatusCode: http.StatusRequestEntityTooLarge,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Файл превышает лимит %d байт", s.cfg.MaxFileSize),
		}
	}

	meta := &model.FileMeta{
		OwnerID:      principal.UserID,
		OriginalName: originalName,
		StoredName:   result.StoredName,
		Size:         result.Size,
		ContentType:  contentType,
		Checksum:     result.Checksum,
		ScanStatus:   scan.StatusPending,
	}

	if err := s.files.Create(ctx, meta); err != nil {
		// Blob без метаданных недостижим — убираем его сразу.
		if delErr := s.store.Delete(result.StoredName); delErr != nil {
			s.logger.Error("Ошибка удаления blob-а после отказа БД",
				slog.String("stored_name", result.StoredName),
				slog.String("error", delErr.Error()),
			)
		}
		if errors.Is(err, repository.ErrConflict) {
			s.logger.Error("Коллизия системного ключа blob-а",
				slog.String("stored_name", result.StoredName),
			)
		} else {
			s.logger.Error("Ошибка создания метаданных файла", slog.String("error", err.Error()))
		}
		middleware.OperationsTotal.WithLabelValues("upload", "failure").Inc()
		return nil, errInternal("Внутренняя ошибка при сохранении файла")
	}

	s.scheduler.Schedule(meta.ID)

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.FilesTotal.WithLabelValues(string(scan.StatusPending)).Inc()

	s.logger.Info("Файл принят",
		slog.Int64("file_id", meta.ID),
		slog.Int64("owner_id", meta.OwnerID),
		slog.Int64("size", meta.Size),
		slog.String("content_type", meta.ContentType),
	)

	return meta, nil
}

// GetFile возвращает метаданные файла с проверкой прав доступа.
// Несуществующий и чужой файл различимы: 404 против 403, существование
// чужого файла не скрывается (идентификаторы — последовательные числа).
func (s *UploadService) GetFile(ctx context.Context, principal authz.Principal, fileID int64) (*model.FileMeta, *Error) {
	meta, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errNotFound("Файл не найден")
		}
		s.logger.Error("Ошибка чтения метаданных файла", slog.String("error", err.Error()))
		return nil, errInternal("Внутренняя ошибка")
	}

	if !authz.CanAccessFile(principal, meta.OwnerID) {
		return nil, errForbidden("Недостаточно прав для доступа к файлу")
	}

	return meta, nil
}

// ListFiles возвращает файлы, видимые субъекту: администратор видит все,
// обычный пользователь — только свои.
func (s *UploadService) ListFiles(ctx context.Context, principal authz.Principal) ([]*model.FileMeta, *Error) {
	var (
		files []*model.FileMeta
		err   error
	)
	if principal.IsAdmin() {
		files, err = s.files.ListAll(ctx)
	} else {
		files, err = s.files.ListByOwner(ctx, principal.UserID)
	}
	if err != nil {
		s.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
		return nil, errInternal("Внутренняя ошибка")
	}
	return files, nil
}
