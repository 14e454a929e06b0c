// signedurl.go — выпуск и погашение подписанных ссылок на скачивание.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/auth"
	"github.com/bigkaa/gofilevault/internal/domain/authz"
	"github.com/bigkaa/gofilevault/internal/domain/scan"
	"github.com/bigkaa/gofilevault/internal/repository"
)

// TokenDownloadPath — путь погашения download-токена.
const TokenDownloadPath = "/api/v1/files/token-download"

// SignedURL — результат выпуска подписанной ссылки.
type SignedURL struct {
	// DownloadURL — относительный URL с токеном в query-параметре
	DownloadURL string `json:"download_url"`
	// ExpiresInMinutes — срок действия ссылки в минутах
	ExpiresInMinutes int `json:"expires_in_minutes"`
}

// SignedURLService — выпуск краткоживущих ссылок на скачивание
// и их погашение без сессионной аутентификации.
type SignedURLService struct {
	files    repository.FileRepository
	users    repository.UserRepository
	codec    *auth.Codec
	download *DownloadService
	logger   *slog.Logger
}

// NewSignedURLService создаёт сервис подписанных ссылок.
func NewSignedURLService(
	files repository.FileRepository,
	users repository.UserRepository,
	codec *auth.Codec,
	download *DownloadService,
	logger *slog.Logger,
) *SignedURLService {
	return &SignedURLService{
		files:    files,
		users:    users,
		codec:    codec,
		download: download,
		logger:   logger.With(slog.String("component", "signedurl_service")),
	}
}

// Issue выпускает подписанную ссылку на файл fileID для principal.
//
// Ссылка выдаётся только на файл, который субъект может скачать прямо
// сейчас: те же проверки существования, прав и статуса, что и у
// прямого скачивания. Токен фиксирует пару (файл, пользователь);
// права перепроверяются при погашении.
func (s *SignedURLService) Issue(ctx context.Context, principal authz.Principal, fileID int64) (*SignedURL, *Error) {
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

	if ge := scan.Gate(meta.ScanStatus); ge != nil {
		return nil, fromGate(ge)
	}

	token, err := s.codec.IssueDownload(meta.ID, principal.UserID)
	if err != nil {
		s.logger.Error("Ошибка выпуска download-токена", slog.String("error", err.Error()))
		return nil, errInternal("Внутренняя ошибка")
	}

	middleware.OperationsTotal.WithLabelValues("signed_url_issue", "success").Inc()

	s.logger.Info("Подписанная ссылка выпущена",
		slog.Int64("file_id", meta.ID),
		slog.Int64("user_id", principal.UserID),
	)

	return &SignedURL{
		DownloadURL:      fmt.Sprintf("%s?token=%s", TokenDownloadPath, url.QueryEscape(token)),
		ExpiresInMinutes: int(s.codec.DownloadTTL().Minutes()),
	}, nil
}

// Redeem гасит download-токен и отдаёт содержимое файла.
//
// Токен — не обход авторизации: пользователь разрешается заново из
// хранилища (удалён → отказ; роль берётся текущая), после чего
// скачивание проходит все обычные проверки. Ссылка, выпущенная до
// понижения роли, перестаёт работать для чужих файлов.
func (s *SignedURLService) Redeem(w http.ResponseWriter, r *http.Request, token string) {
	claims, err := s.codec.VerifyDownload(token)
	if err != nil {
		apierrors.Unauthorized(w, "Невалидный или просроченный токен")
		middleware.OperationsTotal.WithLabelValues("signed_url_redeem", "denied").Inc()
		return
	}

	user, err := s.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			apierrors.Forbidden(w, "Пользователь не существует")
		} else {
			s.logger.Error("Ошибка разрешения пользователя", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Внутренняя ошибка")
		}
		middleware.OperationsTotal.WithLabelValues("signed_url_redeem", "denied").Inc()
		return
	}

	principal := authz.Principal{UserID: user.ID, Role: user.Role}
	s.download.Serve(w, r, claims.FileID, principal)
}
