// handler.go — общие вспомогательные функции обработчиков API.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/domain/model"
	"github.com/bigkaa/gofilevault/internal/service"
)

// writeJSON записывает JSON-ответ с указанным статус-кодом.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
func writeServiceError(w http.ResponseWriter, err *service.Error) {
	apierrors.WriteError(w, err.StatusCode, err.Code, err.Message)
}

// userResponse — представление пользователя в ответах API.
// Хэш пароля наружу не отдаётся никогда.
type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// fileResponse — представление метаданных файла в ответах API.
// Системный ключ blob-а (stored_name) наружу не отдаётся.
type fileResponse struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	Checksum     string    `json:"checksum"`
	ScanStatus   string    `json:"scan_status"`
	CreatedAt    time.Time `json:"created_at"`
}

func newFileResponse(f *model.FileMeta) fileResponse {
	return fileResponse{
		ID:           f.ID,
		OwnerID:      f.OwnerID,
		OriginalName: f.OriginalName,
		Size:         f.Size,
		ContentType:  f.ContentType,
		Checksum:     f.Checksum,
		ScanStatus:   string(f.ScanStatus),
		CreatedAt:    f.CreatedAt,
	}
}
