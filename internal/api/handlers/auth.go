// auth.go — обработчики регистрации, входа и текущего пользователя.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/service"
)

// AuthHandler реализует endpoints /api/v1/auth/*.
type AuthHandler struct {
	auth *service.AuthService
	// sessionTTLMinutes — срок действия сессионного токена для ответа login
	sessionTTLMinutes int
}

// NewAuthHandler создаёт обработчик аутентификации.
func NewAuthHandler(auth *service.AuthService, sessionTTLMinutes int) *AuthHandler {
	return &AuthHandler{
		auth:              auth,
		sessionTTLMinutes: sessionTTLMinutes,
	}
}

// registerRequest — тело запроса POST /api/v1/auth/register.
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Role — опциональна, по умолчанию "user"
	Role string `json:"role"`
}

// Register обрабатывает POST /api/v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается JSON")
		return
	}

	user, svcErr := h.auth.Register(r.Context(), req.Email, req.Password, req.Role)
	if svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

// loginRequest — тело запроса POST /api/v1/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse — ответ успешного входа.
type loginResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// Login обрабатывает POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается JSON")
		return
	}

	token, svcErr := h.auth.Login(r.Context(), req.Email, req.Password)
	if svcErr != nil {
		writeServiceError(w, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:      token,
		TokenType:        "bearer",
		ExpiresInMinutes: h.sessionTTLMinutes,
	})
}

// Me обрабатывает GET /api/v1/auth/me.
// Возвращает текущего аутентифицированного пользователя.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	user, err := h.auth.ResolveUser(r.Context(), principal.UserID)
	if err != nil {
		apierrors.InternalError(w, "Внутренняя ошибка")
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}
