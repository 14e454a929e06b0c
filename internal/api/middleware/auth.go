// auth.go — middleware сессионной аутентификации.
// Валидирует сессионный токен (HS256/HS384/HS512, общий секрет) и
// разрешает пользователя заново из хранилища: роль берётся текущая,
// а не зафиксированная в токене на момент входа. Удалённый после
// входа пользователь получает 401, несмотря на валидную подпись.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/auth"
	"github.com/bigkaa/gofilevault/internal/domain/authz"
	"github.com/bigkaa/gofilevault/internal/repository"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// contextKeyPrincipal — ключ для аутентифицированного субъекта в контексте запроса.
const contextKeyPrincipal contextKey = "principal"

// SessionAuth — middleware сессионной аутентификации.
type SessionAuth struct {
	codec  *auth.Codec
	users  repository.UserRepository
	logger *slog.Logger
}

// NewSessionAuth создаёт middleware сессионной аутентификации.
func NewSessionAuth(codec *auth.Codec, users repository.UserRepository, logger *slog.Logger) *SessionAuth {
	return &SessionAuth{
		codec:  codec,
		users:  users,
		logger: logger.With(slog.String("component", "session_auth")),
	}
}

// Middleware возвращает HTTP middleware сессионной аутентификации.
// Извлекает Bearer token из заголовка Authorization, валидирует его
// как сессионный токен, разрешает пользователя из хранилища и помещает
// Principal в контекст запроса.
func (a *SessionAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			// Download-токен здесь отклоняется по несовпадению audience.
			claims, err := a.codec.VerifySession(tokenString)
			if err != nil {
				a.logger.Debug("Сессионный токен не прошёл валидацию",
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			user, err := a.users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					// Пользователь удалён после выпуска токена
					apierrors.Unauthorized(w, "Пользователь не существует")
					return
				}
				a.logger.Error("Ошибка разрешения пользователя",
					slog.Int64("user_id", claims.UserID),
					slog.String("error", err.Error()),
				)
				apierrors.InternalError(w, "Внутренняя ошибка")
				return
			}

			principal := authz.Principal{UserID: user.ID, Role: user.Role}
			ctx := context.WithValue(r.Context(), contextKeyPrincipal, principal)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext извлекает аутентифицированного субъекта из
// контекста запроса. Второе значение false, если запрос прошёл мимо
// middleware аутентификации.
func PrincipalFromContext(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(contextKeyPrincipal).(authz.Principal)
	return p, ok
}

// WithPrincipal помещает субъекта в контекст. Используется в тестах
// handlers для обхода middleware.
func WithPrincipal(ctx context.Context, p authz.Principal) context.Context {
	return context.WithValue(ctx, contextKeyPrincipal, p)
}
