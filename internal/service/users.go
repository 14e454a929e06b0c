// users.go — регистрация, вход и разрешение пользователей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"

	"golang.org/x/crypto/bcrypt"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/auth"
	"github.com/bigkaa/gofilevault/internal/domain/authz"
	"github.com/bigkaa/gofilevault/internal/domain/model"
	"github.com/bigkaa/gofilevault/internal/repository"
)

// bcryptMaxPasswordBytes — входной лимит bcrypt: байты сверх 72 молча
// игнорируются алгоритмом, поэтому более длинные пароли отклоняются явно.
const bcryptMaxPasswordBytes = 72

// AuthService — регистрация, вход и разрешение действующего субъекта.
type AuthService struct {
	users  repository.UserRepository
	codec  *auth.Codec
	logger *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users repository.UserRepository, codec *auth.Codec, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		codec:  codec,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Register создаёт нового пользователя.
//
// Отказы: некорректный email или роль, пароль длиннее лимита bcrypt — 400;
// email уже зарегистрирован — 409.
func (s *AuthService) Register(ctx context.Context, email, password, role string) (*model.User, *Error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errValidation(fmt.Sprintf("Некорректный email: %q", email))
	}

	if len(password) == 0 {
		return nil, errValidation("Пароль не может быть пустым")
	}
	if len(password) > bcryptMaxPasswordBytes {
		return nil, errValidation(fmt.Sprintf("Пароль длиннее %d байт не поддерживается", bcryptMaxPasswordBytes))
	}

	if role == "" {
		role = authz.RoleUser
	}
	if !authz.IsValidRole(role) {
		return nil, errValidation(fmt.Sprintf("Недопустимая роль %q, допустимые: user, admin", role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Ошибка хэширования пароля", slog.String("error", err.Error()))
		return nil, errInternal("Внутренняя ошибка при регистрации")
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &Error{
				StatusCode: http.StatusConflict,
				Code:       apierrors.CodeEmailExists,
				Message:    "Email уже зарегистрирован",
			}
		}
		s.logger.Error("Ошибка создания пользователя", slog.String("error", err.Error()))
		return nil, errInternal("Внутренняя ошибка при регистрации")
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.Int64("user_id", user.ID),
		slog.String("role", user.Role),
	)

	return user, nil
}

// Login проверяет учётные данные и выпускает сессионный токен.
// Неизвестный email и неверный пароль неразличимы для клиента — 401.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *Error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", errUnauthorized("Неверные учётные данные")
		}
		s.logger.Error("Ошибка поиска пользователя", slog.String("error", err.Error()))
		return "", errInternal("Внутренняя ошибка при входе")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", errUnauthorized("Неверные учётные данные")
	}

	token, err := s.codec.IssueSession(user.ID, user.Role)
	if err != nil {
		s.logger.Error("Ошибка выпуска сессионного токена", slog.String("error", err.Error()))
		return "", errInternal("Внутренняя ошибка при входе")
	}

	s.logger.Info("Пользователь вошёл в систему", slog.Int64("user_id", user.ID))

	return token, nil
}

// ResolveUser возвращает пользователя по id из хранилища.
// Используется middleware и погашением download-токенов: роль всегда
// берётся свежей, а не из токена.
func (s *AuthService) ResolveUser(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}
