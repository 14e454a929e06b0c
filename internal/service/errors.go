// errors.go — типизированная ошибка сервисного слоя с HTTP-кодом.
// Каждый отказ бизнес-логики конвертируется в явный Error на границе;
// handlers отображают его в ответ 1:1 через apierrors.WriteError.
package service

import (
	"fmt"
	"net/http"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
	"github.com/bigkaa/gofilevault/internal/domain/scan"
)

// Error — отказ бизнес-логики с HTTP-кодом.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Конструкторы для типичных отказов ---

func errValidation(message string) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: apierrors.CodeValidationError, Message: message}
}

func errUnauthorized(message string) *Error {
	return &Error{StatusCode: http.StatusUnauthorized, Code: apierrors.CodeUnauthorized, Message: message}
}

func errForbidden(message string) *Error {
	return &Error{StatusCode: http.StatusForbidden, Code: apierrors.CodeForbidden, Message: message}
}

func errNotFound(message string) *Error {
	return &Error{StatusCode: http.StatusNotFound, Code: apierrors.CodeNotFound, Message: message}
}

func errInternal(message string) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Code: apierrors.CodeInternalError, Message: message}
}

// fromGate конвертирует отказ гейта проверки в ошибку сервисного слоя.
func fromGate(ge *scan.GateError) *Error {
	return &Error{StatusCode: ge.StatusCode, Code: ge.Code, Message: ge.Message}
}
