// Пакет scan — жизненный цикл антивирусной проверки файла.
//
// Конечный автомат статусов:
//
//	PENDING → CLEAN | INFECTED
//
// Оба целевых статуса терминальны: обратных переходов нет, повторная
// проверка терминального файла — no-op. Гейт скачивания применяется
// всеми операциями, отдающими байты файла: прямое скачивание,
// выдача signed URL и её погашение.
package scan

import (
	"fmt"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/gofilevault/internal/api/errors"
)

// Status — статус антивирусной проверки файла.
type Status string

const (
	// StatusPending — файл загружен, проверка ещё не завершена
	StatusPending Status = "PENDING"
	// StatusClean — файл проверен, скачивание разрешено (терминальный)
	StatusClean Status = "CLEAN"
	// StatusInfected — файл заражён, скачивание заблокировано (терминальный)
	StatusInfected Status = "INFECTED"
)

// validTransitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — набор допустимых целевых статусов.
var validTransitions = map[Status]map[Status]bool{
	StatusPending:  {StatusClean: true, StatusInfected: true},
	StatusClean:    {}, // Терминальный статус
	StatusInfected: {}, // Терминальный статус
}

// IsValid проверяет, является ли строка допустимым статусом.
func IsValid(s Status) bool {
	switch s {
	case StatusPending, StatusClean, StatusInfected:
		return true
	default:
		return false
	}
}

// IsTerminal проверяет, что статус терминальный (CLEAN или INFECTED).
func (s Status) IsTerminal() bool {
	return s == StatusClean || s == StatusInfected
}

// CanTransition проверяет допустимость перехода from → to.
func CanTransition(from, to Status) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Verdict вычисляет терминальный статус файла по его оригинальному имени.
// Placeholder-политика: INFECTED, если имя содержит подстроку "virus"
// (без учёта регистра), иначе CLEAN. Контракт гейта вокруг вердикта
// не зависит от конкретного предиката.
func Verdict(originalName string) Status {
	if strings.Contains(strings.ToLower(originalName), "virus") {
		return StatusInfected
	}
	return StatusClean
}

// GateError — отказ гейта скачивания с HTTP-кодом.
type GateError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Gate проверяет, разрешает ли статус проверки отдачу байтов файла.
// PENDING — 409 (повторить позже), INFECTED — 403 (навсегда), CLEAN — nil.
func Gate(status Status) *GateError {
	switch status {
	case StatusClean:
		return nil
	case StatusPending:
		return &GateError{
			StatusCode: http.StatusConflict,
			Code:       apierrors.CodeScanPending,
			Message:    "Файл ещё не проверен антивирусом",
		}
	case StatusInfected:
		return &GateError{
			StatusCode: http.StatusForbidden,
			Code:       apierrors.CodeFileInfected,
			Message:    "Файл заражён, скачивание заблокировано",
		}
	default:
		return &GateError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    fmt.Sprintf("Неизвестный статус проверки: %q", status),
		}
	}
}
