// metrics.go — Prometheus HTTP метрики Filevault.
// Регистрирует метрики: fv_http_requests_total, fv_http_request_duration_seconds.
// Бизнес-метрики (fv_files_total, fv_operations_total) регистрируются здесь же
// и обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fv_http_requests_total",
			Help: "Общее количество HTTP-запросов к Filevault",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fv_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Filevault в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// FilesTotal — текущее количество файлов по статусу проверки (gauge).
	FilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fv_files_total",
			Help: "Текущее количество файлов по статусу антивирусной проверки",
		},
		[]string{"scan_status"},
	)

	// OperationsTotal — общее количество файловых операций.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fv_operations_total",
			Help: "Общее количество файловых операций",
		},
		[]string{"operation", "result"},
	)

	// ScanQueueDepth — текущая глубина очереди антивирусной проверки (gauge).
	ScanQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fv_scan_queue_depth",
			Help: "Текущая глубина очереди антивирусной проверки",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем числовые id на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет числовые id в пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/files/42/download → /api/v1/files/{id}/download
func normalizePath(path string) string {
	const filesPrefix = "/api/v1/files/"

	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/auth/register", "/api/v1/auth/login", "/api/v1/auth/me",
		"/api/v1/files", "/api/v1/files/upload", "/api/v1/files/token-download":
		return path
	}

	if rest, ok := strings.CutPrefix(path, filesPrefix); ok {
		id, suffix, _ := strings.Cut(rest, "/")
		if isNumeric(id) {
			switch suffix {
			case "":
				return "/api/v1/files/{id}"
			case "download":
				return "/api/v1/files/{id}/download"
			case "signed-url":
				return "/api/v1/files/{id}/signed-url"
			}
		}
	}
	return path
}

// isNumeric проверяет, что сегмент пути — непустое десятичное число.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
