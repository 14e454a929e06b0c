// Пакет config — загрузка и валидация конфигурации Filevault
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Filevault.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Идентификатор сервиса (имя вершины в метриках dephealth)
	ServiceID string

	// Общий секрет подписи токенов (сессионных и download)
	JWTSecret string
	// Алгоритм подписи (HS256, HS384, HS512)
	JWTAlg string
	// Срок действия сессионного токена
	SessionTTL time.Duration
	// Срок действия download-токена
	DownloadTTL time.Duration

	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Allow-list заявленных MIME-типов загружаемых файлов
	AllowedContentTypes []string
	// Путь к корневой директории blob-хранилища
	DataDir string

	// Задержка перед антивирусной проверкой (имитация инспекции)
	ScanDelay time.Duration
	// Количество фоновых scan-воркеров
	ScanWorkers int
	// Размер очереди заданий проверки
	ScanQueueSize int

	// Параметры подключения к PostgreSQL
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей dephealth
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// FV_PORT — порт HTTP-сервера (по умолчанию 8020)
	port, err := getEnvInt("FV_PORT", 8020)
	if err != nil {
		return nil, fmt.Errorf("FV_PORT: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("FV_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// FV_SERVICE_ID — идентификатор сервиса (по умолчанию "filevault")
	cfg.ServiceID = getEnvDefault("FV_SERVICE_ID", "filevault")

	// FV_JWT_SECRET — обязательный
	cfg.JWTSecret, err = getEnvRequired("FV_JWT_SECRET")
	if err != nil {
		return nil, err
	}

	// FV_JWT_ALG — алгоритм подписи (по умолчанию HS256)
	cfg.JWTAlg = getEnvDefault("FV_JWT_ALG", "HS256")
	switch cfg.JWTAlg {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("FV_JWT_ALG: недопустимое значение %q, допустимые: HS256, HS384, HS512", cfg.JWTAlg)
	}

	// FV_SESSION_TTL — срок действия сессионного токена (по умолчанию 60m)
	cfg.SessionTTL, err = getEnvDuration("FV_SESSION_TTL", 60*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FV_SESSION_TTL: %w", err)
	}

	// FV_DOWNLOAD_TTL — срок действия download-токена (по умолчанию 5m)
	cfg.DownloadTTL, err = getEnvDuration("FV_DOWNLOAD_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FV_DOWNLOAD_TTL: %w", err)
	}

	// FV_MAX_FILE_SIZE_MB — максимальный размер файла в мегабайтах (по умолчанию 10)
	maxMB, err := getEnvInt64("FV_MAX_FILE_SIZE_MB", 10)
	if err != nil {
		return nil, fmt.Errorf("FV_MAX_FILE_SIZE_MB: %w", err)
	}
	if maxMB <= 0 {
		return nil, fmt.Errorf("FV_MAX_FILE_SIZE_MB: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxMB * 1024 * 1024

	// FV_ALLOWED_CONTENT_TYPES — allow-list MIME-типов через запятую
	allowed := getEnvDefault("FV_ALLOWED_CONTENT_TYPES",
		"application/pdf,image/png,image/jpeg,text/plain")
	for _, ct := range strings.Split(allowed, ",") {
		ct = strings.TrimSpace(ct)
		if ct != "" {
			cfg.AllowedContentTypes = append(cfg.AllowedContentTypes, ct)
		}
	}
	if len(cfg.AllowedContentTypes) == 0 {
		return nil, fmt.Errorf("FV_ALLOWED_CONTENT_TYPES: allow-list не может быть пустым")
	}

	// FV_DATA_DIR — обязательный, корень blob-хранилища
	cfg.DataDir, err = getEnvRequired("FV_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// FV_SCAN_DELAY — задержка проверки (по умолчанию 2s)
	cfg.ScanDelay, err = getEnvDuration("FV_SCAN_DELAY", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FV_SCAN_DELAY: %w", err)
	}

	// FV_SCAN_WORKERS — количество scan-воркеров (по умолчанию 2)
	cfg.ScanWorkers, err = getEnvInt("FV_SCAN_WORKERS", 2)
	if err != nil {
		return nil, fmt.Errorf("FV_SCAN_WORKERS: %w", err)
	}
	if cfg.ScanWorkers <= 0 {
		return nil, fmt.Errorf("FV_SCAN_WORKERS: значение должно быть положительным")
	}

	// FV_SCAN_QUEUE_SIZE — размер очереди проверки (по умолчанию 64)
	cfg.ScanQueueSize, err = getEnvInt("FV_SCAN_QUEUE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("FV_SCAN_QUEUE_SIZE: %w", err)
	}
	if cfg.ScanQueueSize <= 0 {
		return nil, fmt.Errorf("FV_SCAN_QUEUE_SIZE: значение должно быть положительным")
	}

	// FV_DB_* — параметры PostgreSQL
	cfg.DBHost, err = getEnvRequired("FV_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("FV_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FV_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("FV_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBUser, err = getEnvRequired("FV_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("FV_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("FV_DB_SSL_MODE", "disable")

	// FV_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FV_LOG_LEVEL: %w", err)
	}

	// FV_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FV_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// FV_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FV_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FV_SHUTDOWN_TIMEOUT: %w", err)
	}

	// FV_DEPHEALTH_GROUP — имя группы в метриках dephealth (по умолчанию "filevault")
	cfg.DephealthGroup = getEnvDefault("FV_DEPHEALTH_GROUP", "filevault")

	// FV_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("FV_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FV_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL.
// Используется для лейблов метрик dephealth.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%d/%s?sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsContentTypeAllowed проверяет, входит ли MIME-тип в allow-list.
func (c *Config) IsContentTypeAllowed(contentType string) bool {
	for _, ct := range c.AllowedContentTypes {
		if ct == contentType {
			return true
		}
	}
	return false
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 2s, 5m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
