// Пакет server — HTTP-сервер Filevault: маршрутизация chi,
// middleware и graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/gofilevault/internal/api/handlers"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/config"
)

// Server — HTTP-сервер Filevault.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
//
// Публичные endpoints: регистрация, вход, погашение download-токена,
// health probes и /metrics. Остальные файловые и auth endpoints
// защищены сессионной аутентификацией.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	sessionAuth *middleware.SessionAuth,
	authHandler *handlers.AuthHandler,
	filesHandler *handlers.FilesHandler,
	healthHandler *handlers.HealthHandler,
) *Server {
	router := chi.NewRouter()

	// Глобальные middleware: метрики считают все запросы, лог — тоже
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Служебные endpoints — без аутентификации
	router.Get("/health/live", healthHandler.HealthLive)
	router.Get("/health/ready", healthHandler.HealthReady)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		// Публичные endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		// Предъявитель download-токена аутентифицируется самим токеном
		r.Get("/files/token-download", filesHandler.DownloadWithToken)

		// Endpoints под сессионной аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(sessionAuth.Middleware())

			r.Get("/auth/me", authHandler.Me)

			r.Post("/files/upload", filesHandler.UploadFile)
			r.Get("/files", filesHandler.ListFiles)
			r.Get("/files/{fileID}", filesHandler.GetFileMetadata)
			r.Get("/files/{fileID}/download", filesHandler.DownloadFile)
			r.Post("/files/{fileID}/signed-url", filesHandler.CreateSignedURL)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// из конфигурации (FV_SHUTDOWN_TIMEOUT).
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown с таймаутом из конфигурации
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
