// Точка входа Filevault — сервиса защищённого хранения файлов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/gofilevault/internal/api/handlers"
	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/auth"
	"github.com/bigkaa/gofilevault/internal/config"
	"github.com/bigkaa/gofilevault/internal/database"
	"github.com/bigkaa/gofilevault/internal/repository"
	"github.com/bigkaa/gofilevault/internal/server"
	"github.com/bigkaa/gofilevault/internal/service"
	"github.com/bigkaa/gofilevault/internal/storage/filestore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Filevault запускается",
		slog.String("service_id", cfg.ServiceID),
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
	)

	// --- Инициализация компонентов ---

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. PostgreSQL: подключение и миграции
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка применения миграций", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Репозитории
	userRepo := repository.NewUserRepository(pool)
	fileRepo := repository.NewFileRepository(pool)

	// 3. Blob-хранилище
	store, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Кодек токенов
	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.JWTAlg, cfg.SessionTTL, cfg.DownloadTTL)
	if err != nil {
		logger.Error("Ошибка инициализации кодека токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Начальные значения gauge-метрик файлов
	if err := seedFileMetrics(ctx, fileRepo); err != nil {
		logger.Warn("Не удалось инициализировать метрики файлов",
			slog.String("error", err.Error()),
		)
	}

	// 5. Сервисы
	scanSvc := service.NewScanService(fileRepo, cfg.ScanDelay, cfg.ScanWorkers, cfg.ScanQueueSize, logger)
	authSvc := service.NewAuthService(userRepo, codec, logger)
	uploadSvc := service.NewUploadService(cfg, store, fileRepo, scanSvc, logger)
	downloadSvc := service.NewDownloadService(fileRepo, store, logger)
	signedSvc := service.NewSignedURLService(fileRepo, userRepo, codec, downloadSvc, logger)

	// 6. Фоновые процессы

	// 6.1 Координатор антивирусной проверки (с восстановлением PENDING)
	scanSvc.Start(ctx)

	// 6.2 topologymetrics — мониторинг зависимостей.
	// pgcheck работает через *sql.DB, получаем адаптер из pgxpool.
	sqlDB := stdlib.OpenDBFromPool(pool)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		cfg.ServiceID,
		cfg.DephealthGroup,
		sqlDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 7. Middleware и handlers
	sessionAuth := middleware.NewSessionAuth(codec, userRepo, logger)
	authHandler := handlers.NewAuthHandler(authSvc, int(cfg.SessionTTL.Minutes()))
	filesHandler := handlers.NewFilesHandler(uploadSvc, downloadSvc, signedSvc, cfg.MaxFileSize)
	healthHandler := handlers.NewHealthHandler(cfg.DataDir, database.NewReadinessChecker(pool))

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, sessionAuth, authHandler, filesHandler, healthHandler)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	cancel()
	scanSvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Filevault остановлен")
}

// seedFileMetrics выставляет начальные значения gauge-метрик файлов
// по текущему содержимому базы данных.
func seedFileMetrics(ctx context.Context, files repository.FileRepository) error {
	all, err := files.ListAll(ctx)
	if err != nil {
		return err
	}

	counts := map[string]float64{}
	for _, f := range all {
		counts[string(f.ScanStatus)]++
	}
	for status, count := range counts {
		middleware.FilesTotal.WithLabelValues(status).Set(count)
	}
	return nil
}
