// scan.go — фоновый координатор антивирусной проверки.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/gofilevault/internal/api/middleware"
	"github.com/bigkaa/gofilevault/internal/domain/scan"
	"github.com/bigkaa/gofilevault/internal/repository"
)

// Scheduler — постановка файла в очередь антивирусной проверки.
type Scheduler interface {
	// Schedule ставит файл в очередь проверки. Никогда не блокирует
	// вызывающий код и не возвращает ошибку: потерянная заявка
	// восстанавливается при следующем старте по статусу PENDING.
	Schedule(fileID int64)
}

// ScanService — фоновый координатор антивирусной проверки.
//
// Очередь — буферизованный канал, обрабатываемый пулом воркеров.
// Результат проверки определяется содержимым (здесь — эвристикой по
// имени), запись в БД идёт через guard на PENDING, поэтому повторная
// постановка одного файла безопасна: терминальный статус не
// перезаписывается.
type ScanService struct {
	files   repository.FileRepository
	delay   time.Duration
	workers int

	queue chan int64
	wg    sync.WaitGroup

	logger *slog.Logger
}

// NewScanService создаёт координатор проверки.
// delay — имитация длительности проверки, workers — размер пула,
// queueSize — ёмкость очереди.
func NewScanService(files repository.FileRepository, delay time.Duration, workers, queueSize int, logger *slog.Logger) *ScanService {
	return &ScanService{
		files:   files,
		delay:   delay,
		workers: workers,
		queue:   make(chan int64, queueSize),
		logger:  logger.With(slog.String("component", "scan_service")),
	}
}

// Start запускает пул воркеров и восстанавливает незавершённые проверки.
// Останавливается отменой ctx; Stop дожидается завершения воркеров.
func (s *ScanService) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Координатор проверки запущен",
		slog.Int("workers", s.workers),
		slog.Int("queue_size", cap(s.queue)),
	)

	// Файлы, оставшиеся в PENDING после перезапуска, проверяются заново.
	s.recover(ctx)
}

// Stop дожидается завершения воркеров. Вызывается после отмены ctx,
// переданного в Start.
func (s *ScanService) Stop() {
	s.wg.Wait()
	s.logger.Info("Координатор проверки остановлен")
}

// Schedule ставит файл в очередь проверки без блокировки вызывающего
// кода. При заполненной очереди заявка досылается из отдельной
// горутины: приём файла не должен ждать антивирус.
func (s *ScanService) Schedule(fileID int64) {
	select {
	case s.queue <- fileID:
		middleware.ScanQueueDepth.Set(float64(len(s.queue)))
	default:
		s.logger.Warn("Очередь проверки заполнена, заявка досылается асинхронно",
			slog.Int64("file_id", fileID),
		)
		go func() {
			s.queue <- fileID
		}()
	}
}

// recover ставит в очередь все файлы в статусе PENDING.
func (s *ScanService) recover(ctx context.Context) {
	pending, err := s.files.ListPending(ctx)
	if err != nil {
		s.logger.Error("Ошибка восстановления незавершённых проверок",
			slog.String("error", err.Error()),
		)
		return
	}
	if len(pending) == 0 {
		return
	}

	s.logger.Info("Восстановление незавершённых проверок",
		slog.Int("count", len(pending)),
	)
	for _, f := range pending {
		s.Schedule(f.ID)
	}
}

// worker обрабатывает очередь до отмены ctx.
func (s *ScanService) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	logger := s.logger.With(slog.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case fileID := <-s.queue:
			middleware.ScanQueueDepth.Set(float64(len(s.queue)))
			s.process(ctx, logger, fileID)
		}
	}
}

// process выполняет проверку одного файла.
func (s *ScanService) process(ctx context.Context, logger *slog.Logger, fileID int64) {
	// Имитация длительности проверки, прерываемая остановкой сервиса.
	// Прерванный файл остаётся в PENDING и восстановится при старте.
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	meta, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Файл исчез между постановкой и обработкой — заявка снимается.
			return
		}
		logger.Error("Ошибка чтения файла из очереди проверки",
			slog.Int64("file_id", fileID),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("scan", "failure").Inc()
		return
	}

	if meta.ScanStatus.IsTerminal() {
		// Повторная заявка на уже проверенный файл — no-op.
		return
	}

	verdict := scan.Verdict(meta.OriginalName)

	if err := s.files.UpdateScanStatus(ctx, fileID, verdict); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Конкурирующий воркер успел первым — вердикт уже записан.
			return
		}
		logger.Error("Ошибка записи вердикта проверки",
			slog.Int64("file_id", fileID),
			slog.String("verdict", string(verdict)),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("scan", "failure").Inc()
		return
	}

	middleware.OperationsTotal.WithLabelValues("scan", "success").Inc()
	middleware.FilesTotal.WithLabelValues(string(scan.StatusPending)).Dec()
	middleware.FilesTotal.WithLabelValues(string(verdict)).Inc()

	logger.Info("Файл проверен",
		slog.Int64("file_id", fileID),
		slog.String("verdict", string(verdict)),
	)
}
