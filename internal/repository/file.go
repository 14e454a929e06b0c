package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gofilevault/internal/domain/model"
	"github.com/bigkaa/gofilevault/internal/domain/scan"
)

// FileRepository — доступ к таблице files.
type FileRepository interface {
	// Create создаёт запись метаданных файла. Заполняет ID и CreatedAt.
	// Вызывается только после того, как байты durably записаны в blob-хранилище.
	Create(ctx context.Context, f *model.FileMeta) error
	// GetByID возвращает метаданные по id или ErrNotFound.
	GetByID(ctx context.Context, id int64) (*model.FileMeta, error)
	// ListByOwner возвращает файлы владельца, новые первыми.
	ListByOwner(ctx context.Context, ownerID int64) ([]*model.FileMeta, error)
	// ListAll возвращает все файлы, новые первыми. Только для администраторов.
	ListAll(ctx context.Context) ([]*model.FileMeta, error)
	// ListPending возвращает файлы в статусе PENDING, старые первыми.
	// Используется при старте для восстановления незавершённых проверок.
	ListPending(ctx context.Context) ([]*model.FileMeta, error)
	// UpdateScanStatus переводит файл из PENDING в терминальный статус.
	// Запись уже в терминальном статусе не изменяется (идемпотентность
	// повторного запуска проверки); в этом случае возвращается ErrNotFound.
	UpdateScanStatus(ctx context.Context, id int64, status scan.Status) error
}

// fileRepo — реализация FileRepository поверх PostgreSQL.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий метаданных файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `id, owner_id, original_name, stored_name, size, content_type, checksum, scan_status, created_at`

func (r *fileRepo) Create(ctx context.Context, f *model.FileMeta) error {
	query := `
		INSERT INTO files (owner_id, original_name, stored_name, size, content_type, checksum, scan_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		f.OwnerID, f.OriginalName, f.StoredName, f.Size, f.ContentType, f.Checksum, string(f.ScanStatus),
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания метаданных файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id int64) (*model.FileMeta, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)

	f := &model.FileMeta{}
	var status string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.OwnerID, &f.OriginalName, &f.StoredName,
		&f.Size, &f.ContentType, &f.Checksum, &status, &f.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения метаданных файла: %w", err)
	}
	f.ScanStatus = scan.Status(status)
	return f, nil
}

func (r *fileRepo) ListByOwner(ctx context.Context, ownerID int64) ([]*model.FileMeta, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM files
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`, fileColumns)

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов владельца: %w", err)
	}
	defer rows.Close()

	return scanFiles(rows)
}

func (r *fileRepo) ListAll(ctx context.Context) ([]*model.FileMeta, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM files
		ORDER BY created_at DESC, id DESC`, fileColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка всех файлов: %w", err)
	}
	defer rows.Close()

	return scanFiles(rows)
}

func (r *fileRepo) ListPending(ctx context.Context) ([]*model.FileMeta, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM files
		WHERE scan_status = $1
		ORDER BY created_at ASC, id ASC`, fileColumns)

	rows, err := r.db.Query(ctx, query, string(scan.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка непроверенных файлов: %w", err)
	}
	defer rows.Close()

	return scanFiles(rows)
}

func (r *fileRepo) UpdateScanStatus(ctx context.Context, id int64, status scan.Status) error {
	if !scan.CanTransition(scan.StatusPending, status) {
		return fmt.Errorf("недопустимый переход статуса проверки: PENDING → %s", status)
	}

	// Условие scan_status = 'PENDING' делает повторный запуск проверки no-op:
	// терминальный статус никогда не перезаписывается.
	tag, err := r.db.Exec(ctx,
		`UPDATE files SET scan_status = $1 WHERE id = $2 AND scan_status = $3`,
		string(status), id, string(scan.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса проверки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanFiles читает все строки результата в срез метаданных.
func scanFiles(rows pgx.Rows) ([]*model.FileMeta, error) {
	var result []*model.FileMeta
	for rows.Next() {
		f := &model.FileMeta{}
		var status string
		if err := rows.Scan(
			&f.ID, &f.OwnerID, &f.OriginalName, &f.StoredName,
			&f.Size, &f.ContentType, &f.Checksum, &status, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки файла: %w", err)
		}
		f.ScanStatus = scan.Status(status)
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода результата: %w", err)
	}
	return result, nil
}
