package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/gofilevault/internal/domain/model"
)

// UserRepository — доступ к таблице users.
type UserRepository interface {
	// Create создаёт пользователя. Заполняет ID и CreatedAt.
	// Дублирующийся email → ErrConflict.
	Create(ctx context.Context, u *model.User) error
	// GetByEmail возвращает пользователя по email или ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetByID возвращает пользователя по id или ErrNotFound.
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// userRepo — реализация UserRepository поверх PostgreSQL.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, email, password_hash, role, created_at`

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, u.Email, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return r.scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

// scanUser читает одну строку users.
func (r *userRepo) scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
	}
	return u, nil
}
