package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/playoff-app/playoff-backend/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserEmailConflict = errors.New("user email conflict")
)

type UserRepository interface {
	Create(ctx context.Context, exec SQLExecutor, user *models.User) error
	GetByEmail(ctx context.Context, exec SQLExecutor, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, exec SQLExecutor, email, passwordHash string) error
	MarkVerified(ctx context.Context, exec SQLExecutor, email string) error
	Delete(ctx context.Context, exec SQLExecutor, email string) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresUserRepository) Create(ctx context.Context, exec SQLExecutor, user *models.User) error {
	query := `
		INSERT INTO users (email, name, password_hash, location)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Location,
	).Scan(&user.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "users_pkey" {
				return ErrUserEmailConflict
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, exec SQLExecutor, email string) (*models.User, error) {
	query := `
		SELECT email, name, password_hash, location, verified, created_at
		FROM users
		WHERE email = $1`

	user := &models.User{}
	err := r.executor(exec).QueryRowContext(ctx, query, email).Scan(
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Location,
		&user.Verified,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

func (r *postgresUserRepository) UpdatePassword(ctx context.Context, exec SQLExecutor, email, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE email = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, passwordHash, email)
	if err != nil {
		return fmt.Errorf("failed to update user password: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) MarkVerified(ctx context.Context, exec SQLExecutor, email string) error {
	query := `UPDATE users SET verified = TRUE WHERE email = $1`
	result, err := r.executor(exec).ExecContext(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) Delete(ctx context.Context, exec SQLExecutor, email string) error {
	query := `DELETE FROM users WHERE email = $1`
	result, err := r.executor(exec).ExecContext(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}
