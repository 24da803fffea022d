package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/playoff-app/playoff-backend/models"
)

var ErrVerificationNotFound = errors.New("verification record not found")

// AuthRepository manages the transient authenticate_users table holding
// one pending OTP per email.
type AuthRepository interface {
	Upsert(ctx context.Context, exec SQLExecutor, record *models.EmailVerification) error
	GetByEmail(ctx context.Context, exec SQLExecutor, email string) (*models.EmailVerification, error)
	Delete(ctx context.Context, exec SQLExecutor, email string) error
}

type postgresAuthRepository struct {
	db *sql.DB
}

func NewPostgresAuthRepository(db *sql.DB) AuthRepository {
	return &postgresAuthRepository{db: db}
}

func (r *postgresAuthRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresAuthRepository) Upsert(ctx context.Context, exec SQLExecutor, record *models.EmailVerification) error {
	query := `
		INSERT INTO authenticate_users (email, otp, otp_expiration)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET otp = EXCLUDED.otp, otp_expiration = EXCLUDED.otp_expiration`

	_, err := r.executor(exec).ExecContext(ctx, query, record.Email, record.OTP, record.OTPExpiration)
	if err != nil {
		return fmt.Errorf("failed to upsert verification record: %w", err)
	}
	return nil
}

func (r *postgresAuthRepository) GetByEmail(ctx context.Context, exec SQLExecutor, email string) (*models.EmailVerification, error) {
	query := `SELECT email, otp, otp_expiration FROM authenticate_users WHERE email = $1`

	record := &models.EmailVerification{}
	err := r.executor(exec).QueryRowContext(ctx, query, email).Scan(
		&record.Email,
		&record.OTP,
		&record.OTPExpiration,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to scan verification record: %w", err)
	}
	return record, nil
}

func (r *postgresAuthRepository) Delete(ctx context.Context, exec SQLExecutor, email string) error {
	query := `DELETE FROM authenticate_users WHERE email = $1`
	result, err := r.executor(exec).ExecContext(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to delete verification record: %w", err)
	}
	return checkAffectedRows(result, ErrVerificationNotFound)
}
