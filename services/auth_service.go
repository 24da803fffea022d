package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playoff-app/playoff-backend/models"
	"github.com/playoff-app/playoff-backend/repositories"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	otpLength         = 6
	otpTTL            = 15 * time.Minute
)

type RegisterInput struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Location *string `json:"location"`
}

// EmailSender delivers OTP mail. The SMTP implementation lives in
// EmailService; tests substitute a fake.
type EmailSender interface {
	SendEmail(to []string, subject string, body string) error
}

// AuthService is the identity gateway: registration, login, OTP email
// verification and password reset. It feeds validated identities (emails)
// into the membership engine and holds no other contract with it.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input models.Credentials) (*models.User, error)
	VerifyEmail(ctx context.Context, email, otp string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
	DeleteAccount(ctx context.Context, email string) error
}

type authService struct {
	txm     repositories.TxManager
	users   repositories.UserRepository
	pending repositories.AuthRepository
	players repositories.PlayerRepository
	mailer  EmailSender
	logger  *slog.Logger

	now func() time.Time
}

func NewAuthService(
	txm repositories.TxManager,
	users repositories.UserRepository,
	pending repositories.AuthRepository,
	players repositories.PlayerRepository,
	mailer EmailSender,
	logger *slog.Logger,
) AuthService {
	return &authService{
		txm:     txm,
		users:   users,
		pending: pending,
		players: players,
		mailer:  mailer,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: string(hashedPassword),
		Location:     input.Location,
	}

	otp, err := generateOTP(otpLength)
	if err != nil {
		return nil, err
	}

	err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.users.Create(ctx, exec, user); err != nil {
			if errors.Is(err, repositories.ErrUserEmailConflict) {
				return ErrUserEmailConflict
			}
			return err
		}
		return s.pending.Upsert(ctx, exec, &models.EmailVerification{
			Email:         input.Email,
			OTP:           otp,
			OTPExpiration: s.now().Add(otpTTL),
		})
	})
	if err != nil {
		return nil, err
	}

	s.sendOTP(input.Email, "Confirm your playoff account",
		fmt.Sprintf("Your confirmation code is %s. It expires in %d minutes.", otp, int(otpTTL.Minutes())))

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input models.Credentials) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, nil, input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) VerifyEmail(ctx context.Context, email, otp string) error {
	return s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.checkOTP(ctx, exec, email, otp); err != nil {
			return err
		}
		if err := s.users.MarkVerified(ctx, exec, email); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return s.pending.Delete(ctx, exec, email)
	})
}

// RequestPasswordReset never reveals whether an email is registered.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, nil, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil
		}
		return err
	}

	otp, err := generateOTP(otpLength)
	if err != nil {
		return err
	}

	err = s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.pending.Upsert(ctx, exec, &models.EmailVerification{
			Email:         email,
			OTP:           otp,
			OTPExpiration: s.now().Add(otpTTL),
		})
	})
	if err != nil {
		return err
	}

	s.sendOTP(email, "Reset your playoff password",
		fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", otp, int(otpTTL.Minutes())))
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.checkOTP(ctx, exec, email, otp); err != nil {
			return err
		}
		if err := s.users.UpdatePassword(ctx, exec, email, string(hashedPassword)); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return s.pending.Delete(ctx, exec, email)
	})
}

// DeleteAccount removes the user record. It is refused while the user still
// holds a team membership, so captaincy succession and counters are settled
// through the membership engine first.
func (s *authService) DeleteAccount(ctx context.Context, email string) error {
	return s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		_, err := s.players.GetByName(ctx, exec, email)
		if err == nil {
			return ErrUserAlreadyInTeam
		}
		if !errors.Is(err, repositories.ErrPlayerNotFound) {
			return err
		}

		if err := s.users.Delete(ctx, exec, email); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		// Drop any pending OTP alongside the account.
		if err := s.pending.Delete(ctx, exec, email); err != nil &&
			!errors.Is(err, repositories.ErrVerificationNotFound) {
			return err
		}
		return nil
	})
}

func (s *authService) checkOTP(ctx context.Context, exec repositories.SQLExecutor, email, otp string) error {
	record, err := s.pending.GetByEmail(ctx, exec, email)
	if err != nil {
		if errors.Is(err, repositories.ErrVerificationNotFound) {
			return ErrOTPInvalid
		}
		return err
	}
	if record.OTP != otp {
		return ErrOTPInvalid
	}
	if record.OTPExpiration.Before(s.now()) {
		return ErrOTPExpired
	}
	return nil
}

// sendOTP is best-effort: a mail failure is logged, not surfaced, so a slow
// SMTP relay cannot fail registration.
func (s *authService) sendOTP(email, subject, body string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendEmail([]string{email}, subject, body); err != nil && s.logger != nil {
		s.logger.Error("failed to send OTP email", slog.String("email", email), slog.Any("error", err))
	}
}

func generateOTP(length int) (string, error) {
	const digits = "0123456789"
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	for i, b := range buf {
		buf[i] = digits[int(b)%len(digits)]
	}
	return string(buf), nil
}
