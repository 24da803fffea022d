package models

import "time"

// EmailVerification is a transient OTP record used by registration
// confirmation and password reset. One row per email at most.
type EmailVerification struct {
	Email         string    `json:"email" db:"email"`
	OTP           string    `json:"-" db:"otp"`
	OTPExpiration time.Time `json:"otp_expiration" db:"otp_expiration"`
}
