package services

import "errors"

// Business errors shared across services and the HTTP mapping layer.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrValidationFailed   = errors.New("validation failed")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrTeamNameRequired   = errors.New("team name is required")
	ErrUserAlreadyInTeam  = errors.New("user is already in a team")
	ErrNotTeamMember      = errors.New("user is not a member of this team")
	ErrTeamIneligible     = errors.New("team does not satisfy the tournament's entry conditions")
	ErrPlayingOutOfBounds = errors.New("playing count must stay between zero and joined players")
	ErrOTPInvalid         = errors.New("verification code is invalid")
	ErrOTPExpired         = errors.New("verification code has expired")

	// Conflicts
	ErrUserEmailConflict = errors.New("email address is already in use")
	ErrTeamNameConflict  = errors.New("team name is already in use")
	ErrTournamentFull    = errors.New("tournament has no team slots left")

	// Authentication and authorization
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")
	ErrCaptainActionForbidden = errors.New("only the team captain can perform this action")

	// Entity-specific not-found errors
	ErrUserNotFound       = errors.New("user not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrTournamentNotFound = errors.New("tournament not found")

	// Tournament field validation
	ErrTournamentTitleRequired    = errors.New("tournament title is required")
	ErrTournamentInvalidDateRange = errors.New("tournament end date must be after start date")
	ErrTournamentInvalidCapacity  = errors.New("tournament capacity bounds must be positive with min not above max")
)
