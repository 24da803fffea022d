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
	ErrTeamNotFound          = errors.New("team not found")
	ErrTeamNameConflict      = errors.New("team name conflict")
	ErrTeamTournamentInvalid = errors.New("team tournament conflict or invalid")
	ErrTeamCounterViolation  = errors.New("team counter out of range")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByName(ctx context.Context, exec SQLExecutor, name string) (*models.Team, error)
	GetByNameForUpdate(ctx context.Context, exec SQLExecutor, name string) (*models.Team, error)
	List(ctx context.Context, exec SQLExecutor) ([]models.Team, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) ([]models.Team, error)
	UpdateCaptain(ctx context.Context, exec SQLExecutor, name, captain string) error
	UpdateLogoKey(ctx context.Context, exec SQLExecutor, name string, logoKey *string) error
	Delete(ctx context.Context, exec SQLExecutor, name string) error
	AddJoined(ctx context.Context, exec SQLExecutor, name string, delta int) error
	ApplyLeave(ctx context.Context, exec SQLExecutor, name string, wasPlaying bool) error
	AdjustPlaying(ctx context.Context, exec SQLExecutor, name string, delta int) error
	EnterTournament(ctx context.Context, exec SQLExecutor, name, tournamentID string) (int64, error)
	LeaveTournament(ctx context.Context, exec SQLExecutor, name, tournamentID string) (int64, error)
	ExitIfOutOfBounds(ctx context.Context, exec SQLExecutor, name string) (*string, error)
	DetachByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	query := `
		INSERT INTO teams (name, captain, tournament_id)
		VALUES ($1, $2, $3)
		RETURNING joined_players, playing, created_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		team.Name,
		team.Captain,
		team.TournamentID,
	).Scan(&team.JoinedPlayers, &team.Playing, &team.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "teams_pkey" {
					return ErrTeamNameConflict
				}
			case "23503": // foreign_key_violation
				if pqErr.Constraint == "teams_tournament_id_fkey" {
					return ErrTeamTournamentInvalid
				}
			}
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) GetByName(ctx context.Context, exec SQLExecutor, name string) (*models.Team, error) {
	query := teamSelectSQL + ` WHERE name = $1`
	return r.scanTeam(ctx, exec, query, name)
}

// GetByNameForUpdate locks the team row so concurrent leaves and tournament
// joins against the same team serialize on it.
func (r *postgresTeamRepository) GetByNameForUpdate(ctx context.Context, exec SQLExecutor, name string) (*models.Team, error) {
	query := teamSelectSQL + ` WHERE name = $1 FOR UPDATE`
	return r.scanTeam(ctx, exec, query, name)
}

const teamSelectSQL = `
	SELECT name, captain, tournament_id, joined_players, playing, logo_key, created_at
	FROM teams`

func (r *postgresTeamRepository) scanTeam(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Team, error) {
	team := &models.Team{}
	err := r.executor(exec).QueryRowContext(ctx, query, args...).Scan(
		&team.Name,
		&team.Captain,
		&team.TournamentID,
		&team.JoinedPlayers,
		&team.Playing,
		&team.LogoKey,
		&team.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}
	return team, nil
}

func (r *postgresTeamRepository) List(ctx context.Context, exec SQLExecutor) ([]models.Team, error) {
	return r.listTeams(ctx, exec, teamSelectSQL+` ORDER BY name ASC`)
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) ([]models.Team, error) {
	return r.listTeams(ctx, exec, teamSelectSQL+` WHERE tournament_id = $1 ORDER BY name ASC`, tournamentID)
}

func (r *postgresTeamRepository) listTeams(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]models.Team, error) {
	rows, err := r.executor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var team models.Team
		if err := rows.Scan(
			&team.Name,
			&team.Captain,
			&team.TournamentID,
			&team.JoinedPlayers,
			&team.Playing,
			&team.LogoKey,
			&team.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		teams = append(teams, team)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team rows: %w", err)
	}
	return teams, nil
}

func (r *postgresTeamRepository) UpdateCaptain(ctx context.Context, exec SQLExecutor, name, captain string) error {
	query := `UPDATE teams SET captain = $1 WHERE name = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, captain, name)
	if err != nil {
		return fmt.Errorf("failed to update team captain: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, exec SQLExecutor, name string, logoKey *string) error {
	query := `UPDATE teams SET logo_key = $1 WHERE name = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, logoKey, name)
	if err != nil {
		return fmt.Errorf("failed to update team logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, exec SQLExecutor, name string) error {
	query := `DELETE FROM teams WHERE name = $1`
	result, err := r.executor(exec).ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) AddJoined(ctx context.Context, exec SQLExecutor, name string, delta int) error {
	query := `UPDATE teams SET joined_players = joined_players + $1 WHERE name = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, delta, name)
	if err != nil {
		return fmt.Errorf("failed to update joined_players: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

// ApplyLeave decrements joined_players and, when the departed member was
// marked playing, the playing counter as well, in one statement.
func (r *postgresTeamRepository) ApplyLeave(ctx context.Context, exec SQLExecutor, name string, wasPlaying bool) error {
	query := `
		UPDATE teams
		SET joined_players = joined_players - 1,
		    playing = playing - CASE WHEN $1 THEN 1 ELSE 0 END
		WHERE name = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, wasPlaying, name)
	if err != nil {
		return fmt.Errorf("failed to apply member leave to team counters: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

// AdjustPlaying moves the playing counter by delta but only within
// 0 <= playing <= joined_players. Zero rows means the bound was violated.
func (r *postgresTeamRepository) AdjustPlaying(ctx context.Context, exec SQLExecutor, name string, delta int) error {
	query := `
		UPDATE teams
		SET playing = playing + $1
		WHERE name = $2 AND playing + $1 BETWEEN 0 AND joined_players`
	result, err := r.executor(exec).ExecContext(ctx, query, delta, name)
	if err != nil {
		return fmt.Errorf("failed to adjust playing counter: %w", err)
	}
	return checkAffectedRows(result, ErrTeamCounterViolation)
}

// EnterTournament is the read-check-write of the capacity engine: the team
// must exist, be unentered, have its playing count inside the tournament's
// player window, and the tournament must still have a team slot. All four
// conditions ride in one conditional update; the caller inspects the
// affected-row count.
func (r *postgresTeamRepository) EnterTournament(ctx context.Context, exec SQLExecutor, name, tournamentID string) (int64, error) {
	query := `
		UPDATE teams
		SET tournament_id = $1
		WHERE name = $2
		  AND tournament_id IS NULL
		  AND playing BETWEEN (SELECT min_players FROM tournaments WHERE id = $1)
		              AND (SELECT max_players FROM tournaments WHERE id = $1)
		  AND EXISTS (SELECT 1 FROM tournaments WHERE id = $1 AND teams_participated < max_teams)`
	result, err := r.executor(exec).ExecContext(ctx, query, tournamentID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to enter tournament: %w", err)
	}
	return rowsAffected(result)
}

func (r *postgresTeamRepository) LeaveTournament(ctx context.Context, exec SQLExecutor, name, tournamentID string) (int64, error) {
	query := `UPDATE teams SET tournament_id = NULL WHERE name = $1 AND tournament_id = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, name, tournamentID)
	if err != nil {
		return 0, fmt.Errorf("failed to leave tournament: %w", err)
	}
	return rowsAffected(result)
}

// ExitIfOutOfBounds clears the team's tournament reference when its playing
// count no longer fits the entered tournament's player window, returning
// the tournament id that was vacated (nil when nothing changed).
func (r *postgresTeamRepository) ExitIfOutOfBounds(ctx context.Context, exec SQLExecutor, name string) (*string, error) {
	query := `
		UPDATE teams
		SET tournament_id = NULL
		FROM tournaments t
		WHERE teams.name = $1
		  AND teams.tournament_id = t.id
		  AND teams.playing NOT BETWEEN t.min_players AND t.max_players
		RETURNING t.id`

	var tournamentID string
	err := r.executor(exec).QueryRowContext(ctx, query, name).Scan(&tournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to re-check tournament bounds: %w", err)
	}
	return &tournamentID, nil
}

// DetachByTournament is part of the delete cascade: teams lose their
// tournament reference and their playing counter drops to zero, mirroring
// the cleared is_playing flags of their members.
func (r *postgresTeamRepository) DetachByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) error {
	query := `UPDATE teams SET tournament_id = NULL, playing = 0 WHERE tournament_id = $1`
	_, err := r.executor(exec).ExecContext(ctx, query, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to detach teams from tournament: %w", err)
	}
	return nil
}
