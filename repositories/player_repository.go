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
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerAlreadyJoined = errors.New("player already holds a team membership")
	ErrPlayerTeamInvalid   = errors.New("player team conflict or invalid")
)

type PlayerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, player *models.Player) error
	GetByName(ctx context.Context, exec SQLExecutor, name string) (*models.Player, error)
	GetForUpdate(ctx context.Context, exec SQLExecutor, name, team string) (*models.Player, error)
	Delete(ctx context.Context, exec SQLExecutor, name, team string) error
	NextCaptain(ctx context.Context, exec SQLExecutor, team, excluding string) (string, error)
	SetPlaying(ctx context.Context, exec SQLExecutor, name, team string, playing bool) error
	ListByTeam(ctx context.Context, exec SQLExecutor, team string) ([]models.TeamMember, error)
	ClearPlayingByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a membership row. The primary key on players.name is the
// single-membership invariant: a second insert for the same player fails
// with a unique violation regardless of concurrent callers.
func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, player *models.Player) error {
	query := `
		INSERT INTO players (name, team)
		VALUES ($1, $2)
		RETURNING is_playing, joined_date`

	err := r.executor(exec).QueryRowContext(ctx, query,
		player.Name,
		player.Team,
	).Scan(&player.IsPlaying, &player.JoinedDate)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505": // unique_violation
				if pqErr.Constraint == "players_pkey" {
					return ErrPlayerAlreadyJoined
				}
			case "23503": // foreign_key_violation
				if pqErr.Constraint == "players_team_fkey" {
					return ErrPlayerTeamInvalid
				}
			}
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (r *postgresPlayerRepository) GetByName(ctx context.Context, exec SQLExecutor, name string) (*models.Player, error) {
	query := `
		SELECT name, team, is_playing, joined_date
		FROM players
		WHERE name = $1`
	return r.scanPlayer(ctx, exec, query, name)
}

// GetForUpdate locks the membership row for the duration of the enclosing
// transaction so concurrent leaves of the same player serialize.
func (r *postgresPlayerRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, name, team string) (*models.Player, error) {
	query := `
		SELECT name, team, is_playing, joined_date
		FROM players
		WHERE name = $1 AND team = $2
		FOR UPDATE`
	return r.scanPlayer(ctx, exec, query, name, team)
}

func (r *postgresPlayerRepository) scanPlayer(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Player, error) {
	player := &models.Player{}
	err := r.executor(exec).QueryRowContext(ctx, query, args...).Scan(
		&player.Name,
		&player.Team,
		&player.IsPlaying,
		&player.JoinedDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player: %w", err)
	}
	return player, nil
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, exec SQLExecutor, name, team string) error {
	query := `DELETE FROM players WHERE name = $1 AND team = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, name, team)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

// NextCaptain returns the earliest-joined remaining member of a team.
// Ties on joined_date break deterministically by player name.
func (r *postgresPlayerRepository) NextCaptain(ctx context.Context, exec SQLExecutor, team, excluding string) (string, error) {
	query := `
		SELECT name
		FROM players
		WHERE team = $1 AND name <> $2
		ORDER BY joined_date ASC, name ASC
		LIMIT 1`

	var name string
	err := r.executor(exec).QueryRowContext(ctx, query, team, excluding).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrPlayerNotFound
		}
		return "", fmt.Errorf("failed to find next captain: %w", err)
	}
	return name, nil
}

func (r *postgresPlayerRepository) SetPlaying(ctx context.Context, exec SQLExecutor, name, team string, playing bool) error {
	query := `UPDATE players SET is_playing = $1 WHERE name = $2 AND team = $3`
	result, err := r.executor(exec).ExecContext(ctx, query, playing, name, team)
	if err != nil {
		return fmt.Errorf("failed to update player playing flag: %w", err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) ListByTeam(ctx context.Context, exec SQLExecutor, team string) ([]models.TeamMember, error) {
	query := `
		SELECT u.email, u.name, p.is_playing, p.joined_date
		FROM users u
		INNER JOIN players p ON u.email = p.name
		WHERE p.team = $1
		ORDER BY p.joined_date ASC, u.email ASC`

	rows, err := r.executor(exec).QueryContext(ctx, query, team)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	defer rows.Close()

	members := make([]models.TeamMember, 0)
	for rows.Next() {
		var m models.TeamMember
		if err := rows.Scan(&m.Email, &m.Name, &m.IsPlaying, &m.JoinedDate); err != nil {
			return nil, fmt.Errorf("failed to scan team member row: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team member rows: %w", err)
	}
	return members, nil
}

func (r *postgresPlayerRepository) ClearPlayingByTournament(ctx context.Context, exec SQLExecutor, tournamentID string) error {
	query := `
		UPDATE players SET is_playing = FALSE
		WHERE team IN (SELECT name FROM teams WHERE tournament_id = $1)`
	_, err := r.executor(exec).ExecContext(ctx, query, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to clear playing flags for tournament: %w", err)
	}
	return nil
}
