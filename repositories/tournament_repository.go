package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/playoff-app/playoff-backend/models"
)

var (
	ErrTournamentNotFound    = errors.New("tournament not found")
	ErrTournamentIDConflict  = errors.New("tournament id conflict")
	ErrTournamentFull        = errors.New("tournament has no team slots left")
	ErrTournamentCounterZero = errors.New("tournament participation counter already zero")
)

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error)
	Exists(ctx context.Context, exec SQLExecutor, id string) (bool, error)
	ListByLocation(ctx context.Context, exec SQLExecutor, location string, startingAfter time.Time) ([]models.Tournament, error)
	Update(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) (int64, error)
	Delete(ctx context.Context, exec SQLExecutor, id, creator string) (int64, error)
	IncrementTeams(ctx context.Context, exec SQLExecutor, id string) error
	DecrementTeams(ctx context.Context, exec SQLExecutor, id string) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(id, title, game, min_players, max_players, min_teams, max_teams,
			 location, start_date, end_date, description, creator)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING teams_participated, created_at`

	err := r.executor(exec).QueryRowContext(ctx, query,
		t.ID,
		t.Title,
		t.Game,
		t.MinPlayers,
		t.MaxPlayers,
		t.MinTeams,
		t.MaxTeams,
		t.Location,
		t.StartDate,
		t.EndDate,
		t.Description,
		t.Creator,
	).Scan(&t.TeamsParticipated, &t.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "tournaments_pkey" {
				return ErrTournamentIDConflict
			}
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

const tournamentSelectSQL = `
	SELECT id, title, game, min_players, max_players, min_teams, max_teams,
	       teams_participated, location, start_date, end_date, description,
	       creator, created_at
	FROM tournaments`

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.Tournament, error) {
	query := tournamentSelectSQL + ` WHERE id = $1`

	t := &models.Tournament{}
	err := r.executor(exec).QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Title,
		&t.Game,
		&t.MinPlayers,
		&t.MaxPlayers,
		&t.MinTeams,
		&t.MaxTeams,
		&t.TeamsParticipated,
		&t.Location,
		&t.StartDate,
		&t.EndDate,
		&t.Description,
		&t.Creator,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament: %w", err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) Exists(ctx context.Context, exec SQLExecutor, id string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM tournaments WHERE id = $1)`
	var exists bool
	if err := r.executor(exec).QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check tournament existence: %w", err)
	}
	return exists, nil
}

func (r *postgresTournamentRepository) ListByLocation(ctx context.Context, exec SQLExecutor, location string, startingAfter time.Time) ([]models.Tournament, error) {
	query := tournamentSelectSQL + `
		WHERE location = $1 AND start_date > $2
		ORDER BY start_date ASC`

	rows, err := r.executor(exec).QueryContext(ctx, query, location, startingAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Game,
			&t.MinPlayers,
			&t.MaxPlayers,
			&t.MinTeams,
			&t.MaxTeams,
			&t.TeamsParticipated,
			&t.Location,
			&t.StartDate,
			&t.EndDate,
			&t.Description,
			&t.Creator,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

// Update rewrites the mutable fields for the creator only. A zero row count
// covers both "no such tournament" and "not the creator"; the service layer
// disambiguates with a follow-up read.
func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) (int64, error) {
	query := `
		UPDATE tournaments SET
			title = $1,
			game = $2,
			min_players = $3,
			max_players = $4,
			min_teams = $5,
			max_teams = $6,
			location = $7,
			start_date = $8,
			end_date = $9,
			description = $10
		WHERE id = $11 AND creator = $12`

	result, err := r.executor(exec).ExecContext(ctx, query,
		t.Title,
		t.Game,
		t.MinPlayers,
		t.MaxPlayers,
		t.MinTeams,
		t.MaxTeams,
		t.Location,
		t.StartDate,
		t.EndDate,
		t.Description,
		t.ID,
		t.Creator,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update tournament: %w", err)
	}
	return rowsAffected(result)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, exec SQLExecutor, id, creator string) (int64, error) {
	query := `DELETE FROM tournaments WHERE id = $1 AND creator = $2`
	result, err := r.executor(exec).ExecContext(ctx, query, id, creator)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tournament: %w", err)
	}
	return rowsAffected(result)
}

// IncrementTeams consumes one team slot, guarded so the counter can never
// pass max_teams even under concurrent joins.
func (r *postgresTournamentRepository) IncrementTeams(ctx context.Context, exec SQLExecutor, id string) error {
	query := `
		UPDATE tournaments
		SET teams_participated = teams_participated + 1
		WHERE id = $1 AND teams_participated < max_teams`
	result, err := r.executor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment teams_participated: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentFull)
}

func (r *postgresTournamentRepository) DecrementTeams(ctx context.Context, exec SQLExecutor, id string) error {
	query := `
		UPDATE tournaments
		SET teams_participated = teams_participated - 1
		WHERE id = $1 AND teams_participated > 0`
	result, err := r.executor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to decrement teams_participated: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentCounterZero)
}
