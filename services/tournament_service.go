package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/playoff-app/playoff-backend/live"
	"github.com/playoff-app/playoff-backend/models"
	"github.com/playoff-app/playoff-backend/repositories"
	"golang.org/x/sync/errgroup"
)

type TournamentInput struct {
	Title       string    `json:"title"`
	Game        string    `json:"game"`
	MinPlayers  int       `json:"min_players"`
	MaxPlayers  int       `json:"max_players"`
	MinTeams    int       `json:"min_teams"`
	MaxTeams    int       `json:"max_teams"`
	Location    string    `json:"location"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Description *string   `json:"description"`
}

// TournamentService owns the tournament capacity state machine: a team's
// tournament slot moves Unentered -> Entered via Join and back via Unjoin,
// a capacity-violating member leave, or the delete cascade.
type TournamentService interface {
	Create(ctx context.Context, input TournamentInput, creatorEmail string) (*models.Tournament, error)
	Get(ctx context.Context, id string) (*models.Tournament, error)
	ListByLocation(ctx context.Context, location string) ([]models.Tournament, error)
	Update(ctx context.Context, id, requesterEmail string, input TournamentInput) (*models.Tournament, error)
	Delete(ctx context.Context, id, requesterEmail string) error
	Join(ctx context.Context, id, teamName, requesterEmail string) error
	Unjoin(ctx context.Context, id, teamName, requesterEmail string) error
}

type tournamentService struct {
	txm         repositories.TxManager
	tournaments repositories.TournamentRepository
	teams       repositories.TeamRepository
	players     repositories.PlayerRepository
	users       repositories.UserRepository
	hub         *live.Hub
	logger      *slog.Logger

	now func() time.Time
}

func NewTournamentService(
	txm repositories.TxManager,
	tournaments repositories.TournamentRepository,
	teams repositories.TeamRepository,
	players repositories.PlayerRepository,
	users repositories.UserRepository,
	hub *live.Hub,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		txm:         txm,
		tournaments: tournaments,
		teams:       teams,
		players:     players,
		users:       users,
		hub:         hub,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *tournamentService) Create(ctx context.Context, input TournamentInput, creatorEmail string) (*models.Tournament, error) {
	if err := validateTournamentInput(input); err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		ID:          newTournamentID(s.now(), input.Title),
		Title:       input.Title,
		Game:        input.Game,
		MinPlayers:  input.MinPlayers,
		MaxPlayers:  input.MaxPlayers,
		MinTeams:    input.MinTeams,
		MaxTeams:    input.MaxTeams,
		Location:    input.Location,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Description: input.Description,
		Creator:     creatorEmail,
	}

	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.tournaments.Create(ctx, exec, tournament)
	})
	if err != nil {
		return nil, err
	}
	return tournament, nil
}

// Get returns the tournament detail with the creator's display name and the
// participating teams fetched concurrently.
func (s *tournamentService) Get(ctx context.Context, id string) (*models.Tournament, error) {
	tournament, err := s.tournaments.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		creator, err := s.users.GetByEmail(gCtx, nil, tournament.Creator)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil
			}
			return err
		}
		tournament.CreatorName = &creator.Name
		return nil
	})
	g.Go(func() error {
		teams, err := s.teams.ListByTournament(gCtx, nil, id)
		if err != nil {
			return err
		}
		tournament.Teams = teams
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tournament, nil
}

func (s *tournamentService) ListByLocation(ctx context.Context, location string) ([]models.Tournament, error) {
	// Only upcoming tournaments are listed.
	return s.tournaments.ListByLocation(ctx, nil, location, s.now())
}

func (s *tournamentService) Update(ctx context.Context, id, requesterEmail string, input TournamentInput) (*models.Tournament, error) {
	if err := validateTournamentInput(input); err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		ID:          id,
		Title:       input.Title,
		Game:        input.Game,
		MinPlayers:  input.MinPlayers,
		MaxPlayers:  input.MaxPlayers,
		MinTeams:    input.MinTeams,
		MaxTeams:    input.MaxTeams,
		Location:    input.Location,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Description: input.Description,
		Creator:     requesterEmail,
	}

	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		rows, err := s.tournaments.Update(ctx, exec, tournament)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Zero rows covers both a missing tournament and a non-creator
			// requester; a follow-up read tells them apart.
			exists, err := s.tournaments.Exists(ctx, exec, id)
			if err != nil {
				return err
			}
			if !exists {
				return ErrTournamentNotFound
			}
			return ErrForbiddenOperation
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastTournament(id, live.Message{
			Type:    live.EventTournamentUpdated,
			Payload: tournament,
		})
	}
	return tournament, nil
}

// Delete removes a tournament and cascades atomically: every member of a
// participating team stops playing and every such team is detached before
// the row disappears.
func (s *tournamentService) Delete(ctx context.Context, id, requesterEmail string) error {
	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournaments.GetByID(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Creator != requesterEmail {
			return ErrForbiddenOperation
		}

		if err := s.players.ClearPlayingByTournament(ctx, exec, id); err != nil {
			return err
		}
		if err := s.teams.DetachByTournament(ctx, exec, id); err != nil {
			return err
		}

		rows, err := s.tournaments.Delete(ctx, exec, id, requesterEmail)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrTournamentNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("tournament deleted", slog.String("tournament_id", id))
	}
	if s.hub != nil {
		s.hub.BroadcastTournament(id, live.Message{
			Type:    live.EventTournamentDeleted,
			Payload: map[string]string{"tournament_id": id},
		})
	}
	return nil
}

// Join enters a team into a tournament. Eligibility (team unentered,
// playing count inside the player window, a free team slot) rides in one
// conditional update; the slot counter moves in the same transaction, so a
// half-applied join is never observable.
func (s *tournamentService) Join(ctx context.Context, id, teamName, requesterEmail string) error {
	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		team, err := s.teams.GetByName(ctx, exec, teamName)
		if err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return ErrTeamNotFound
			}
			return err
		}
		if team.Captain != requesterEmail {
			return ErrCaptainActionForbidden
		}

		rows, err := s.teams.EnterTournament(ctx, exec, teamName, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			exists, err := s.tournaments.Exists(ctx, exec, id)
			if err != nil {
				return err
			}
			if !exists {
				return ErrTournamentNotFound
			}
			return ErrTeamIneligible
		}

		if err := s.tournaments.IncrementTeams(ctx, exec, id); err != nil {
			if errors.Is(err, repositories.ErrTournamentFull) {
				return ErrTeamIneligible
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastTournament(id, live.Message{
			Type:    live.EventTeamJoined,
			Payload: map[string]string{"team": teamName},
		})
	}
	return nil
}

func (s *tournamentService) Unjoin(ctx context.Context, id, teamName, requesterEmail string) error {
	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		team, err := s.teams.GetByName(ctx, exec, teamName)
		if err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return ErrTeamNotFound
			}
			return err
		}
		if team.Captain != requesterEmail {
			return ErrCaptainActionForbidden
		}

		rows, err := s.teams.LeaveTournament(ctx, exec, teamName, id)
		if err != nil {
			return err
		}
		if rows == 0 {
			exists, err := s.tournaments.Exists(ctx, exec, id)
			if err != nil {
				return err
			}
			if !exists {
				return ErrTournamentNotFound
			}
			return ErrTeamIneligible
		}

		return s.tournaments.DecrementTeams(ctx, exec, id)
	})
	if err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastTournament(id, live.Message{
			Type:    live.EventTeamLeft,
			Payload: map[string]string{"team": teamName},
		})
	}
	return nil
}

// newTournamentID derives a collision-resistant id from the creation
// instant and the title.
func newTournamentID(createdAt time.Time, title string) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(createdAt.UnixNano(), 10) + title))
	return hex.EncodeToString(sum[:])
}

func validateTournamentInput(input TournamentInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return ErrTournamentTitleRequired
	}
	if input.MinPlayers < 1 || input.MaxPlayers < input.MinPlayers {
		return fmt.Errorf("%w: players window [%d, %d]", ErrTournamentInvalidCapacity, input.MinPlayers, input.MaxPlayers)
	}
	if input.MinTeams < 1 || input.MaxTeams < input.MinTeams {
		return fmt.Errorf("%w: teams window [%d, %d]", ErrTournamentInvalidCapacity, input.MinTeams, input.MaxTeams)
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() || !input.StartDate.Before(input.EndDate) {
		return ErrTournamentInvalidDateRange
	}
	return nil
}
