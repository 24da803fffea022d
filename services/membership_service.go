package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/playoff-app/playoff-backend/live"
	"github.com/playoff-app/playoff-backend/models"
	"github.com/playoff-app/playoff-backend/repositories"
	"github.com/playoff-app/playoff-backend/storage"
)

type CreateTeamInput struct {
	Name         string  `json:"name"`
	TournamentID *string `json:"tournament_id"`

	// CaptainEmail is filled from the authenticated identity, never from
	// the request body.
	CaptainEmail string `json:"-"`
}

type SetPlayingInput struct {
	Playing bool `json:"playing"`
}

// MembershipService owns the team-membership state machine: creation,
// joining, leaving, captaincy succession and dissolution.
type MembershipService interface {
	CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error)
	JoinTeam(ctx context.Context, playerEmail, teamName string) (*models.Player, error)
	LeaveTeam(ctx context.Context, playerEmail, teamName string) error
	SetPlaying(ctx context.Context, playerEmail, teamName string, playing bool) error
	GetTeam(ctx context.Context, teamName string) (*models.Team, error)
	ListTeams(ctx context.Context) ([]models.Team, error)
	ListTeamMembers(ctx context.Context, teamName string) ([]models.TeamMember, error)
	GetPlayer(ctx context.Context, playerEmail string) (*models.Player, error)
	UploadTeamLogo(ctx context.Context, teamName, requesterEmail, contentType string, r io.Reader) (*models.Team, error)
}

type membershipService struct {
	txm         repositories.TxManager
	teams       repositories.TeamRepository
	players     repositories.PlayerRepository
	tournaments repositories.TournamentRepository
	uploader    storage.FileUploader
	hub         *live.Hub
}

func NewMembershipService(
	txm repositories.TxManager,
	teams repositories.TeamRepository,
	players repositories.PlayerRepository,
	tournaments repositories.TournamentRepository,
	uploader storage.FileUploader,
	hub *live.Hub,
) MembershipService {
	return &membershipService{
		txm:         txm,
		teams:       teams,
		players:     players,
		tournaments: tournaments,
		uploader:    uploader,
		hub:         hub,
	}
}

// CreateTeam registers a team with the creator as captain and sole member.
// A tournament reference supplied at creation is stored as-is: capacity is
// only validated by the explicit tournament join operation.
func (s *membershipService) CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{
		Name:         input.Name,
		Captain:      input.CaptainEmail,
		TournamentID: input.TournamentID,
	}

	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		_, err := s.players.GetByName(ctx, exec, input.CaptainEmail)
		if err == nil {
			return ErrUserAlreadyInTeam
		}
		if !errors.Is(err, repositories.ErrPlayerNotFound) {
			return fmt.Errorf("failed to check existing membership: %w", err)
		}

		if err := s.teams.Create(ctx, exec, team); err != nil {
			if errors.Is(err, repositories.ErrTeamNameConflict) {
				return ErrTeamNameConflict
			}
			if errors.Is(err, repositories.ErrTeamTournamentInvalid) {
				return ErrTournamentNotFound
			}
			return err
		}

		captain := &models.Player{Name: input.CaptainEmail, Team: input.Name}
		if err := s.players.Create(ctx, exec, captain); err != nil {
			// The primary key on players is the authoritative guard
			// against a concurrent membership elsewhere.
			if errors.Is(err, repositories.ErrPlayerAlreadyJoined) {
				return ErrUserAlreadyInTeam
			}
			return err
		}

		return s.teams.AddJoined(ctx, exec, input.Name, 1)
	})
	if err != nil {
		return nil, err
	}

	team.JoinedPlayers = 1
	return team, nil
}

func (s *membershipService) JoinTeam(ctx context.Context, playerEmail, teamName string) (*models.Player, error) {
	player := &models.Player{Name: playerEmail, Team: teamName}

	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.players.Create(ctx, exec, player); err != nil {
			if errors.Is(err, repositories.ErrPlayerAlreadyJoined) {
				return ErrUserAlreadyInTeam
			}
			if errors.Is(err, repositories.ErrPlayerTeamInvalid) {
				return ErrTeamNotFound
			}
			return err
		}
		// Joining members default to not-playing; only the member count moves.
		return s.teams.AddJoined(ctx, exec, teamName, 1)
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// LeaveTeam removes a membership row. Departure of the captain promotes the
// earliest-joined remaining member, or dissolves the team when none is
// left. Afterwards the team's tournament entry is re-validated against the
// post-leave playing count and dropped if it no longer fits.
func (s *membershipService) LeaveTeam(ctx context.Context, playerEmail, teamName string) error {
	var withdrawnFrom *string

	err := s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		team, err := s.teams.GetByNameForUpdate(ctx, exec, teamName)
		if err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return ErrTeamNotFound
			}
			return err
		}

		player, err := s.players.GetForUpdate(ctx, exec, playerEmail, teamName)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return ErrNotTeamMember
			}
			return err
		}

		if team.Captain == playerEmail {
			successor, err := s.players.NextCaptain(ctx, exec, teamName, playerEmail)
			if err != nil {
				if !errors.Is(err, repositories.ErrPlayerNotFound) {
					return err
				}
				// Sole member: dissolve instead of transferring captaincy.
				return s.dissolveTeam(ctx, exec, team, playerEmail)
			}
			if err := s.teams.UpdateCaptain(ctx, exec, teamName, successor); err != nil {
				return err
			}
		}

		if err := s.players.Delete(ctx, exec, playerEmail, teamName); err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return ErrNotTeamMember
			}
			return err
		}
		if err := s.teams.ApplyLeave(ctx, exec, teamName, player.IsPlaying); err != nil {
			return err
		}

		// Re-validate the capacity window with the post-leave playing count.
		exited, err := s.teams.ExitIfOutOfBounds(ctx, exec, teamName)
		if err != nil {
			return err
		}
		if exited != nil {
			if err := s.releaseTournamentSlot(ctx, exec, *exited); err != nil {
				return err
			}
			withdrawnFrom = exited
		}
		return nil
	})
	if err != nil {
		return err
	}

	if withdrawnFrom != nil && s.hub != nil {
		s.hub.BroadcastTournament(*withdrawnFrom, live.Message{
			Type:    live.EventTeamWithdrawn,
			Payload: map[string]string{"team": teamName},
		})
	}
	return nil
}

func (s *membershipService) dissolveTeam(ctx context.Context, exec repositories.SQLExecutor, team *models.Team, lastMember string) error {
	if err := s.players.Delete(ctx, exec, lastMember, team.Name); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrNotTeamMember
		}
		return err
	}
	// A dissolved team releases its tournament slot.
	if team.TournamentID != nil {
		if err := s.releaseTournamentSlot(ctx, exec, *team.TournamentID); err != nil {
			return err
		}
	}
	return s.teams.Delete(ctx, exec, team.Name)
}

// releaseTournamentSlot decrements teams_participated when a team's
// tournament reference is dropped by a leave. A reference supplied at team
// creation was never counted, so an already-zero counter means there is no
// slot to give back.
func (s *membershipService) releaseTournamentSlot(ctx context.Context, exec repositories.SQLExecutor, tournamentID string) error {
	err := s.tournaments.DecrementTeams(ctx, exec, tournamentID)
	if err != nil && !errors.Is(err, repositories.ErrTournamentCounterZero) {
		return err
	}
	return nil
}

// SetPlaying flips a member's is_playing flag and moves the team counter
// accordingly, keeping 0 <= playing <= joined_players.
func (s *membershipService) SetPlaying(ctx context.Context, playerEmail, teamName string, playing bool) error {
	return s.txm.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		player, err := s.players.GetForUpdate(ctx, exec, playerEmail, teamName)
		if err != nil {
			if errors.Is(err, repositories.ErrPlayerNotFound) {
				return ErrNotTeamMember
			}
			return err
		}
		if player.IsPlaying == playing {
			return nil
		}

		if err := s.players.SetPlaying(ctx, exec, playerEmail, teamName, playing); err != nil {
			return err
		}

		delta := 1
		if !playing {
			delta = -1
		}
		if err := s.teams.AdjustPlaying(ctx, exec, teamName, delta); err != nil {
			if errors.Is(err, repositories.ErrTeamCounterViolation) {
				return ErrPlayingOutOfBounds
			}
			return err
		}
		return nil
	})
}

func (s *membershipService) GetTeam(ctx context.Context, teamName string) (*models.Team, error) {
	team, err := s.teams.GetByName(ctx, nil, teamName)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	s.populateTeamLogoURL(team)
	return team, nil
}

func (s *membershipService) ListTeams(ctx context.Context) ([]models.Team, error) {
	teams, err := s.teams.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		s.populateTeamLogoURL(&teams[i])
	}
	return teams, nil
}

func (s *membershipService) ListTeamMembers(ctx context.Context, teamName string) ([]models.TeamMember, error) {
	if _, err := s.teams.GetByName(ctx, nil, teamName); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return s.players.ListByTeam(ctx, nil, teamName)
}

func (s *membershipService) GetPlayer(ctx context.Context, playerEmail string) (*models.Player, error) {
	player, err := s.players.GetByName(ctx, nil, playerEmail)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return player, nil
}

func (s *membershipService) UploadTeamLogo(ctx context.Context, teamName, requesterEmail, contentType string, r io.Reader) (*models.Team, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("file storage is not configured")
	}

	team, err := s.teams.GetByName(ctx, nil, teamName)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	if team.Captain != requesterEmail {
		return nil, ErrCaptainActionForbidden
	}

	key := fmt.Sprintf("teams/%s/logo", url.PathEscape(teamName))
	result, err := s.uploader.Upload(ctx, key, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}

	if err := s.teams.UpdateLogoKey(ctx, nil, teamName, &result.Key); err != nil {
		return nil, err
	}
	team.LogoKey = &result.Key
	s.populateTeamLogoURL(team)
	return team, nil
}

func (s *membershipService) populateTeamLogoURL(team *models.Team) {
	if team == nil || team.LogoKey == nil || *team.LogoKey == "" || s.uploader == nil {
		return
	}
	if logoURL := s.uploader.GetPublicURL(*team.LogoKey); logoURL != "" {
		team.LogoURL = &logoURL
	}
}
