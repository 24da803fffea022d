package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/playoff-app/playoff-backend/models"
	"github.com/playoff-app/playoff-backend/repositories"
	"github.com/playoff-app/playoff-backend/storage"
)

// fakeStore is the shared in-memory state behind the fake repositories. The
// fakes honor the same conditional contracts as the Postgres implementations
// (guarded counters, zero-row signals, constraint errors) so the services can
// be exercised without a database.
type fakeStore struct {
	users       map[string]*models.User
	pending     map[string]*models.EmailVerification
	players     map[string]*models.Player
	teams       map[string]*models.Team
	tournaments map[string]*models.Tournament

	clock time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]*models.User),
		pending:     make(map[string]*models.EmailVerification),
		players:     make(map[string]*models.Player),
		teams:       make(map[string]*models.Team),
		tournaments: make(map[string]*models.Tournament),
		clock:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick advances the store clock so consecutive inserts get distinct
// timestamps.
func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func strPtr(v string) *string { return &v }

func copyStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyPlayer(p *models.Player) *models.Player {
	cp := *p
	return &cp
}

func copyTeam(t *models.Team) *models.Team {
	cp := *t
	cp.TournamentID = copyStrPtr(t.TournamentID)
	cp.LogoKey = copyStrPtr(t.LogoKey)
	cp.LogoURL = copyStrPtr(t.LogoURL)
	cp.Members = nil
	return &cp
}

func copyTournament(t *models.Tournament) *models.Tournament {
	cp := *t
	cp.Description = copyStrPtr(t.Description)
	cp.CreatorName = copyStrPtr(t.CreatorName)
	cp.Teams = nil
	return &cp
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.Location = copyStrPtr(u.Location)
	return &cp
}

func (s *fakeStore) snapshot() *fakeStore {
	cp := newFakeStore()
	cp.clock = s.clock
	for k, v := range s.users {
		cp.users[k] = copyUser(v)
	}
	for k, v := range s.pending {
		rec := *v
		cp.pending[k] = &rec
	}
	for k, v := range s.players {
		cp.players[k] = copyPlayer(v)
	}
	for k, v := range s.teams {
		cp.teams[k] = copyTeam(v)
	}
	for k, v := range s.tournaments {
		cp.tournaments[k] = copyTournament(v)
	}
	return cp
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.users = snap.users
	s.pending = snap.pending
	s.players = snap.players
	s.teams = snap.teams
	s.tournaments = snap.tournaments
	s.clock = snap.clock
}

// fakeTxManager runs the callback against the live store and rolls the store
// back to its pre-transaction state on error, mirroring the all-or-nothing
// behavior of the SQL transaction manager.
type fakeTxManager struct {
	store *fakeStore
}

func (m *fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	snap := m.store.snapshot()
	if err := fn(nil); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type fakeUserRepository struct{ store *fakeStore }

func (r *fakeUserRepository) Create(ctx context.Context, exec repositories.SQLExecutor, user *models.User) error {
	if _, ok := r.store.users[user.Email]; ok {
		return repositories.ErrUserEmailConflict
	}
	user.CreatedAt = r.store.tick()
	r.store.users[user.Email] = copyUser(user)
	return nil
}

func (r *fakeUserRepository) GetByEmail(ctx context.Context, exec repositories.SQLExecutor, email string) (*models.User, error) {
	user, ok := r.store.users[email]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (r *fakeUserRepository) UpdatePassword(ctx context.Context, exec repositories.SQLExecutor, email, passwordHash string) error {
	user, ok := r.store.users[email]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepository) MarkVerified(ctx context.Context, exec repositories.SQLExecutor, email string) error {
	user, ok := r.store.users[email]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.Verified = true
	return nil
}

func (r *fakeUserRepository) Delete(ctx context.Context, exec repositories.SQLExecutor, email string) error {
	if _, ok := r.store.users[email]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(r.store.users, email)
	return nil
}

type fakeAuthRepository struct{ store *fakeStore }

func (r *fakeAuthRepository) Upsert(ctx context.Context, exec repositories.SQLExecutor, record *models.EmailVerification) error {
	rec := *record
	r.store.pending[record.Email] = &rec
	return nil
}

func (r *fakeAuthRepository) GetByEmail(ctx context.Context, exec repositories.SQLExecutor, email string) (*models.EmailVerification, error) {
	record, ok := r.store.pending[email]
	if !ok {
		return nil, repositories.ErrVerificationNotFound
	}
	rec := *record
	return &rec, nil
}

func (r *fakeAuthRepository) Delete(ctx context.Context, exec repositories.SQLExecutor, email string) error {
	if _, ok := r.store.pending[email]; !ok {
		return repositories.ErrVerificationNotFound
	}
	delete(r.store.pending, email)
	return nil
}

type fakePlayerRepository struct{ store *fakeStore }

func (r *fakePlayerRepository) Create(ctx context.Context, exec repositories.SQLExecutor, player *models.Player) error {
	if _, ok := r.store.players[player.Name]; ok {
		return repositories.ErrPlayerAlreadyJoined
	}
	if _, ok := r.store.teams[player.Team]; !ok {
		return repositories.ErrPlayerTeamInvalid
	}
	player.IsPlaying = false
	player.JoinedDate = r.store.tick()
	r.store.players[player.Name] = copyPlayer(player)
	return nil
}

func (r *fakePlayerRepository) GetByName(ctx context.Context, exec repositories.SQLExecutor, name string) (*models.Player, error) {
	player, ok := r.store.players[name]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	return copyPlayer(player), nil
}

func (r *fakePlayerRepository) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, name, team string) (*models.Player, error) {
	player, ok := r.store.players[name]
	if !ok || player.Team != team {
		return nil, repositories.ErrPlayerNotFound
	}
	return copyPlayer(player), nil
}

func (r *fakePlayerRepository) Delete(ctx context.Context, exec repositories.SQLExecutor, name, team string) error {
	player, ok := r.store.players[name]
	if !ok || player.Team != team {
		return repositories.ErrPlayerNotFound
	}
	delete(r.store.players, name)
	return nil
}

func (r *fakePlayerRepository) NextCaptain(ctx context.Context, exec repositories.SQLExecutor, team, excluding string) (string, error) {
	var candidates []*models.Player
	for _, p := range r.store.players {
		if p.Team == team && p.Name != excluding {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return "", repositories.ErrPlayerNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].JoinedDate.Equal(candidates[j].JoinedDate) {
			return candidates[i].JoinedDate.Before(candidates[j].JoinedDate)
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0].Name, nil
}

func (r *fakePlayerRepository) SetPlaying(ctx context.Context, exec repositories.SQLExecutor, name, team string, playing bool) error {
	player, ok := r.store.players[name]
	if !ok || player.Team != team {
		return repositories.ErrPlayerNotFound
	}
	player.IsPlaying = playing
	return nil
}

func (r *fakePlayerRepository) ListByTeam(ctx context.Context, exec repositories.SQLExecutor, team string) ([]models.TeamMember, error) {
	members := make([]models.TeamMember, 0)
	for _, p := range r.store.players {
		if p.Team != team {
			continue
		}
		user, ok := r.store.users[p.Name]
		if !ok {
			continue
		}
		members = append(members, models.TeamMember{
			Email:      user.Email,
			Name:       user.Name,
			IsPlaying:  p.IsPlaying,
			JoinedDate: p.JoinedDate,
		})
	}
	sort.Slice(members, func(i, j int) bool {
		if !members[i].JoinedDate.Equal(members[j].JoinedDate) {
			return members[i].JoinedDate.Before(members[j].JoinedDate)
		}
		return members[i].Email < members[j].Email
	})
	return members, nil
}

func (r *fakePlayerRepository) ClearPlayingByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID string) error {
	for _, p := range r.store.players {
		team, ok := r.store.teams[p.Team]
		if ok && team.TournamentID != nil && *team.TournamentID == tournamentID {
			p.IsPlaying = false
		}
	}
	return nil
}

type fakeTeamRepository struct{ store *fakeStore }

func (r *fakeTeamRepository) Create(ctx context.Context, exec repositories.SQLExecutor, team *models.Team) error {
	if _, ok := r.store.teams[team.Name]; ok {
		return repositories.ErrTeamNameConflict
	}
	if team.TournamentID != nil {
		if _, ok := r.store.tournaments[*team.TournamentID]; !ok {
			return repositories.ErrTeamTournamentInvalid
		}
	}
	team.JoinedPlayers = 0
	team.Playing = 0
	team.CreatedAt = r.store.tick()
	r.store.teams[team.Name] = copyTeam(team)
	return nil
}

func (r *fakeTeamRepository) GetByName(ctx context.Context, exec repositories.SQLExecutor, name string) (*models.Team, error) {
	team, ok := r.store.teams[name]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return copyTeam(team), nil
}

func (r *fakeTeamRepository) GetByNameForUpdate(ctx context.Context, exec repositories.SQLExecutor, name string) (*models.Team, error) {
	return r.GetByName(ctx, exec, name)
}

func (r *fakeTeamRepository) List(ctx context.Context, exec repositories.SQLExecutor) ([]models.Team, error) {
	teams := make([]models.Team, 0)
	for _, t := range r.store.teams {
		teams = append(teams, *copyTeam(t))
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

func (r *fakeTeamRepository) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID string) ([]models.Team, error) {
	teams := make([]models.Team, 0)
	for _, t := range r.store.teams {
		if t.TournamentID != nil && *t.TournamentID == tournamentID {
			teams = append(teams, *copyTeam(t))
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

func (r *fakeTeamRepository) UpdateCaptain(ctx context.Context, exec repositories.SQLExecutor, name, captain string) error {
	team, ok := r.store.teams[name]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.Captain = captain
	return nil
}

func (r *fakeTeamRepository) UpdateLogoKey(ctx context.Context, exec repositories.SQLExecutor, name string, logoKey *string) error {
	team, ok := r.store.teams[name]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.LogoKey = copyStrPtr(logoKey)
	return nil
}

func (r *fakeTeamRepository) Delete(ctx context.Context, exec repositories.SQLExecutor, name string) error {
	if _, ok := r.store.teams[name]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.store.teams, name)
	return nil
}

func (r *fakeTeamRepository) AddJoined(ctx context.Context, exec repositories.SQLExecutor, name string, delta int) error {
	team, ok := r.store.teams[name]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.JoinedPlayers += delta
	return nil
}

func (r *fakeTeamRepository) ApplyLeave(ctx context.Context, exec repositories.SQLExecutor, name string, wasPlaying bool) error {
	team, ok := r.store.teams[name]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.JoinedPlayers--
	if wasPlaying {
		team.Playing--
	}
	return nil
}

func (r *fakeTeamRepository) AdjustPlaying(ctx context.Context, exec repositories.SQLExecutor, name string, delta int) error {
	team, ok := r.store.teams[name]
	if !ok {
		return repositories.ErrTeamCounterViolation
	}
	next := team.Playing + delta
	if next < 0 || next > team.JoinedPlayers {
		return repositories.ErrTeamCounterViolation
	}
	team.Playing = next
	return nil
}

func (r *fakeTeamRepository) EnterTournament(ctx context.Context, exec repositories.SQLExecutor, name, tournamentID string) (int64, error) {
	team, ok := r.store.teams[name]
	if !ok {
		return 0, nil
	}
	tournament, ok := r.store.tournaments[tournamentID]
	if !ok {
		return 0, nil
	}
	if team.TournamentID != nil {
		return 0, nil
	}
	if team.Playing < tournament.MinPlayers || team.Playing > tournament.MaxPlayers {
		return 0, nil
	}
	if tournament.TeamsParticipated >= tournament.MaxTeams {
		return 0, nil
	}
	team.TournamentID = strPtr(tournamentID)
	return 1, nil
}

func (r *fakeTeamRepository) LeaveTournament(ctx context.Context, exec repositories.SQLExecutor, name, tournamentID string) (int64, error) {
	team, ok := r.store.teams[name]
	if !ok || team.TournamentID == nil || *team.TournamentID != tournamentID {
		return 0, nil
	}
	team.TournamentID = nil
	return 1, nil
}

func (r *fakeTeamRepository) ExitIfOutOfBounds(ctx context.Context, exec repositories.SQLExecutor, name string) (*string, error) {
	team, ok := r.store.teams[name]
	if !ok || team.TournamentID == nil {
		return nil, nil
	}
	tournament, ok := r.store.tournaments[*team.TournamentID]
	if !ok {
		return nil, nil
	}
	if team.Playing >= tournament.MinPlayers && team.Playing <= tournament.MaxPlayers {
		return nil, nil
	}
	exited := *team.TournamentID
	team.TournamentID = nil
	return &exited, nil
}

func (r *fakeTeamRepository) DetachByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID string) error {
	for _, t := range r.store.teams {
		if t.TournamentID != nil && *t.TournamentID == tournamentID {
			t.TournamentID = nil
			t.Playing = 0
		}
	}
	return nil
}

type fakeTournamentRepository struct{ store *fakeStore }

func (r *fakeTournamentRepository) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	if _, ok := r.store.tournaments[t.ID]; ok {
		return repositories.ErrTournamentIDConflict
	}
	t.TeamsParticipated = 0
	t.CreatedAt = r.store.tick()
	r.store.tournaments[t.ID] = copyTournament(t)
	return nil
}

func (r *fakeTournamentRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id string) (*models.Tournament, error) {
	t, ok := r.store.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return copyTournament(t), nil
}

func (r *fakeTournamentRepository) Exists(ctx context.Context, exec repositories.SQLExecutor, id string) (bool, error) {
	_, ok := r.store.tournaments[id]
	return ok, nil
}

func (r *fakeTournamentRepository) ListByLocation(ctx context.Context, exec repositories.SQLExecutor, location string, startingAfter time.Time) ([]models.Tournament, error) {
	tournaments := make([]models.Tournament, 0)
	for _, t := range r.store.tournaments {
		if t.Location == location && t.StartDate.After(startingAfter) {
			tournaments = append(tournaments, *copyTournament(t))
		}
	}
	sort.Slice(tournaments, func(i, j int) bool {
		return tournaments[i].StartDate.Before(tournaments[j].StartDate)
	})
	return tournaments, nil
}

func (r *fakeTournamentRepository) Update(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) (int64, error) {
	existing, ok := r.store.tournaments[t.ID]
	if !ok || existing.Creator != t.Creator {
		return 0, nil
	}
	existing.Title = t.Title
	existing.Game = t.Game
	existing.MinPlayers = t.MinPlayers
	existing.MaxPlayers = t.MaxPlayers
	existing.MinTeams = t.MinTeams
	existing.MaxTeams = t.MaxTeams
	existing.Location = t.Location
	existing.StartDate = t.StartDate
	existing.EndDate = t.EndDate
	existing.Description = copyStrPtr(t.Description)
	return 1, nil
}

func (r *fakeTournamentRepository) Delete(ctx context.Context, exec repositories.SQLExecutor, id, creator string) (int64, error) {
	t, ok := r.store.tournaments[id]
	if !ok || t.Creator != creator {
		return 0, nil
	}
	delete(r.store.tournaments, id)
	return 1, nil
}

func (r *fakeTournamentRepository) IncrementTeams(ctx context.Context, exec repositories.SQLExecutor, id string) error {
	t, ok := r.store.tournaments[id]
	if !ok || t.TeamsParticipated >= t.MaxTeams {
		return repositories.ErrTournamentFull
	}
	t.TeamsParticipated++
	return nil
}

func (r *fakeTournamentRepository) DecrementTeams(ctx context.Context, exec repositories.SQLExecutor, id string) error {
	t, ok := r.store.tournaments[id]
	if !ok || t.TeamsParticipated <= 0 {
		return repositories.ErrTournamentCounterZero
	}
	t.TeamsParticipated--
	return nil
}

type fakeUploader struct {
	uploaded map[string]string // key -> content type
	deleted  []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploaded: make(map[string]string)}
}

func (u *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return nil, err
	}
	u.uploaded[key] = contentType
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type sentMail struct {
	To      []string
	Subject string
	Body    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendEmail(to []string, subject string, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

// seedUser registers a user directly in the store.
func (s *fakeStore) seedUser(email, name string) {
	s.users[email] = &models.User{Email: email, Name: name, CreatedAt: s.tick()}
}

// seedTeam creates a team with the given members; the first member is the
// captain. Members join in slice order with strictly increasing join dates.
func (s *fakeStore) seedTeam(name string, members ...string) *models.Team {
	team := &models.Team{
		Name:          name,
		Captain:       members[0],
		JoinedPlayers: len(members),
		CreatedAt:     s.tick(),
	}
	s.teams[name] = team
	for _, member := range members {
		if _, ok := s.users[member]; !ok {
			s.seedUser(member, member)
		}
		s.players[member] = &models.Player{
			Name:       member,
			Team:       name,
			JoinedDate: s.tick(),
		}
	}
	return team
}

// setPlaying marks members as playing and keeps the team counter consistent.
func (s *fakeStore) setPlaying(team string, members ...string) {
	for _, member := range members {
		p, ok := s.players[member]
		if !ok || p.Team != team {
			panic(fmt.Sprintf("setPlaying: %s is not a member of %s", member, team))
		}
		if !p.IsPlaying {
			p.IsPlaying = true
			s.teams[team].Playing++
		}
	}
}

// seedTournament creates a tournament owned by creator with the given player
// window and team capacity.
func (s *fakeStore) seedTournament(id, creator string, minPlayers, maxPlayers, maxTeams int) *models.Tournament {
	t := &models.Tournament{
		ID:         id,
		Title:      "Tournament " + id,
		Game:       "chess",
		MinPlayers: minPlayers,
		MaxPlayers: maxPlayers,
		MinTeams:   1,
		MaxTeams:   maxTeams,
		Location:   "Berlin",
		StartDate:  s.clock.Add(24 * time.Hour),
		EndDate:    s.clock.Add(48 * time.Hour),
		Creator:    creator,
		CreatedAt:  s.tick(),
	}
	s.tournaments[id] = t
	return t
}

// enterTournament links a seeded team to a seeded tournament and bumps the
// participation counter, bypassing eligibility checks.
func (s *fakeStore) enterTournament(team, tournamentID string) {
	s.teams[team].TournamentID = strPtr(tournamentID)
	s.tournaments[tournamentID].TeamsParticipated++
}
