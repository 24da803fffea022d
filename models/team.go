package models

import "time"

type Team struct {
	Name          string    `json:"name" db:"name"`
	Captain       string    `json:"captain" db:"captain"`
	TournamentID  *string   `json:"tournament_id,omitempty" db:"tournament_id"`
	JoinedPlayers int       `json:"joined_players" db:"joined_players"`
	Playing       int       `json:"playing" db:"playing"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`

	Members []TeamMember `json:"members,omitempty" db:"-"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}
