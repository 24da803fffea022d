package models

import "time"

type Tournament struct {
	ID                string    `json:"id" db:"id"`
	Title             string    `json:"title" db:"title"`
	Game              string    `json:"game" db:"game"`
	MinPlayers        int       `json:"min_players" db:"min_players"`
	MaxPlayers        int       `json:"max_players" db:"max_players"`
	MinTeams          int       `json:"min_teams" db:"min_teams"`
	MaxTeams          int       `json:"max_teams" db:"max_teams"`
	TeamsParticipated int       `json:"teams_participated" db:"teams_participated"`
	Location          string    `json:"location" db:"location"`
	StartDate         time.Time `json:"start_date" db:"start_date"`
	EndDate           time.Time `json:"end_date" db:"end_date"`
	Description       *string   `json:"description,omitempty" db:"description"`
	Creator           string    `json:"creator" db:"creator"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`

	// Optional related entities, populated on detail reads.
	CreatorName *string `json:"creator_name,omitempty" db:"-"`
	Teams       []Team  `json:"teams,omitempty" db:"-"`
}
