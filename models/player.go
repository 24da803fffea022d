package models

import "time"

// Player is a team-membership row. A player holds at most one row at any
// time; the row itself is the only evidence of membership.
type Player struct {
	Name       string    `json:"name" db:"name"`
	Team       string    `json:"team" db:"team"`
	IsPlaying  bool      `json:"is_playing" db:"is_playing"`
	JoinedDate time.Time `json:"joined_date" db:"joined_date"`
}

// TeamMember is the roster view joined with the users table.
type TeamMember struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsPlaying  bool      `json:"is_playing"`
	JoinedDate time.Time `json:"joined_date"`
}
