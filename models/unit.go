package models

import "time"

type UnitStatus string

const (
	UnitRegistered UnitStatus = "registered"
	UnitWaitlisted UnitStatus = "waitlisted"
	UnitCancelled  UnitStatus = "cancelled"
	UnitCheckedIn  UnitStatus = "checked_in"
)

// Unit — зарегистрированный участник дивизиона: игрок, пара или команда.
// UnitNumber (номер слота) равен nil до жеребьёвки.
type Unit struct {
	ID         int        `json:"id" db:"id"`
	DivisionID int        `json:"division_id" db:"division_id"`
	Name       string     `json:"name" db:"name"`
	Members    []string   `json:"members" db:"members"`
	UnitNumber *int       `json:"unit_number,omitempty" db:"unit_number"`
	PoolNumber *int       `json:"pool_number,omitempty" db:"pool_number"`
	PoolName   *string    `json:"pool_name,omitempty" db:"pool_name"`
	Status     UnitStatus `json:"status" db:"status"`

	MatchesPlayed int `json:"matches_played" db:"matches_played"`
	MatchesWon    int `json:"matches_won" db:"matches_won"`
	MatchesLost   int `json:"matches_lost" db:"matches_lost"`
	GamesWon      int `json:"games_won" db:"games_won"`
	GamesLost     int `json:"games_lost" db:"games_lost"`
	PointsScored  int `json:"points_scored" db:"points_scored"`
	PointsAgainst int `json:"points_against" db:"points_against"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Eligible сообщает, участвует ли юнит в жеребьёвке и статистике.
func (u *Unit) Eligible() bool {
	return u.Status == UnitRegistered || u.Status == UnitCheckedIn
}
