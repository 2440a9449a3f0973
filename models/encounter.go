package models

import "time"

type RoundType string

const (
	RoundPool       RoundType = "pool"
	RoundBracket    RoundType = "bracket"
	RoundFinal      RoundType = "final"
	RoundThirdPlace RoundType = "third_place"
)

type EncounterStatus string

const (
	EncounterScheduled  EncounterStatus = "scheduled"
	EncounterInProgress EncounterStatus = "in_progress"
	EncounterBye        EncounterStatus = "bye"
	EncounterCompleted  EncounterStatus = "completed"
)

// Encounter — одна запланированная встреча двух юнитов внутри
// дивизиона/фазы/раунда. До жеребьёвки стороны заданы номерами слотов
// (Unit1Number/Unit2Number), после — идентификаторами юнитов.
type Encounter struct {
	ID              int             `json:"id" db:"id"`
	DivisionID      int             `json:"division_id" db:"division_id"`
	PhaseID         *int            `json:"phase_id,omitempty" db:"phase_id"`
	RoundType       RoundType       `json:"round_type" db:"round_type"`
	RoundNumber     int             `json:"round_number" db:"round_number"`
	BracketPosition int             `json:"bracket_position" db:"bracket_position"`
	EncounterNumber int             `json:"encounter_number" db:"encounter_number"`
	PoolNumber      *int            `json:"pool_number,omitempty" db:"pool_number"`
	Unit1ID         *int            `json:"unit1_id,omitempty" db:"unit1_id"`
	Unit2ID         *int            `json:"unit2_id,omitempty" db:"unit2_id"`
	Unit1Number     *int            `json:"unit1_number,omitempty" db:"unit1_number"`
	Unit2Number     *int            `json:"unit2_number,omitempty" db:"unit2_number"`
	WinnerUnitID    *int            `json:"winner_unit_id,omitempty" db:"winner_unit_id"`
	Status          EncounterStatus `json:"status" db:"status"`
	BestOf          *int            `json:"best_of,omitempty" db:"best_of"`

	TournamentCourtID        *int       `json:"tournament_court_id,omitempty" db:"tournament_court_id"`
	EstimatedStartTime       *time.Time `json:"estimated_start_time,omitempty" db:"estimated_start_time"`
	EstimatedEndTime         *time.Time `json:"estimated_end_time,omitempty" db:"estimated_end_time"`
	EstimatedDurationMinutes *int       `json:"estimated_duration_minutes,omitempty" db:"estimated_duration_minutes"`

	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// EffectiveBestOf — best-of встречи: собственное значение, иначе значение
// дивизиона, иначе 1.
func (e *Encounter) EffectiveBestOf(divisionDefault int) int {
	if e.BestOf != nil && *e.BestOf > 0 {
		return *e.BestOf
	}
	if divisionDefault > 0 {
		return divisionDefault
	}
	return 1
}

// EncounterMatch — один матч внутри встречи. FormatID ссылается на
// EncounterMatchFormat, nil для единственного матча встречи.
type EncounterMatch struct {
	ID           int  `json:"id" db:"id"`
	EncounterID  int  `json:"encounter_id" db:"encounter_id"`
	FormatID     *int `json:"format_id,omitempty" db:"format_id"`
	SortOrder    int  `json:"sort_order" db:"sort_order"`
	WinnerUnitID *int `json:"winner_unit_id,omitempty" db:"winner_unit_id"`

	Games []Game `json:"games,omitempty" db:"-"`
}

// Game — один гейм матча со счётом по очкам.
type Game struct {
	ID           int  `json:"id" db:"id"`
	MatchID      int  `json:"match_id" db:"match_id"`
	GameNumber   int  `json:"game_number" db:"game_number"`
	Unit1Points  int  `json:"unit1_points" db:"unit1_points"`
	Unit2Points  int  `json:"unit2_points" db:"unit2_points"`
	WinnerUnitID *int `json:"winner_unit_id,omitempty" db:"winner_unit_id"`
	Finished     bool `json:"finished" db:"finished"`
}
