package models

import "time"

// ScheduleStatus отражает стадию готовности расписания дивизиона.
type ScheduleStatus string

const (
	ScheduleNotGenerated  ScheduleStatus = "not_generated"
	ScheduleUnitsAssigned ScheduleStatus = "units_assigned"
	ScheduleGenerated     ScheduleStatus = "generated"
	SchedulePublished     ScheduleStatus = "published"
	ScheduleFinalized     ScheduleStatus = "finalized"
)

// Division — категория внутри турнира (например, "Men's Doubles 4.0").
// Поля drawing_* образуют состояние сессии жеребьёвки и мутируются только
// внутри транзакции с блокировкой строки дивизиона.
type Division struct {
	ID                            int            `json:"id" db:"id"`
	EventID                       int            `json:"event_id" db:"event_id"`
	Name                          string         `json:"name" db:"name"`
	TeamSize                      int            `json:"team_size" db:"team_size"`
	GamesPerMatch                 int            `json:"games_per_match" db:"games_per_match"`
	MatchesPerEncounter           int            `json:"matches_per_encounter" db:"matches_per_encounter"`
	EstimatedMatchDurationMinutes *int           `json:"estimated_match_duration_minutes,omitempty" db:"estimated_match_duration_minutes"`
	ScheduleStatus                ScheduleStatus `json:"schedule_status" db:"schedule_status"`
	DrawingInProgress             bool           `json:"drawing_in_progress" db:"drawing_in_progress"`
	DrawingStartedAt              *time.Time     `json:"drawing_started_at,omitempty" db:"drawing_started_at"`
	DrawingByUserID               *int           `json:"drawing_by_user_id,omitempty" db:"drawing_by_user_id"`
	DrawingSequence               int            `json:"drawing_sequence" db:"drawing_sequence"`
	CreatedAt                     time.Time      `json:"created_at" db:"created_at"`
}
