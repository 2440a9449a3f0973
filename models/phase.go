package models

import "time"

// Phase — упорядоченная стадия внутри дивизиона ("Pool Play", "Bracket").
// BestOf и EstimatedMatchDurationMinutes перекрывают значения дивизиона.
type Phase struct {
	ID                            int        `json:"id" db:"id"`
	DivisionID                    int        `json:"division_id" db:"division_id"`
	Name                          string     `json:"name" db:"name"`
	SortOrder                     int        `json:"sort_order" db:"sort_order"`
	BestOf                        *int       `json:"best_of,omitempty" db:"best_of"`
	EstimatedMatchDurationMinutes *int       `json:"estimated_match_duration_minutes,omitempty" db:"estimated_match_duration_minutes"`
	StartTime                     *time.Time `json:"start_time,omitempty" db:"start_time"`
}

// PhaseMatchSettings — переопределение BestOf на уровне (фаза, формат матча).
// MatchFormatID == nil означает значение по умолчанию для всей фазы.
type PhaseMatchSettings struct {
	ID            int  `json:"id" db:"id"`
	PhaseID       int  `json:"phase_id" db:"phase_id"`
	MatchFormatID *int `json:"match_format_id,omitempty" db:"match_format_id"`
	BestOf        int  `json:"best_of" db:"best_of"`
}

// EncounterMatchFormat описывает один из матчей, составляющих встречу,
// когда встреча — серия из нескольких разнотипных матчей.
type EncounterMatchFormat struct {
	ID         int    `json:"id" db:"id"`
	DivisionID int    `json:"division_id" db:"division_id"`
	Name       string `json:"name" db:"name"`
	BestOf     int    `json:"best_of" db:"best_of"`
	SortOrder  int    `json:"sort_order" db:"sort_order"`
}
