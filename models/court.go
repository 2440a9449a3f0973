package models

type CourtStatus string

const (
	CourtAvailable CourtStatus = "available"
	CourtInUse     CourtStatus = "in_use"
)

// Court — физический корт турнира. Только активные корты участвуют
// в распределении расписания.
type Court struct {
	ID        int         `json:"id" db:"id"`
	EventID   int         `json:"event_id" db:"event_id"`
	Name      string      `json:"name" db:"name"`
	Status    CourtStatus `json:"status" db:"status"`
	SortOrder int         `json:"sort_order" db:"sort_order"`
	Active    bool        `json:"active" db:"active"`
}

// CourtGroup объединяет корты, которые можно закрепить за дивизионом
// или фазой через CourtAssignment.
type CourtGroup struct {
	ID      int    `json:"id" db:"id"`
	EventID int    `json:"event_id" db:"event_id"`
	Name    string `json:"name" db:"name"`
}

// CourtAssignment привязывает группу кортов к дивизиону и/или фазе.
// PhaseID == nil означает привязку ко всем фазам дивизиона.
type CourtAssignment struct {
	ID           int  `json:"id" db:"id"`
	CourtGroupID int  `json:"court_group_id" db:"court_group_id"`
	DivisionID   *int `json:"division_id,omitempty" db:"division_id"`
	PhaseID      *int `json:"phase_id,omitempty" db:"phase_id"`
	Priority     int  `json:"priority" db:"priority"`
}
