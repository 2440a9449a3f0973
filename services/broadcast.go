package services

// DrawingSnapshot — состояние жеребьёвки, рассылаемое зрителям.
type DrawingSnapshot struct {
	DivisionID     int      `json:"division_id"`
	TotalUnits     int      `json:"total_units"`
	DrawnCount     int      `json:"drawn_count"`
	RemainingUnits []string `json:"remaining_units"`
}

// DrawnUnitPayload — один шаг жеребьёвки.
type DrawnUnitPayload struct {
	DivisionID int      `json:"division_id"`
	UnitID     int      `json:"unit_id"`
	Name       string   `json:"name"`
	Members    []string `json:"members"`
	UnitNumber int      `json:"unit_number"`
	Remaining  int      `json:"remaining"`
}

// DrawingResultEntry — позиция в финальном списке жеребьёвки.
type DrawingResultEntry struct {
	UnitID     int    `json:"unit_id"`
	Name       string `json:"name"`
	UnitNumber int    `json:"unit_number"`
}

// ProgressionPayload — продвижение победителя по сетке.
type ProgressionPayload struct {
	DivisionID       int    `json:"division_id"`
	EncounterID      int    `json:"encounter_id"`
	WinnerUnitID     int    `json:"winner_unit_id"`
	AdvancedToID     *int   `json:"advanced_to_id,omitempty"`
	AdvancedToName   string `json:"advanced_to_name,omitempty"`
	AdvancedIntoSlot int    `json:"advanced_into_slot,omitempty"`
}

// GameScorePayload — обновление счёта одного гейма.
type GameScorePayload struct {
	DivisionID  int  `json:"division_id"`
	EncounterID int  `json:"encounter_id"`
	MatchID     int  `json:"match_id"`
	GameNumber  int  `json:"game_number"`
	Unit1Points int  `json:"unit1_points"`
	Unit2Points int  `json:"unit2_points"`
	Finished    bool `json:"finished"`
}

// Broadcaster — канал живых уведомлений для зрителей и организаторов.
// Все вызовы best-effort: сбой доставки логируется и никогда не откатывает
// мутацию, которая его породила.
type Broadcaster interface {
	BroadcastDrawingStarted(eventID, divisionID int, state DrawingSnapshot)
	BroadcastUnitDrawn(eventID, divisionID int, drawn DrawnUnitPayload)
	BroadcastDrawingCompleted(eventID, divisionID int, result []DrawingResultEntry)
	BroadcastDrawingCancelled(eventID, divisionID int)
	BroadcastBracketProgression(eventID, divisionID int, update ProgressionPayload)
	BroadcastMatchCompleted(eventID, divisionID int, encounterID int, winnerUnitID int)
	BroadcastGameScoreUpdated(eventID, divisionID int, update GameScorePayload)
	BroadcastScheduleRefresh(eventID, divisionID int)
}

// NopBroadcaster отключает рассылку. Используется в тестах и фоновых задачах.
type NopBroadcaster struct{}

func (NopBroadcaster) BroadcastDrawingStarted(int, int, DrawingSnapshot)        {}
func (NopBroadcaster) BroadcastUnitDrawn(int, int, DrawnUnitPayload)            {}
func (NopBroadcaster) BroadcastDrawingCompleted(int, int, []DrawingResultEntry) {}
func (NopBroadcaster) BroadcastDrawingCancelled(int, int)                       {}
func (NopBroadcaster) BroadcastBracketProgression(int, int, ProgressionPayload) {}
func (NopBroadcaster) BroadcastMatchCompleted(int, int, int, int)               {}
func (NopBroadcaster) BroadcastGameScoreUpdated(int, int, GameScorePayload)     {}
func (NopBroadcaster) BroadcastScheduleRefresh(int, int)                        {}
