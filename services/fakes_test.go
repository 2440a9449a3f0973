package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/courtflow/tournament-engine/models"
	"github.com/courtflow/tournament-engine/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransactor сериализует транзакции мьютексом, моделируя блокировку
// строки дивизиона: конкурентные шаги жеребьёвки выполняются по одному.
type fakeTransactor struct {
	mu sync.Mutex
}

func (t *fakeTransactor) WithinTx(ctx context.Context, fn func(repositories.SQLExecutor) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(nil)
}

// memDB — общее состояние фейковых репозиториев одного теста.
type memDB struct {
	mu sync.Mutex

	events     map[int]*models.Event
	divisions  map[int]*models.Division
	units      map[int]*models.Unit
	encounters map[int]*models.Encounter
	matches    map[int]*models.EncounterMatch
	formats    map[int][]*models.EncounterMatchFormat

	nextEncounterID int
	nextMatchID     int
	nextGameID      int
}

func newMemDB() *memDB {
	return &memDB{
		events:          make(map[int]*models.Event),
		divisions:       make(map[int]*models.Division),
		units:           make(map[int]*models.Unit),
		encounters:      make(map[int]*models.Encounter),
		matches:         make(map[int]*models.EncounterMatch),
		formats:         make(map[int][]*models.EncounterMatchFormat),
		nextEncounterID: 1,
		nextMatchID:     1,
		nextGameID:      1,
	}
}

var (
	_ repositories.Transactor          = (*fakeTransactor)(nil)
	_ repositories.EventRepository     = (*fakeEventRepo)(nil)
	_ repositories.DivisionRepository  = (*fakeDivisionRepo)(nil)
	_ repositories.UnitRepository      = (*fakeUnitRepo)(nil)
	_ repositories.EncounterRepository = (*fakeEncounterRepo)(nil)
	_ repositories.MatchRepository     = (*fakeMatchRepo)(nil)
)

type fakeEventRepo struct{ db *memDB }

func (r *fakeEventRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEventRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.Status = status
	return nil
}

type fakeDivisionRepo struct{ db *memDB }

func (r *fakeDivisionRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Division, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.divisions[id]
	if !ok {
		return nil, repositories.ErrDivisionNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDivisionRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Division, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *fakeDivisionRepo) UpdateDrawingState(ctx context.Context, exec repositories.SQLExecutor, id int, state repositories.DrawingState) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.divisions[id]
	if !ok {
		return repositories.ErrDivisionNotFound
	}
	d.DrawingInProgress = state.InProgress
	d.DrawingStartedAt = state.StartedAt
	d.DrawingByUserID = state.ByUserID
	d.DrawingSequence = state.Sequence
	return nil
}

func (r *fakeDivisionRepo) UpdateScheduleStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.ScheduleStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.divisions[id]
	if !ok {
		return repositories.ErrDivisionNotFound
	}
	d.ScheduleStatus = status
	return nil
}

func (r *fakeDivisionRepo) CountDrawingInProgress(ctx context.Context, exec repositories.SQLExecutor, eventID int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	count := 0
	for _, d := range r.db.divisions {
		if d.EventID == eventID && d.DrawingInProgress {
			count++
		}
	}
	return count, nil
}

func (r *fakeDivisionRepo) ListMatchFormats(ctx context.Context, exec repositories.SQLExecutor, divisionID int) ([]*models.EncounterMatchFormat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.formats[divisionID], nil
}

type fakeUnitRepo struct{ db *memDB }

func (r *fakeUnitRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Unit, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.units[id]
	if !ok {
		return nil, repositories.ErrUnitNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUnitRepo) unitsOf(divisionID int, filter func(*models.Unit) bool) []*models.Unit {
	out := make([]*models.Unit, 0)
	for _, u := range r.db.units {
		if u.DivisionID == divisionID && filter(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeUnitRepo) ListEligible(ctx context.Context, exec repositories.SQLExecutor, divisionID int) ([]*models.Unit, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.unitsOf(divisionID, func(u *models.Unit) bool { return u.Eligible() }), nil
}

func (r *fakeUnitRepo) ListUndrawn(ctx context.Context, exec repositories.SQLExecutor, divisionID int, forUpdate bool) ([]*models.Unit, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.unitsOf(divisionID, func(u *models.Unit) bool { return u.Eligible() && u.UnitNumber == nil }), nil
}

func (r *fakeUnitRepo) ListDrawn(ctx context.Context, exec repositories.SQLExecutor, divisionID int) ([]*models.Unit, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := r.unitsOf(divisionID, func(u *models.Unit) bool { return u.UnitNumber != nil })
	sort.Slice(out, func(i, j int) bool { return *out[i].UnitNumber < *out[j].UnitNumber })
	return out, nil
}

func (r *fakeUnitRepo) AssignUnitNumber(ctx context.Context, exec repositories.SQLExecutor, unitID int, number int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.units[unitID]
	if !ok {
		return repositories.ErrUnitNotFound
	}
	if u.UnitNumber != nil {
		return repositories.ErrUnitNotFound
	}
	for _, other := range r.db.units {
		if other.DivisionID == u.DivisionID && other.UnitNumber != nil && *other.UnitNumber == number {
			return repositories.ErrUnitNumberConflict
		}
	}
	u.UnitNumber = &number
	return nil
}

func (r *fakeUnitRepo) ClearUnitNumbers(ctx context.Context, exec repositories.SQLExecutor, divisionID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.units {
		if u.DivisionID == divisionID {
			u.UnitNumber = nil
			u.PoolNumber = nil
			u.PoolName = nil
		}
	}
	return nil
}

func (r *fakeUnitRepo) ApplyStatsDelta(ctx context.Context, exec repositories.SQLExecutor, unitID int, delta repositories.UnitStatsDelta) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.units[unitID]
	if !ok {
		return repositories.ErrUnitNotFound
	}
	u.MatchesPlayed += delta.Played
	u.MatchesWon += delta.Won
	u.MatchesLost += delta.Lost
	u.GamesWon += delta.GamesWon
	u.GamesLost += delta.GamesLost
	u.PointsScored += delta.PointsScored
	u.PointsAgainst += delta.PointsAgainst
	return nil
}

type fakeEncounterRepo struct {
	repositories.EncounterRepository
	db *memDB
}

func (r *fakeEncounterRepo) Create(ctx context.Context, exec repositories.SQLExecutor, encounter *models.Encounter) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	encounter.ID = r.db.nextEncounterID
	r.db.nextEncounterID++
	cp := *encounter
	r.db.encounters[cp.ID] = &cp
	return nil
}

func (r *fakeEncounterRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Encounter, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.encounters[id]
	if !ok {
		return nil, repositories.ErrEncounterNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeEncounterRepo) ListByDivision(ctx context.Context, exec repositories.SQLExecutor, divisionID int) ([]*models.Encounter, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*models.Encounter, 0)
	for _, e := range r.db.encounters {
		if e.DivisionID == divisionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EncounterNumber < out[j].EncounterNumber })
	return out, nil
}

func (r *fakeEncounterRepo) ResolveDrawnUnits(ctx context.Context, exec repositories.SQLExecutor, id int, res repositories.DrawResolution) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.encounters[id]
	if !ok {
		return repositories.ErrEncounterNotFound
	}
	e.Unit1ID = res.Unit1ID
	e.Unit2ID = res.Unit2ID
	e.Status = res.Status
	e.WinnerUnitID = res.WinnerUnitID
	return nil
}

func (r *fakeEncounterRepo) ResetDrawnBindings(ctx context.Context, exec repositories.SQLExecutor, divisionID int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	count := 0
	for _, e := range r.db.encounters {
		if e.DivisionID != divisionID || e.Status == models.EncounterCompleted {
			continue
		}
		fromDraw := e.RoundType == models.RoundPool || e.Unit1Number != nil || e.Unit2Number != nil
		if !fromDraw {
			continue
		}
		if e.Unit1ID == nil && e.Unit2ID == nil && e.Status == models.EncounterScheduled {
			continue
		}
		e.Unit1ID = nil
		e.Unit2ID = nil
		e.WinnerUnitID = nil
		e.Status = models.EncounterScheduled
		count++
	}
	return count, nil
}

func (r *fakeEncounterRepo) GetByRoundPosition(ctx context.Context, exec repositories.SQLExecutor, divisionID, roundNumber, bracketPosition int) (*models.Encounter, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.encounters {
		if e.DivisionID == divisionID && e.RoundNumber == roundNumber &&
			e.BracketPosition == bracketPosition && e.RoundType != models.RoundThirdPlace {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repositories.ErrEncounterNotFound
}

func (r *fakeEncounterRepo) GetFinalByRound(ctx context.Context, exec repositories.SQLExecutor, divisionID, roundNumber int) (*models.Encounter, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.db.encounters {
		if e.DivisionID == divisionID && e.RoundNumber == roundNumber && e.RoundType == models.RoundFinal {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repositories.ErrEncounterNotFound
}

func (r *fakeEncounterRepo) SetUnitSlot(ctx context.Context, exec repositories.SQLExecutor, id int, slot int, unitID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.encounters[id]
	if !ok {
		return repositories.ErrEncounterNotFound
	}
	if slot == 1 {
		e.Unit1ID = &unitID
	} else {
		e.Unit2ID = &unitID
	}
	return nil
}

func (r *fakeEncounterRepo) SetWinner(ctx context.Context, exec repositories.SQLExecutor, id int, winnerUnitID int, completedAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.encounters[id]
	if !ok {
		return repositories.ErrEncounterNotFound
	}
	e.WinnerUnitID = &winnerUnitID
	e.Status = models.EncounterCompleted
	e.CompletedAt = &completedAt
	return nil
}

type fakeMatchRepo struct {
	repositories.MatchRepository
	db *memDB
}

func (r *fakeMatchRepo) CreateMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.EncounterMatch) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	match.ID = r.db.nextMatchID
	r.db.nextMatchID++
	cp := *match
	cp.Games = append([]models.Game(nil), match.Games...)
	r.db.matches[cp.ID] = &cp
	return nil
}

func (r *fakeMatchRepo) ListByEncounter(ctx context.Context, exec repositories.SQLExecutor, encounterID int) ([]*models.EncounterMatch, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]*models.EncounterMatch, 0)
	for _, m := range r.db.matches {
		if m.EncounterID == encounterID {
			cp := *m
			cp.Games = append([]models.Game(nil), m.Games...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *fakeMatchRepo) UpsertGame(ctx context.Context, exec repositories.SQLExecutor, matchID, gameNumber int, score repositories.GameScore) (*models.Game, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.matches[matchID]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	for i := range m.Games {
		if m.Games[i].GameNumber == gameNumber {
			m.Games[i].Unit1Points = score.Unit1Points
			m.Games[i].Unit2Points = score.Unit2Points
			m.Games[i].WinnerUnitID = score.WinnerUnitID
			m.Games[i].Finished = score.Finished
			cp := m.Games[i]
			return &cp, nil
		}
	}
	game := models.Game{
		ID:           r.db.nextGameID,
		MatchID:      matchID,
		GameNumber:   gameNumber,
		Unit1Points:  score.Unit1Points,
		Unit2Points:  score.Unit2Points,
		WinnerUnitID: score.WinnerUnitID,
		Finished:     score.Finished,
	}
	r.db.nextGameID++
	m.Games = append(m.Games, game)
	return &game, nil
}

func (r *fakeMatchRepo) SetMatchWinner(ctx context.Context, exec repositories.SQLExecutor, matchID int, winnerUnitID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.WinnerUnitID = &winnerUnitID
	return nil
}

func (r *fakeMatchRepo) EncounterIDForMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.matches[matchID]
	if !ok {
		return 0, repositories.ErrMatchNotFound
	}
	return m.EncounterID, nil
}
