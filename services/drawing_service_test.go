package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtflow/tournament-engine/models"
)

type drawingFixture struct {
	db      *memDB
	service *drawingService
}

func newDrawingFixture(t *testing.T, unitCount int) *drawingFixture {
	t.Helper()

	db := newMemDB()
	db.events[1] = &models.Event{
		ID:          1,
		Name:        "Spring Open",
		OrganizerID: 10,
		StartDate:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:      models.TournamentRegistrationClosed,
	}
	db.divisions[1] = &models.Division{
		ID:            1,
		EventID:       1,
		Name:          "Men's Doubles 4.0",
		GamesPerMatch: 3,
	}
	for i := 1; i <= unitCount; i++ {
		db.units[i] = &models.Unit{
			ID:         i,
			DivisionID: 1,
			Name:       "Unit " + string(rune('A'-1+i)),
			Status:     models.UnitRegistered,
		}
	}

	svc := NewDrawingService(
		&fakeTransactor{},
		&fakeEventRepo{db: db},
		&fakeDivisionRepo{db: db},
		&fakeUnitRepo{db: db},
		&fakeEncounterRepo{db: db},
		NopBroadcaster{},
		testLogger(),
	).(*drawingService)

	return &drawingFixture{db: db, service: svc}
}

func organizer() Actor { return Actor{UserID: 10, Role: "organizer"} }

func (f *drawingFixture) addBracketTemplate(slots ...[2]int) {
	// slots задаёт пары первого круга; 0 означает пустую сторону.
	for i, pair := range slots {
		e := &models.Encounter{
			ID:              i + 1,
			DivisionID:      1,
			RoundType:       models.RoundBracket,
			RoundNumber:     1,
			BracketPosition: i + 1,
			EncounterNumber: i + 1,
			Status:          models.EncounterScheduled,
		}
		if pair[0] != 0 {
			s := pair[0]
			e.Unit1Number = &s
		}
		if pair[1] != 0 {
			s := pair[1]
			e.Unit2Number = &s
		}
		f.db.encounters[e.ID] = e
		f.db.nextEncounterID = e.ID + 1
	}
}

func TestStartDrawingRequiresClosedRegistration(t *testing.T) {
	f := newDrawingFixture(t, 4)
	f.db.events[1].Status = models.TournamentRegistrationOpen

	_, err := f.service.StartDrawing(context.Background(), 1, organizer())
	assert.ErrorIs(t, err, ErrRegistrationStillOpen)
}

func TestStartDrawingForbiddenForStranger(t *testing.T) {
	f := newDrawingFixture(t, 4)

	_, err := f.service.StartDrawing(context.Background(), 1, Actor{UserID: 99, Role: "organizer"})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestStartDrawingAdminBypassesOwnership(t *testing.T) {
	f := newDrawingFixture(t, 4)

	snapshot, err := f.service.StartDrawing(context.Background(), 1, Actor{UserID: 99, Role: RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, 4, snapshot.TotalUnits)
	assert.True(t, f.db.divisions[1].DrawingInProgress)
}

func TestStartDrawingWithoutUnits(t *testing.T) {
	f := newDrawingFixture(t, 0)

	_, err := f.service.StartDrawing(context.Background(), 1, organizer())
	assert.ErrorIs(t, err, ErrNoUnitsToDraw)
}

func TestDrawNextUnitAssignsSequentialNumbers(t *testing.T) {
	f := newDrawingFixture(t, 4)
	f.service.rng = func(n int) int { return 0 }

	_, err := f.service.StartDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)

	for i := 1; i <= 4; i++ {
		drawn, err := f.service.DrawNextUnit(context.Background(), 1, organizer())
		require.NoError(t, err)
		assert.Equal(t, i, drawn.UnitNumber)
		assert.Equal(t, 4-i, drawn.Remaining)
	}

	_, err = f.service.DrawNextUnit(context.Background(), 1, organizer())
	assert.ErrorIs(t, err, ErrNoUnitsRemaining)
}

func TestDrawNextUnitWithoutSession(t *testing.T) {
	f := newDrawingFixture(t, 4)

	_, err := f.service.DrawNextUnit(context.Background(), 1, organizer())
	assert.ErrorIs(t, err, ErrNoDrawingInProgress)
}

func TestDrawNextUnitConcurrentCallsStayExclusive(t *testing.T) {
	const unitCount = 8
	f := newDrawingFixture(t, unitCount)

	_, err := f.service.StartDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan *DrawnUnit, unitCount)
	errs := make(chan error, unitCount)
	for i := 0; i < unitCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			drawn, err := f.service.DrawNextUnit(context.Background(), 1, organizer())
			if err != nil {
				errs <- err
				return
			}
			results <- drawn
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent draw failed: %v", err)
	}

	numbers := map[int]bool{}
	units := map[int]bool{}
	for drawn := range results {
		assert.False(t, numbers[drawn.UnitNumber], "number %d drawn twice", drawn.UnitNumber)
		assert.False(t, units[drawn.UnitID], "unit %d drawn twice", drawn.UnitID)
		numbers[drawn.UnitNumber] = true
		units[drawn.UnitID] = true
	}
	require.Len(t, numbers, unitCount)
	for i := 1; i <= unitCount; i++ {
		assert.True(t, numbers[i], "number %d missing", i)
	}
}

func TestCompleteDrawingRefusedWhileUnitsRemain(t *testing.T) {
	f := newDrawingFixture(t, 3)
	f.service.rng = func(n int) int { return 0 }

	_, err := f.service.StartDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)
	_, err = f.service.DrawNextUnit(context.Background(), 1, organizer())
	require.NoError(t, err)

	_, err = f.service.CompleteDrawing(context.Background(), 1, organizer())
	assert.ErrorIs(t, err, ErrUnitsNotFullyDrawn)
}

func TestCompleteDrawingResolvesSlotsAndByes(t *testing.T) {
	f := newDrawingFixture(t, 3)
	f.service.rng = func(n int) int { return 0 }
	// Сетка на 4 слота: жеребьёвке на 3 юнита достаётся один bye.
	f.addBracketTemplate([2]int{1, 4}, [2]int{2, 3})

	_, err := f.service.StartDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.service.DrawNextUnit(context.Background(), 1, organizer())
		require.NoError(t, err)
	}

	result, err := f.service.CompleteDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)

	assert.Equal(t, 1, result.ByeCount)
	require.Len(t, result.Entries, 3)
	for i, entry := range result.Entries {
		assert.Equal(t, i+1, entry.UnitNumber)
	}

	// rng=0 отдаёт слоты в порядке ID юнитов: 1->1, 2->2, 3->3.
	bye := f.db.encounters[1]
	assert.Equal(t, models.EncounterBye, bye.Status)
	require.NotNil(t, bye.Unit1ID)
	assert.Equal(t, 1, *bye.Unit1ID)
	assert.Nil(t, bye.Unit2ID)
	require.NotNil(t, bye.WinnerUnitID)
	assert.Equal(t, 1, *bye.WinnerUnitID)

	full := f.db.encounters[2]
	assert.Equal(t, models.EncounterScheduled, full.Status)
	require.NotNil(t, full.Unit1ID)
	require.NotNil(t, full.Unit2ID)
	assert.Equal(t, 2, *full.Unit1ID)
	assert.Equal(t, 3, *full.Unit2ID)

	division := f.db.divisions[1]
	assert.False(t, division.DrawingInProgress)
	assert.Equal(t, models.ScheduleUnitsAssigned, division.ScheduleStatus)
}

func TestCompleteDrawingWithoutSession(t *testing.T) {
	f := newDrawingFixture(t, 2)

	_, err := f.service.CompleteDrawing(context.Background(), 1, organizer())
	assert.ErrorIs(t, err, ErrNoDrawingInProgress)
}

func TestCancelDrawingRollsBackAndIsIdempotent(t *testing.T) {
	f := newDrawingFixture(t, 3)
	f.service.rng = func(n int) int { return 0 }
	f.addBracketTemplate([2]int{1, 4}, [2]int{2, 3})

	_, err := f.service.StartDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.service.DrawNextUnit(context.Background(), 1, organizer())
		require.NoError(t, err)
	}
	_, err = f.service.CompleteDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)

	result, err := f.service.CancelDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)
	assert.False(t, result.AlreadyReset)
	assert.Equal(t, 3, result.ClearedUnits)
	assert.Equal(t, 2, result.ResetEncounters)

	for _, u := range f.db.units {
		assert.Nil(t, u.UnitNumber)
	}
	for _, e := range f.db.encounters {
		assert.Nil(t, e.Unit1ID)
		assert.Nil(t, e.Unit2ID)
		assert.Nil(t, e.WinnerUnitID)
		assert.Equal(t, models.EncounterScheduled, e.Status)
	}
	assert.False(t, f.db.divisions[1].DrawingInProgress)
	assert.Equal(t, 0, f.db.divisions[1].DrawingSequence)

	second, err := f.service.CancelDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)
	assert.True(t, second.AlreadyReset)
	assert.Zero(t, second.ClearedUnits)
}

func TestStartDrawingRestartClearsPreviousNumbers(t *testing.T) {
	f := newDrawingFixture(t, 3)
	f.service.rng = func(n int) int { return 0 }

	_, err := f.service.StartDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)
	_, err = f.service.DrawNextUnit(context.Background(), 1, organizer())
	require.NoError(t, err)

	snapshot, err := f.service.StartDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.DrawnCount)
	assert.Equal(t, 3, snapshot.TotalUnits)
	assert.Equal(t, 0, f.db.divisions[1].DrawingSequence)

	undrawn, err := (&fakeUnitRepo{db: f.db}).ListUndrawn(context.Background(), nil, 1, false)
	require.NoError(t, err)
	assert.Len(t, undrawn, 3)
}

// Проверяет, что waitlisted и cancelled юниты не попадают в жеребьёвку.
func TestDrawingSkipsIneligibleUnits(t *testing.T) {
	f := newDrawingFixture(t, 4)
	f.db.units[3].Status = models.UnitWaitlisted
	f.db.units[4].Status = models.UnitCancelled

	snapshot, err := f.service.StartDrawing(context.Background(), 1, organizer())
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.TotalUnits)
}
