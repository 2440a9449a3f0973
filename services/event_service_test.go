package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtflow/tournament-engine/models"
)

func newEventFixture(t *testing.T, status models.TournamentStatus) (*memDB, EventService) {
	t.Helper()

	db := newMemDB()
	db.events[1] = &models.Event{ID: 1, OrganizerID: 10, Status: status}
	db.divisions[1] = &models.Division{ID: 1, EventID: 1}
	db.divisions[2] = &models.Division{ID: 2, EventID: 1}

	svc := NewEventService(
		&fakeTransactor{},
		&fakeEventRepo{db: db},
		&fakeDivisionRepo{db: db},
		NopBroadcaster{},
		testLogger(),
	)
	return db, svc
}

func TestStartDrawingModeFlipsStatus(t *testing.T) {
	db, svc := newEventFixture(t, models.TournamentRegistrationClosed)

	err := svc.StartDrawingMode(context.Background(), 1, organizer())
	require.NoError(t, err)
	assert.Equal(t, models.TournamentDrawing, db.events[1].Status)
}

func TestStartDrawingModeFromRunning(t *testing.T) {
	db, svc := newEventFixture(t, models.TournamentRunning)

	err := svc.StartDrawingMode(context.Background(), 1, organizer())
	require.NoError(t, err)
	assert.Equal(t, models.TournamentDrawing, db.events[1].Status)
}

func TestStartDrawingModeRejectsCompletedEvent(t *testing.T) {
	_, svc := newEventFixture(t, models.TournamentCompleted)

	err := svc.StartDrawingMode(context.Background(), 1, organizer())
	assert.ErrorIs(t, err, ErrEventStatusConflict)
}

func TestStartDrawingModeForbiddenForStranger(t *testing.T) {
	_, svc := newEventFixture(t, models.TournamentRegistrationClosed)

	err := svc.StartDrawingMode(context.Background(), 1, Actor{UserID: 99, Role: "organizer"})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestEndDrawingModeRefusedWhileDivisionDrawingActive(t *testing.T) {
	db, svc := newEventFixture(t, models.TournamentDrawing)
	db.divisions[2].DrawingInProgress = true

	err := svc.EndDrawingMode(context.Background(), 1, organizer())
	assert.ErrorIs(t, err, ErrDrawingStillActive)
	assert.Equal(t, models.TournamentDrawing, db.events[1].Status)
}

func TestEndDrawingModeFlipsBackToRunning(t *testing.T) {
	db, svc := newEventFixture(t, models.TournamentDrawing)

	err := svc.EndDrawingMode(context.Background(), 1, organizer())
	require.NoError(t, err)
	assert.Equal(t, models.TournamentRunning, db.events[1].Status)
}
