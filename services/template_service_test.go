package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtflow/tournament-engine/models"
)

func newTemplateFixture(t *testing.T, unitCount int) (*memDB, TemplateService) {
	t.Helper()

	db := newMemDB()
	db.events[1] = &models.Event{
		ID:          1,
		OrganizerID: 10,
		Status:      models.TournamentRegistrationClosed,
	}
	db.divisions[1] = &models.Division{ID: 1, EventID: 1}
	for i := 1; i <= unitCount; i++ {
		db.units[i] = &models.Unit{
			ID:         i,
			DivisionID: 1,
			Status:     models.UnitRegistered,
		}
	}

	svc := NewTemplateService(
		&fakeTransactor{},
		&fakeEventRepo{db: db},
		&fakeDivisionRepo{db: db},
		&fakeUnitRepo{db: db},
		&fakeEncounterRepo{db: db},
		&fakeMatchRepo{db: db},
		NopBroadcaster{},
		testLogger(),
	)
	return db, svc
}

func TestGenerateTemplateSingleElimination(t *testing.T) {
	db, svc := newTemplateFixture(t, 4)

	created, err := svc.GenerateTemplate(context.Background(), 1, organizer(), GenerateTemplateOptions{
		Kind: TemplateSingleElimination,
	})
	require.NoError(t, err)
	// 4 слота без игры за третье место: два полуфинала и финал.
	require.Len(t, created, 3)
	assert.Len(t, db.encounters, 3)

	// На каждую встречу заведён ровно один матч по умолчанию.
	for _, e := range created {
		var boundMatches []*models.EncounterMatch
		for _, m := range db.matches {
			if m.EncounterID == e.ID {
				boundMatches = append(boundMatches, m)
			}
		}
		require.Len(t, boundMatches, 1)
		assert.Equal(t, 1, boundMatches[0].SortOrder)
	}
}

func TestGenerateTemplateDerivesSlotCountFromEligibleUnits(t *testing.T) {
	db, svc := newTemplateFixture(t, 5)
	db.units[5].Status = models.UnitWaitlisted

	created, err := svc.GenerateTemplate(context.Background(), 1, organizer(), GenerateTemplateOptions{
		Kind: TemplateSingleElimination,
	})
	require.NoError(t, err)

	slots := map[int]bool{}
	for _, e := range created {
		if e.Unit1Number != nil {
			slots[*e.Unit1Number] = true
		}
		if e.Unit2Number != nil {
			slots[*e.Unit2Number] = true
		}
	}
	assert.Len(t, slots, 4, "в сетке должны участвовать только допущенные юниты")
}

func TestGenerateTemplateRejectsSecondGeneration(t *testing.T) {
	_, svc := newTemplateFixture(t, 4)

	_, err := svc.GenerateTemplate(context.Background(), 1, organizer(), GenerateTemplateOptions{
		Kind: TemplateSingleElimination,
	})
	require.NoError(t, err)

	_, err = svc.GenerateTemplate(context.Background(), 1, organizer(), GenerateTemplateOptions{
		Kind: TemplateSingleElimination,
	})
	assert.ErrorIs(t, err, ErrTemplateAlreadyExists)
}

func TestGenerateTemplateUnknownKind(t *testing.T) {
	_, svc := newTemplateFixture(t, 4)

	_, err := svc.GenerateTemplate(context.Background(), 1, organizer(), GenerateTemplateOptions{
		Kind: "triple_elimination",
	})
	assert.ErrorIs(t, err, ErrUnknownTemplateKind)
}

func TestGenerateTemplateNotEnoughSlots(t *testing.T) {
	_, svc := newTemplateFixture(t, 1)

	_, err := svc.GenerateTemplate(context.Background(), 1, organizer(), GenerateTemplateOptions{
		Kind: TemplateSingleElimination,
	})
	assert.ErrorIs(t, err, ErrNotEnoughSlots)
}

func TestGenerateTemplateFinalizedScheduleRefused(t *testing.T) {
	db, svc := newTemplateFixture(t, 4)
	db.divisions[1].ScheduleStatus = models.ScheduleFinalized

	_, err := svc.GenerateTemplate(context.Background(), 1, organizer(), GenerateTemplateOptions{
		Kind: TemplateSingleElimination,
	})
	assert.ErrorIs(t, err, ErrScheduleFinalized)
}

func TestGenerateTemplatePoolRoundRobin(t *testing.T) {
	db, svc := newTemplateFixture(t, 6)

	created, err := svc.GenerateTemplate(context.Background(), 1, organizer(), GenerateTemplateOptions{
		Kind:      TemplatePoolRoundRobin,
		PoolCount: 2,
	})
	require.NoError(t, err)
	// Две группы по три юнита, по три встречи в каждой.
	require.Len(t, created, 6)
	for _, e := range created {
		assert.Equal(t, models.RoundPool, e.RoundType)
	}
	assert.Len(t, db.encounters, 6)
}
