package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/courtflow/tournament-engine/models"
	"github.com/courtflow/tournament-engine/repositories"
)

// ScheduleOptions управляет назначением кортов для дивизиона.
type ScheduleOptions struct {
	// StartTime — явное время старта; nil означает 08:00 даты начала турнира.
	StartTime *time.Time
	// GameDurationMinutes перекрывает длительность гейма на время вызова.
	GameDurationMinutes *int
	// ClearExisting сбрасывает существующие назначения; false трогает только
	// встречи без корта.
	ClearExisting bool
}

// ScheduleResult — итог прохода распределения.
type ScheduleResult struct {
	AssignedCount int        `json:"assigned_count"`
	CourtsUsed    int        `json:"courts_used"`
	LastEndTime   *time.Time `json:"last_end_time,omitempty"`
}

type SchedulingService interface {
	AssignDivisionCourts(ctx context.Context, divisionID int, opts ScheduleOptions) (*ScheduleResult, error)
	AssignPhaseCourts(ctx context.Context, phaseID int) (*ScheduleResult, error)
	ClearAssignments(ctx context.Context, divisionID int) (int, error)
	RecalculateTimes(ctx context.Context, phaseID int) (*ScheduleResult, error)
	AssignSingleEncounter(ctx context.Context, encounterID, courtID int, start time.Time) error
	ListAvailableCourts(ctx context.Context, divisionID int, phaseID *int) ([]*models.Court, error)
}

type schedulingService struct {
	transactor    repositories.Transactor
	eventRepo     repositories.EventRepository
	divisionRepo  repositories.DivisionRepository
	phaseRepo     repositories.PhaseRepository
	encounterRepo repositories.EncounterRepository
	courtRepo     repositories.CourtRepository
	durations     DurationService
	broadcaster   Broadcaster
	logger        *slog.Logger
}

func NewSchedulingService(
	transactor repositories.Transactor,
	eventRepo repositories.EventRepository,
	divisionRepo repositories.DivisionRepository,
	phaseRepo repositories.PhaseRepository,
	encounterRepo repositories.EncounterRepository,
	courtRepo repositories.CourtRepository,
	durations DurationService,
	broadcaster Broadcaster,
	logger *slog.Logger,
) SchedulingService {
	return &schedulingService{
		transactor:    transactor,
		eventRepo:     eventRepo,
		divisionRepo:  divisionRepo,
		phaseRepo:     phaseRepo,
		encounterRepo: encounterRepo,
		courtRepo:     courtRepo,
		durations:     durations,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}

// plannedSlot — одно назначение встречи на корт в рамках прохода.
type plannedSlot struct {
	Encounter       *models.Encounter
	CourtID         int
	Start           time.Time
	End             time.Time
	DurationMinutes int
}

// planCourtAssignments — жадное распределение "кому раньше освободится".
// Для каждой встречи в заданном порядке выбирается корт с минимальным
// временем освобождения; при равенстве побеждает корт, стоящий раньше
// в courts (репозитории сортируют по sort_order). Порядок обхода encounters —
// единственный источник честности: менять его нельзя.
func planCourtAssignments(courts []*models.Court, encounters []*models.Encounter, start time.Time, durationOf func(*models.Encounter) int) []plannedSlot {
	if len(courts) == 0 || len(encounters) == 0 {
		return nil
	}

	nextFree := make([]time.Time, len(courts))
	for i := range nextFree {
		nextFree[i] = start
	}

	slots := make([]plannedSlot, 0, len(encounters))
	for _, e := range encounters {
		best := 0
		for i := 1; i < len(courts); i++ {
			if nextFree[i].Before(nextFree[best]) {
				best = i
			}
		}

		minutes := durationOf(e)
		slotStart := nextFree[best]
		slotEnd := slotStart.Add(time.Duration(minutes) * time.Minute)
		nextFree[best] = slotEnd

		slots = append(slots, plannedSlot{
			Encounter:       e,
			CourtID:         courts[best].ID,
			Start:           slotStart,
			End:             slotEnd,
			DurationMinutes: minutes,
		})
	}
	return slots
}

// phaseDurationCache мемоизирует длительность встречи на фазу: все встречи
// одной фазы разделяют одни и те же входы расчёта.
type phaseDurationCache struct {
	svc      *schedulingService
	division *models.Division
	override *int
	minutes  map[int]int
	err      error
}

func (c *phaseDurationCache) durationOf(ctx context.Context, exec repositories.SQLExecutor) func(*models.Encounter) int {
	if c.minutes == nil {
		c.minutes = make(map[int]int)
	}
	return func(e *models.Encounter) int {
		key := 0
		if e.PhaseID != nil {
			key = *e.PhaseID
		}
		if m, ok := c.minutes[key]; ok {
			return m
		}
		in, err := c.svc.durations.LoadInputs(ctx, exec, c.division, e.PhaseID, c.override)
		if err != nil {
			c.err = err
			c.minutes[key] = DefaultGameDurationMinutes
			return DefaultGameDurationMinutes
		}
		m := ResolveEncounterDuration(in)
		c.minutes[key] = m
		return m
	}
}

func (s *schedulingService) AssignDivisionCourts(ctx context.Context, divisionID int, opts ScheduleOptions) (*ScheduleResult, error) {
	var result *ScheduleResult
	var eventID int

	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		division, err := s.divisionRepo.GetByID(ctx, tx, divisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		event, err := s.eventRepo.GetByID(ctx, tx, division.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		eventID = event.ID

		courts, err := s.resolveDivisionCourts(ctx, tx, division)
		if err != nil {
			return err
		}

		if opts.ClearExisting {
			if _, err := s.encounterRepo.ClearScheduleSlots(ctx, tx, divisionID); err != nil {
				return err
			}
		}

		encounters, err := s.encounterRepo.ListForScheduling(ctx, tx, divisionID, !opts.ClearExisting)
		if err != nil {
			return err
		}
		if len(encounters) == 0 {
			return ErrNoEncountersToAssign
		}

		start := defaultScheduleStart(event.StartDate)
		if opts.StartTime != nil {
			start = *opts.StartTime
		}

		cache := &phaseDurationCache{svc: s, division: division, override: opts.GameDurationMinutes}
		slots := planCourtAssignments(courts, encounters, start, cache.durationOf(ctx, tx))
		if cache.err != nil {
			return cache.err
		}

		if err := s.persistSlots(ctx, tx, slots); err != nil {
			return err
		}

		if division.ScheduleStatus == models.ScheduleUnitsAssigned {
			if err := s.divisionRepo.UpdateScheduleStatus(ctx, tx, divisionID, models.ScheduleGenerated); err != nil {
				return err
			}
		}

		result = summarize(slots)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastScheduleRefresh(eventID, divisionID)
	s.logger.Info("division courts assigned",
		slog.Int("division_id", divisionID),
		slog.Int("assigned", result.AssignedCount),
		slog.Int("courts_used", result.CourtsUsed))
	return result, nil
}

func (s *schedulingService) AssignPhaseCourts(ctx context.Context, phaseID int) (*ScheduleResult, error) {
	var result *ScheduleResult
	var eventID, divisionID int

	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		phase, err := s.phaseRepo.GetByID(ctx, tx, phaseID)
		if err != nil {
			return mapPhaseRepoError(err)
		}
		division, err := s.divisionRepo.GetByID(ctx, tx, phase.DivisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		divisionID = division.ID
		event, err := s.eventRepo.GetByID(ctx, tx, division.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		eventID = event.ID

		courts, err := s.resolvePhaseCourts(ctx, tx, phase, event.ID)
		if err != nil {
			return err
		}

		encounters, err := s.encounterRepo.ListByPhaseForScheduling(ctx, tx, phaseID, false)
		if err != nil {
			return err
		}
		if len(encounters) == 0 {
			return ErrNoEncountersToAssign
		}

		start := defaultScheduleStart(event.StartDate)
		if phase.StartTime != nil {
			start = *phase.StartTime
		}

		cache := &phaseDurationCache{svc: s, division: division}
		slots := planCourtAssignments(courts, encounters, start, cache.durationOf(ctx, tx))
		if cache.err != nil {
			return cache.err
		}

		if err := s.persistSlots(ctx, tx, slots); err != nil {
			return err
		}

		result = summarize(slots)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastScheduleRefresh(eventID, divisionID)
	return result, nil
}

func (s *schedulingService) ClearAssignments(ctx context.Context, divisionID int) (int, error) {
	cleared := 0
	var eventID int

	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		division, err := s.divisionRepo.GetByID(ctx, tx, divisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		eventID = division.EventID

		n, err := s.encounterRepo.ClearScheduleSlots(ctx, tx, divisionID)
		if err != nil {
			return err
		}
		cleared = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.broadcaster.BroadcastScheduleRefresh(eventID, divisionID)
	return cleared, nil
}

// RecalculateTimes пересчитывает времена встреч фазы от её времени старта,
// сохраняя существующие привязки к кортам.
func (s *schedulingService) RecalculateTimes(ctx context.Context, phaseID int) (*ScheduleResult, error) {
	var result *ScheduleResult
	var eventID, divisionID int

	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		phase, err := s.phaseRepo.GetByID(ctx, tx, phaseID)
		if err != nil {
			return mapPhaseRepoError(err)
		}
		division, err := s.divisionRepo.GetByID(ctx, tx, phase.DivisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		divisionID = division.ID
		event, err := s.eventRepo.GetByID(ctx, tx, division.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		eventID = event.ID

		encounters, err := s.encounterRepo.ListByPhaseForScheduling(ctx, tx, phaseID, true)
		if err != nil {
			return err
		}
		if len(encounters) == 0 {
			return ErrNoEncountersToAssign
		}

		start := defaultScheduleStart(event.StartDate)
		if phase.StartTime != nil {
			start = *phase.StartTime
		}

		cache := &phaseDurationCache{svc: s, division: division}
		durationOf := cache.durationOf(ctx, tx)

		// Привязки кортов не меняются: по каждому корту цепочка
		// времён выстраивается заново от старта фазы.
		nextFree := make(map[int]time.Time)
		slots := make([]plannedSlot, 0, len(encounters))
		for _, e := range encounters {
			if e.TournamentCourtID == nil {
				continue
			}
			courtID := *e.TournamentCourtID
			slotStart, ok := nextFree[courtID]
			if !ok {
				slotStart = start
			}
			minutes := durationOf(e)
			slotEnd := slotStart.Add(time.Duration(minutes) * time.Minute)
			nextFree[courtID] = slotEnd
			slots = append(slots, plannedSlot{
				Encounter:       e,
				CourtID:         courtID,
				Start:           slotStart,
				End:             slotEnd,
				DurationMinutes: minutes,
			})
		}
		if cache.err != nil {
			return cache.err
		}
		if len(slots) == 0 {
			return ErrNoEncountersToAssign
		}

		if err := s.persistSlots(ctx, tx, slots); err != nil {
			return err
		}
		result = summarize(slots)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastScheduleRefresh(eventID, divisionID)
	return result, nil
}

func (s *schedulingService) AssignSingleEncounter(ctx context.Context, encounterID, courtID int, start time.Time) error {
	var eventID, divisionID int

	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		encounter, err := s.encounterRepo.GetByID(ctx, tx, encounterID)
		if err != nil {
			return mapEncounterRepoError(err)
		}
		division, err := s.divisionRepo.GetByID(ctx, tx, encounter.DivisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		divisionID = division.ID
		eventID = division.EventID

		in, err := s.durations.LoadInputs(ctx, tx, division, encounter.PhaseID, nil)
		if err != nil {
			return err
		}
		minutes := ResolveEncounterDuration(in)

		return s.encounterRepo.UpdateScheduleSlot(ctx, tx, encounterID, repositories.ScheduleSlot{
			CourtID:         courtID,
			StartTime:       start,
			EndTime:         start.Add(time.Duration(minutes) * time.Minute),
			DurationMinutes: minutes,
		})
	})
	if err != nil {
		return err
	}

	s.broadcaster.BroadcastScheduleRefresh(eventID, divisionID)
	return nil
}

func (s *schedulingService) ListAvailableCourts(ctx context.Context, divisionID int, phaseID *int) ([]*models.Court, error) {
	division, err := s.divisionRepo.GetByID(ctx, nil, divisionID)
	if err != nil {
		return nil, mapDivisionRepoError(err)
	}
	if phaseID != nil {
		phase, err := s.phaseRepo.GetByID(ctx, nil, *phaseID)
		if err != nil {
			return nil, mapPhaseRepoError(err)
		}
		return s.resolvePhaseCourts(ctx, nil, phase, division.EventID)
	}
	return s.resolveDivisionCourts(ctx, nil, division)
}

// resolveDivisionCourts возвращает корты, доступные дивизиону: привязка через
// группы кортов, при отсутствии правила — все активные корты турнира.
func (s *schedulingService) resolveDivisionCourts(ctx context.Context, exec repositories.SQLExecutor, division *models.Division) ([]*models.Court, error) {
	courts, err := s.courtRepo.ListEligibleForDivision(ctx, exec, division.ID)
	if err != nil {
		return nil, err
	}
	if len(courts) == 0 {
		courts, err = s.courtRepo.ListActiveByEvent(ctx, exec, division.EventID)
		if err != nil {
			return nil, err
		}
	}
	if len(courts) == 0 {
		return nil, ErrNoCourtsAvailable
	}
	return courts, nil
}

func (s *schedulingService) resolvePhaseCourts(ctx context.Context, exec repositories.SQLExecutor, phase *models.Phase, eventID int) ([]*models.Court, error) {
	courts, err := s.courtRepo.ListEligibleForPhase(ctx, exec, phase.ID)
	if err != nil {
		return nil, err
	}
	if len(courts) == 0 {
		courts, err = s.courtRepo.ListActiveByEvent(ctx, exec, eventID)
		if err != nil {
			return nil, err
		}
	}
	if len(courts) == 0 {
		return nil, ErrNoCourtsAvailable
	}
	return courts, nil
}

func (s *schedulingService) persistSlots(ctx context.Context, tx repositories.SQLExecutor, slots []plannedSlot) error {
	for _, slot := range slots {
		err := s.encounterRepo.UpdateScheduleSlot(ctx, tx, slot.Encounter.ID, repositories.ScheduleSlot{
			CourtID:         slot.CourtID,
			StartTime:       slot.Start,
			EndTime:         slot.End,
			DurationMinutes: slot.DurationMinutes,
		})
		if err != nil {
			return fmt.Errorf("failed to persist slot for encounter %d: %w", slot.Encounter.ID, err)
		}
	}
	return nil
}

func summarize(slots []plannedSlot) *ScheduleResult {
	result := &ScheduleResult{AssignedCount: len(slots)}
	courts := make(map[int]struct{})
	for _, slot := range slots {
		courts[slot.CourtID] = struct{}{}
		if result.LastEndTime == nil || slot.End.After(*result.LastEndTime) {
			end := slot.End
			result.LastEndTime = &end
		}
	}
	result.CourtsUsed = len(courts)
	return result
}
