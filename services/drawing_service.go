package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/courtflow/tournament-engine/models"
	"github.com/courtflow/tournament-engine/repositories"
)

// DrawnUnit — результат одного шага жеребьёвки.
type DrawnUnit struct {
	UnitID     int      `json:"unit_id"`
	Name       string   `json:"name"`
	Members    []string `json:"members"`
	UnitNumber int      `json:"unit_number"`
	Remaining  int      `json:"remaining"`
}

// CancelDrawingResult сообщает, что именно откатила отмена.
type CancelDrawingResult struct {
	AlreadyReset    bool `json:"already_reset"`
	ClearedUnits    int  `json:"cleared_units"`
	ResetEncounters int  `json:"reset_encounters"`
}

// CompleteDrawingResult — финальный упорядоченный список и число
// автоматически завершённых встреч.
type CompleteDrawingResult struct {
	Entries  []DrawingResultEntry `json:"entries"`
	ByeCount int                  `json:"bye_count"`
}

type DrawingService interface {
	StartDrawing(ctx context.Context, divisionID int, actor Actor) (*DrawingSnapshot, error)
	DrawNextUnit(ctx context.Context, divisionID int, actor Actor) (*DrawnUnit, error)
	CompleteDrawing(ctx context.Context, divisionID int, actor Actor) (*CompleteDrawingResult, error)
	CancelDrawing(ctx context.Context, divisionID int, actor Actor) (*CancelDrawingResult, error)
}

type drawingService struct {
	transactor    repositories.Transactor
	eventRepo     repositories.EventRepository
	divisionRepo  repositories.DivisionRepository
	unitRepo      repositories.UnitRepository
	encounterRepo repositories.EncounterRepository
	broadcaster   Broadcaster
	logger        *slog.Logger

	// rng выбирает индекс в [0, n); подменяется в тестах.
	rng func(n int) int
}

func NewDrawingService(
	transactor repositories.Transactor,
	eventRepo repositories.EventRepository,
	divisionRepo repositories.DivisionRepository,
	unitRepo repositories.UnitRepository,
	encounterRepo repositories.EncounterRepository,
	broadcaster Broadcaster,
	logger *slog.Logger,
) DrawingService {
	return &drawingService{
		transactor:    transactor,
		eventRepo:     eventRepo,
		divisionRepo:  divisionRepo,
		unitRepo:      unitRepo,
		encounterRepo: encounterRepo,
		broadcaster:   broadcaster,
		logger:        logger,
		rng:           rand.IntN,
	}
}

// StartDrawing открывает сессию жеребьёвки дивизиона. Повторный вызов
// при активной сессии перезапускает её с чистого листа.
func (s *drawingService) StartDrawing(ctx context.Context, divisionID int, actor Actor) (*DrawingSnapshot, error) {
	var snapshot *DrawingSnapshot
	var eventID int

	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		division, err := s.divisionRepo.GetForUpdate(ctx, tx, divisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		event, err := s.eventRepo.GetByID(ctx, tx, division.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		eventID = event.ID

		if !actor.canManage(event) {
			return ErrForbiddenOperation
		}
		if event.Status == models.TournamentRegistrationOpen {
			return ErrRegistrationStillOpen
		}
		if division.ScheduleStatus == models.ScheduleFinalized {
			return ErrScheduleFinalized
		}

		units, err := s.unitRepo.ListEligible(ctx, tx, divisionID)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return ErrNoUnitsToDraw
		}

		// Сбрасываем устаревшие номера прошлой (незавершённой) сессии.
		if err := s.unitRepo.ClearUnitNumbers(ctx, tx, divisionID); err != nil {
			return err
		}

		now := time.Now().UTC()
		userID := actor.UserID
		err = s.divisionRepo.UpdateDrawingState(ctx, tx, divisionID, repositories.DrawingState{
			InProgress: true,
			StartedAt:  &now,
			ByUserID:   &userID,
			Sequence:   0,
		})
		if err != nil {
			return err
		}

		remaining := make([]string, 0, len(units))
		for _, u := range units {
			remaining = append(remaining, u.Name)
		}
		snapshot = &DrawingSnapshot{
			DivisionID:     divisionID,
			TotalUnits:     len(units),
			DrawnCount:     0,
			RemainingUnits: remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastDrawingStarted(eventID, divisionID, *snapshot)
	s.logger.Info("drawing started",
		slog.Int("division_id", divisionID),
		slog.Int("user_id", actor.UserID),
		slog.Int("total_units", snapshot.TotalUnits))
	return snapshot, nil
}

// DrawNextUnit выбирает один случайный неразыгранный юнит и присваивает ему
// следующий номер слота. Весь шаг выполняется в одной транзакции под
// блокировкой строки дивизиона: два конкурентных вызова на один дивизион
// сериализуются и не могут выдать один номер дважды или разыграть один
// юнит дважды.
func (s *drawingService) DrawNextUnit(ctx context.Context, divisionID int, actor Actor) (*DrawnUnit, error) {
	var drawn *DrawnUnit
	var eventID int

	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		division, err := s.divisionRepo.GetForUpdate(ctx, tx, divisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		event, err := s.eventRepo.GetByID(ctx, tx, division.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		eventID = event.ID

		if !actor.canManage(event) {
			return ErrForbiddenOperation
		}
		if !division.DrawingInProgress {
			return ErrNoDrawingInProgress
		}

		units, err := s.unitRepo.ListUndrawn(ctx, tx, divisionID, true)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return ErrNoUnitsRemaining
		}

		pick := units[s.rng(len(units))]
		next := division.DrawingSequence + 1

		if err := s.unitRepo.AssignUnitNumber(ctx, tx, pick.ID, next); err != nil {
			return err
		}
		err = s.divisionRepo.UpdateDrawingState(ctx, tx, divisionID, repositories.DrawingState{
			InProgress: true,
			StartedAt:  division.DrawingStartedAt,
			ByUserID:   division.DrawingByUserID,
			Sequence:   next,
		})
		if err != nil {
			return err
		}

		drawn = &DrawnUnit{
			UnitID:     pick.ID,
			Name:       pick.Name,
			Members:    pick.Members,
			UnitNumber: next,
			Remaining:  len(units) - 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastUnitDrawn(eventID, divisionID, DrawnUnitPayload{
		DivisionID: divisionID,
		UnitID:     drawn.UnitID,
		Name:       drawn.Name,
		Members:    drawn.Members,
		UnitNumber: drawn.UnitNumber,
		Remaining:  drawn.Remaining,
	})
	return drawn, nil
}

// CompleteDrawing фиксирует результат жеребьёвки: привязывает юниты к слотам
// заранее сгенерированных встреч, превращает встречи с одной стороной в bye
// и закрывает сессию.
func (s *drawingService) CompleteDrawing(ctx context.Context, divisionID int, actor Actor) (*CompleteDrawingResult, error) {
	var result *CompleteDrawingResult
	var eventID int

	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		division, err := s.divisionRepo.GetForUpdate(ctx, tx, divisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		event, err := s.eventRepo.GetByID(ctx, tx, division.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		eventID = event.ID

		if !actor.canManage(event) {
			return ErrForbiddenOperation
		}
		if !division.DrawingInProgress {
			return ErrNoDrawingInProgress
		}

		undrawn, err := s.unitRepo.ListUndrawn(ctx, tx, divisionID, false)
		if err != nil {
			return err
		}
		if len(undrawn) > 0 {
			return fmt.Errorf("%w: %d remaining", ErrUnitsNotFullyDrawn, len(undrawn))
		}

		drawnUnits, err := s.unitRepo.ListDrawn(ctx, tx, divisionID)
		if err != nil {
			return err
		}
		unitBySlot := make(map[int]int, len(drawnUnits))
		for _, u := range drawnUnits {
			unitBySlot[*u.UnitNumber] = u.ID
		}

		encounters, err := s.encounterRepo.ListByDivision(ctx, tx, divisionID)
		if err != nil {
			return err
		}

		byeCount := 0
		for _, e := range encounters {
			if e.Unit1Number == nil && e.Unit2Number == nil {
				continue
			}
			if e.Status == models.EncounterCompleted {
				continue
			}

			res := repositories.DrawResolution{Status: models.EncounterScheduled}
			if e.Unit1Number != nil {
				if id, ok := unitBySlot[*e.Unit1Number]; ok {
					res.Unit1ID = &id
				}
			}
			if e.Unit2Number != nil {
				if id, ok := unitBySlot[*e.Unit2Number]; ok {
					res.Unit2ID = &id
				}
			}

			// Ровно одна разрешённая сторона — автоматическая победа.
			if res.Unit1ID != nil && res.Unit2ID == nil {
				res.Status = models.EncounterBye
				res.WinnerUnitID = res.Unit1ID
				byeCount++
			} else if res.Unit1ID == nil && res.Unit2ID != nil {
				res.Status = models.EncounterBye
				res.WinnerUnitID = res.Unit2ID
				byeCount++
			}

			if err := s.encounterRepo.ResolveDrawnUnits(ctx, tx, e.ID, res); err != nil {
				return err
			}
		}

		err = s.divisionRepo.UpdateDrawingState(ctx, tx, divisionID, repositories.DrawingState{
			InProgress: false,
			StartedAt:  division.DrawingStartedAt,
			ByUserID:   division.DrawingByUserID,
			Sequence:   division.DrawingSequence,
		})
		if err != nil {
			return err
		}
		if err := s.divisionRepo.UpdateScheduleStatus(ctx, tx, divisionID, models.ScheduleUnitsAssigned); err != nil {
			return err
		}

		entries := make([]DrawingResultEntry, 0, len(drawnUnits))
		for _, u := range drawnUnits {
			entries = append(entries, DrawingResultEntry{
				UnitID:     u.ID,
				Name:       u.Name,
				UnitNumber: *u.UnitNumber,
			})
		}
		result = &CompleteDrawingResult{Entries: entries, ByeCount: byeCount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastDrawingCompleted(eventID, divisionID, result.Entries)
	s.logger.Info("drawing completed",
		slog.Int("division_id", divisionID),
		slog.Int("units", len(result.Entries)),
		slog.Int("byes", result.ByeCount))
	return result, nil
}

// CancelDrawing возвращает дивизион в исходное состояние. Идемпотентна:
// повторный вызов на уже сброшенном дивизионе сообщает AlreadyReset.
func (s *drawingService) CancelDrawing(ctx context.Context, divisionID int, actor Actor) (*CancelDrawingResult, error) {
	result := &CancelDrawingResult{}
	var eventID int

	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		division, err := s.divisionRepo.GetForUpdate(ctx, tx, divisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		event, err := s.eventRepo.GetByID(ctx, tx, division.EventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		eventID = event.ID

		if !actor.canManage(event) {
			return ErrForbiddenOperation
		}

		drawn, err := s.unitRepo.ListDrawn(ctx, tx, divisionID)
		if err != nil {
			return err
		}
		if !division.DrawingInProgress && len(drawn) == 0 {
			result.AlreadyReset = true
			return nil
		}

		if err := s.unitRepo.ClearUnitNumbers(ctx, tx, divisionID); err != nil {
			return err
		}
		resetCount, err := s.encounterRepo.ResetDrawnBindings(ctx, tx, divisionID)
		if err != nil {
			return err
		}
		err = s.divisionRepo.UpdateDrawingState(ctx, tx, divisionID, repositories.DrawingState{
			InProgress: false,
			StartedAt:  nil,
			ByUserID:   nil,
			Sequence:   0,
		})
		if err != nil {
			return err
		}

		result.ClearedUnits = len(drawn)
		result.ResetEncounters = resetCount
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyReset {
		s.broadcaster.BroadcastDrawingCancelled(eventID, divisionID)
		s.logger.Info("drawing cancelled",
			slog.Int("division_id", divisionID),
			slog.Int("cleared_units", result.ClearedUnits))
	}
	return result, nil
}
