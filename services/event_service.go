package services

import (
	"context"
	"log/slog"

	"github.com/courtflow/tournament-engine/models"
	"github.com/courtflow/tournament-engine/repositories"
)

type EventService interface {
	// StartDrawingMode переводит турнир в статус "drawing".
	StartDrawingMode(ctx context.Context, eventID int, actor Actor) error
	// EndDrawingMode возвращает турнир в "running". Отказывает, пока хотя бы
	// в одном дивизионе идёт жеребьёвка.
	EndDrawingMode(ctx context.Context, eventID int, actor Actor) error
}

type eventService struct {
	transactor   repositories.Transactor
	eventRepo    repositories.EventRepository
	divisionRepo repositories.DivisionRepository
	broadcaster  Broadcaster
	logger       *slog.Logger
}

func NewEventService(
	transactor repositories.Transactor,
	eventRepo repositories.EventRepository,
	divisionRepo repositories.DivisionRepository,
	broadcaster Broadcaster,
	logger *slog.Logger,
) EventService {
	return &eventService{
		transactor:   transactor,
		eventRepo:    eventRepo,
		divisionRepo: divisionRepo,
		broadcaster:  broadcaster,
		logger:       logger,
	}
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.TournamentDraft:              {models.TournamentRegistrationOpen, models.TournamentCancelled},
		models.TournamentRegistrationOpen:   {models.TournamentRegistrationClosed, models.TournamentCancelled},
		models.TournamentRegistrationClosed: {models.TournamentDrawing, models.TournamentRunning, models.TournamentCancelled},
		models.TournamentDrawing:            {models.TournamentRunning, models.TournamentRegistrationClosed, models.TournamentCancelled},
		models.TournamentRunning:            {models.TournamentDrawing, models.TournamentCompleted, models.TournamentCancelled},
		models.TournamentCompleted:          {},
		models.TournamentCancelled:          {},
	}
	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}

func (s *eventService) StartDrawingMode(ctx context.Context, eventID int, actor Actor) error {
	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		event, err := s.eventRepo.GetByID(ctx, tx, eventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		if !actor.canManage(event) {
			return ErrForbiddenOperation
		}
		if !isValidStatusTransition(event.Status, models.TournamentDrawing) {
			return ErrEventStatusConflict
		}
		return s.eventRepo.UpdateStatus(ctx, tx, eventID, models.TournamentDrawing)
	})
	if err != nil {
		return err
	}

	s.logger.Info("event entered drawing mode", slog.Int("event_id", eventID))
	return nil
}

func (s *eventService) EndDrawingMode(ctx context.Context, eventID int, actor Actor) error {
	err := s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		event, err := s.eventRepo.GetByID(ctx, tx, eventID)
		if err != nil {
			return mapEventRepoError(err)
		}
		if !actor.canManage(event) {
			return ErrForbiddenOperation
		}

		active, err := s.divisionRepo.CountDrawingInProgress(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrDrawingStillActive
		}

		if !isValidStatusTransition(event.Status, models.TournamentRunning) {
			return ErrEventStatusConflict
		}
		return s.eventRepo.UpdateStatus(ctx, tx, eventID, models.TournamentRunning)
	})
	if err != nil {
		return err
	}

	s.broadcaster.BroadcastScheduleRefresh(eventID, 0)
	s.logger.Info("event left drawing mode", slog.Int("event_id", eventID))
	return nil
}
