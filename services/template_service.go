package services

import (
	"context"
	"log/slog"

	"github.com/courtflow/tournament-engine/brackets"
	"github.com/courtflow/tournament-engine/models"
	"github.com/courtflow/tournament-engine/repositories"
)

const (
	TemplateSingleElimination = "single_elimination"
	TemplatePoolRoundRobin    = "pool_round_robin"
)

// GenerateTemplateOptions — параметры генерации заготовки сетки.
// SlotCount=0 означает "по числу допущенных юнитов дивизиона".
type GenerateTemplateOptions struct {
	Kind           string
	PhaseID        *int
	SlotCount      int
	WithThirdPlace bool
	PoolCount      int
}

type TemplateService interface {
	// GenerateTemplate создаёт скелет встреч дивизиона по номерам слотов
	// и по одному матчу на каждую встречу.
	GenerateTemplate(ctx context.Context, divisionID int, actor Actor, opts GenerateTemplateOptions) ([]*models.Encounter, error)
}

type templateService struct {
	transactor    repositories.Transactor
	eventRepo     repositories.EventRepository
	divisionRepo  repositories.DivisionRepository
	unitRepo      repositories.UnitRepository
	encounterRepo repositories.EncounterRepository
	matchRepo     repositories.MatchRepository
	generators    map[string]brackets.TemplateGenerator
	broadcaster   Broadcaster
	logger        *slog.Logger
}

func NewTemplateService(
	transactor repositories.Transactor,
	eventRepo repositories.EventRepository,
	divisionRepo repositories.DivisionRepository,
	unitRepo repositories.UnitRepository,
	encounterRepo repositories.EncounterRepository,
	matchRepo repositories.MatchRepository,
	broadcaster Broadcaster,
	logger *slog.Logger,
) TemplateService {
	return &templateService{
		transactor:    transactor,
		eventRepo:     eventRepo,
		divisionRepo:  divisionRepo,
		unitRepo:      unitRepo,
		encounterRepo: encounterRepo,
		matchRepo:     matchRepo,
		generators: map[string]brackets.TemplateGenerator{
			TemplateSingleElimination: brackets.NewSingleEliminationGenerator(),
			TemplatePoolRoundRobin:    brackets.NewPoolRoundRobinGenerator(),
		},
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (s *templateService) GenerateTemplate(ctx context.Context, divisionID int, actor Actor, opts GenerateTemplateOptions) ([]*models.Encounter, error) {
	generator, ok := s.generators[opts.Kind]
	if !ok {
		return nil, ErrUnknownTemplateKind
	}

	var (
		created []*models.Encounter
		eventID int
	)
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
		if division.ScheduleStatus == models.ScheduleFinalized {
			return ErrScheduleFinalized
		}

		existing, err := s.encounterRepo.ListByDivision(ctx, tx, divisionID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrTemplateAlreadyExists
		}

		slotCount := opts.SlotCount
		if slotCount == 0 {
			units, err := s.unitRepo.ListEligible(ctx, tx, divisionID)
			if err != nil {
				return err
			}
			slotCount = len(units)
		}
		if slotCount < 2 {
			return ErrNotEnoughSlots
		}

		encounters, err := generator.GenerateTemplate(ctx, brackets.GenerateTemplateParams{
			Division:       division,
			PhaseID:        opts.PhaseID,
			SlotCount:      slotCount,
			WithThirdPlace: opts.WithThirdPlace,
			PoolCount:      opts.PoolCount,
		})
		if err != nil {
			return err
		}

		for _, encounter := range encounters {
			if err := s.encounterRepo.Create(ctx, tx, encounter); err != nil {
				return mapEncounterRepoError(err)
			}
			match := &models.EncounterMatch{
				EncounterID: encounter.ID,
				SortOrder:   1,
			}
			if err := s.matchRepo.CreateMatch(ctx, tx, match); err != nil {
				return err
			}
		}

		created = encounters
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastScheduleRefresh(eventID, divisionID)
	s.logger.Info("bracket template generated",
		slog.Int("division_id", divisionID),
		slog.String("kind", opts.Kind),
		slog.Int("encounters", len(created)))
	return created, nil
}
