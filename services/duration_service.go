package services

import (
	"context"

	"github.com/courtflow/tournament-engine/models"
	"github.com/courtflow/tournament-engine/repositories"
)

// DefaultGameDurationMinutes используется, когда ни фаза, ни дивизион
// не задают длительность гейма.
const DefaultGameDurationMinutes = 20

// DurationInputs — всё, что нужно для расчёта длительности встречи.
// Все встречи одной фазы обычно разделяют один и тот же набор входов,
// поэтому результат кешируется на фазу при планировании.
type DurationInputs struct {
	Division             *models.Division
	Phase                *models.Phase
	Formats              []*models.EncounterMatchFormat
	PhaseSettings        []*models.PhaseMatchSettings
	GameDurationOverride *int
}

// GameDurationMinutes выбирает длительность одного гейма:
// переопределение вызова -> фаза -> дивизион -> значение по умолчанию.
func GameDurationMinutes(in DurationInputs) int {
	if in.GameDurationOverride != nil && *in.GameDurationOverride > 0 {
		return *in.GameDurationOverride
	}
	if in.Phase != nil && in.Phase.EstimatedMatchDurationMinutes != nil && *in.Phase.EstimatedMatchDurationMinutes > 0 {
		return *in.Phase.EstimatedMatchDurationMinutes
	}
	if in.Division != nil && in.Division.EstimatedMatchDurationMinutes != nil && *in.Division.EstimatedMatchDurationMinutes > 0 {
		return *in.Division.EstimatedMatchDurationMinutes
	}
	return DefaultGameDurationMinutes
}

// EffectiveBestOf разрешает best-of для матча заданного формата (format может
// быть nil). Порядок приоритета фиксирован, побеждает первое ненулевое
// значение:
//  1. настройка фазы для этого конкретного формата;
//  2. настройка фазы без формата (общефазовая);
//  3. Phase.BestOf;
//  4. BestOf самого формата;
//  5. Division.GamesPerMatch;
//  6. литерал 1.
func EffectiveBestOf(in DurationInputs, format *models.EncounterMatchFormat) int {
	if format != nil {
		for _, s := range in.PhaseSettings {
			if s.MatchFormatID != nil && *s.MatchFormatID == format.ID && s.BestOf > 0 {
				return s.BestOf
			}
		}
	}
	for _, s := range in.PhaseSettings {
		if s.MatchFormatID == nil && s.BestOf > 0 {
			return s.BestOf
		}
	}
	if in.Phase != nil && in.Phase.BestOf != nil && *in.Phase.BestOf > 0 {
		return *in.Phase.BestOf
	}
	if format != nil && format.BestOf > 0 {
		return format.BestOf
	}
	if in.Division != nil && in.Division.GamesPerMatch > 0 {
		return in.Division.GamesPerMatch
	}
	return 1
}

// ResolveEncounterDuration считает худший случай длительности встречи
// в минутах. Используется для планирования занятости кортов, не для
// живого хронометража.
func ResolveEncounterDuration(in DurationInputs) int {
	gameDuration := GameDurationMinutes(in)

	// Структурированная встреча из нескольких разнотипных матчей.
	if len(in.Formats) > 0 {
		total := 0
		for _, f := range in.Formats {
			total += EffectiveBestOf(in, f) * gameDuration
		}
		return total
	}

	// Однородная мульти-матчевая встреча без явных форматов.
	if in.Division != nil && in.Division.MatchesPerEncounter > 1 {
		return in.Division.MatchesPerEncounter * EffectiveBestOf(in, nil) * gameDuration
	}

	return EffectiveBestOf(in, nil) * gameDuration
}

type DurationService interface {
	// LoadInputs собирает входы расчёта для пары (дивизион, фаза).
	LoadInputs(ctx context.Context, exec repositories.SQLExecutor, division *models.Division, phaseID *int, gameDurationOverride *int) (DurationInputs, error)
	// EncounterDuration — расчёт для одной встречи (API одиночного вызова).
	EncounterDuration(ctx context.Context, encounter *models.Encounter) (int, error)
}

type durationService struct {
	divisionRepo repositories.DivisionRepository
	phaseRepo    repositories.PhaseRepository
}

func NewDurationService(
	divisionRepo repositories.DivisionRepository,
	phaseRepo repositories.PhaseRepository,
) DurationService {
	return &durationService{
		divisionRepo: divisionRepo,
		phaseRepo:    phaseRepo,
	}
}

func (s *durationService) LoadInputs(ctx context.Context, exec repositories.SQLExecutor, division *models.Division, phaseID *int, gameDurationOverride *int) (DurationInputs, error) {
	in := DurationInputs{
		Division:             division,
		GameDurationOverride: gameDurationOverride,
	}

	formats, err := s.divisionRepo.ListMatchFormats(ctx, exec, division.ID)
	if err != nil {
		return in, err
	}
	in.Formats = formats

	if phaseID != nil {
		phase, err := s.phaseRepo.GetByID(ctx, exec, *phaseID)
		if err != nil {
			return in, err
		}
		in.Phase = phase

		settings, err := s.phaseRepo.ListMatchSettings(ctx, exec, *phaseID)
		if err != nil {
			return in, err
		}
		in.PhaseSettings = settings
	}

	return in, nil
}

func (s *durationService) EncounterDuration(ctx context.Context, encounter *models.Encounter) (int, error) {
	division, err := s.divisionRepo.GetByID(ctx, nil, encounter.DivisionID)
	if err != nil {
		return 0, mapDivisionRepoError(err)
	}
	in, err := s.LoadInputs(ctx, nil, division, encounter.PhaseID, nil)
	if err != nil {
		return 0, err
	}
	return ResolveEncounterDuration(in), nil
}
