package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/courtflow/tournament-engine/models"
	"github.com/courtflow/tournament-engine/repositories"
	"golang.org/x/sync/errgroup"
)

// ProgressionResult — итог обработки завершения встречи.
type ProgressionResult struct {
	MatchCompleted        bool `json:"match_completed"`
	WinnerUnitID          *int `json:"winner_unit_id,omitempty"`
	AdvancedToEncounterID *int `json:"advanced_to_encounter_id,omitempty"`
	AdvancedIntoSlot      int  `json:"advanced_into_slot,omitempty"`
}

// GameScoreInput — записываемый счёт одного гейма.
type GameScoreInput struct {
	Unit1Points int  `json:"unit1_points"`
	Unit2Points int  `json:"unit2_points"`
	Finished    bool `json:"finished"`
}

type ProgressionService interface {
	// ProcessEncounterResult оценивает завершённость встречи, обновляет
	// статистику и продвигает победителя. Безопасна к повторным вызовам.
	ProcessEncounterResult(ctx context.Context, encounterID int) (*ProgressionResult, error)
	// RecordGameScore записывает счёт гейма и запускает обработку встречи.
	RecordGameScore(ctx context.Context, matchID, gameNumber int, score GameScoreInput) (*ProgressionResult, error)
}

type progressionService struct {
	transactor    repositories.Transactor
	divisionRepo  repositories.DivisionRepository
	encounterRepo repositories.EncounterRepository
	matchRepo     repositories.MatchRepository
	unitRepo      repositories.UnitRepository
	broadcaster   Broadcaster
	logger        *slog.Logger
}

func NewProgressionService(
	transactor repositories.Transactor,
	divisionRepo repositories.DivisionRepository,
	encounterRepo repositories.EncounterRepository,
	matchRepo repositories.MatchRepository,
	unitRepo repositories.UnitRepository,
	broadcaster Broadcaster,
	logger *slog.Logger,
) ProgressionService {
	return &progressionService{
		transactor:    transactor,
		divisionRepo:  divisionRepo,
		encounterRepo: encounterRepo,
		matchRepo:     matchRepo,
		unitRepo:      unitRepo,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}

// WinsNeeded — порог побед для серии best-of.
func WinsNeeded(bestOf int) int {
	return bestOf/2 + 1
}

// seriesTally — счёт завершённых геймов по сторонам встречи.
type seriesTally struct {
	unit1Wins     int
	unit2Wins     int
	unit1Points   int
	unit2Points   int
	finishedGames int
	totalGames    int
}

func tallyGames(encounter *models.Encounter, matches []*models.EncounterMatch) seriesTally {
	var t seriesTally
	for _, m := range matches {
		for _, g := range m.Games {
			t.totalGames++
			if !g.Finished {
				continue
			}
			t.finishedGames++
			t.unit1Points += g.Unit1Points
			t.unit2Points += g.Unit2Points
			if g.WinnerUnitID == nil {
				continue
			}
			switch {
			case encounter.Unit1ID != nil && *g.WinnerUnitID == *encounter.Unit1ID:
				t.unit1Wins++
			case encounter.Unit2ID != nil && *g.WinnerUnitID == *encounter.Unit2ID:
				t.unit2Wins++
			}
		}
	}
	return t
}

// seriesWinnerSlot решает, завершена ли серия, и кто победил (слот 1 или 2).
// Серия завершена, когда одна из сторон набрала WinsNeeded, либо когда
// сыграны все bestOf геймов и у одной из сторон строго больше побед.
// Геймы создаются по мере записи счёта, поэтому сыгранность меряется
// относительно bestOf, а не числа записанных геймов. Сыгранная вничью
// серия остаётся открытой до решающего гейма.
func seriesWinnerSlot(t seriesTally, bestOf int) (int, bool) {
	needed := WinsNeeded(bestOf)
	complete := t.unit1Wins >= needed || t.unit2Wins >= needed ||
		t.finishedGames >= bestOf
	if !complete || t.unit1Wins == t.unit2Wins {
		return 0, false
	}
	if t.unit1Wins > t.unit2Wins {
		return 1, true
	}
	return 2, true
}

// NextBracketSlot — арифметика маршрутизации победителя: пары позиций
// (1,2)->1, (3,4)->2 и т.д.; нечётная исходная позиция занимает слот 1
// целевой встречи, чётная — слот 2. Это единственный источник истины
// о топологии сетки.
func NextBracketSlot(roundNumber, bracketPosition int) (nextRound, nextPosition, slot int) {
	nextRound = roundNumber + 1
	nextPosition = (bracketPosition + 1) / 2
	slot = 2
	if bracketPosition%2 == 1 {
		slot = 1
	}
	return nextRound, nextPosition, slot
}

func (s *progressionService) ProcessEncounterResult(ctx context.Context, encounterID int) (*ProgressionResult, error) {
	encounter, err := s.encounterRepo.GetByID(ctx, nil, encounterID)
	if err != nil {
		if errors.Is(err, repositories.ErrEncounterNotFound) {
			// Отсутствующая встреча — no-op, не жёсткий отказ.
			s.logger.Warn("progression skipped: encounter not found", slog.Int("encounter_id", encounterID))
			return &ProgressionResult{MatchCompleted: false}, nil
		}
		return nil, err
	}

	var division *models.Division
	var matches []*models.EncounterMatch

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.divisionRepo.GetByID(gCtx, nil, encounter.DivisionID)
		if err != nil {
			return mapDivisionRepoError(err)
		}
		division = d
		return nil
	})
	g.Go(func() error {
		m, err := s.matchRepo.ListByEncounter(gCtx, nil, encounterID)
		if err != nil {
			return err
		}
		matches = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ProgressionResult{}

	// Путь идемпотентного повтора: победитель уже определён,
	// осталось убедиться, что продвижение применено.
	if encounter.Status == models.EncounterCompleted && encounter.WinnerUnitID != nil {
		result.MatchCompleted = true
		result.WinnerUnitID = encounter.WinnerUnitID
		if err := s.advanceWinner(ctx, encounter, *encounter.WinnerUnitID, division, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	// Обе стороны должны быть разрешены, чтобы считать серию.
	if encounter.Unit1ID == nil || encounter.Unit2ID == nil {
		return result, nil
	}

	bestOf := encounter.EffectiveBestOf(division.GamesPerMatch)
	tally := tallyGames(encounter, matches)
	winnerSlot, complete := seriesWinnerSlot(tally, bestOf)
	if !complete {
		return result, nil
	}

	winnerID, loserID := *encounter.Unit1ID, *encounter.Unit2ID
	winnerDelta := repositories.UnitStatsDelta{
		Played: 1, Won: 1,
		GamesWon: tally.unit1Wins, GamesLost: tally.unit2Wins,
		PointsScored: tally.unit1Points, PointsAgainst: tally.unit2Points,
	}
	loserDelta := repositories.UnitStatsDelta{
		Played: 1, Lost: 1,
		GamesWon: tally.unit2Wins, GamesLost: tally.unit1Wins,
		PointsScored: tally.unit2Points, PointsAgainst: tally.unit1Points,
	}
	if winnerSlot == 2 {
		winnerID, loserID = *encounter.Unit2ID, *encounter.Unit1ID
		winnerDelta = repositories.UnitStatsDelta{
			Played: 1, Won: 1,
			GamesWon: tally.unit2Wins, GamesLost: tally.unit1Wins,
			PointsScored: tally.unit2Points, PointsAgainst: tally.unit1Points,
		}
		loserDelta = repositories.UnitStatsDelta{
			Played: 1, Lost: 1,
			GamesWon: tally.unit1Wins, GamesLost: tally.unit2Wins,
			PointsScored: tally.unit1Points, PointsAgainst: tally.unit2Points,
		}
	}

	err = s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.encounterRepo.SetWinner(ctx, tx, encounter.ID, winnerID, time.Now().UTC()); err != nil {
			return err
		}
		if err := s.unitRepo.ApplyStatsDelta(ctx, tx, winnerID, winnerDelta); err != nil {
			return err
		}
		if err := s.unitRepo.ApplyStatsDelta(ctx, tx, loserID, loserDelta); err != nil {
			return err
		}
		for _, m := range matches {
			if err := s.settleMatchWinner(ctx, tx, encounter, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.MatchCompleted = true
	result.WinnerUnitID = &winnerID
	s.broadcaster.BroadcastMatchCompleted(eventIDOf(division), encounter.DivisionID, encounter.ID, winnerID)

	if err := s.advanceWinner(ctx, encounter, winnerID, division, result); err != nil {
		return nil, err
	}
	return result, nil
}

// settleMatchWinner фиксирует победителя отдельного матча, когда все его
// геймы сыграны с неравным счётом побед.
func (s *progressionService) settleMatchWinner(ctx context.Context, tx repositories.SQLExecutor, encounter *models.Encounter, m *models.EncounterMatch) error {
	if m.WinnerUnitID != nil || len(m.Games) == 0 {
		return nil
	}
	u1, u2 := 0, 0
	for _, g := range m.Games {
		if !g.Finished {
			return nil
		}
		if g.WinnerUnitID == nil {
			continue
		}
		switch {
		case encounter.Unit1ID != nil && *g.WinnerUnitID == *encounter.Unit1ID:
			u1++
		case encounter.Unit2ID != nil && *g.WinnerUnitID == *encounter.Unit2ID:
			u2++
		}
	}
	if u1 == u2 {
		return nil
	}
	winner := *encounter.Unit1ID
	if u2 > u1 {
		winner = *encounter.Unit2ID
	}
	return s.matchRepo.SetMatchWinner(ctx, tx, m.ID, winner)
}

// advanceWinner копирует победителя в нужный слот встречи следующего раунда.
// Пул-встречи не продвигаются; финал и матч за третье место терминальны.
func (s *progressionService) advanceWinner(ctx context.Context, encounter *models.Encounter, winnerID int, division *models.Division, result *ProgressionResult) error {
	if encounter.RoundType != models.RoundBracket {
		return nil
	}

	nextRound, nextPosition, slot := NextBracketSlot(encounter.RoundNumber, encounter.BracketPosition)

	target, err := s.encounterRepo.GetByRoundPosition(ctx, nil, encounter.DivisionID, nextRound, nextPosition)
	if errors.Is(err, repositories.ErrEncounterNotFound) {
		// Полуфинал -> финал: позиция финала может не совпадать.
		target, err = s.encounterRepo.GetFinalByRound(ctx, nil, encounter.DivisionID, nextRound)
		if errors.Is(err, repositories.ErrEncounterNotFound) {
			// Целевой встречи нет — это был решающий матч.
			return nil
		}
	}
	if err != nil {
		return err
	}

	// Защита от повторного продвижения.
	if (target.Unit1ID != nil && *target.Unit1ID == winnerID) ||
		(target.Unit2ID != nil && *target.Unit2ID == winnerID) {
		return nil
	}

	err = s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		return s.encounterRepo.SetUnitSlot(ctx, tx, target.ID, slot, winnerID)
	})
	if err != nil {
		return err
	}

	targetID := target.ID
	result.AdvancedToEncounterID = &targetID
	result.AdvancedIntoSlot = slot

	s.broadcaster.BroadcastBracketProgression(eventIDOf(division), encounter.DivisionID, ProgressionPayload{
		DivisionID:       encounter.DivisionID,
		EncounterID:      encounter.ID,
		WinnerUnitID:     winnerID,
		AdvancedToID:     &targetID,
		AdvancedToName:   string(target.RoundType),
		AdvancedIntoSlot: slot,
	})
	return nil
}

func (s *progressionService) RecordGameScore(ctx context.Context, matchID, gameNumber int, score GameScoreInput) (*ProgressionResult, error) {
	encounterID, err := s.matchRepo.EncounterIDForMatch(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	encounter, err := s.encounterRepo.GetByID(ctx, nil, encounterID)
	if err != nil {
		return nil, mapEncounterRepoError(err)
	}
	division, err := s.divisionRepo.GetByID(ctx, nil, encounter.DivisionID)
	if err != nil {
		return nil, mapDivisionRepoError(err)
	}

	if score.Finished && score.Unit1Points == score.Unit2Points {
		return nil, ErrGameScoreInvalid
	}

	var winnerID *int
	if score.Finished {
		if score.Unit1Points > score.Unit2Points {
			winnerID = encounter.Unit1ID
		} else {
			winnerID = encounter.Unit2ID
		}
	}

	var game *models.Game
	err = s.transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		g, err := s.matchRepo.UpsertGame(ctx, tx, matchID, gameNumber, repositories.GameScore{
			Unit1Points:  score.Unit1Points,
			Unit2Points:  score.Unit2Points,
			WinnerUnitID: winnerID,
			Finished:     score.Finished,
		})
		if err != nil {
			return err
		}
		game = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.BroadcastGameScoreUpdated(eventIDOf(division), encounter.DivisionID, GameScorePayload{
		DivisionID:  encounter.DivisionID,
		EncounterID: encounter.ID,
		MatchID:     matchID,
		GameNumber:  game.GameNumber,
		Unit1Points: game.Unit1Points,
		Unit2Points: game.Unit2Points,
		Finished:    game.Finished,
	})

	return s.ProcessEncounterResult(ctx, encounterID)
}

func eventIDOf(division *models.Division) int {
	if division == nil {
		return 0
	}
	return division.EventID
}
