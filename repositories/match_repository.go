package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtflow/tournament-engine/models"
)

var (
	ErrMatchNotFound = errors.New("encounter match not found")
	ErrGameNotFound  = errors.New("game not found")
)

// GameScore — записываемый результат одного гейма.
type GameScore struct {
	Unit1Points  int
	Unit2Points  int
	WinnerUnitID *int
	Finished     bool
}

type MatchRepository interface {
	CreateMatch(ctx context.Context, exec SQLExecutor, match *models.EncounterMatch) error
	// ListByEncounter возвращает матчи встречи с вложенными геймами,
	// в порядке sort_order / game_number.
	ListByEncounter(ctx context.Context, exec SQLExecutor, encounterID int) ([]*models.EncounterMatch, error)
	GetGame(ctx context.Context, exec SQLExecutor, gameID int) (*models.Game, error)
	// UpsertGame записывает счёт гейма, создавая строку при первом обращении.
	UpsertGame(ctx context.Context, exec SQLExecutor, matchID, gameNumber int, score GameScore) (*models.Game, error)
	SetMatchWinner(ctx context.Context, exec SQLExecutor, matchID int, winnerUnitID int) error
	// EncounterIDForMatch возвращает встречу, которой принадлежит матч.
	EncounterIDForMatch(ctx context.Context, exec SQLExecutor, matchID int) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) CreateMatch(ctx context.Context, exec SQLExecutor, m *models.EncounterMatch) error {
	query := `
		INSERT INTO encounter_matches (encounter_id, format_id, sort_order)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		m.EncounterID, m.FormatID, m.SortOrder).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to create encounter match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) ListByEncounter(ctx context.Context, exec SQLExecutor, encounterID int) ([]*models.EncounterMatch, error) {
	executor := r.getExecutor(exec)

	query := `
		SELECT id, encounter_id, format_id, sort_order, winner_unit_id
		FROM encounter_matches
		WHERE encounter_id = $1
		ORDER BY sort_order ASC, id ASC`

	rows, err := executor.QueryContext(ctx, query, encounterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for encounter %d: %w", encounterID, err)
	}
	defer rows.Close()

	matches := make([]*models.EncounterMatch, 0)
	byID := make(map[int]*models.EncounterMatch)
	for rows.Next() {
		var m models.EncounterMatch
		if scanErr := rows.Scan(&m.ID, &m.EncounterID, &m.FormatID, &m.SortOrder, &m.WinnerUnitID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan encounter match row: %w", scanErr)
		}
		m.Games = make([]models.Game, 0)
		matches = append(matches, &m)
		byID[m.ID] = &m
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return matches, nil
	}

	gameQuery := `
		SELECT g.id, g.match_id, g.game_number, g.unit1_points, g.unit2_points,
		       g.winner_unit_id, g.finished
		FROM games g
		JOIN encounter_matches m ON m.id = g.match_id
		WHERE m.encounter_id = $1
		ORDER BY g.match_id ASC, g.game_number ASC`

	gameRows, err := executor.QueryContext(ctx, gameQuery, encounterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query games for encounter %d: %w", encounterID, err)
	}
	defer gameRows.Close()

	for gameRows.Next() {
		var g models.Game
		if scanErr := gameRows.Scan(
			&g.ID, &g.MatchID, &g.GameNumber, &g.Unit1Points, &g.Unit2Points,
			&g.WinnerUnitID, &g.Finished,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", scanErr)
		}
		if m, ok := byID[g.MatchID]; ok {
			m.Games = append(m.Games, g)
		}
	}
	return matches, gameRows.Err()
}

func (r *postgresMatchRepository) GetGame(ctx context.Context, exec SQLExecutor, gameID int) (*models.Game, error) {
	query := `
		SELECT id, match_id, game_number, unit1_points, unit2_points, winner_unit_id, finished
		FROM games
		WHERE id = $1`

	g := &models.Game{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, gameID).Scan(
		&g.ID, &g.MatchID, &g.GameNumber, &g.Unit1Points, &g.Unit2Points,
		&g.WinnerUnitID, &g.Finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan game %d: %w", gameID, err)
	}
	return g, nil
}

func (r *postgresMatchRepository) UpsertGame(ctx context.Context, exec SQLExecutor, matchID, gameNumber int, score GameScore) (*models.Game, error) {
	query := `
		INSERT INTO games (match_id, game_number, unit1_points, unit2_points, winner_unit_id, finished)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id, game_number) DO UPDATE
		SET unit1_points = EXCLUDED.unit1_points,
		    unit2_points = EXCLUDED.unit2_points,
		    winner_unit_id = EXCLUDED.winner_unit_id,
		    finished = EXCLUDED.finished
		RETURNING id, match_id, game_number, unit1_points, unit2_points, winner_unit_id, finished`

	g := &models.Game{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		matchID, gameNumber, score.Unit1Points, score.Unit2Points, score.WinnerUnitID, score.Finished,
	).Scan(&g.ID, &g.MatchID, &g.GameNumber, &g.Unit1Points, &g.Unit2Points, &g.WinnerUnitID, &g.Finished)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert game %d of match %d: %w", gameNumber, matchID, err)
	}
	return g, nil
}

func (r *postgresMatchRepository) SetMatchWinner(ctx context.Context, exec SQLExecutor, matchID int, winnerUnitID int) error {
	query := `UPDATE encounter_matches SET winner_unit_id = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, winnerUnitID, matchID)
	if err != nil {
		return fmt.Errorf("failed to set winner for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) EncounterIDForMatch(ctx context.Context, exec SQLExecutor, matchID int) (int, error) {
	query := `SELECT encounter_id FROM encounter_matches WHERE id = $1`
	var encounterID int
	err := r.getExecutor(exec).QueryRowContext(ctx, query, matchID).Scan(&encounterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrMatchNotFound
		}
		return 0, fmt.Errorf("failed to resolve encounter for match %d: %w", matchID, err)
	}
	return encounterID, nil
}
