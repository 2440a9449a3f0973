package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courtflow/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrEncounterNotFound        = errors.New("encounter not found")
	ErrEncounterDivisionInvalid = errors.New("encounter division conflict or invalid")
	ErrEncounterUnitInvalid     = errors.New("encounter unit conflict or invalid")
)

// ScheduleSlot — назначение встречи на корт с расчётным временем.
type ScheduleSlot struct {
	CourtID         int
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
}

// DrawResolution — результат привязки слотов к юнитам после жеребьёвки.
type DrawResolution struct {
	Unit1ID      *int
	Unit2ID      *int
	Status       models.EncounterStatus
	WinnerUnitID *int
}

type EncounterRepository interface {
	Create(ctx context.Context, exec SQLExecutor, encounter *models.Encounter) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Encounter, error)
	ListByDivision(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Encounter, error)
	// ListForScheduling возвращает кандидатов на назначение корта в порядке
	// фаза -> раунд -> номер встречи. Порядок обхода фиксирован: от него
	// зависит детерминизм распределения.
	ListForScheduling(ctx context.Context, exec SQLExecutor, divisionID int, onlyUnassigned bool) ([]*models.Encounter, error)
	// ListByPhaseForScheduling — то же для одной фазы, порядок
	// пул -> раунд -> номер встречи.
	ListByPhaseForScheduling(ctx context.Context, exec SQLExecutor, phaseID int, onlyAssigned bool) ([]*models.Encounter, error)
	UpdateScheduleSlot(ctx context.Context, exec SQLExecutor, id int, slot ScheduleSlot) error
	ClearScheduleSlots(ctx context.Context, exec SQLExecutor, divisionID int) (int, error)
	ResolveDrawnUnits(ctx context.Context, exec SQLExecutor, id int, res DrawResolution) error
	// ResetDrawnBindings откатывает привязки юнитов, сделанные жеребьёвкой:
	// встречи с плейсхолдерами слотов и все пул-встречи возвращаются в scheduled.
	ResetDrawnBindings(ctx context.Context, exec SQLExecutor, divisionID int) (int, error)
	GetByRoundPosition(ctx context.Context, exec SQLExecutor, divisionID, roundNumber, bracketPosition int) (*models.Encounter, error)
	GetFinalByRound(ctx context.Context, exec SQLExecutor, divisionID, roundNumber int) (*models.Encounter, error)
	SetUnitSlot(ctx context.Context, exec SQLExecutor, id int, slot int, unitID int) error
	SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerUnitID int, completedAt time.Time) error
}

type postgresEncounterRepository struct {
	db *sql.DB
}

func NewPostgresEncounterRepository(db *sql.DB) EncounterRepository {
	return &postgresEncounterRepository{db: db}
}

func (r *postgresEncounterRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const encounterColumns = `
	id, division_id, phase_id, round_type, round_number, bracket_position,
	encounter_number, pool_number, unit1_id, unit2_id, unit1_number, unit2_number,
	winner_unit_id, status, best_of, tournament_court_id,
	estimated_start_time, estimated_end_time, estimated_duration_minutes,
	completed_at, created_at`

func scanEncounter(scan func(dest ...interface{}) error) (*models.Encounter, error) {
	e := &models.Encounter{}
	err := scan(
		&e.ID, &e.DivisionID, &e.PhaseID, &e.RoundType, &e.RoundNumber, &e.BracketPosition,
		&e.EncounterNumber, &e.PoolNumber, &e.Unit1ID, &e.Unit2ID, &e.Unit1Number, &e.Unit2Number,
		&e.WinnerUnitID, &e.Status, &e.BestOf, &e.TournamentCourtID,
		&e.EstimatedStartTime, &e.EstimatedEndTime, &e.EstimatedDurationMinutes,
		&e.CompletedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *postgresEncounterRepository) queryEncounters(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Encounter, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query encounters: %w", err)
	}
	defer rows.Close()

	encounters := make([]*models.Encounter, 0)
	for rows.Next() {
		e, scanErr := scanEncounter(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan encounter row: %w", scanErr)
		}
		encounters = append(encounters, e)
	}
	return encounters, rows.Err()
}

func (r *postgresEncounterRepository) Create(ctx context.Context, exec SQLExecutor, e *models.Encounter) error {
	query := `
		INSERT INTO encounters
			(division_id, phase_id, round_type, round_number, bracket_position,
			 encounter_number, pool_number, unit1_id, unit2_id, unit1_number, unit2_number,
			 winner_unit_id, status, best_of)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		e.DivisionID, e.PhaseID, e.RoundType, e.RoundNumber, e.BracketPosition,
		e.EncounterNumber, e.PoolNumber, e.Unit1ID, e.Unit2ID, e.Unit1Number, e.Unit2Number,
		e.WinnerUnitID, e.Status, e.BestOf,
	).Scan(&e.ID, &e.CreatedAt)

	return r.handleEncounterError(err)
}

func (r *postgresEncounterRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Encounter, error) {
	query := `SELECT` + encounterColumns + ` FROM encounters WHERE id = $1`
	e, err := scanEncounter(r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEncounterNotFound
		}
		return nil, fmt.Errorf("failed to scan encounter %d: %w", id, err)
	}
	return e, nil
}

func (r *postgresEncounterRepository) ListByDivision(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Encounter, error) {
	query := `SELECT` + encounterColumns + `
		FROM encounters
		WHERE division_id = $1
		ORDER BY round_number ASC, bracket_position ASC, encounter_number ASC`
	return r.queryEncounters(ctx, exec, query, divisionID)
}

func (r *postgresEncounterRepository) ListForScheduling(ctx context.Context, exec SQLExecutor, divisionID int, onlyUnassigned bool) ([]*models.Encounter, error) {
	query := `SELECT` + encounterColumnsPrefixed + `
		FROM encounters e
		LEFT JOIN phases p ON p.id = e.phase_id
		WHERE e.division_id = $1 AND e.status NOT IN ($2, $3)`
	if onlyUnassigned {
		query += ` AND e.tournament_court_id IS NULL`
	}
	query += ` ORDER BY COALESCE(p.sort_order, 0) ASC, e.round_number ASC, e.encounter_number ASC, e.id ASC`

	return r.queryEncounters(ctx, exec, query, divisionID, models.EncounterCompleted, models.EncounterBye)
}

func (r *postgresEncounterRepository) ListByPhaseForScheduling(ctx context.Context, exec SQLExecutor, phaseID int, onlyAssigned bool) ([]*models.Encounter, error) {
	query := `SELECT` + encounterColumns + `
		FROM encounters
		WHERE phase_id = $1 AND status NOT IN ($2, $3)`
	if onlyAssigned {
		query += ` AND tournament_court_id IS NOT NULL`
	}
	query += ` ORDER BY pool_number ASC NULLS FIRST, round_number ASC, encounter_number ASC, id ASC`

	return r.queryEncounters(ctx, exec, query, phaseID, models.EncounterCompleted, models.EncounterBye)
}

func (r *postgresEncounterRepository) UpdateScheduleSlot(ctx context.Context, exec SQLExecutor, id int, slot ScheduleSlot) error {
	query := `
		UPDATE encounters
		SET tournament_court_id = $1, estimated_start_time = $2,
		    estimated_end_time = $3, estimated_duration_minutes = $4
		WHERE id = $5`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		slot.CourtID, slot.StartTime, slot.EndTime, slot.DurationMinutes, id)
	if err != nil {
		return fmt.Errorf("failed to update schedule slot for encounter %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrEncounterNotFound)
}

func (r *postgresEncounterRepository) ClearScheduleSlots(ctx context.Context, exec SQLExecutor, divisionID int) (int, error) {
	query := `
		UPDATE encounters
		SET tournament_court_id = NULL, estimated_start_time = NULL,
		    estimated_end_time = NULL, estimated_duration_minutes = NULL
		WHERE division_id = $1 AND status NOT IN ($2, $3)`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		divisionID, models.EncounterCompleted, models.EncounterInProgress)
	if err != nil {
		return 0, fmt.Errorf("failed to clear schedule slots for division %d: %w", divisionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *postgresEncounterRepository) ResolveDrawnUnits(ctx context.Context, exec SQLExecutor, id int, res DrawResolution) error {
	query := `
		UPDATE encounters
		SET unit1_id = $1, unit2_id = $2, status = $3, winner_unit_id = $4
		WHERE id = $5`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		res.Unit1ID, res.Unit2ID, res.Status, res.WinnerUnitID, id)
	if err != nil {
		return r.handleEncounterError(err)
	}
	return checkAffectedRows(result, ErrEncounterNotFound)
}

func (r *postgresEncounterRepository) ResetDrawnBindings(ctx context.Context, exec SQLExecutor, divisionID int) (int, error) {
	query := `
		UPDATE encounters
		SET unit1_id = NULL, unit2_id = NULL, winner_unit_id = NULL,
		    status = $1, completed_at = NULL
		WHERE division_id = $2
		  AND status != $3
		  AND (round_type = $4 OR unit1_number IS NOT NULL OR unit2_number IS NOT NULL)`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		models.EncounterScheduled, divisionID, models.EncounterCompleted, models.RoundPool)
	if err != nil {
		return 0, fmt.Errorf("failed to reset drawn bindings for division %d: %w", divisionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *postgresEncounterRepository) GetByRoundPosition(ctx context.Context, exec SQLExecutor, divisionID, roundNumber, bracketPosition int) (*models.Encounter, error) {
	query := `SELECT` + encounterColumns + `
		FROM encounters
		WHERE division_id = $1 AND round_number = $2 AND bracket_position = $3
		  AND round_type != $4
		ORDER BY id ASC
		LIMIT 1`

	e, err := scanEncounter(r.getExecutor(exec).QueryRowContext(ctx, query,
		divisionID, roundNumber, bracketPosition, models.RoundThirdPlace).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEncounterNotFound
		}
		return nil, fmt.Errorf("failed to scan encounter at round %d position %d: %w", roundNumber, bracketPosition, err)
	}
	return e, nil
}

func (r *postgresEncounterRepository) GetFinalByRound(ctx context.Context, exec SQLExecutor, divisionID, roundNumber int) (*models.Encounter, error) {
	query := `SELECT` + encounterColumns + `
		FROM encounters
		WHERE division_id = $1 AND round_number = $2 AND round_type = $3
		ORDER BY id ASC
		LIMIT 1`

	e, err := scanEncounter(r.getExecutor(exec).QueryRowContext(ctx, query,
		divisionID, roundNumber, models.RoundFinal).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEncounterNotFound
		}
		return nil, fmt.Errorf("failed to scan final at round %d: %w", roundNumber, err)
	}
	return e, nil
}

func (r *postgresEncounterRepository) SetUnitSlot(ctx context.Context, exec SQLExecutor, id int, slot int, unitID int) error {
	var query string
	switch slot {
	case 1:
		query = `UPDATE encounters SET unit1_id = $1 WHERE id = $2`
	case 2:
		query = `UPDATE encounters SET unit2_id = $1 WHERE id = $2`
	default:
		return fmt.Errorf("invalid encounter slot %d", slot)
	}

	result, err := r.getExecutor(exec).ExecContext(ctx, query, unitID, id)
	if err != nil {
		return r.handleEncounterError(err)
	}
	return checkAffectedRows(result, ErrEncounterNotFound)
}

func (r *postgresEncounterRepository) SetWinner(ctx context.Context, exec SQLExecutor, id int, winnerUnitID int, completedAt time.Time) error {
	query := `
		UPDATE encounters
		SET winner_unit_id = $1, status = $2, completed_at = $3
		WHERE id = $4`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		winnerUnitID, models.EncounterCompleted, completedAt, id)
	if err != nil {
		return r.handleEncounterError(err)
	}
	return checkAffectedRows(result, ErrEncounterNotFound)
}

func (r *postgresEncounterRepository) handleEncounterError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "encounters_division_id_fkey", "encounters_phase_id_fkey":
			return ErrEncounterDivisionInvalid
		case "encounters_unit1_id_fkey", "encounters_unit2_id_fkey", "encounters_winner_unit_id_fkey":
			return ErrEncounterUnitInvalid
		}
	}
	return err
}

// Тот же список колонок с префиксом "e." для запросов с JOIN.
const encounterColumnsPrefixed = `
	e.id, e.division_id, e.phase_id, e.round_type, e.round_number, e.bracket_position,
	e.encounter_number, e.pool_number, e.unit1_id, e.unit2_id, e.unit1_number, e.unit2_number,
	e.winner_unit_id, e.status, e.best_of, e.tournament_court_id,
	e.estimated_start_time, e.estimated_end_time, e.estimated_duration_minutes,
	e.completed_at, e.created_at`
