package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courtflow/tournament-engine/models"
)

var ErrDivisionNotFound = errors.New("division not found")

// DrawingState — снимок полей сессии жеребьёвки на строке дивизиона.
type DrawingState struct {
	InProgress bool
	StartedAt  *time.Time
	ByUserID   *int
	Sequence   int
}

type DivisionRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Division, error)
	// GetForUpdate читает дивизион с блокировкой строки (SELECT ... FOR UPDATE).
	// Сериализует конкурентные шаги жеребьёвки одного дивизиона.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Division, error)
	UpdateDrawingState(ctx context.Context, exec SQLExecutor, id int, state DrawingState) error
	UpdateScheduleStatus(ctx context.Context, exec SQLExecutor, id int, status models.ScheduleStatus) error
	CountDrawingInProgress(ctx context.Context, exec SQLExecutor, eventID int) (int, error)
	ListMatchFormats(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.EncounterMatchFormat, error)
}

type postgresDivisionRepository struct {
	db *sql.DB
}

func NewPostgresDivisionRepository(db *sql.DB) DivisionRepository {
	return &postgresDivisionRepository{db: db}
}

func (r *postgresDivisionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const divisionColumns = `
	id, event_id, name, team_size, games_per_match, matches_per_encounter,
	estimated_match_duration_minutes, schedule_status,
	drawing_in_progress, drawing_started_at, drawing_by_user_id, drawing_sequence,
	created_at`

func scanDivision(row *sql.Row) (*models.Division, error) {
	d := &models.Division{}
	err := row.Scan(
		&d.ID, &d.EventID, &d.Name, &d.TeamSize, &d.GamesPerMatch, &d.MatchesPerEncounter,
		&d.EstimatedMatchDurationMinutes, &d.ScheduleStatus,
		&d.DrawingInProgress, &d.DrawingStartedAt, &d.DrawingByUserID, &d.DrawingSequence,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDivisionNotFound
		}
		return nil, fmt.Errorf("failed to scan division: %w", err)
	}
	return d, nil
}

func (r *postgresDivisionRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Division, error) {
	query := `SELECT` + divisionColumns + ` FROM divisions WHERE id = $1`
	return scanDivision(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresDivisionRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Division, error) {
	query := `SELECT` + divisionColumns + ` FROM divisions WHERE id = $1 FOR UPDATE`
	return scanDivision(r.getExecutor(exec).QueryRowContext(ctx, query, id))
}

func (r *postgresDivisionRepository) UpdateDrawingState(ctx context.Context, exec SQLExecutor, id int, state DrawingState) error {
	query := `
		UPDATE divisions
		SET drawing_in_progress = $1, drawing_started_at = $2,
		    drawing_by_user_id = $3, drawing_sequence = $4
		WHERE id = $5`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		state.InProgress, state.StartedAt, state.ByUserID, state.Sequence, id)
	if err != nil {
		return fmt.Errorf("failed to update drawing state for division %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDivisionNotFound)
}

func (r *postgresDivisionRepository) UpdateScheduleStatus(ctx context.Context, exec SQLExecutor, id int, status models.ScheduleStatus) error {
	query := `UPDATE divisions SET schedule_status = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrDivisionNotFound)
}

func (r *postgresDivisionRepository) CountDrawingInProgress(ctx context.Context, exec SQLExecutor, eventID int) (int, error) {
	query := `SELECT COUNT(*) FROM divisions WHERE event_id = $1 AND drawing_in_progress = TRUE`
	var count int
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count in-progress drawings for event %d: %w", eventID, err)
	}
	return count, nil
}

func (r *postgresDivisionRepository) ListMatchFormats(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.EncounterMatchFormat, error) {
	query := `
		SELECT id, division_id, name, best_of, sort_order
		FROM encounter_match_formats
		WHERE division_id = $1
		ORDER BY sort_order ASC, id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match formats for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	formats := make([]*models.EncounterMatchFormat, 0)
	for rows.Next() {
		var f models.EncounterMatchFormat
		if scanErr := rows.Scan(&f.ID, &f.DivisionID, &f.Name, &f.BestOf, &f.SortOrder); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match format row: %w", scanErr)
		}
		formats = append(formats, &f)
	}
	return formats, rows.Err()
}
