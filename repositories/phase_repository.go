package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtflow/tournament-engine/models"
)

var ErrPhaseNotFound = errors.New("phase not found")

type PhaseRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Phase, error)
	ListByDivision(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Phase, error)
	ListMatchSettings(ctx context.Context, exec SQLExecutor, phaseID int) ([]*models.PhaseMatchSettings, error)
}

type postgresPhaseRepository struct {
	db *sql.DB
}

func NewPostgresPhaseRepository(db *sql.DB) PhaseRepository {
	return &postgresPhaseRepository{db: db}
}

func (r *postgresPhaseRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPhaseRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Phase, error) {
	query := `
		SELECT id, division_id, name, sort_order, best_of,
		       estimated_match_duration_minutes, start_time
		FROM phases
		WHERE id = $1`

	p := &models.Phase{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.DivisionID, &p.Name, &p.SortOrder, &p.BestOf,
		&p.EstimatedMatchDurationMinutes, &p.StartTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to scan phase %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresPhaseRepository) ListByDivision(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Phase, error) {
	query := `
		SELECT id, division_id, name, sort_order, best_of,
		       estimated_match_duration_minutes, start_time
		FROM phases
		WHERE division_id = $1
		ORDER BY sort_order ASC, id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phases for division %d: %w", divisionID, err)
	}
	defer rows.Close()

	phases := make([]*models.Phase, 0)
	for rows.Next() {
		var p models.Phase
		if scanErr := rows.Scan(
			&p.ID, &p.DivisionID, &p.Name, &p.SortOrder, &p.BestOf,
			&p.EstimatedMatchDurationMinutes, &p.StartTime,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan phase row: %w", scanErr)
		}
		phases = append(phases, &p)
	}
	return phases, rows.Err()
}

func (r *postgresPhaseRepository) ListMatchSettings(ctx context.Context, exec SQLExecutor, phaseID int) ([]*models.PhaseMatchSettings, error) {
	query := `
		SELECT id, phase_id, match_format_id, best_of
		FROM phase_match_settings
		WHERE phase_id = $1
		ORDER BY id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match settings for phase %d: %w", phaseID, err)
	}
	defer rows.Close()

	settings := make([]*models.PhaseMatchSettings, 0)
	for rows.Next() {
		var s models.PhaseMatchSettings
		if scanErr := rows.Scan(&s.ID, &s.PhaseID, &s.MatchFormatID, &s.BestOf); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match settings row: %w", scanErr)
		}
		settings = append(settings, &s)
	}
	return settings, rows.Err()
}
