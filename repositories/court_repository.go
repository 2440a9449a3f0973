package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/courtflow/tournament-engine/models"
)

type CourtRepository interface {
	// ListEligibleForDivision разрешает корты, закреплённые за дивизионом
	// через группы кортов (транзитивно). Пустой результат означает отсутствие
	// правила привязки, а не отсутствие кортов.
	ListEligibleForDivision(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Court, error)
	ListEligibleForPhase(ctx context.Context, exec SQLExecutor, phaseID int) ([]*models.Court, error)
	ListActiveByEvent(ctx context.Context, exec SQLExecutor, eventID int) ([]*models.Court, error)
}

type postgresCourtRepository struct {
	db *sql.DB
}

func NewPostgresCourtRepository(db *sql.DB) CourtRepository {
	return &postgresCourtRepository{db: db}
}

func (r *postgresCourtRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresCourtRepository) scanCourts(rows *sql.Rows) ([]*models.Court, error) {
	courts := make([]*models.Court, 0)
	for rows.Next() {
		var c models.Court
		if err := rows.Scan(&c.ID, &c.EventID, &c.Name, &c.Status, &c.SortOrder, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan court row: %w", err)
		}
		courts = append(courts, &c)
	}
	return courts, rows.Err()
}

func (r *postgresCourtRepository) ListEligibleForDivision(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Court, error) {
	query := `
		SELECT DISTINCT c.id, c.event_id, c.name, c.status, c.sort_order, c.active
		FROM courts c
		JOIN court_group_members m ON m.court_id = c.id
		JOIN court_assignments a ON a.court_group_id = m.court_group_id
		WHERE a.division_id = $1 AND c.active = TRUE
		ORDER BY c.sort_order ASC, c.id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible courts for division %d: %w", divisionID, err)
	}
	defer rows.Close()
	return r.scanCourts(rows)
}

func (r *postgresCourtRepository) ListEligibleForPhase(ctx context.Context, exec SQLExecutor, phaseID int) ([]*models.Court, error) {
	// Фазовая привязка приоритетнее дивизионной; при её отсутствии
	// действует привязка дивизиона (a.phase_id IS NULL).
	query := `
		SELECT DISTINCT c.id, c.event_id, c.name, c.status, c.sort_order, c.active
		FROM courts c
		JOIN court_group_members m ON m.court_id = c.id
		JOIN court_assignments a ON a.court_group_id = m.court_group_id
		JOIN phases p ON p.id = $1
		WHERE c.active = TRUE
		  AND (a.phase_id = p.id OR (a.phase_id IS NULL AND a.division_id = p.division_id))
		ORDER BY c.sort_order ASC, c.id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible courts for phase %d: %w", phaseID, err)
	}
	defer rows.Close()
	return r.scanCourts(rows)
}

func (r *postgresCourtRepository) ListActiveByEvent(ctx context.Context, exec SQLExecutor, eventID int) ([]*models.Court, error) {
	query := `
		SELECT id, event_id, name, status, sort_order, active
		FROM courts
		WHERE event_id = $1 AND active = TRUE
		ORDER BY sort_order ASC, id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active courts for event %d: %w", eventID, err)
	}
	defer rows.Close()
	return r.scanCourts(rows)
}
