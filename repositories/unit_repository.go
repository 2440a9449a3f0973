package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/courtflow/tournament-engine/models"
	"github.com/lib/pq"
)

var (
	ErrUnitNotFound       = errors.New("unit not found")
	ErrUnitNumberConflict = errors.New("unit number already taken in this division")
)

// UnitStatsDelta — приращение статистики юнита после завершения встречи.
type UnitStatsDelta struct {
	Played        int
	Won           int
	Lost          int
	GamesWon      int
	GamesLost     int
	PointsScored  int
	PointsAgainst int
}

type UnitRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Unit, error)
	// ListEligible возвращает юниты, участвующие в жеребьёвке
	// (зарегистрированные и отмеченные на турнире), в стабильном порядке.
	ListEligible(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Unit, error)
	// ListUndrawn возвращает юниты без номера слота. forUpdate блокирует строки
	// на время транзакции шага жеребьёвки.
	ListUndrawn(ctx context.Context, exec SQLExecutor, divisionID int, forUpdate bool) ([]*models.Unit, error)
	ListDrawn(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Unit, error)
	AssignUnitNumber(ctx context.Context, exec SQLExecutor, unitID int, number int) error
	ClearUnitNumbers(ctx context.Context, exec SQLExecutor, divisionID int) error
	ApplyStatsDelta(ctx context.Context, exec SQLExecutor, unitID int, delta UnitStatsDelta) error
}

type postgresUnitRepository struct {
	db *sql.DB
}

func NewPostgresUnitRepository(db *sql.DB) UnitRepository {
	return &postgresUnitRepository{db: db}
}

func (r *postgresUnitRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const unitColumns = `
	id, division_id, name, members, unit_number, pool_number, pool_name, status,
	matches_played, matches_won, matches_lost, games_won, games_lost,
	points_scored, points_against, created_at`

func scanUnitRows(rows *sql.Rows) ([]*models.Unit, error) {
	units := make([]*models.Unit, 0)
	for rows.Next() {
		var u models.Unit
		if err := rows.Scan(
			&u.ID, &u.DivisionID, &u.Name, pq.Array(&u.Members),
			&u.UnitNumber, &u.PoolNumber, &u.PoolName, &u.Status,
			&u.MatchesPlayed, &u.MatchesWon, &u.MatchesLost,
			&u.GamesWon, &u.GamesLost, &u.PointsScored, &u.PointsAgainst,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan unit row: %w", err)
		}
		units = append(units, &u)
	}
	return units, rows.Err()
}

func (r *postgresUnitRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Unit, error) {
	query := `SELECT` + unitColumns + ` FROM units WHERE id = $1`

	u := &models.Unit{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.DivisionID, &u.Name, pq.Array(&u.Members),
		&u.UnitNumber, &u.PoolNumber, &u.PoolName, &u.Status,
		&u.MatchesPlayed, &u.MatchesWon, &u.MatchesLost,
		&u.GamesWon, &u.GamesLost, &u.PointsScored, &u.PointsAgainst,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, fmt.Errorf("failed to scan unit %d: %w", id, err)
	}
	return u, nil
}

func (r *postgresUnitRepository) ListEligible(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Unit, error) {
	query := `SELECT` + unitColumns + `
		FROM units
		WHERE division_id = $1 AND status IN ($2, $3)
		ORDER BY id ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query,
		divisionID, models.UnitRegistered, models.UnitCheckedIn)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible units for division %d: %w", divisionID, err)
	}
	defer rows.Close()
	return scanUnitRows(rows)
}

func (r *postgresUnitRepository) ListUndrawn(ctx context.Context, exec SQLExecutor, divisionID int, forUpdate bool) ([]*models.Unit, error) {
	query := `SELECT` + unitColumns + `
		FROM units
		WHERE division_id = $1 AND status IN ($2, $3) AND unit_number IS NULL
		ORDER BY id ASC`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := r.getExecutor(exec).QueryContext(ctx, query,
		divisionID, models.UnitRegistered, models.UnitCheckedIn)
	if err != nil {
		return nil, fmt.Errorf("failed to query undrawn units for division %d: %w", divisionID, err)
	}
	defer rows.Close()
	return scanUnitRows(rows)
}

func (r *postgresUnitRepository) ListDrawn(ctx context.Context, exec SQLExecutor, divisionID int) ([]*models.Unit, error) {
	query := `SELECT` + unitColumns + `
		FROM units
		WHERE division_id = $1 AND unit_number IS NOT NULL
		ORDER BY unit_number ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drawn units for division %d: %w", divisionID, err)
	}
	defer rows.Close()
	return scanUnitRows(rows)
}

func (r *postgresUnitRepository) AssignUnitNumber(ctx context.Context, exec SQLExecutor, unitID int, number int) error {
	query := `UPDATE units SET unit_number = $1 WHERE id = $2 AND unit_number IS NULL`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, number, unitID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "units_division_id_unit_number_key" {
			return ErrUnitNumberConflict
		}
		return fmt.Errorf("failed to assign unit number to unit %d: %w", unitID, err)
	}
	return checkAffectedRows(result, ErrUnitNotFound)
}

func (r *postgresUnitRepository) ClearUnitNumbers(ctx context.Context, exec SQLExecutor, divisionID int) error {
	query := `
		UPDATE units
		SET unit_number = NULL, pool_number = NULL, pool_name = NULL
		WHERE division_id = $1`
	_, err := r.getExecutor(exec).ExecContext(ctx, query, divisionID)
	if err != nil {
		return fmt.Errorf("failed to clear unit numbers for division %d: %w", divisionID, err)
	}
	return nil
}

func (r *postgresUnitRepository) ApplyStatsDelta(ctx context.Context, exec SQLExecutor, unitID int, delta UnitStatsDelta) error {
	query := `
		UPDATE units
		SET matches_played = matches_played + $1,
		    matches_won    = matches_won + $2,
		    matches_lost   = matches_lost + $3,
		    games_won      = games_won + $4,
		    games_lost     = games_lost + $5,
		    points_scored  = points_scored + $6,
		    points_against = points_against + $7
		WHERE id = $8`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		delta.Played, delta.Won, delta.Lost,
		delta.GamesWon, delta.GamesLost, delta.PointsScored, delta.PointsAgainst,
		unitID)
	if err != nil {
		return fmt.Errorf("failed to apply stats delta to unit %d: %w", unitID, err)
	}
	return checkAffectedRows(result, ErrUnitNotFound)
}
