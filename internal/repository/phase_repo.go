package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fibreflow/internal/model"
)

type PhaseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPhaseRepository(db *pgxpool.Pool, logger *zap.Logger) *PhaseRepository {
	return &PhaseRepository{
		db:     db,
		logger: logger,
	}
}

const phaseColumns = `
	id, project_id, phase_name, status, start_date, target_end_date, completed_date, public_summary
`

func scanPhase(row pgx.Row) (model.Phase, error) {
	var p model.Phase
	err := row.Scan(
		&p.ID,
		&p.ProjectID,
		&p.PhaseName,
		&p.Status,
		&p.StartDate,
		&p.TargetEndDate,
		&p.CompletedDate,
		&p.PublicSummary,
	)
	return p, err
}

func (r *PhaseRepository) ListByProject(ctx context.Context, projectID int) ([]model.Phase, error) {
	query := `SELECT ` + phaseColumns + ` FROM phases WHERE project_id = $1 ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list phases", zap.Int("project_id", projectID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var phases []model.Phase
	for rows.Next() {
		p, err := scanPhase(rows)
		if err != nil {
			r.logger.Error("Failed to scan phase", zap.Error(err))
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// UpdateStatus writes the post-advance status of a single phase.
// completed_date is set when the phase transitions to completed and
// start_date when it becomes active, matching the engine's output.
func (r *PhaseRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, phase model.Phase) error {
	query := `
		UPDATE phases
		SET status = $1, start_date = $2, completed_date = $3
		WHERE id = $4
	`
	_, err := tx.Exec(ctx, query, phase.Status, phase.StartDate, phase.CompletedDate, phase.ID)
	if err != nil {
		r.logger.Error("Failed to update phase status",
			zap.Int("phase_id", phase.ID),
			zap.String("status", string(phase.Status)),
			zap.Error(err),
		)
	}
	return err
}
