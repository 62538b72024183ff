package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fibreflow/internal/model"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

const projectColumns = `
	id, name, description, status, current_phase, manager_id, client_id,
	start_date, target_completion_date, completion_percentage, version
`

func scanProject(row pgx.Row) (model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Status,
		&p.CurrentPhase,
		&p.ManagerID,
		&p.ClientID,
		&p.StartDate,
		&p.TargetCompletionDate,
		&p.CompletionPercentage,
		&p.Version,
	)
	return p, err
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int) (model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Project{}, fmt.Errorf("project %d: %w", id, pgx.ErrNoRows)
		}
		r.logger.Error("Failed to get project", zap.Int("project_id", id), zap.Error(err))
		return model.Project{}, err
	}
	return p, nil
}

func (r *ProjectRepository) List(ctx context.Context) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list projects", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			r.logger.Error("Failed to scan project", zap.Error(err))
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetForUpdate locks the project row for the duration of tx. Every
// workflow mutation goes through this lock so the version check and the
// update are atomic.
func (r *ProjectRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int) (model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 FOR UPDATE`

	p, err := scanProject(tx.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Project{}, fmt.Errorf("project %d: %w", id, pgx.ErrNoRows)
		}
		r.logger.Error("Failed to lock project", zap.Int("project_id", id), zap.Error(err))
		return model.Project{}, err
	}
	return p, nil
}

// UpdateWorkflowState persists the post-advance project state and bumps
// the version. Returns the new version.
func (r *ProjectRepository) UpdateWorkflowState(ctx context.Context, tx pgx.Tx, p model.Project) (int64, error) {
	query := `
		UPDATE projects
		SET status = $1, current_phase = $2, completion_percentage = $3, version = version + 1
		WHERE id = $4
		RETURNING version
	`
	var version int64
	err := tx.QueryRow(ctx, query, p.Status, p.CurrentPhase, p.CompletionPercentage, p.ID).Scan(&version)
	if err != nil {
		r.logger.Error("Failed to update project workflow state",
			zap.Int("project_id", p.ID),
			zap.Error(err),
		)
		return 0, err
	}

	r.logger.Info("Project workflow state updated",
		zap.Int("project_id", p.ID),
		zap.String("current_phase", string(p.CurrentPhase)),
		zap.Int64("version", version),
	)
	return version, nil
}

// BumpVersion advances the concurrency token without other changes (task
// mutations bump the owning project).
func (r *ProjectRepository) BumpVersion(ctx context.Context, tx pgx.Tx, id int) (int64, error) {
	var version int64
	err := tx.QueryRow(ctx, `
		UPDATE projects SET version = version + 1 WHERE id = $1 RETURNING version
	`, id).Scan(&version)
	if err != nil {
		r.logger.Error("Failed to bump project version", zap.Int("project_id", id), zap.Error(err))
		return 0, err
	}
	return version, nil
}

// UpdateCompletion refreshes the cached completion percentage after task
// progress changes.
func (r *ProjectRepository) UpdateCompletion(ctx context.Context, tx pgx.Tx, id int, percentage int) error {
	_, err := tx.Exec(ctx, `
		UPDATE projects SET completion_percentage = $1 WHERE id = $2
	`, percentage, id)
	if err != nil {
		r.logger.Error("Failed to update project completion",
			zap.Int("project_id", id),
			zap.Error(err),
		)
	}
	return err
}
