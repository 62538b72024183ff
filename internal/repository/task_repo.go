package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fibreflow/internal/model"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `
	id, project_id, phase_id, name, description, status, completion_percentage,
	priority, assignee_id, due_date, is_milestone, is_blocking
`

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.PhaseID,
		&t.Name,
		&t.Description,
		&t.Status,
		&t.CompletionPercentage,
		&t.Priority,
		&t.AssigneeID,
		&t.DueDate,
		&t.IsMilestone,
		&t.IsBlocking,
	)
	return t, err
}

func (r *TaskRepository) GetByID(ctx context.Context, id int) (model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.Task{}, fmt.Errorf("task %d: %w", id, pgx.ErrNoRows)
		}
		r.logger.Error("Failed to get task", zap.Int("task_id", id), zap.Error(err))
		return model.Task{}, err
	}
	return t, nil
}

func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY id ASC`
	return r.queryTasks(ctx, query)
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID int) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 ORDER BY id ASC`
	return r.queryTasks(ctx, query, projectID)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task", zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateProgress writes the normalized status and percentage produced by
// the engine.
func (r *TaskRepository) UpdateProgress(ctx context.Context, tx pgx.Tx, task model.Task) error {
	query := `
		UPDATE tasks
		SET status = $1, completion_percentage = $2
		WHERE id = $3
	`
	_, err := tx.Exec(ctx, query, task.Status, task.CompletionPercentage, task.ID)
	if err != nil {
		r.logger.Error("Failed to update task progress",
			zap.Int("task_id", task.ID),
			zap.Error(err),
		)
		return err
	}

	r.logger.Info("Task progress updated",
		zap.Int("task_id", task.ID),
		zap.String("status", string(task.Status)),
		zap.Int("completion_percentage", task.CompletionPercentage),
	)
	return nil
}

func (r *TaskRepository) UpdateAssignee(ctx context.Context, tx pgx.Tx, taskID int, assigneeID *int) error {
	query := `UPDATE tasks SET assignee_id = $1 WHERE id = $2`

	_, err := tx.Exec(ctx, query, assigneeID, taskID)
	if err != nil {
		r.logger.Error("Failed to update task assignee",
			zap.Int("task_id", taskID),
			zap.Error(err),
		)
	}
	return err
}
