package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fibreflow/internal/model"
)

type UpdateRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUpdateRepository(db *pgxpool.Pool, logger *zap.Logger) *UpdateRepository {
	return &UpdateRepository{
		db:     db,
		logger: logger,
	}
}

func (r *UpdateRepository) ListByProject(ctx context.Context, projectID int) ([]model.ProjectUpdate, error) {
	query := `
		SELECT id, project_id, title, message, date, author_id
		FROM project_updates
		WHERE project_id = $1
		ORDER BY date DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list project updates", zap.Int("project_id", projectID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var updates []model.ProjectUpdate
	for rows.Next() {
		var u model.ProjectUpdate
		if err := rows.Scan(&u.ID, &u.ProjectID, &u.Title, &u.Message, &u.Date, &u.AuthorID); err != nil {
			r.logger.Error("Failed to scan project update", zap.Error(err))
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}
