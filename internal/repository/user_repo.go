package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"fibreflow/internal/model"
)

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (model.User, error) {
	query := `SELECT id, name, email, role, team_id FROM users WHERE id = $1`

	var u model.User
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.TeamID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.User{}, fmt.Errorf("user %d: %w", id, pgx.ErrNoRows)
		}
		r.logger.Error("Failed to get user", zap.Int("user_id", id), zap.Error(err))
		return model.User{}, err
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	query := `SELECT id, name, email, role, team_id FROM users ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.TeamID); err != nil {
			r.logger.Error("Failed to scan user", zap.Error(err))
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
