package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ozergarant/internal/models"
)

type workflowRepository struct {
	db *sql.DB
}

func NewWorkflowRepository(db *sql.DB) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) Set(ctx context.Context, s *models.WorkflowSession) error {
	data, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("workflow marshal: %w", err)
	}
	const q = `
		INSERT INTO user_sessions (user_id, current_action, session_data, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			current_action = EXCLUDED.current_action,
			session_data = EXCLUDED.session_data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, q, s.UserID, string(s.Action), data, s.UpdatedAt); err != nil {
		return fmt.Errorf("workflow set: %w", err)
	}
	return nil
}

func (r *workflowRepository) Get(ctx context.Context, userID int64) (*models.WorkflowSession, error) {
	const q = `SELECT user_id, current_action, session_data, updated_at FROM user_sessions WHERE user_id = $1`
	var (
		s      models.WorkflowSession
		action string
		data   []byte
	)
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&s.UserID, &action, &data, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("workflow get: %w", err)
	}
	s.Action = models.WorkflowAction(action)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.Data); err != nil {
			return nil, fmt.Errorf("workflow unmarshal: %w", err)
		}
	}
	return &s, nil
}

func (r *workflowRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("workflow clear: %w", err)
	}
	return nil
}
