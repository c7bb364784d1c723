package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ozergarant/internal/dbx"
	"ozergarant/internal/models"
)

type verificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

// Create — каждая выдача капчи отдельной строкой, старые не удаляем.
func (r *verificationRepository) Create(ctx context.Context, s *models.VerificationSession) (int64, error) {
	const q = `
		INSERT INTO captcha_sessions (user_id, captcha_type, correct_answer, options, attempts, is_solved, created_at, expires_at)
		VALUES ($1, $2, $3, $4, 0, FALSE, $5, $6)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, q,
		s.UserID, string(s.Category), s.CorrectAnswer, pq.Array(s.Options), s.CreatedAt, s.ExpiresAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("captcha session create: %w", err)
	}
	return id, nil
}

func (r *verificationRepository) GetActive(ctx context.Context, userID int64, now time.Time) (*models.VerificationSession, error) {
	const q = `
		SELECT id, user_id, captcha_type, correct_answer, options, attempts, is_solved, created_at, expires_at
		FROM captcha_sessions
		WHERE user_id = $1 AND is_solved = FALSE AND expires_at > $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var (
		s        models.VerificationSession
		category string
	)
	err := r.db.QueryRowContext(ctx, q, userID, now).Scan(
		&s.ID, &s.UserID, &category, &s.CorrectAnswer, pq.Array(&s.Options),
		&s.Attempts, &s.Solved, &s.CreatedAt, &s.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("captcha session active: %w", err)
	}
	s.Category = models.ChallengeCategory(category)
	return &s, nil
}

// IncrementAttempts — +1 попытка, возвращает новое значение attempts.
func (r *verificationRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	const q = `
		UPDATE captcha_sessions
		SET attempts = attempts + 1
		WHERE id = $1 AND is_solved = FALSE
		RETURNING attempts
	`
	var attempts int
	err := r.db.QueryRowContext(ctx, q, id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("captcha session increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *verificationRepository) Solve(ctx context.Context, id, userID int64, now time.Time, maxAttempts int) (bool, error) {
	solved := false
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE captcha_sessions SET is_solved = TRUE
			WHERE id = $1 AND user_id = $2 AND is_solved = FALSE AND expires_at > $3 AND attempts < $4
		`, id, userID, now, maxAttempts)
		if err != nil {
			return fmt.Errorf("captcha session solve: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("captcha session solve rows: %w", err)
		}
		if n == 0 {
			return nil
		}
		if _, err := setVerified(ctx, tx, userID, now); err != nil {
			return err
		}
		solved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return solved, nil
}
