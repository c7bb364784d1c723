package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ozergarant/internal/dbx"
	"ozergarant/internal/models"
)

const userColumns = `user_id, username, first_name, last_name, is_verified, verified_at,
		deals_count, successful_deals, rating, is_banned, created_at, updated_at`

type userRepository struct {
	db dbx.DBTX
}

func NewUserRepository(db dbx.DBTX) UserRepository {
	return &userRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u          models.User
		verifiedAt sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Verified, &verifiedAt,
		&u.DealsCount, &u.SuccessfulDeals, &u.Rating, &u.Banned, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.VerifiedAt = &t
	}
	return &u, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	q := `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = NOW()
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRowContext(ctx, q, user.ID, user.Username, user.FirstName, user.LastName))
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *userRepository) SetVerified(ctx context.Context, id int64, at time.Time) (bool, error) {
	return setVerified(ctx, r.db, id, at)
}

// setVerified is shared with the verification repository's solve transaction.
func setVerified(ctx context.Context, q dbx.DBTX, id int64, at time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE users SET is_verified = TRUE, verified_at = $2, updated_at = $2
		 WHERE user_id = $1 AND is_verified = FALSE`, id, at)
	if err != nil {
		return false, fmt.Errorf("set verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set verified rows: %w", err)
	}
	return n == 1, nil
}

func (r *userRepository) IncrementDeals(ctx context.Context, id int64) error {
	return r.increment(ctx, "deals_count", id)
}

func (r *userRepository) IncrementSuccessful(ctx context.Context, id int64) error {
	return r.increment(ctx, "successful_deals", id)
}

func (r *userRepository) increment(ctx context.Context, column string, id int64) error {
	// column приходит только из констант выше
	q := fmt.Sprintf(`UPDATE users SET %s = %s + 1, updated_at = NOW() WHERE user_id = $1`, column, column)
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_banned = $2, updated_at = NOW() WHERE user_id = $1`, id, banned)
	if err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
