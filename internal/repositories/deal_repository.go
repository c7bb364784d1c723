package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ozergarant/internal/models"
)

const dealColumns = `id, deal_code, creator_id, participant_id, creator_role, amount_usd, deal_conditions,
		deal_password, status, payment_method, payment_proof, created_at, updated_at, completed_at, expires_at`

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type dealRepository struct {
	db *sql.DB
}

func NewDealRepository(db *sql.DB) DealRepository {
	return &dealRepository{db: db}
}

func scanDeal(row interface{ Scan(...any) error }) (*models.Deal, error) {
	var (
		d           models.Deal
		participant sql.NullInt64
		method      sql.NullString
		proof       sql.NullString
		completedAt sql.NullTime
		role        string
		status      string
	)
	err := row.Scan(
		&d.ID, &d.Code, &d.CreatorID, &participant, &role, &d.AmountUSD, &d.Terms,
		&d.PasswordHash, &status, &method, &proof, &d.CreatedAt, &d.UpdatedAt, &completedAt, &d.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	d.CreatorRole = models.DealRole(role)
	d.Status = models.DealStatus(status)
	if participant.Valid {
		id := participant.Int64
		d.ParticipantID = &id
	}
	if method.Valid {
		m := models.PaymentMethod(method.String)
		d.PaymentMethod = &m
	}
	if proof.Valid {
		p := proof.String
		d.PaymentProof = &p
	}
	if completedAt.Valid {
		t := completedAt.Time
		d.CompletedAt = &t
	}
	return &d, nil
}

// Create — возвращает ID новой сделки; ErrDuplicateCode при коллизии кода.
func (r *dealRepository) Create(ctx context.Context, deal *models.Deal) (int64, error) {
	const q = `
		INSERT INTO deals (deal_code, creator_id, creator_role, amount_usd, deal_conditions,
			deal_password, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, q,
		deal.Code, deal.CreatorID, string(deal.CreatorRole), deal.AmountUSD, deal.Terms,
		deal.PasswordHash, string(deal.Status), deal.CreatedAt, deal.ExpiresAt,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return 0, ErrDuplicateCode
		}
		return 0, fmt.Errorf("создание сделки: %w", err)
	}
	return id, nil
}

func (r *dealRepository) GetByID(ctx context.Context, id int64) (*models.Deal, error) {
	q := `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`
	d, err := scanDeal(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("получение сделки по id: %w", err)
	}
	return d, nil
}

func (r *dealRepository) GetByCode(ctx context.Context, code string) (*models.Deal, error) {
	q := `SELECT ` + dealColumns + ` FROM deals WHERE deal_code = $1`
	d, err := scanDeal(r.db.QueryRowContext(ctx, q, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("получение сделки по коду: %w", err)
	}
	return d, nil
}

// Join — участник выставляется только если сделка всё ещё в ожидаемом
// статусе и без участника; двойной join выигрывает ровно один.
func (r *dealRepository) Join(ctx context.Context, id, participantID int64, expected models.DealStatus, at time.Time) (bool, error) {
	const q = `
		UPDATE deals
		SET participant_id = $1, status = $2, updated_at = $3
		WHERE id = $4 AND status = $5 AND participant_id IS NULL AND creator_id <> $1
	`
	return r.exec(ctx, "присоединение к сделке", q, participantID, string(models.DealJoined), at, id, string(expected))
}

func (r *dealRepository) SetPaymentMethod(ctx context.Context, id int64, method models.PaymentMethod, expected models.DealStatus, at time.Time) (bool, error) {
	const q = `
		UPDATE deals
		SET payment_method = $1, status = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.exec(ctx, "установка метода оплаты", q, string(method), string(models.DealPaymentPending), at, id, string(expected))
}

func (r *dealRepository) UpdateStatus(ctx context.Context, id int64, from, to models.DealStatus, at time.Time) (bool, error) {
	const q = `UPDATE deals SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	return r.exec(ctx, "обновление статуса", q, string(to), at, id, string(from))
}

func (r *dealRepository) Complete(ctx context.Context, id int64, proof string, at time.Time) (bool, error) {
	const q = `
		UPDATE deals
		SET status = $1, payment_proof = $2, completed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.exec(ctx, "завершение сделки", q, string(models.DealCompleted), proof, at, id, string(models.DealPaymentPending))
}

func (r *dealRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Deal, error) {
	q := `SELECT ` + dealColumns + `
		FROM deals
		WHERE creator_id = $1 OR participant_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("сделки пользователя: %w", err)
	}
	defer rows.Close()

	var deals []*models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения: %w", err)
		}
		deals = append(deals, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("сделки пользователя: %w", err)
	}
	return deals, nil
}

func (r *dealRepository) exec(ctx context.Context, op, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
