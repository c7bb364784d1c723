package repositories

import (
	"context"
	"database/sql"
	"time"

	"ozergarant/internal/models"
)

type UserRepository interface {
	// Upsert creates the user on first contact and refreshes profile fields
	// afterwards. Verified/banned/counters are never touched.
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	// SetVerified flips is_verified false→true; false when it was already set.
	SetVerified(ctx context.Context, id int64, at time.Time) (bool, error)
	IncrementDeals(ctx context.Context, id int64) error
	IncrementSuccessful(ctx context.Context, id int64) error
	SetBanned(ctx context.Context, id int64, banned bool) error
}

type VerificationRepository interface {
	Create(ctx context.Context, s *models.VerificationSession) (int64, error)
	// GetActive returns the most recent unsolved, unexpired session.
	GetActive(ctx context.Context, userID int64, now time.Time) (*models.VerificationSession, error)
	IncrementAttempts(ctx context.Context, id int64) (int, error)
	// Solve marks the session solved and the user verified in one step.
	// Returns false when the session is no longer solvable.
	Solve(ctx context.Context, id, userID int64, now time.Time, maxAttempts int) (bool, error)
}

// DealRepository mutations are compare-and-set on the expected status and
// report whether the row was changed.
type DealRepository interface {
	Create(ctx context.Context, deal *models.Deal) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Deal, error)
	GetByCode(ctx context.Context, code string) (*models.Deal, error)
	Join(ctx context.Context, id, participantID int64, expected models.DealStatus, at time.Time) (bool, error)
	SetPaymentMethod(ctx context.Context, id int64, method models.PaymentMethod, expected models.DealStatus, at time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id int64, from, to models.DealStatus, at time.Time) (bool, error)
	Complete(ctx context.Context, id int64, proof string, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Deal, error)
}

type WorkflowRepository interface {
	Set(ctx context.Context, s *models.WorkflowSession) error
	Get(ctx context.Context, userID int64) (*models.WorkflowSession, error)
	Clear(ctx context.Context, userID int64) error
}

// Store groups every repository the services need.
type Store struct {
	Users         UserRepository
	Verifications VerificationRepository
	Deals         DealRepository
	Workflows     WorkflowRepository
}

func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		Users:         NewUserRepository(db),
		Verifications: NewVerificationRepository(db),
		Deals:         NewDealRepository(db),
		Workflows:     NewWorkflowRepository(db),
	}
}
