// Package memstore is an in-process implementation of the repositories.
// It backs the "memory" database driver and the workflow sessions by
// default; every call takes the mutex for its own duration only.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"ozergarant/internal/models"
	"ozergarant/internal/repositories"
)

type Store struct {
	mu sync.Mutex

	now func() time.Time

	users     map[int64]*models.User
	sessions  []*models.VerificationSession
	deals     map[int64]*models.Deal
	codes     map[string]int64
	workflows map[int64]*models.WorkflowSession

	nextSessionID int64
	nextDealID    int64
}

func New() *Store {
	return &Store{
		now:       time.Now,
		users:     make(map[int64]*models.User),
		deals:     make(map[int64]*models.Deal),
		codes:     make(map[string]int64),
		workflows: make(map[int64]*models.WorkflowSession),
	}
}

// WithClock replaces the clock used for created/updated timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repositories.Store {
	return &repositories.Store{
		Users:         userRepo{s},
		Verifications: verificationRepo{s},
		Deals:         dealRepo{s},
		Workflows:     WorkflowRepo{s},
	}
}

// ---- users

type userRepo struct{ s *Store }

func (r userRepo) Upsert(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	cur, ok := r.s.users[u.ID]
	if !ok {
		cur = &models.User{ID: u.ID, CreatedAt: now}
		r.s.users[u.ID] = cur
	}
	cur.Username = u.Username
	cur.FirstName = u.FirstName
	cur.LastName = u.LastName
	cur.UpdatedAt = now
	cp := *cur
	return &cp, nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) SetVerified(_ context.Context, id int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.setVerifiedLocked(id, at), nil
}

func (s *Store) setVerifiedLocked(id int64, at time.Time) bool {
	u, ok := s.users[id]
	if !ok || u.Verified {
		return false
	}
	u.Verified = true
	t := at
	u.VerifiedAt = &t
	u.UpdatedAt = at
	return true
}

func (r userRepo) IncrementDeals(_ context.Context, id int64) error {
	return r.bump(id, func(u *models.User) { u.DealsCount++ })
}

func (r userRepo) IncrementSuccessful(_ context.Context, id int64) error {
	return r.bump(id, func(u *models.User) { u.SuccessfulDeals++ })
}

func (r userRepo) SetBanned(_ context.Context, id int64, banned bool) error {
	return r.bump(id, func(u *models.User) { u.Banned = banned })
}

func (r userRepo) bump(id int64, fn func(*models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = r.s.now()
	return nil
}

// ---- verification sessions

type verificationRepo struct{ s *Store }

func (r verificationRepo) Create(_ context.Context, vs *models.VerificationSession) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextSessionID++
	cp := *vs
	cp.ID = r.s.nextSessionID
	cp.Options = append([]string(nil), vs.Options...)
	r.s.sessions = append(r.s.sessions, &cp)
	return cp.ID, nil
}

func (r verificationRepo) GetActive(_ context.Context, userID int64, now time.Time) (*models.VerificationSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// sessions are appended in creation order: newest wins
	for i := len(r.s.sessions) - 1; i >= 0; i-- {
		vs := r.s.sessions[i]
		if vs.UserID != userID || !vs.Active(now) {
			continue
		}
		cp := *vs
		cp.Options = append([]string(nil), vs.Options...)
		return &cp, nil
	}
	return nil, repositories.ErrNotFound
}

func (r verificationRepo) IncrementAttempts(_ context.Context, id int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	vs := r.s.sessionLocked(id)
	if vs == nil || vs.Solved {
		return 0, repositories.ErrNotFound
	}
	vs.Attempts++
	return vs.Attempts, nil
}

func (r verificationRepo) Solve(_ context.Context, id, userID int64, now time.Time, maxAttempts int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	vs := r.s.sessionLocked(id)
	if vs == nil || vs.UserID != userID || !vs.Active(now) || vs.Attempts >= maxAttempts {
		return false, nil
	}
	vs.Solved = true
	r.s.setVerifiedLocked(userID, now)
	return true, nil
}

func (s *Store) sessionLocked(id int64) *models.VerificationSession {
	for _, vs := range s.sessions {
		if vs.ID == id {
			return vs
		}
	}
	return nil
}

// ---- deals

type dealRepo struct{ s *Store }

func cloneDeal(d *models.Deal) *models.Deal {
	cp := *d
	if d.ParticipantID != nil {
		v := *d.ParticipantID
		cp.ParticipantID = &v
	}
	if d.PaymentMethod != nil {
		v := *d.PaymentMethod
		cp.PaymentMethod = &v
	}
	if d.PaymentProof != nil {
		v := *d.PaymentProof
		cp.PaymentProof = &v
	}
	if d.CompletedAt != nil {
		v := *d.CompletedAt
		cp.CompletedAt = &v
	}
	return &cp
}

func (r dealRepo) Create(_ context.Context, d *models.Deal) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.codes[d.Code]; taken {
		return 0, repositories.ErrDuplicateCode
	}
	r.s.nextDealID++
	cp := cloneDeal(d)
	cp.ID = r.s.nextDealID
	cp.UpdatedAt = cp.CreatedAt
	r.s.deals[cp.ID] = cp
	r.s.codes[cp.Code] = cp.ID
	return cp.ID, nil
}

func (r dealRepo) GetByID(_ context.Context, id int64) (*models.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.deals[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneDeal(d), nil
}

func (r dealRepo) GetByCode(_ context.Context, code string) (*models.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.codes[code]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneDeal(r.s.deals[id]), nil
}

// mutate applies fn when the deal exists and is in the expected status.
func (r dealRepo) mutate(id int64, expected models.DealStatus, at time.Time, fn func(*models.Deal) bool) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.deals[id]
	if !ok || d.Status != expected {
		return false
	}
	if !fn(d) {
		return false
	}
	d.UpdatedAt = at
	return true
}

func (r dealRepo) Join(_ context.Context, id, participantID int64, expected models.DealStatus, at time.Time) (bool, error) {
	return r.mutate(id, expected, at, func(d *models.Deal) bool {
		if d.ParticipantID != nil || d.CreatorID == participantID {
			return false
		}
		p := participantID
		d.ParticipantID = &p
		d.Status = models.DealJoined
		return true
	}), nil
}

func (r dealRepo) SetPaymentMethod(_ context.Context, id int64, method models.PaymentMethod, expected models.DealStatus, at time.Time) (bool, error) {
	return r.mutate(id, expected, at, func(d *models.Deal) bool {
		m := method
		d.PaymentMethod = &m
		d.Status = models.DealPaymentPending
		return true
	}), nil
}

func (r dealRepo) UpdateStatus(_ context.Context, id int64, from, to models.DealStatus, at time.Time) (bool, error) {
	return r.mutate(id, from, at, func(d *models.Deal) bool {
		d.Status = to
		return true
	}), nil
}

func (r dealRepo) Complete(_ context.Context, id int64, proof string, at time.Time) (bool, error) {
	return r.mutate(id, models.DealPaymentPending, at, func(d *models.Deal) bool {
		p := proof
		t := at
		d.PaymentProof = &p
		d.CompletedAt = &t
		d.Status = models.DealCompleted
		return true
	}), nil
}

func (r dealRepo) ListByUser(_ context.Context, userID int64) ([]*models.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*models.Deal
	for _, d := range r.s.deals {
		if d.IsParty(userID) {
			out = append(out, cloneDeal(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ---- workflow sessions

// WorkflowRepo is exported so the app can keep workflow state in memory
// while everything else lives in Postgres.
type WorkflowRepo struct{ s *Store }

func NewWorkflowRepo() WorkflowRepo {
	return WorkflowRepo{New()}
}

func (r WorkflowRepo) Set(_ context.Context, ws *models.WorkflowSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *ws
	r.s.workflows[ws.UserID] = &cp
	return nil
}

func (r WorkflowRepo) Get(_ context.Context, userID int64) (*models.WorkflowSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ws, ok := r.s.workflows[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (r WorkflowRepo) Clear(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.workflows, userID)
	return nil
}
