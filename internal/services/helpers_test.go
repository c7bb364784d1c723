package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ozergarant/internal/logging"
	"ozergarant/internal/models"
	"ozergarant/internal/repositories"
	"ozergarant/internal/repositories/memstore"
)

var t0 = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

const (
	testTRC20 = "TXYZtrc20address"
	testTON   = "EQtonaddress"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sent struct {
	userID int64
	n      models.Notification
}

// recorder is a Notifier that remembers every call and can be told to fail.
type recorder struct {
	mu   sync.Mutex
	sent []sent
	fail bool
}

func (r *recorder) Notify(_ context.Context, userID int64, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{userID: userID, n: n})
	if r.fail {
		return errors.New("telegram is down")
	}
	return nil
}

func (r *recorder) to(userID int64) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, s := range r.sent {
		if s.userID == userID {
			out = append(out, s.n)
		}
	}
	return out
}

type emailStub struct {
	mu    sync.Mutex
	deals []string
	err   error
}

func (e *emailStub) SendDealCompleted(d *models.Deal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deals = append(e.deals, d.Code)
	return e.err
}

type env struct {
	store  *repositories.Store
	clock  *clock
	notes  *recorder
	email  *emailStub
	users  UserService
	verify VerificationService
	deals  *dealService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c := newClock()
	st := memstore.New().WithClock(c.Now).Repositories()
	log := logging.Discard()
	notes := &recorder{}
	email := &emailStub{}

	users := NewUserService(st.Users, log)
	gen := NewChallengeGenerator(rand.New(rand.NewPCG(1, 2)), time.Minute)
	verify := NewVerificationService(st.Users, st.Verifications, gen, 3, log, c.Now)
	deals := NewDealService(st.Deals, st.Users, users, NewPaymentResolver(testTRC20, testTON),
		notes, email, DealConfig{TTL: 24 * time.Hour, MaxAmount: 100000}, log, c.Now)

	return &env{
		store:  st,
		clock:  c,
		notes:  notes,
		email:  email,
		users:  users,
		verify: verify,
		deals:  deals.(*dealService),
	}
}

// verifiedUser registers id and marks it verified directly in the store.
func (e *env) verifiedUser(t *testing.T, id int64, username string) {
	t.Helper()
	ctx := context.Background()
	_, err := e.store.Users.Upsert(ctx, &models.User{ID: id, Username: username})
	require.NoError(t, err)
	_, err = e.store.Users.SetVerified(ctx, id, t0)
	require.NoError(t, err)
}

func (e *env) createDeal(t *testing.T, creator int64, role models.DealRole) *models.Deal {
	t.Helper()
	d, err := e.deals.Create(context.Background(), CreateDealInput{
		CreatorID: creator, Role: role, Amount: 50, Terms: "sell widget X", Password: "abcd",
	})
	require.NoError(t, err)
	return d
}
