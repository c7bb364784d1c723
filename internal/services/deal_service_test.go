package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozergarant/internal/models"
	"ozergarant/internal/utils"
)

const (
	alice int64 = 1001
	bob   int64 = 1002
	carol int64 = 1003
)

func TestDeal_CreateScenarioA(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, alice, "alice")

	d, err := e.deals.Create(ctx, CreateDealInput{
		CreatorID: alice, Role: models.RoleSeller, Amount: 50, Terms: "sell widget X", Password: "abcd",
	})
	require.NoError(t, err)

	assert.Equal(t, models.DealCreated, d.Status)
	assert.True(t, utils.IsDealCode(d.Code), d.Code)
	assert.Len(t, d.Code, 8)
	assert.Equal(t, t0.Add(24*time.Hour), d.ExpiresAt)
	assert.NotEqual(t, "abcd", d.PasswordHash)
	assert.True(t, utils.CheckDealPassword("abcd", d.PasswordHash))

	stored, err := e.deals.GetByCode(ctx, strings.ToLower(d.Code))
	require.NoError(t, err)
	assert.Equal(t, d.ID, stored.ID)
	assert.Nil(t, stored.ParticipantID)
}

func TestDeal_CreateValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, alice, "alice")

	valid := CreateDealInput{CreatorID: alice, Role: models.RoleBuyer, Amount: 10, Terms: "0123456789", Password: "abcd"}
	cases := map[string]struct {
		mut   func(*CreateDealInput)
		field string
	}{
		"zero amount":     {func(in *CreateDealInput) { in.Amount = 0 }, "amount"},
		"negative amount": {func(in *CreateDealInput) { in.Amount = -5 }, "amount"},
		"over ceiling":    {func(in *CreateDealInput) { in.Amount = 100000.01 }, "amount"},
		"NaN amount":      {func(in *CreateDealInput) { in.Amount = math.NaN() }, "amount"},
		"infinite amount": {func(in *CreateDealInput) { in.Amount = math.Inf(1) }, "amount"},
		"short terms":     {func(in *CreateDealInput) { in.Terms = "  short   " }, "terms"},
		"long terms":      {func(in *CreateDealInput) { in.Terms = strings.Repeat("я", 1001) }, "terms"},
		"short password":  {func(in *CreateDealInput) { in.Password = "abc" }, "password"},
		"long password":   {func(in *CreateDealInput) { in.Password = strings.Repeat("p", 51) }, "password"},
		"bad role":        {func(in *CreateDealInput) { in.Role = "broker" }, "role"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			tc.mut(&in)
			_, err := e.deals.Create(ctx, in)
			require.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	t.Run("bounds are inclusive", func(t *testing.T) {
		in := valid
		in.Amount = 100000
		in.Terms = strings.Repeat("я", 1000)
		in.Password = strings.Repeat("p", 50)
		_, err := e.deals.Create(ctx, in)
		require.NoError(t, err)
	})

	t.Run("amount rounded to cents", func(t *testing.T) {
		in := valid
		in.Amount = 12.349
		d, err := e.deals.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, 12.35, d.AmountUSD)
	})
}

func TestDeal_CreateRequiresVerifiedUser(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.store.Users.Upsert(ctx, &models.User{ID: alice})
	require.NoError(t, err)

	in := CreateDealInput{CreatorID: alice, Role: models.RoleBuyer, Amount: 10, Terms: "0123456789", Password: "abcd"}
	_, err = e.deals.Create(ctx, in)
	assert.ErrorIs(t, err, ErrNotVerified)

	in.CreatorID = 999
	_, err = e.deals.Create(ctx, in)
	assert.ErrorIs(t, err, ErrNotVerified, "unknown user")
}

type bannedGate struct{ UserService }

func (bannedGate) RequireActive(context.Context, int64) (*models.User, error) { return nil, ErrBanned }

func TestDeal_CreateBanned(t *testing.T) {
	e := newEnv(t)
	e.deals.gate = bannedGate{}
	_, err := e.deals.Create(context.Background(), CreateDealInput{
		CreatorID: alice, Role: models.RoleBuyer, Amount: 10, Terms: "0123456789", Password: "abcd",
	})
	assert.ErrorIs(t, err, ErrBanned)
}

func TestDeal_CodeCollisionRetries(t *testing.T) {
	e := newEnv(t)
	e.verifiedUser(t, alice, "alice")

	codes := []string{"AAAA1111", "AAAA1111", "AAAA1111", "BBBB2222"}
	e.deals.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}
	first := e.createDeal(t, alice, models.RoleBuyer)
	assert.Equal(t, "AAAA1111", first.Code)

	second := e.createDeal(t, alice, models.RoleBuyer)
	assert.Equal(t, "BBBB2222", second.Code)
	assert.Empty(t, codes)
}

func TestDeal_CodeGenerationGivesUp(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, alice, "alice")

	calls := 0
	e.deals.newCode = func() (string, error) {
		calls++
		return "CCCC3333", nil
	}
	e.createDeal(t, alice, models.RoleBuyer)
	calls = 0

	_, err := e.deals.Create(ctx, CreateDealInput{
		CreatorID: alice, Role: models.RoleBuyer, Amount: 10, Terms: "0123456789", Password: "abcd",
	})
	assert.ErrorIs(t, err, ErrCodeGeneration)
	assert.Equal(t, codeAttempts, calls)
}

func TestDeal_JoinFailuresDoNotMutate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, alice, "alice")
	e.verifiedUser(t, bob, "bob")
	d := e.createDeal(t, alice, models.RoleBuyer)

	_, err := e.deals.Join(ctx, "ZZZZ9999", bob, "abcd")
	assert.ErrorIs(t, err, ErrNotFound)

	// scenario B
	_, err = e.deals.Join(ctx, d.Code, alice, "abcd")
	assert.ErrorIs(t, err, ErrSelfJoin)

	_, err = e.deals.Join(ctx, d.Code, bob, "wrong")
	assert.ErrorIs(t, err, ErrAuth)

	_, err = e.deals.Join(ctx, d.Code, carol, "abcd")
	assert.ErrorIs(t, err, ErrNotVerified)

	stored, err := e.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealCreated, stored.Status)
	assert.Nil(t, stored.ParticipantID)
	assert.Empty(t, e.notes.to(alice))
}

func TestDeal_JoinExpired(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, alice, "alice")
	e.verifiedUser(t, bob, "bob")
	d := e.createDeal(t, alice, models.RoleBuyer)

	e.clock.Advance(24 * time.Hour)
	_, err := e.deals.Preview(ctx, d.Code, bob)
	assert.ErrorIs(t, err, ErrExpired)
	_, err = e.deals.Join(ctx, d.Code, bob, "abcd")
	assert.ErrorIs(t, err, ErrExpired)

	stored, err := e.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealCreated, stored.Status)
}

func TestDeal_JoinScenarioC(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, alice, "alice")
	e.verifiedUser(t, bob, "bob")
	d := e.createDeal(t, alice, models.RoleSeller)

	preview, err := e.deals.Preview(ctx, d.Code, bob)
	require.NoError(t, err)
	assert.Equal(t, d.ID, preview.ID)

	joined, err := e.deals.Join(ctx, d.Code, bob, "abcd")
	require.NoError(t, err)
	assert.Equal(t, models.DealJoined, joined.Status)
	require.NotNil(t, joined.ParticipantID)
	assert.Equal(t, bob, *joined.ParticipantID)

	stored, err := e.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealJoined, stored.Status)
	assert.Equal(t, bob, *stored.ParticipantID)

	creatorNotes := e.notes.to(alice)
	require.Len(t, creatorNotes, 1)
	assert.Contains(t, creatorNotes[0].Text, "@bob")

	// creator is the seller, so the joining buyer is asked for a method
	payerNotes := e.notes.to(bob)
	require.Len(t, payerNotes, 1)
	require.Len(t, payerNotes[0].Keyboard, 2)
	assert.Equal(t, models.IntentPaymentMethod, payerNotes[0].Keyboard[0][0].Action)

	for _, id := range []int64{alice, bob} {
		u, err := e.users.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, u.DealsCount)
	}

	_, err = e.deals.Join(ctx, d.Code, carol, "abcd")
	assert.ErrorIs(t, err, ErrNotVerified)

	e.verifiedUser(t, carol, "carol")
	_, err = e.deals.Join(ctx, d.Code, carol, "abcd")
	require.ErrorIs(t, err, ErrInvalidState)
	var se *InvalidStateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.DealJoined, se.Current)
}

func TestDeal_ConcurrentJoinHasOneWinner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.verifiedUser(t, alice, "alice")
	d := e.createDeal(t, alice, models.RoleBuyer)

	const n = 16
	for i := int64(0); i < n; i++ {
		e.verifiedUser(t, 2000+i, "")
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	for i := int64(0); i < n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := e.deals.Join(ctx, d.Code, id, "abcd")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrInvalidState):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(2000 + i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, losses)
}

func joinedDeal(t *testing.T, e *env, creatorRole models.DealRole) *models.Deal {
	t.Helper()
	e.verifiedUser(t, alice, "alice")
	e.verifiedUser(t, bob, "bob")
	d := e.createDeal(t, alice, creatorRole)
	d, err := e.deals.Join(context.Background(), d.Code, bob, "abcd")
	require.NoError(t, err)
	return d
}

func TestDeal_SelectPaymentMethodScenarioD(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	d := joinedDeal(t, e, models.RoleBuyer)

	_, err := e.deals.SelectPaymentMethod(ctx, d.ID, bob, models.MethodTRC20)
	assert.ErrorIs(t, err, ErrForbidden, "seller is not the payer")

	_, err = e.deals.SelectPaymentMethod(ctx, d.ID, carol, models.MethodTRC20)
	assert.ErrorIs(t, err, ErrNotVerified)

	_, err = e.deals.SelectPaymentMethod(ctx, d.ID, alice, "BTC")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)

	stored, err := e.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealJoined, stored.Status)
	assert.Nil(t, stored.PaymentMethod)

	pi, err := e.deals.SelectPaymentMethod(ctx, d.ID, alice, models.MethodTRC20)
	require.NoError(t, err)
	assert.Equal(t, testTRC20, pi.Address)
	assert.Equal(t, 50.0, pi.Amount)
	assert.Equal(t, "tron:"+testTRC20+"?amount=50&token="+usdtTRC20Contract, pi.URI)
	assert.Equal(t, d.Code, pi.DealCode)

	stored, err = e.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealPaymentPending, stored.Status)
	require.NotNil(t, stored.PaymentMethod)
	assert.Equal(t, models.MethodTRC20, *stored.PaymentMethod)

	sellerNotes := e.notes.to(bob)
	require.NotEmpty(t, sellerNotes)
	assert.Contains(t, sellerNotes[len(sellerNotes)-1].Text, "TRC20")

	_, err = e.deals.SelectPaymentMethod(ctx, d.ID, alice, models.MethodTON)
	var se *InvalidStateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.DealPaymentPending, se.Current)
	assert.Equal(t, models.DealJoined, se.Required)
}

func TestDeal_AttestPaymentScenarioE(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	d := joinedDeal(t, e, models.RoleSeller)

	_, err := e.deals.AttestPayment(ctx, d.ID, bob, "")
	assert.ErrorIs(t, err, ErrInvalidState, "payment method not chosen yet")

	_, err = e.deals.SelectPaymentMethod(ctx, d.ID, bob, models.MethodTON)
	require.NoError(t, err)

	_, err = e.deals.AttestPayment(ctx, d.ID, alice, "")
	assert.ErrorIs(t, err, ErrForbidden)

	e.notes.fail = true
	e.clock.Advance(time.Hour)
	before := len(e.notes.sent)

	done, err := e.deals.AttestPayment(ctx, d.ID, bob, "  tx 0xabc  ")
	require.NoError(t, err, "notification failure must not block completion")
	assert.Equal(t, models.DealCompleted, done.Status)

	stored, err := e.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, t0.Add(time.Hour), *stored.CompletedAt)
	require.NotNil(t, stored.PaymentProof)
	assert.Equal(t, "tx 0xabc", *stored.PaymentProof)

	var notified []int64
	for _, s := range e.notes.sent[before:] {
		notified = append(notified, s.userID)
	}
	assert.ElementsMatch(t, []int64{alice, bob}, notified)
	assert.Equal(t, []string{d.Code}, e.email.deals)

	for _, id := range []int64{alice, bob} {
		u, err := e.users.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, u.SuccessfulDeals)
	}

	_, err = e.deals.AttestPayment(ctx, d.ID, bob, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDeal_AttestPaymentEmailFailureIgnored(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.email.err = errors.New("smtp down")
	d := joinedDeal(t, e, models.RoleBuyer)

	_, err := e.deals.SelectPaymentMethod(ctx, d.ID, alice, models.MethodTRC20)
	require.NoError(t, err)
	done, err := e.deals.AttestPayment(ctx, d.ID, alice, "")
	require.NoError(t, err)
	assert.Equal(t, models.DealCompleted, done.Status)
}

func TestDeal_CancelAndDisputeAreStubs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	d := joinedDeal(t, e, models.RoleBuyer)

	assert.ErrorIs(t, e.deals.Cancel(ctx, d.ID, alice), ErrTransitionNotSupported)
	assert.ErrorIs(t, e.deals.OpenDispute(ctx, d.ID, bob, "no goods"), ErrTransitionNotSupported)
	assert.ErrorIs(t, e.deals.Cancel(ctx, d.ID, carol), ErrForbidden)
	assert.ErrorIs(t, e.deals.Cancel(ctx, 424242, alice), ErrNotFound)

	stored, err := e.deals.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DealJoined, stored.Status)
}

func TestDeal_ListForUser(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	d := joinedDeal(t, e, models.RoleBuyer)
	e.clock.Advance(time.Minute)
	other := e.createDeal(t, bob, models.RoleSeller)

	list, err := e.deals.ListForUser(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, other.ID, list[0].ID)
	assert.Equal(t, d.ID, list[1].ID)

	list, err = e.deals.ListForUser(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, list)
}
