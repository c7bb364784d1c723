package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozergarant/internal/models"
	"ozergarant/internal/repositories/memstore"
)

func TestWorkflow_CreateDialog(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	wf := NewWorkflowService(memstore.NewWorkflowRepo(), c.Now)

	cur, err := wf.Current(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ActionIdle, cur.Action)

	_, err = wf.Advance(ctx, 1, models.ActionCreateTerms, models.WorkflowData{})
	assert.ErrorIs(t, err, ErrInvalidState, "cannot skip steps")

	steps := []struct {
		to   models.WorkflowAction
		data models.WorkflowData
	}{
		{models.ActionCreateRole, models.WorkflowData{}},
		{models.ActionCreateAmount, models.WorkflowData{Role: models.RoleBuyer}},
		{models.ActionCreateTerms, models.WorkflowData{Role: models.RoleBuyer, Amount: 50}},
		{models.ActionCreatePassword, models.WorkflowData{Role: models.RoleBuyer, Amount: 50, Terms: "sell widget X"}},
	}
	for _, s := range steps {
		ws, err := wf.Advance(ctx, 1, s.to, s.data)
		require.NoError(t, err, s.to)
		assert.Equal(t, s.to, ws.Action)
	}

	cur, err = wf.Current(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ActionCreatePassword, cur.Action)
	assert.Equal(t, "sell widget X", cur.Data.Terms)
	assert.Equal(t, t0, cur.UpdatedAt)

	_, err = wf.Advance(ctx, 1, models.ActionCreateAmount, cur.Data)
	assert.ErrorIs(t, err, ErrInvalidState, "no going back")

	_, err = wf.Advance(ctx, 1, models.ActionIdle, models.WorkflowData{})
	require.NoError(t, err)
	cur, err = wf.Current(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.ActionIdle, cur.Action)
}

func TestWorkflow_NewCommandOverridesDialog(t *testing.T) {
	ctx := context.Background()
	wf := NewWorkflowService(memstore.NewWorkflowRepo(), nil)

	_, err := wf.Advance(ctx, 2, models.ActionCreateRole, models.WorkflowData{})
	require.NoError(t, err)
	_, err = wf.Advance(ctx, 2, models.ActionCreateAmount, models.WorkflowData{Role: models.RoleSeller})
	require.NoError(t, err)

	ws, err := wf.Advance(ctx, 2, models.ActionJoinPassword, models.WorkflowData{DealCode: "ABCD1234"})
	require.NoError(t, err)
	assert.Equal(t, models.ActionJoinPassword, ws.Action)
	assert.Equal(t, models.WorkflowData{DealCode: "ABCD1234"}, ws.Data)

	require.NoError(t, wf.Clear(ctx, 2))
	cur, err := wf.Current(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.ActionIdle, cur.Action)
}

func TestDealTransitions(t *testing.T) {
	assert.True(t, CanTransitionDeal(models.DealCreated, models.DealJoined))
	assert.True(t, CanTransitionDeal(models.DealJoined, models.DealPaymentPending))
	assert.True(t, CanTransitionDeal(models.DealPaymentPending, models.DealCompleted))
	assert.False(t, CanTransitionDeal(models.DealCreated, models.DealCompleted))
	assert.False(t, CanTransitionDeal(models.DealJoined, models.DealCreated))

	for from := range DealTransitions {
		for _, to := range []models.DealStatus{models.DealCancelled, models.DealDisputed} {
			assert.Equal(t, !from.Terminal(), CanTransitionDeal(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransitionDeal("unknown", models.DealJoined))
}
