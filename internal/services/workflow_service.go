package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ozergarant/internal/models"
	"ozergarant/internal/repositories"
)

// WorkflowService keeps the per-user dialog step. It never touches deals:
// cancelling a dialog only drops the collected input.
type WorkflowService interface {
	// Current returns the stored session or an idle one.
	Current(ctx context.Context, userID int64) (*models.WorkflowSession, error)
	Advance(ctx context.Context, userID int64, to models.WorkflowAction, data models.WorkflowData) (*models.WorkflowSession, error)
	Clear(ctx context.Context, userID int64) error
}

type workflowService struct {
	repo repositories.WorkflowRepository
	now  func() time.Time
}

func NewWorkflowService(repo repositories.WorkflowRepository, now func() time.Time) WorkflowService {
	if now == nil {
		now = time.Now
	}
	return &workflowService{repo: repo, now: now}
}

func (s *workflowService) Current(ctx context.Context, userID int64) (*models.WorkflowSession, error) {
	ws, err := s.repo.Get(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.WorkflowSession{UserID: userID, Action: models.ActionIdle}, nil
	}
	if err != nil {
		return nil, persistence("workflow get", err)
	}
	return ws, nil
}

func (s *workflowService) Advance(ctx context.Context, userID int64, to models.WorkflowAction, data models.WorkflowData) (*models.WorkflowSession, error) {
	cur, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionWorkflow(cur.Action, to) {
		return nil, fmt.Errorf("%w: workflow %q -> %q", ErrInvalidState, cur.Action, to)
	}
	if to == models.ActionIdle {
		return &models.WorkflowSession{UserID: userID}, s.Clear(ctx, userID)
	}
	ws := &models.WorkflowSession{UserID: userID, Action: to, Data: data, UpdatedAt: s.now()}
	if err := s.repo.Set(ctx, ws); err != nil {
		return nil, persistence("workflow set", err)
	}
	return ws, nil
}

func (s *workflowService) Clear(ctx context.Context, userID int64) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return persistence("workflow clear", err)
	}
	return nil
}
