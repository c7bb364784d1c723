package services

import (
	"context"
	"errors"

	"ozergarant/internal/logging"
	"ozergarant/internal/models"
	"ozergarant/internal/repositories"
)

type UserService interface {
	// Register creates the user on first contact and refreshes the profile
	// fields on every later contact.
	Register(ctx context.Context, p models.Profile) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	// RequireActive returns the user only when verified and not banned.
	RequireActive(ctx context.Context, id int64) (*models.User, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
}

type userService struct {
	repo repositories.UserRepository
	log  logging.Logger
}

func NewUserService(repo repositories.UserRepository, log logging.Logger) UserService {
	return &userService{repo: repo, log: log.With("component", "users")}
}

func (s *userService) Register(ctx context.Context, p models.Profile) (*models.User, error) {
	if p.ID == 0 {
		return nil, invalid("user_id", "required")
	}
	u, err := s.repo.Upsert(ctx, p.User())
	if err != nil {
		return nil, persistence("register user", err)
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("get user", err)
	}
	return u, nil
}

func (s *userService) RequireActive(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// неизвестный пользователь ещё не проходил капчу
		return nil, ErrNotVerified
	}
	if err != nil {
		return nil, err
	}
	if u.Banned {
		return nil, ErrBanned
	}
	if !u.Verified {
		return nil, ErrNotVerified
	}
	return u, nil
}

func (s *userService) SetBanned(ctx context.Context, id int64, banned bool) error {
	err := s.repo.SetBanned(ctx, id, banned)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return persistence("set banned", err)
	}
	s.log.Info(ctx, "user ban changed", "user_id", id, "banned", banned)
	return nil
}
